// Package tabular reads the CSV datasets (FAQ corpus, intent training set)
// into header-keyed rows.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrMissingColumn = errors.New("missing column")

type Row map[string]string

// ReadCSV reads path and returns one Row per record. Header names are
// trimmed and lowercased; every name in required must be present.
func ReadCSV(path string, required ...string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, required...)
}

func Read(r io.Reader, required ...string) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[i] = name
		index[name] = i
	}

	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("column %q: %w", name, ErrMissingColumn)
		}
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		row := make(Row, len(columns))
		for i, name := range columns {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
