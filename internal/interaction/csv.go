package interaction

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ecom-support/chatbot/internal/storage/models"
)

var csvHeader = []string{"timestamp", "user_id", "query", "response", "intent"}

// CSVSink appends rows to a CSV file. Rows are written and flushed one at
// a time under a mutex so concurrent turns never interleave.
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open interaction log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat interaction log: %w", err)
	}

	s := &CSVSink{file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.writeRow(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVSink) Record(_ context.Context, rec models.InteractionRecord) error {
	return s.writeRow([]string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.UserID,
		rec.Query,
		rec.Response,
		rec.Intent,
	})
}

func (s *CSVSink) writeRow(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write interaction row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to flush interaction row: %w", err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.file.Close()
}
