package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	input := "\ufeff Query , INTENT\n\"hi, there\",greeting\nwhere is my order , track_order\nshort\n"

	rows, err := Read(strings.NewReader(input), "query", "intent")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "hi, there", rows[0]["query"])
	assert.Equal(t, "greeting", rows[0]["intent"])
	assert.Equal(t, "where is my order", rows[1]["query"])
	assert.Equal(t, "", rows[2]["intent"])
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("question\nhow?\n"), "question", "answer")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, err := ReadCSV("/nonexistent/faqs.csv", "question")
	assert.Error(t, err)
}
