package interaction

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecom-support/chatbot/internal/storage/models"
	"github.com/ecom-support/chatbot/internal/storage/sqlite"
)

func sampleRecord(i int) models.InteractionRecord {
	return models.InteractionRecord{
		TurnID:    fmt.Sprintf("turn-%d", i),
		Timestamp: time.Date(2024, 5, 1, 10, 0, i, 0, time.UTC),
		UserID:    fmt.Sprintf("user-%d", i%3),
		Query:     "where's my order, \"#12345\"?",
		Response:  "Hi Sam!\nYour order is on its way.",
		Intent:    "track_order",
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSink_HeaderOnceAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatbot_logs.csv")

	s, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), sampleRecord(1)))
	require.NoError(t, s.Close())

	s, err = NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), sampleRecord(2)))
	require.NoError(t, s.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2024-05-01T10:00:01Z", "user-1", "where's my order, \"#12345\"?", "Hi Sam!\nYour order is on its way.", "track_order"}, rows[1])
}

func TestCSVSink_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot_logs.csv")
	s, err := NewCSVSink(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Record(context.Background(), sampleRecord(i)))
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 101)
	for _, row := range rows[1:] {
		assert.Len(t, row, 5)
		assert.Equal(t, "track_order", row[4])
	}
}

type fakeWriter struct {
	failures int
	err      error
	calls    int
	got      []models.InteractionRecord
}

func (f *fakeWriter) InsertInteraction(_ context.Context, rec *models.InteractionRecord) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	f.got = append(f.got, *rec)
	return nil
}

func TestSQLiteSink_RetriesBusy(t *testing.T) {
	w := &fakeWriter{failures: 2, err: fmt.Errorf("insert: %w", sqlite.ErrBusy)}
	s := NewSQLiteSink(w)

	require.NoError(t, s.Record(context.Background(), sampleRecord(1)))
	assert.Equal(t, 3, w.calls)
	require.Len(t, w.got, 1)
}

func TestSQLiteSink_DoesNotRetryOtherErrors(t *testing.T) {
	w := &fakeWriter{failures: 5, err: errors.New("no such table")}
	s := NewSQLiteSink(w)

	assert.Error(t, s.Record(context.Background(), sampleRecord(1)))
	assert.Equal(t, 1, w.calls)
}

func TestSQLiteSink_RealDatabase(t *testing.T) {
	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.InitSchema())

	s := NewSQLiteSink(db)
	require.NoError(t, s.Record(context.Background(), sampleRecord(1)))

	got, err := db.GetInteractionHistory(context.Background(), "user-1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "turn-1", got[0].TurnID)
}

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, models.InteractionRecord) error { return f.err }

func TestMulti_FanOutSurvivesFailure(t *testing.T) {
	w := &fakeWriter{}
	boom := errors.New("disk full")

	m := NewMulti().
		Add("broken", failingRecorder{err: boom}).
		Add("sqlite", NewSQLiteSink(w))

	err := m.Record(context.Background(), sampleRecord(1))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, w.got, 1)

	assert.NoError(t, NewMulti().Record(context.Background(), sampleRecord(2)))
}
