package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecom-support/chatbot/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_InteractionHistory(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, user := range []string{"sam", "ana", "sam"} {
		rec := &models.InteractionRecord{
			TurnID:     "turn-" + user,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			UserID:     user,
			Query:      "where's order #12345",
			Response:   "reply",
			Intent:     "track_order",
			Confidence: 0.8,
		}
		require.NoError(t, c.InsertInteraction(ctx, rec))
		assert.NotZero(t, rec.ID)
	}

	sam, err := c.GetInteractionHistory(ctx, "sam", 10)
	require.NoError(t, err)
	require.Len(t, sam, 2)
	assert.True(t, sam[0].Timestamp.After(sam[1].Timestamp))
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), sam[0].Timestamp.UnixMilli())
	assert.Equal(t, 0.8, sam[0].Confidence)

	all, err := c.GetInteractionHistory(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := c.GetInteractionHistory(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClient_FAQScoreStoredSeparately(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec := &models.InteractionRecord{
		TurnID:     "turn-faq",
		Timestamp:  time.Now(),
		UserID:     "sam",
		Query:      "how long does shipping take",
		Response:   "3-5 days",
		Intent:     "faq",
		Confidence: 0.21,
		FAQScore:   0.93,
	}
	require.NoError(t, c.InsertInteraction(ctx, rec))

	got, err := c.GetInteractionHistory(ctx, "sam", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.21, got[0].Confidence)
	assert.Equal(t, 0.93, got[0].FAQScore)
}

func TestClient_InitSchemaAddsFAQScoreToOldTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	c, err := NewClient(path)
	require.NoError(t, err)
	_, err = c.db.Exec(`CREATE TABLE interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		query TEXT NOT NULL,
		response TEXT NOT NULL,
		intent TEXT NOT NULL,
		confidence REAL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = c.db.Exec(`INSERT INTO interactions (turn_id, user_id, query, response, intent, confidence, latency_ms, created_at)
		VALUES ('old', 'sam', 'hi', 'hello', 'greeting', 0.9, 3, 1)`)
	require.NoError(t, err)

	require.NoError(t, c.InitSchema())
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })

	got, err := c.GetInteractionHistory(context.Background(), "sam", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Zero(t, got[0].FAQScore)
}

func TestClient_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec := &models.ErrorRecord{
		TurnID:     "t1",
		Timestamp:  time.Now(),
		Stage:      "classify",
		Kind:       "panic",
		Message:    "boom",
		StackTrace: "goroutine 1 [running]:",
	}
	require.NoError(t, c.InsertError(ctx, rec))

	got, err := c.GetRecentErrors(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "classify", got[0].Stage)
	assert.Equal(t, "goroutine 1 [running]:", got[0].StackTrace)
}

func TestClassify(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	assert.True(t, errors.Is(classify(busy), ErrBusy))

	other := errors.New("disk full")
	assert.Equal(t, other, classify(other))
}
