package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/storage/models"
	"github.com/ecom-support/chatbot/pkg/logger"
)

// ErrBusy marks writes that failed because another connection held the
// database lock. Callers may retry them.
var ErrBusy = errors.New("sqlite database busy")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		query TEXT NOT NULL,
		response TEXT NOT NULL,
		intent TEXT NOT NULL,
		confidence REAL,
		faq_score REAL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_interactions_intent ON interactions(intent);

	CREATE TABLE IF NOT EXISTS errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT,
		stage TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		stack_trace TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_errors_created ON errors(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := c.ensureColumn("interactions", "faq_score", "REAL"); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// ensureColumn adds a column missing from a table created by an older
// schema.
func (c *Client) ensureColumn(table, column, decl string) error {
	rows, err := c.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := c.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return err
	}
	logger.Info("SQLite column added", zap.String("table", table), zap.String("column", column))
	return nil
}

// Timestamps are stored as unix milliseconds.
func (c *Client) InsertInteraction(ctx context.Context, record *models.InteractionRecord) error {
	query := `
		INSERT INTO interactions (turn_id, user_id, query, response, intent, confidence, faq_score, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.ExecContext(
		ctx,
		query,
		record.TurnID,
		record.UserID,
		record.Query,
		record.Response,
		record.Intent,
		record.Confidence,
		record.FAQScore,
		record.LatencyMS,
		record.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", classify(err))
	}

	if id, err := res.LastInsertId(); err == nil {
		record.ID = id
	}

	logger.Debug("Interaction recorded",
		zap.String("turn_id", record.TurnID),
		zap.String("intent", record.Intent),
	)
	return nil
}

// GetInteractionHistory returns the newest interactions first. An empty
// userID matches every user.
func (c *Client) GetInteractionHistory(ctx context.Context, userID string, limit int) ([]models.InteractionRecord, error) {
	query := `
		SELECT id, turn_id, user_id, query, response, intent, confidence, faq_score, latency_ms, created_at
		FROM interactions
		WHERE (? = '' OR user_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction history: %w", err)
	}
	defer rows.Close()

	records := make([]models.InteractionRecord, 0)
	for rows.Next() {
		var r models.InteractionRecord
		var confidence, faqScore sql.NullFloat64
		var latency sql.NullInt64
		var createdAt int64

		err := rows.Scan(&r.ID, &r.TurnID, &r.UserID, &r.Query, &r.Response, &r.Intent, &confidence, &faqScore, &latency, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Confidence = confidence.Float64
		r.FAQScore = faqScore.Float64
		r.LatencyMS = latency.Int64
		r.Timestamp = time.UnixMilli(createdAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interaction history: %w", err)
	}

	return records, nil
}

func (c *Client) InsertError(ctx context.Context, record *models.ErrorRecord) error {
	query := `INSERT INTO errors (turn_id, stage, kind, message, stack_trace, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	res, err := c.db.ExecContext(
		ctx,
		query,
		record.TurnID,
		record.Stage,
		record.Kind,
		record.Message,
		record.StackTrace,
		record.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert error record: %w", classify(err))
	}

	if id, err := res.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

func (c *Client) GetRecentErrors(ctx context.Context, limit int) ([]models.ErrorRecord, error) {
	query := `
		SELECT id, turn_id, stage, kind, message, stack_trace, created_at
		FROM errors
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get error records: %w", err)
	}
	defer rows.Close()

	records := make([]models.ErrorRecord, 0)
	for rows.Next() {
		var r models.ErrorRecord
		var turnID, stack sql.NullString
		var createdAt int64

		if err := rows.Scan(&r.ID, &turnID, &r.Stage, &r.Kind, &r.Message, &stack, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.TurnID = turnID.String
		r.StackTrace = stack.String
		r.Timestamp = time.UnixMilli(createdAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read error records: %w", err)
	}

	return records, nil
}

func classify(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
	}
	return err
}
