package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	errs "forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
)

// Store is durable persistence for session records. Every status transition
// must be flushed through Save before the in-memory transition is treated as
// committed.
type Store interface {
	// Save upserts the session record
	Save(ctx context.Context, sess *Session) error
	// Load returns the session or errors.ErrSessionNotFound
	Load(ctx context.Context, id string) (*Session, error)
	// ListActive returns sessions in pending, running or paused state, for
	// crash-resume discovery on process restart
	ListActive(ctx context.Context) ([]*Session, error)
	// List returns all sessions, most recently created first
	List(ctx context.Context) ([]*Session, error)
	// Delete removes a session record
	Delete(ctx context.Context, id string) error
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	platform           TEXT NOT NULL,
	query_type         TEXT NOT NULL,
	query_value        TEXT NOT NULL,
	status             TEXT NOT NULL,
	target_item_count  INTEGER NOT NULL DEFAULT 0,
	scraped_item_count INTEGER NOT NULL DEFAULT 0,
	post_count         INTEGER NOT NULL DEFAULT 0,
	comment_count      INTEGER NOT NULL DEFAULT 0,
	user_count         INTEGER NOT NULL DEFAULT 0,
	resume_token       TEXT NOT NULL DEFAULT '',
	last_item_id       TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMP NOT NULL,
	started_at         TIMESTAMP,
	last_activity_at   TIMESTAMP,
	completed_at       TIMESTAMP,
	error_count        INTEGER NOT NULL DEFAULT 0,
	last_error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
`

// SQLiteStore persists sessions to SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSQLiteStore creates a store over db, bootstrapping the sessions table
func NewSQLiteStore(db *sql.DB, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}
	return &SQLiteStore{db: db, logger: log}, nil
}

// Save upserts the session record in one statement, so the write is atomic
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, platform, query_type, query_value, status,
			target_item_count, scraped_item_count, post_count, comment_count, user_count,
			resume_token, last_item_id,
			created_at, started_at, last_activity_at, completed_at,
			error_count, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			target_item_count = excluded.target_item_count,
			scraped_item_count = excluded.scraped_item_count,
			post_count = excluded.post_count,
			comment_count = excluded.comment_count,
			user_count = excluded.user_count,
			resume_token = excluded.resume_token,
			last_item_id = excluded.last_item_id,
			started_at = excluded.started_at,
			last_activity_at = excluded.last_activity_at,
			completed_at = excluded.completed_at,
			error_count = excluded.error_count,
			last_error = excluded.last_error`,
		sess.ID, sess.Platform, sess.QueryType, sess.QueryValue, string(sess.Status),
		sess.TargetItemCount, sess.ScrapedItemCount, sess.PostCount, sess.CommentCount, sess.UserCount,
		sess.ResumeToken, sess.LastItemID,
		sess.CreatedAt, nullableTime(sess.StartedAt), nullableTime(sess.LastActivityAt), nullableTime(sess.CompletedAt),
		sess.ErrorCount, sess.LastError)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}

	s.logger.DebugWithFields("session saved", map[string]interface{}{
		"session_id":   sess.ID,
		"status":       string(sess.Status),
		"scraped":      sess.ScrapedItemCount,
		"resume_token": sess.ResumeToken,
	})

	return nil
}

// Load returns the session or errors.ErrSessionNotFound
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, selectSessions+" WHERE id = ?", id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, errs.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return sess, nil
}

// ListActive returns sessions in pending, running or paused state
func (s *SQLiteStore) ListActive(ctx context.Context) ([]*Session, error) {
	return s.list(ctx, selectSessions+` WHERE status IN (?, ?, ?) ORDER BY created_at DESC`,
		string(StatusPending), string(StatusRunning), string(StatusPaused))
}

// List returns all sessions, most recently created first
func (s *SQLiteStore) List(ctx context.Context) ([]*Session, error) {
	return s.list(ctx, selectSessions+" ORDER BY created_at DESC")
}

// Delete removes a session record
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

const selectSessions = `
	SELECT id, platform, query_type, query_value, status,
		target_item_count, scraped_item_count, post_count, comment_count, user_count,
		resume_token, last_item_id,
		created_at, started_at, last_activity_at, completed_at,
		error_count, last_error
	FROM sessions`

func (s *SQLiteStore) list(ctx context.Context, query string, args ...interface{}) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var status string
	var startedAt, lastActivityAt, completedAt sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.Platform, &sess.QueryType, &sess.QueryValue, &status,
		&sess.TargetItemCount, &sess.ScrapedItemCount, &sess.PostCount, &sess.CommentCount, &sess.UserCount,
		&sess.ResumeToken, &sess.LastItemID,
		&sess.CreatedAt, &startedAt, &lastActivityAt, &completedAt,
		&sess.ErrorCount, &sess.LastError)
	if err != nil {
		return nil, err
	}

	sess.Status = Status(status)
	if startedAt.Valid {
		sess.StartedAt = startedAt.Time
	}
	if lastActivityAt.Valid {
		sess.LastActivityAt = lastActivityAt.Time
	}
	if completedAt.Valid {
		sess.CompletedAt = completedAt.Time
	}
	return &sess, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
