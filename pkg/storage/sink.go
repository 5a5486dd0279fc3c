package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"forumscraper/pkg/logger"
	"forumscraper/pkg/models"
)

// Sink accepts batches of scraped records. CommitBatch is atomic: on error
// nothing from the batch is visible, so a crashed session can safely re-fetch
// and re-commit the same page.
type Sink interface {
	CommitBatch(ctx context.Context, batch models.Batch) error
}

const contentSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	platform   TEXT NOT NULL,
	title      TEXT NOT NULL,
	author     TEXT NOT NULL,
	body       TEXT,
	url        TEXT,
	score      INTEGER NOT NULL DEFAULT 0,
	comments   INTEGER NOT NULL DEFAULT 0,
	subforum   TEXT,
	created_at TIMESTAMP,
	scraped_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_platform ON posts(platform);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	platform   TEXT NOT NULL,
	post_id    TEXT NOT NULL,
	parent_id  TEXT,
	author     TEXT NOT NULL,
	body       TEXT NOT NULL,
	score      INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP,
	scraped_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	platform   TEXT NOT NULL,
	username   TEXT NOT NULL,
	karma      INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP,
	scraped_at TIMESTAMP NOT NULL
);
`

// SQLiteSink persists posts, comments and users to SQLite
type SQLiteSink struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSQLiteSink creates a sink over db, bootstrapping the content tables
func NewSQLiteSink(db *sql.DB, log logger.Logger) (*SQLiteSink, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if _, err := db.Exec(contentSchema); err != nil {
		return nil, fmt.Errorf("failed to create content tables: %w", err)
	}
	return &SQLiteSink{db: db, logger: log}, nil
}

// CommitBatch writes the batch in a single transaction. Records are upserted
// by primary key, so re-committing a re-fetched page is idempotent.
func (s *SQLiteSink) CommitBatch(ctx context.Context, batch models.Batch) error {
	if batch.Size() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range batch.Posts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO posts (id, platform, title, author, body, url, score, comments, subforum, created_at, scraped_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title, author = excluded.author, body = excluded.body,
				url = excluded.url, score = excluded.score, comments = excluded.comments,
				scraped_at = excluded.scraped_at`,
			p.ID, p.Platform, p.Title, p.Author, p.Body, p.URL, p.Score, p.Comments, p.Subforum, p.CreatedAt, p.ScrapedAt)
		if err != nil {
			return fmt.Errorf("failed to insert post %s: %w", p.ID, err)
		}
	}

	for _, c := range batch.Comments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO comments (id, platform, post_id, parent_id, author, body, score, created_at, scraped_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				body = excluded.body, score = excluded.score, scraped_at = excluded.scraped_at`,
			c.ID, c.Platform, c.PostID, c.ParentID, c.Author, c.Body, c.Score, c.CreatedAt, c.ScrapedAt)
		if err != nil {
			return fmt.Errorf("failed to insert comment %s: %w", c.ID, err)
		}
	}

	for _, u := range batch.Users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, platform, username, karma, created_at, scraped_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				karma = excluded.karma, scraped_at = excluded.scraped_at`,
			u.ID, u.Platform, u.Username, u.Karma, u.CreatedAt, u.ScrapedAt)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logger.DebugWithFields("batch committed", map[string]interface{}{
		"posts":    len(batch.Posts),
		"comments": len(batch.Comments),
		"users":    len(batch.Users),
	})

	return nil
}

// ListPosts returns persisted posts for a platform, newest scrape first.
// An empty platform matches everything; limit <= 0 means no limit.
func (s *SQLiteSink) ListPosts(ctx context.Context, platform string, limit int) ([]models.Post, error) {
	query := `SELECT id, platform, title, author, body, url, score, comments, subforum, created_at, scraped_at
		FROM posts`
	var args []interface{}
	if platform != "" {
		query += " WHERE platform = ?"
		args = append(args, platform)
	}
	query += " ORDER BY scraped_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		var createdAt, scrapedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.Platform, &p.Title, &p.Author, &p.Body, &p.URL,
			&p.Score, &p.Comments, &p.Subforum, &createdAt, &scrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.CreatedAt = nullTime(createdAt)
		p.ScrapedAt = nullTime(scrapedAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountRecords returns the number of persisted posts, comments and users
func (s *SQLiteSink) CountRecords(ctx context.Context) (posts, comments, users int64, err error) {
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&posts); err != nil {
		return
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&comments); err != nil {
		return
	}
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users)
	return
}

func nullTime(t sql.NullTime) (out time.Time) {
	if t.Valid {
		out = t.Time
	}
	return
}
