package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumscraper/pkg/logger"
	"forumscraper/pkg/models"
)

func newTestSink(t *testing.T) *SQLiteSink {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sink, err := NewSQLiteSink(db, logger.NewTestLogger())
	require.NoError(t, err)
	return sink
}

func testBatch(n int) models.Batch {
	now := time.Now().UTC().Truncate(time.Second)
	var b models.Batch
	for i := 0; i < n; i++ {
		b.Posts = append(b.Posts, models.Post{
			ID:        fmt.Sprintf("post-%d", i),
			Platform:  "reddit",
			Title:     fmt.Sprintf("Post %d", i),
			Author:    "alice",
			Score:     i * 10,
			ScrapedAt: now,
		})
		b.Comments = append(b.Comments, models.Comment{
			ID:        fmt.Sprintf("comment-%d", i),
			Platform:  "reddit",
			PostID:    fmt.Sprintf("post-%d", i),
			Author:    "bob",
			Body:      "a reply",
			ScrapedAt: now,
		})
	}
	b.Users = append(b.Users, models.User{
		ID: "user-alice", Platform: "reddit", Username: "alice", Karma: 1234, ScrapedAt: now,
	})
	return b
}

func TestSinkCommitBatch(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, sink.CommitBatch(ctx, testBatch(3)))

	posts, comments, users, err := sink.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), posts)
	assert.Equal(t, int64(3), comments)
	assert.Equal(t, int64(1), users)
}

func TestSinkCommitBatchIdempotent(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	batch := testBatch(5)
	require.NoError(t, sink.CommitBatch(ctx, batch))

	// Re-committing the same page after a crash-resume must not duplicate
	batch.Posts[0].Score = 999
	require.NoError(t, sink.CommitBatch(ctx, batch))

	posts, comments, users, err := sink.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), posts)
	assert.Equal(t, int64(5), comments)
	assert.Equal(t, int64(1), users)

	// The upsert refreshed mutable fields
	listed, err := sink.ListPosts(ctx, "reddit", 0)
	require.NoError(t, err)
	var found bool
	for _, p := range listed {
		if p.ID == "post-0" {
			found = true
			assert.Equal(t, 999, p.Score)
		}
	}
	assert.True(t, found)
}

func TestSinkCommitEmptyBatch(t *testing.T) {
	sink := newTestSink(t)
	require.NoError(t, sink.CommitBatch(context.Background(), models.Batch{}))
}

func TestSinkListPosts(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, sink.CommitBatch(ctx, models.Batch{
		Posts: []models.Post{
			{ID: "r1", Platform: "reddit", Title: "older", Author: "a", ScrapedAt: now.Add(-time.Hour)},
			{ID: "r2", Platform: "reddit", Title: "newer", Author: "a", ScrapedAt: now},
			{ID: "h1", Platform: "hackernews", Title: "hn", Author: "b", ScrapedAt: now},
		},
	}))

	all, err := sink.ListPosts(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	reddit, err := sink.ListPosts(ctx, "reddit", 0)
	require.NoError(t, err)
	require.Len(t, reddit, 2)
	// Newest scrape first
	assert.Equal(t, "r2", reddit[0].ID)
	assert.Equal(t, "r1", reddit[1].ID)

	limited, err := sink.ListPosts(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
