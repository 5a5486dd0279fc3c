package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db, logger.NewTestLogger())
	require.NoError(t, err)
	return store
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := &Session{
		ID:               "sess-1",
		Platform:         "reddit",
		QueryType:        "subreddit",
		QueryValue:       "golang",
		Status:           StatusRunning,
		TargetItemCount:  500,
		ScrapedItemCount: 120,
		PostCount:        100,
		CommentCount:     15,
		UserCount:        5,
		ResumeToken:      "t3_abc123",
		LastItemID:       "abc123",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		StartedAt:        time.Now().UTC().Truncate(time.Second),
		LastActivityAt:   time.Now().UTC().Truncate(time.Second),
		ErrorCount:       2,
		LastError:        "server_error error (code 503): Service Unavailable",
	}
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, sess.Platform, loaded.Platform)
	assert.Equal(t, sess.Status, loaded.Status)
	assert.Equal(t, sess.TargetItemCount, loaded.TargetItemCount)
	assert.Equal(t, sess.ScrapedItemCount, loaded.ScrapedItemCount)
	assert.Equal(t, sess.PostCount, loaded.PostCount)
	assert.Equal(t, sess.CommentCount, loaded.CommentCount)
	assert.Equal(t, sess.UserCount, loaded.UserCount)
	assert.Equal(t, sess.ResumeToken, loaded.ResumeToken)
	assert.Equal(t, sess.LastItemID, loaded.LastItemID)
	assert.Equal(t, sess.ErrorCount, loaded.ErrorCount)
	assert.Equal(t, sess.LastError, loaded.LastError)
	assert.True(t, loaded.CompletedAt.IsZero(), "completed_at should round-trip as zero")
}

func TestStoreSaveIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := &Session{
		ID:        "sess-1",
		Platform:  "hackernews",
		QueryType: "category",
		QueryValue: "top",
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(ctx, sess))

	sess.Status = StatusRunning
	sess.ScrapedItemCount = 42
	sess.ResumeToken = "30"
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, loaded.Status)
	assert.Equal(t, int64(42), loaded.ScrapedItemCount)
	assert.Equal(t, "30", loaded.ResumeToken)
}

func TestStoreLoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestStoreListActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	statuses := []Status{StatusPending, StatusRunning, StatusPaused, StatusCompleted, StatusFailed, StatusCancelled}
	for i, status := range statuses {
		require.NoError(t, store.Save(ctx, &Session{
			ID:         string(rune('a' + i)),
			Platform:   "reddit",
			QueryType:  "subreddit",
			QueryValue: "golang",
			Status:     status,
			CreatedAt:  time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	for _, s := range active {
		assert.True(t, s.Status.Active(), "status %s should be active", s.Status)
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)
	// Most recently created first
	assert.Equal(t, "f", all[0].ID)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{
		ID: "sess-1", Platform: "reddit", QueryType: "subreddit", QueryValue: "golang",
		Status: StatusCompleted, CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err := store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "sess-1"), errs.ErrSessionNotFound)
}
