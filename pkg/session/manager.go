package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"forumscraper/pkg/config"
	errs "forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/models"
	"forumscraper/pkg/platform"
	"forumscraper/pkg/progress"
	"forumscraper/pkg/ratelimit"
	"forumscraper/pkg/retry"
	"forumscraper/pkg/storage"
)

// ClientFactory builds a platform client for a session's query
type ClientFactory func(sess *Session) (platform.Client, error)

// CreateParams describes a new session
type CreateParams struct {
	Platform   string
	QueryType  string
	QueryValue string
	// TargetItemCount bounds the run; zero means unbounded
	TargetItemCount int64
}

// Manager orchestrates scrape sessions: it owns the per-platform rate
// limiters, drives the fetch loop, and is the only writer of session state.
type Manager struct {
	cfg     *config.Config
	store   Store
	sink    storage.Sink
	clients ClientFactory
	logger  logger.Logger
	bus     eventBus

	mu       sync.Mutex
	limiters map[string]*ratelimit.MultiLimiter
	running  map[string]*runState
}

// runState is the in-process control block for one running session
type runState struct {
	pauseRequested  atomic.Bool
	cancelRequested atomic.Bool
	// wake interrupts limiter waits when a pause/cancel is requested; the
	// in-flight page fetch itself is never interrupted
	wake    context.CancelFunc
	tracker *progress.Tracker
	done    chan struct{}
}

// NewManager creates a session manager. clients builds the platform client
// for each session; sink receives committed batches.
func NewManager(cfg *config.Config, store Store, sink storage.Sink, clients ClientFactory, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		sink:     sink,
		clients:  clients,
		logger:   log,
		limiters: make(map[string]*ratelimit.MultiLimiter),
		running:  make(map[string]*runState),
	}
}

// Subscribe registers a listener for session events. Events are observability
// only; tests and callers must rely on persisted state for correctness.
func (m *Manager) Subscribe(l Listener) {
	m.bus.subscribe(l)
}

// Limiter returns the shared rate limiter for a platform. All sessions
// against the same platform contend for the same budget.
func (m *Manager) Limiter(platformName string) *ratelimit.MultiLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := strings.ToLower(platformName)
	if lim, ok := m.limiters[name]; ok {
		return lim
	}
	lim := ratelimit.ForPlatform(m.cfg.Platform(name))
	m.limiters[name] = lim
	return lim
}

// CreateSession validates the parameters, persists a new pending session and
// returns it.
func (m *Manager) CreateSession(ctx context.Context, params CreateParams) (*Session, error) {
	if strings.TrimSpace(params.Platform) == "" {
		return nil, fmt.Errorf("%w: platform is required", errs.ErrInvalidConfig)
	}
	if strings.TrimSpace(params.QueryType) == "" || strings.TrimSpace(params.QueryValue) == "" {
		return nil, fmt.Errorf("%w: query type and value are required", errs.ErrInvalidConfig)
	}
	if params.TargetItemCount < 0 {
		return nil, fmt.Errorf("%w: target item count must be positive when specified", errs.ErrInvalidConfig)
	}

	sess := &Session{
		ID:              uuid.NewString(),
		Platform:        strings.ToLower(params.Platform),
		QueryType:       params.QueryType,
		QueryValue:      params.QueryValue,
		Status:          StatusPending,
		TargetItemCount: params.TargetItemCount,
		CreatedAt:       time.Now().UTC(),
	}

	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}

	m.logger.InfoWithFields("session created", map[string]interface{}{
		"session_id": sess.ID,
		"platform":   sess.Platform,
		"query":      sess.QueryType + ":" + sess.QueryValue,
		"target":     sess.TargetItemCount,
	})

	return sess.Clone(), nil
}

// StartSession transitions a pending or paused session to running and begins
// the fetch loop on its own goroutine. A session persisted as running with no
// in-process owner is treated as crashed and eligible to start again.
func (m *Manager) StartSession(ctx context.Context, id string) error {
	return m.start(ctx, id, false)
}

// ResumeSession restarts a paused session from its persisted resume token
func (m *Manager) ResumeSession(ctx context.Context, id string) error {
	return m.start(ctx, id, true)
}

func (m *Manager) start(ctx context.Context, id string, resuming bool) error {
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, owned := m.running[id]; owned {
		m.mu.Unlock()
		return fmt.Errorf("%w: session %s", errs.ErrAlreadyRunning, id)
	}

	switch sess.Status {
	case StatusPending, StatusPaused:
		// ok
	case StatusRunning:
		// Persisted running with no in-process owner: a crashed session,
		// eligible for resume from its last committed cursor.
	default:
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot start session in status %s", errs.ErrInvalidState, sess.Status)
	}
	if resuming && sess.Status == StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot resume session in status %s", errs.ErrInvalidState, sess.Status)
	}

	// The run state must be fully wired, wake included, before it is
	// published: a pause or cancel may land as soon as it is visible.
	rs := &runState{done: make(chan struct{})}
	rs.tracker = progress.NewTracker(sess.TargetItemCount)
	if sess.ScrapedItemCount > 0 {
		rs.tracker.Resume(sess.ScrapedItemCount)
	}
	loopCtx, wake := context.WithCancel(context.Background())
	rs.wake = wake
	m.running[id] = rs
	m.mu.Unlock()

	now := time.Now().UTC()
	if sess.StartedAt.IsZero() {
		sess.StartedAt = now
	}
	sess.LastActivityAt = now
	sess.Status = StatusRunning

	// The transition is committed only once it is durable
	if err := m.store.Save(ctx, sess); err != nil {
		wake()
		m.removeRunning(id)
		close(rs.done)
		return fmt.Errorf("failed to persist running status: %w", err)
	}
	m.publishStatus(sess, "")

	go m.runLoop(loopCtx, sess, rs)
	return nil
}

// PauseSession requests a pause and blocks until the running loop has
// persisted the paused status and resume token, at its next checkpoint
// (after the in-flight page completes, never mid-page). For a crashed
// session with no in-process owner the status is persisted directly.
func (m *Manager) PauseSession(ctx context.Context, id string) error {
	m.mu.Lock()
	rs, owned := m.running[id]
	m.mu.Unlock()

	if !owned {
		return m.transitionDetached(ctx, id, StatusPaused)
	}

	rs.pauseRequested.Store(true)
	rs.wake()

	select {
	case <-rs.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// The loop persists its outcome before signalling done; confirm it
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status != StatusPaused {
		return fmt.Errorf("%w: session ended as %s before the pause took effect", errs.ErrInvalidState, sess.Status)
	}
	return nil
}

// CancelSession performs a user-initiated terminal stop from pending, running
// or paused. A running session stops at its next loop checkpoint.
func (m *Manager) CancelSession(ctx context.Context, id string) error {
	m.mu.Lock()
	rs, owned := m.running[id]
	m.mu.Unlock()

	if !owned {
		return m.transitionDetached(ctx, id, StatusCancelled)
	}

	rs.cancelRequested.Store(true)
	rs.wake()

	select {
	case <-rs.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status != StatusCancelled {
		return fmt.Errorf("%w: session ended as %s before the cancel took effect", errs.ErrInvalidState, sess.Status)
	}
	return nil
}

// CompleteSession marks a session completed. The fetch loop calls this path
// internally when the target is reached or the platform is exhausted; it is
// exposed for fixing up crashed sessions that finished their work.
func (m *Manager) CompleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	_, owned := m.running[id]
	m.mu.Unlock()
	if owned {
		return fmt.Errorf("%w: session %s is running", errs.ErrAlreadyRunning, id)
	}
	return m.transitionDetached(ctx, id, StatusCompleted)
}

// transitionDetached applies a status transition to a session with no
// in-process owner, persisting before reporting success.
func (m *Manager) transitionDetached(ctx context.Context, id string, next Status) error {
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if !sess.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidState, sess.Status, next)
	}

	sess.Status = next
	now := time.Now().UTC()
	sess.LastActivityAt = now
	if next.Terminal() {
		sess.CompletedAt = now
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist %s status: %w", next, err)
	}
	m.publishStatus(sess, "")
	return nil
}

// GetSession returns the persisted session record
func (m *Manager) GetSession(ctx context.Context, id string) (*Session, error) {
	return m.store.Load(ctx, id)
}

// ListSessions returns all persisted sessions
func (m *Manager) ListSessions(ctx context.Context) ([]*Session, error) {
	return m.store.List(ctx)
}

// GetProgress returns a live progress snapshot for a running session, or one
// derived from the persisted counters otherwise.
func (m *Manager) GetProgress(ctx context.Context, id string) (progress.Snapshot, error) {
	m.mu.Lock()
	rs, owned := m.running[id]
	m.mu.Unlock()

	if owned {
		return rs.tracker.Snapshot(), nil
	}

	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return progress.Snapshot{}, err
	}

	snap := progress.Snapshot{
		Items:  sess.ScrapedItemCount,
		Target: sess.TargetItemCount,
	}
	if !sess.StartedAt.IsZero() && !sess.LastActivityAt.IsZero() {
		snap.Elapsed = sess.LastActivityAt.Sub(sess.StartedAt)
	}
	if sess.TargetItemCount > 0 {
		snap.Percent = float64(sess.ScrapedItemCount) / float64(sess.TargetItemCount) * 100
		if snap.Percent > 100 {
			snap.Percent = 100
		}
		if sess.ScrapedItemCount >= sess.TargetItemCount {
			snap.HasETA = true
		}
	}
	return snap, nil
}

// Wait blocks until the session's fetch loop exits. Returns immediately for
// sessions not running in this process.
func (m *Manager) Wait(id string) {
	m.mu.Lock()
	rs, owned := m.running[id]
	m.mu.Unlock()
	if !owned {
		return
	}
	<-rs.done
}

func (m *Manager) removeRunning(id string) {
	m.mu.Lock()
	delete(m.running, id)
	m.mu.Unlock()
}

// runLoop drives one session: wait for the rate limiter, fetch the next page
// through the retry policy, commit the batch, advance counters then the
// resume token, and persist at a bounded cadence. Pause and cancel requests
// are observed only at the top-of-loop checkpoint.
func (m *Manager) runLoop(loopCtx context.Context, sess *Session, rs *runState) {
	defer close(rs.done)
	defer m.removeRunning(sess.ID)
	defer rs.wake()

	log := m.logger.WithFields(map[string]interface{}{
		"session_id": sess.ID,
		"platform":   sess.Platform,
	})

	client, err := m.clients(sess)
	if err != nil {
		m.fail(sess, fmt.Errorf("building platform client: %w", err), log)
		return
	}

	pc := m.cfg.Platform(sess.Platform)
	limiter := m.Limiter(sess.Platform)

	// Fetches run on a background context so an in-flight request is never
	// interrupted; loopCtx only wakes rate-limiter waits early.
	fetchCtx := context.Background()
	retryCfg := retry.FromPlatformConfig(pc, log)
	retryCfg.Context = fetchCtx
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		m.bus.publish(Event{
			Type:      EventRetry,
			SessionID: sess.ID,
			Status:    sess.Status,
			Items:     sess.ScrapedItemCount,
			Attempt:   attempt,
			Err:       err.Error(),
			At:        time.Now().UTC(),
		})
	}

	log.InfoWithFields("fetch loop started", map[string]interface{}{
		"resume_token": sess.ResumeToken,
		"target":       sess.TargetItemCount,
	})

	lastSave := time.Now()

	for {
		// Checkpoint: pause/cancel take effect here, never mid-page
		if rs.cancelRequested.Load() {
			m.settle(sess, StatusCancelled, nil, log)
			return
		}
		if rs.pauseRequested.Load() {
			m.settle(sess, StatusPaused, nil, log)
			return
		}

		if err := limiter.Wait(loopCtx); err != nil {
			// Woken early by a pause/cancel request; loop back to the checkpoint
			continue
		}
		if rs.cancelRequested.Load() || rs.pauseRequested.Load() {
			continue
		}
		limiter.Record()

		token := sess.ResumeToken
		page, err := retry.DoWithResult(func() (*platform.Page, error) {
			return client.FetchPage(fetchCtx, token, pc.PageSize)
		}, retryCfg)
		if err != nil {
			m.fail(sess, err, log)
			return
		}

		batch := models.Split(page.Items)
		if err := m.sink.CommitBatch(fetchCtx, batch); err != nil {
			m.fail(sess, fmt.Errorf("committing batch: %w", err), log)
			return
		}

		// Counters advance only after the batch commit succeeded, and the
		// resume token advances only after the counters. A crash in between
		// re-fetches this batch from the old token; the sink upserts make
		// that idempotent.
		now := time.Now().UTC()
		sess.ScrapedItemCount += int64(len(page.Items))
		sess.PostCount += int64(len(batch.Posts))
		sess.CommentCount += int64(len(batch.Comments))
		sess.UserCount += int64(len(batch.Users))
		sess.LastActivityAt = now
		if id := lastItemID(page.Items); id != "" {
			sess.LastItemID = id
		}
		sess.ResumeToken = page.NextResumeToken

		rs.tracker.Update(int64(len(page.Items)))

		// Progress persists at a bounded cadence; a kill -9 loses at most
		// the batches since the last save, which re-fetch idempotently.
		if time.Since(lastSave) >= m.cfg.Scrape.SaveInterval {
			if err := m.store.Save(fetchCtx, sess); err != nil {
				m.fail(sess, fmt.Errorf("persisting progress: %w", err), log)
				return
			}
			lastSave = time.Now()
		}

		m.bus.publish(Event{
			Type:      EventBatchCommitted,
			SessionID: sess.ID,
			Status:    sess.Status,
			Items:     sess.ScrapedItemCount,
			At:        now,
		})
		for _, ms := range rs.tracker.CheckMilestones() {
			m.bus.publish(Event{
				Type:      EventMilestone,
				SessionID: sess.ID,
				Status:    sess.Status,
				Items:     sess.ScrapedItemCount,
				Milestone: ms,
				At:        now,
			})
		}

		log.DebugWithFields("batch processed", map[string]interface{}{
			"items":        len(page.Items),
			"scraped":      sess.ScrapedItemCount,
			"resume_token": sess.ResumeToken,
			"has_more":     page.HasMore,
		})

		if sess.TargetItemCount > 0 && sess.ScrapedItemCount >= sess.TargetItemCount {
			m.settle(sess, StatusCompleted, nil, log)
			return
		}
		if !page.HasMore {
			m.settle(sess, StatusCompleted, nil, log)
			return
		}
	}
}

// settle moves the session to its final (or paused) status and persists it
// before the loop exits.
func (m *Manager) settle(sess *Session, next Status, cause error, log logger.Logger) {
	now := time.Now().UTC()
	sess.Status = next
	sess.LastActivityAt = now
	if next.Terminal() {
		sess.CompletedAt = now
	}
	if cause != nil {
		sess.ErrorCount++
		sess.LastError = cause.Error()
	}

	// The loop is exiting; persistence must not depend on the caller's context
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.store.Save(saveCtx, sess); err != nil {
		log.WithError(err).ErrorWithFields("failed to persist final session state", map[string]interface{}{
			"status": string(next),
		})
	}

	fields := map[string]interface{}{
		"status":  string(next),
		"scraped": sess.ScrapedItemCount,
	}
	if cause != nil {
		log.WithError(cause).ErrorWithFields("session finished with error", fields)
	} else {
		log.InfoWithFields("session finished", fields)
	}

	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	m.publishStatus(sess, errMsg)
}

// fail classifies the loop-stopping error and settles the session as failed
func (m *Manager) fail(sess *Session, cause error, log logger.Logger) {
	if retry.IsExhausted(cause) {
		log.WarnWithFields("retries exhausted", map[string]interface{}{
			"error": cause.Error(),
		})
	}
	m.settle(sess, StatusFailed, cause, log)
}

func (m *Manager) publishStatus(sess *Session, errMsg string) {
	m.bus.publish(Event{
		Type:      EventStatusChanged,
		SessionID: sess.ID,
		Status:    sess.Status,
		Items:     sess.ScrapedItemCount,
		Err:       errMsg,
		At:        time.Now().UTC(),
	})
}

func lastItemID(items []models.Item) string {
	for i := len(items) - 1; i >= 0; i-- {
		switch it := items[i]; it.Kind {
		case models.ItemKindPost:
			if it.Post != nil {
				return it.Post.ID
			}
		case models.ItemKindComment:
			if it.Comment != nil {
				return it.Comment.ID
			}
		case models.ItemKindUser:
			if it.User != nil {
				return it.User.ID
			}
		}
	}
	return ""
}

// DefaultClientFactory builds the real platform clients from configuration
func DefaultClientFactory(cfg *config.Config, log logger.Logger) ClientFactory {
	return func(sess *Session) (platform.Client, error) {
		pc := cfg.Platform(sess.Platform)
		switch sess.Platform {
		case "reddit":
			return platform.NewRedditClient(pc, sess.QueryValue, log), nil
		case "hackernews":
			return platform.NewHackerNewsClient(pc, sess.QueryValue, log), nil
		default:
			return nil, fmt.Errorf("%w: unsupported platform %q", errs.ErrInvalidConfig, sess.Platform)
		}
	}
}
