package session

import (
	"time"
)

// Status is the lifecycle state of a scrape session
type Status string

// Session lifecycle states. pending -> running -> {paused, completed, failed,
// cancelled}; paused -> {running, cancelled}.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:  {StatusRunning, StatusCancelled},
}

// CanTransitionTo reports whether the state machine permits moving to next
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is an end state
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the session still has work pending or in flight
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPaused:
		return true
	}
	return false
}

// Session is the persisted record of one scraping run. The manager that
// started a session exclusively owns its in-memory mutation; the store is the
// durable mirror and the single source of truth.
type Session struct {
	ID         string `json:"id"`
	Platform   string `json:"platform"`
	QueryType  string `json:"query_type"`
	QueryValue string `json:"query_value"`
	Status     Status `json:"status"`

	// TargetItemCount bounds the run; zero means unbounded
	TargetItemCount int64 `json:"target_item_count"`

	// Counters are non-decreasing for the lifetime of the session and are
	// advanced only after the corresponding batch commit succeeds.
	ScrapedItemCount int64 `json:"scraped_item_count"`
	PostCount        int64 `json:"post_count"`
	CommentCount     int64 `json:"comment_count"`
	UserCount        int64 `json:"user_count"`

	// ResumeToken is the opaque pagination cursor of the next page to fetch.
	// It is persisted only after its batch's counters, so a crash between the
	// two re-fetches the batch instead of silently skipping it.
	ResumeToken string `json:"resume_token"`
	// LastItemID is the id of the last item in the most recent batch
	LastItemID string `json:"last_item_id"`

	CreatedAt      time.Time `json:"created_at"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CompletedAt    time.Time `json:"completed_at"`

	ErrorCount int    `json:"error_count"`
	LastError  string `json:"last_error"`
}

// Clone returns a copy of the session safe for the caller to hold
func (s *Session) Clone() *Session {
	cp := *s
	return &cp
}

// Remaining returns how many items are left to reach the target, or -1 when
// the session is unbounded.
func (s *Session) Remaining() int64 {
	if s.TargetItemCount <= 0 {
		return -1
	}
	remaining := s.TargetItemCount - s.ScrapedItemCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
