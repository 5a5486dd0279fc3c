package progress

import (
	"sync"
	"time"
)

// Milestone is a percent-complete threshold that fires at most once per session
type Milestone int

// Milestones reported by the tracker, in crossing order.
const (
	MilestoneQuarter      Milestone = 25
	MilestoneHalf         Milestone = 50
	MilestoneThreeQuarter Milestone = 75
	MilestoneComplete     Milestone = 100
)

var allMilestones = []Milestone{MilestoneQuarter, MilestoneHalf, MilestoneThreeQuarter, MilestoneComplete}

// Snapshot is a point-in-time view of scraping progress, derived from the
// counters and the wall clock.
type Snapshot struct {
	// Items is the cumulative item count
	Items int64
	// Target is the requested item count; zero when unbounded
	Target int64
	// Elapsed is the time since tracking started
	Elapsed time.Duration
	// Rate is items per second over the trailing sample window
	Rate float64
	// HasETA is false when the ETA is unknown (no target or zero rate)
	HasETA bool
	// ETA is the estimated time remaining; only valid when HasETA is true
	ETA time.Duration
	// Percent is percent-complete, capped at 100; zero when unbounded
	Percent float64
}

type sample struct {
	at    time.Time
	count int64
}

// Tracker maintains progress counters for one session and computes rates,
// ETAs and milestone crossings. Pure computation, no I/O.
type Tracker struct {
	mu      sync.Mutex
	start   time.Time
	items   int64
	target  int64
	samples []sample
	window  time.Duration
	fired   map[Milestone]bool

	// now is swappable for tests
	now func() time.Time
}

// DefaultSampleWindow is the trailing interval over which the rate is computed
const DefaultSampleWindow = 30 * time.Second

// NewTracker creates a tracker. target is the requested item count, or zero
// for an unbounded session.
func NewTracker(target int64) *Tracker {
	return NewTrackerWithWindow(target, DefaultSampleWindow)
}

// NewTrackerWithWindow creates a tracker with a custom rate sample window
func NewTrackerWithWindow(target int64, window time.Duration) *Tracker {
	t := &Tracker{
		target: target,
		window: window,
		fired:  make(map[Milestone]bool),
		now:    time.Now,
	}
	t.start = t.now()
	t.samples = []sample{{at: t.start, count: 0}}
	return t
}

// Resume seeds the tracker with an already-scraped count, for sessions picked
// up from a persisted resume token.
func (t *Tracker) Resume(items int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = items
	t.samples = []sample{{at: t.now(), count: items}}

	// Milestones already passed must not re-fire on resume
	if t.target > 0 {
		pct := float64(items) / float64(t.target) * 100
		for _, m := range allMilestones {
			if pct >= float64(m) {
				t.fired[m] = true
			}
		}
	}
}

// Update records itemsAdded newly scraped items
func (t *Tracker) Update(itemsAdded int64) {
	if itemsAdded <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.items += itemsAdded
	now := t.now()
	t.samples = append(t.samples, sample{at: now, count: t.items})
	t.pruneSamples(now)
}

// Items returns the cumulative item count
func (t *Tracker) Items() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items
}

// Snapshot computes the current progress view
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	snap := Snapshot{
		Items:   t.items,
		Target:  t.target,
		Elapsed: now.Sub(t.start),
		Rate:    t.rate(now),
	}

	if t.target > 0 {
		snap.Percent = float64(t.items) / float64(t.target) * 100
		if snap.Percent > 100 {
			snap.Percent = 100
		}

		remaining := t.target - t.items
		switch {
		case remaining <= 0:
			// Target reached; ETA is zero, not unknown
			snap.HasETA = true
			snap.ETA = 0
		case snap.Rate > 0:
			snap.HasETA = true
			snap.ETA = time.Duration(float64(remaining) / snap.Rate * float64(time.Second))
		}
	}

	return snap
}

// ETA returns the estimated time remaining. ok is false when the target is
// unset or the rate is zero; infinity and NaN are never reported.
func (t *Tracker) ETA() (eta time.Duration, ok bool) {
	snap := t.Snapshot()
	return snap.ETA, snap.HasETA
}

// CheckMilestones returns the milestones newly crossed since the last check.
// Each milestone fires at most once for the lifetime of the tracker, even if
// the counters were corrected downwards in between.
func (t *Tracker) CheckMilestones() []Milestone {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.target <= 0 {
		return nil
	}

	pct := float64(t.items) / float64(t.target) * 100

	var crossed []Milestone
	for _, m := range allMilestones {
		if !t.fired[m] && pct >= float64(m) {
			t.fired[m] = true
			crossed = append(crossed, m)
		}
	}
	return crossed
}

// rate computes items/sec over the trailing sample window. Caller holds the lock.
func (t *Tracker) rate(now time.Time) float64 {
	t.pruneSamples(now)
	if len(t.samples) == 0 {
		return 0
	}

	first := t.samples[0]
	elapsed := now.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.items-first.count) / elapsed
}

// pruneSamples drops samples older than the window, always keeping at least
// one as the window anchor. Caller holds the lock.
func (t *Tracker) pruneSamples(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.samples)-1 && t.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = t.samples[i:]
	}
}
