package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Update is one progress report. ID identifies the transfer; labels may
// repeat across transfers and must not be used to tell them apart.
type Update struct {
	ID          uint64
	Label       string
	Transferred int64
	Total       int64
	Elapsed     time.Duration

	// Done is set on the last update of a transfer. Err is its outcome.
	Done bool
	Err  error
}

// Reporter receives progress updates.
//
// Implementations must be safe for concurrent use when transfers run in
// parallel; a single transfer always reports from one goroutine.
type Reporter interface {
	Report(u Update)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(u Update)

// Report calls f.
func (f ReporterFunc) Report(u Update) {
	f(u)
}

// Nop discards all updates.
var Nop Reporter = ReporterFunc(func(Update) {})

// Multi fans updates out to every reporter in order.
func Multi(reporters ...Reporter) Reporter {
	return ReporterFunc(func(u Update) {
		for _, r := range reporters {
			if r != nil {
				r.Report(u)
			}
		}
	})
}

var lastID atomic.Uint64

// Tracker holds the byte counters of one transfer.
type Tracker struct {
	id       uint64
	total    int64
	label    string
	start    time.Time
	now      func() time.Time
	reporter Reporter

	mu          sync.Mutex
	transferred int64
	finished    bool
}

// NewTracker starts tracking a transfer of total bytes. The clock starts now.
func NewTracker(total int64, label string, reporter Reporter) *Tracker {
	if reporter == nil {
		reporter = Nop
	}
	return &Tracker{
		id:       lastID.Add(1),
		total:    total,
		label:    label,
		start:    time.Now(),
		now:      time.Now,
		reporter: reporter,
	}
}

// Add advances the transferred counter by n bytes and notifies the reporter.
// Non-positive values and calls after Finish are ignored, so the counter
// never goes backwards.
func (t *Tracker) Add(n int64) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.transferred += n
	t.reporter.Report(t.updateLocked())
}

// Finish sends the final update with the transfer's outcome. Only the first
// call has an effect.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.finished = true
	u := t.updateLocked()
	u.Done = true
	u.Err = err
	t.reporter.Report(u)
}

func (t *Tracker) updateLocked() Update {
	return Update{
		ID:          t.id,
		Label:       t.label,
		Transferred: t.transferred,
		Total:       t.total,
		Elapsed:     t.now().Sub(t.start),
	}
}

// ID returns the identifier the transfer is reported under.
func (t *Tracker) ID() uint64 {
	return t.id
}

// Transferred returns the number of bytes written so far.
func (t *Tracker) Transferred() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferred
}

// Total returns the expected size of the transfer.
func (t *Tracker) Total() int64 {
	return t.total
}

// Label returns the name the transfer is reported under.
func (t *Tracker) Label() string {
	return t.label
}

// Elapsed returns the wall-clock time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}
