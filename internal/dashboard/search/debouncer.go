// Package search holds the settling-window logic behind the student search box.
package search

import (
	"strings"
	"sync"
	"time"
)

// DefaultDelay is the settling window applied when none is configured.
const DefaultDelay = 300 * time.Millisecond

// CommitFunc receives a committed query. Consumers reset pagination to page 1.
type CommitFunc func(query string)

// Debouncer commits the latest input once typing has paused for the delay.
type Debouncer struct {
	delay  time.Duration
	commit CommitFunc

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending string
	stopped bool
}

// NewDebouncer creates a debouncer. A non-positive delay falls back to DefaultDelay.
func NewDebouncer(delay time.Duration, commit CommitFunc) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay, commit: commit}
}

// Input records raw text and (re)schedules a commit after the delay.
func (d *Debouncer) Input(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = raw
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// SearchNow commits raw immediately and drops any pending commit.
func (d *Debouncer) SearchNow(raw string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.cancelLocked()
	d.mu.Unlock()
	d.emit(raw)
}

// Pending reports whether a commit is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels pending work. Later inputs are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A newer Input, SearchNow or Stop superseded this timer.
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	raw := d.pending
	d.timer = nil
	d.mu.Unlock()
	d.emit(raw)
}

func (d *Debouncer) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) emit(raw string) {
	if d.commit != nil {
		d.commit(Normalize(raw))
	}
}

// Normalize trims surrounding whitespace from a query.
func Normalize(raw string) string {
	return strings.TrimSpace(raw)
}
