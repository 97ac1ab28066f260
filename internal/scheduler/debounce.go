package scheduler

import (
	"sort"
	"time"
)

type timer struct {
	due time.Time
	fn  func()
}

// Debouncer runs named callbacks after a delay. Scheduling a name that is
// already pending restarts its delay, so a burst of events runs the
// callback once. Callbacks only run from Poll, on the caller's goroutine.
type Debouncer struct {
	now    func() time.Time
	timers map[string]timer
}

// NewDebouncer creates a debouncer reading time from now. A nil now uses
// the wall clock.
func NewDebouncer(now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{now: now, timers: make(map[string]timer)}
}

// Schedule (re)starts the timer for name.
func (d *Debouncer) Schedule(name string, delay time.Duration, fn func()) {
	d.timers[name] = timer{due: d.now().Add(delay), fn: fn}
}

// Cancel stops the timer for name. It reports whether one was pending.
func (d *Debouncer) Cancel(name string) bool {
	_, ok := d.timers[name]
	delete(d.timers, name)
	return ok
}

// Has reports whether a timer for name is pending.
func (d *Debouncer) Has(name string) bool {
	_, ok := d.timers[name]
	return ok
}

// Pending returns the number of pending timers.
func (d *Debouncer) Pending() int {
	return len(d.timers)
}

// Poll runs every timer that is due, earliest first, and returns how many
// ran. A callback may schedule new timers; those run on a later Poll.
func (d *Debouncer) Poll() int {
	now := d.now()
	var due []string
	for name, t := range d.timers {
		if !t.due.After(now) {
			due = append(due, name)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := d.timers[due[i]], d.timers[due[j]]
		if !a.due.Equal(b.due) {
			return a.due.Before(b.due)
		}
		return due[i] < due[j]
	})

	fns := make([]func(), len(due))
	for i, name := range due {
		fns[i] = d.timers[name].fn
		delete(d.timers, name)
	}
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}
