// Package notifytest provides a Notifier that records notices for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/MasonSRE/opsorch/notify"
)

// Recorder stores every notice it receives.
type Recorder struct {
	mu      sync.Mutex
	notices []notify.Notice
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n notify.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices in arrival order.
func (r *Recorder) Notices() []notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Levels returns the level of each recorded notice in arrival order.
func (r *Recorder) Levels() []notify.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Level, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Level
	}
	return out
}

// Reset drops all recorded notices.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}

var _ notify.Notifier = (*Recorder)(nil)
