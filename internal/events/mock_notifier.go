package events

import (
	"context"
	"sync"
)

// RecordingNotifier keeps every notice it receives. It is safe for
// concurrent use and intended for tests.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	Err     error
}

// Notify records the notice and returns r.Err.
func (r *RecordingNotifier) Notify(_ context.Context, notice Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
	return r.Err
}

// Notices returns a copy of the recorded notices.
func (r *RecordingNotifier) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Kinds returns the kinds of the recorded notices in order.
func (r *RecordingNotifier) Kinds() []NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NoticeKind, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Kind
	}
	return out
}

// Count returns how many notices of kind were recorded.
func (r *RecordingNotifier) Count(kind NoticeKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notices {
		if n.Kind == kind {
			count++
		}
	}
	return count
}
