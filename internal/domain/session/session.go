// Package session holds per-subject state that must survive between
// readings and across connections: the previous bottle weight and the
// identity of the last subject observed.
package session

import (
	"context"
	"sync"

	"github.com/okian/dosewatch/internal/domain/model"
)

// entry is the per-subject cached state. Its mutex serializes the
// read-classify-persist-update sequence for one subject, so interleaved
// readings cannot corrupt the previous-weight baseline.
type entry struct {
	mu        sync.Mutex
	weight    float64
	hasWeight bool
}

// Tracker is the process-wide session cache, keyed by subject id.
// Sessions are created lazily on first acquisition and live for the life of
// the process; memory is bounded by distinct subject ids seen.
type Tracker struct {
	mu       sync.Mutex
	sessions map[model.SubjectID]*entry

	lastSubject model.SubjectID
	hasLast     bool
}

// NewTracker creates an empty session tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[model.SubjectID]*entry),
	}
}

// Session is a held, mutually exclusive view of one subject's state.
// Callers must Release it when the reading has been fully processed.
type Session struct {
	e        *entry
	released bool
}

// Acquire locks the subject's session, creating it on first observation.
// At most one Session per subject id is held at a time; a concurrent
// acquirer blocks until Release, which gives last-writer-wins semantics for
// the weight baseline.
func (t *Tracker) Acquire(ctx context.Context, id model.SubjectID) *Session {
	t.mu.Lock()
	e, ok := t.sessions[id]
	if !ok {
		e = &entry{}
		t.sessions[id] = e
	}
	t.mu.Unlock()

	e.mu.Lock()
	return &Session{e: e}
}

// PreviousWeight returns the cached previous reading, or absent on the
// subject's first observation.
func (s *Session) PreviousWeight() (float64, bool) {
	return s.e.weight, s.e.hasWeight
}

// SetPreviousWeight overwrites the cached baseline.
func (s *Session) SetPreviousWeight(grams float64) {
	s.e.weight = grams
	s.e.hasWeight = true
}

// Release unlocks the session. Safe to call more than once.
func (s *Session) Release() {
	if s.released {
		return
	}
	s.released = true
	s.e.mu.Unlock()
}

// SubjectChanged records the subject referenced by the current reading and
// reports whether it differs from the previous one (a hand-off between
// bottles or subjects).
func (t *Tracker) SubjectChanged(id model.SubjectID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := !t.hasLast || t.lastSubject != id
	t.lastSubject = id
	t.hasLast = true
	return changed
}

// Size returns the number of subject sessions held in memory.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
