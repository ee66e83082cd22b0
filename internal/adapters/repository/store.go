// Package repository defines the subject/event store interface and errors.
//
// The store itself is an external collaborator (a hosted database); this
// package owns the contract the core needs from it, plus the concrete
// adapters.
package repository

import (
	"context"

	"github.com/okian/dosewatch/internal/domain/model"
)

// Operation names used for store metrics labels.
const (
	OpLatestSubjectID = "latest_subject_id"
	OpLoadSubject     = "load_subject"
	OpUpdateSubject   = "update_subject"
	OpCountToday      = "count_today_events"
	OpInsertEvent     = "insert_event"
)

// Store provides read/write access to subject and event records.
// Implementations serialize their own writes; the core does not run
// cross-request transactions on top of them.
type Store interface {
	// LatestSubjectID returns the highest-valued subject id.
	// Returns ErrNotFound when no subjects exist.
	LatestSubjectID(ctx context.Context) (model.SubjectID, error)

	// LoadSubject fetches the subject snapshot: prescription, dosing
	// schedule, reference pill weight, and current adherence score.
	// Returns ErrNotFound for an unknown id.
	LoadSubject(ctx context.Context, id model.SubjectID) (model.Subject, error)

	// UpdateSubject writes back the two fields the core owns: the reference
	// pill weight and the current adherence score.
	UpdateSubject(ctx context.Context, id model.SubjectID, pillWeight float64, adherenceScore int) error

	// CountTodayEvents returns how many events exist for the subject on the
	// given day (model.DayFormat) and how many of those were anomalous.
	CountTodayEvents(ctx context.Context, id model.SubjectID, day string) (total, bad int, err error)

	// InsertEvent persists one classified dose event. Events are immutable
	// once written.
	InsertEvent(ctx context.Context, e model.Event) error

	// CreateSubject registers a new subject and returns its assigned id.
	CreateSubject(ctx context.Context, s model.Subject) (model.SubjectID, error)

	// ListSubjects returns all subjects ordered by id.
	ListSubjects(ctx context.Context) ([]model.Subject, error)

	// ListEventsByDay returns the subject's events for one day, ordered by
	// receipt time.
	ListEventsByDay(ctx context.Context, id model.SubjectID, day string) ([]model.Event, error)
}
