// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DayFormat is the calendar-date layout used to partition events.
const DayFormat = "2006-01-02"

// ClockFormat is the time-of-day layout used in dosing schedules.
const ClockFormat = "15:04"

// SubjectID identifies a subject. Externally assigned, monotonically
// increasing; the "current" subject is the highest id in the store.
type SubjectID int64

// AnomalyKind classifies one dose event. Exactly one kind per event;
// WrongCount always wins over a timing classification.
type AnomalyKind string

const (
	AnomalyOnTime     AnomalyKind = "ON_TIME"
	AnomalyTooEarly   AnomalyKind = "TOO_EARLY"
	AnomalyTooLate    AnomalyKind = "TOO_LATE"
	AnomalyWrongCount AnomalyKind = "WRONG_COUNT"
)

// IsAnomalous reports whether the kind counts against the adherence score.
func (k AnomalyKind) IsAnomalous() bool {
	return k != AnomalyOnTime
}

// Code returns the wire code used by legacy stores: 0 on-time, 1 too early,
// 2 too late, 3 wrong count.
func (k AnomalyKind) Code() string {
	switch k {
	case AnomalyTooEarly:
		return "1"
	case AnomalyTooLate:
		return "2"
	case AnomalyWrongCount:
		return "3"
	default:
		return "0"
	}
}

// KindFromCode is the inverse of Code. Unknown codes map to ON_TIME.
func KindFromCode(code string) AnomalyKind {
	switch code {
	case "1":
		return AnomalyTooEarly
	case "2":
		return AnomalyTooLate
	case "3":
		return AnomalyWrongCount
	default:
		return AnomalyOnTime
	}
}

// Prescription holds the dosing directives for a subject.
type Prescription struct {
	PillsPerDose int `json:"pillsPerDose"`
	PillCount    int `json:"pillCount"`
}

// Window is one labeled dosing window, e.g. {"morning", 08:00}.
type Window struct {
	Label  string
	Hour   int
	Minute int
}

// On resolves the window to a concrete datetime on the given day,
// in the day's location.
func (w Window) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), w.Hour, w.Minute, 0, 0, day.Location())
}

// Clock renders the window's time-of-day as HH:MM.
func (w Window) Clock() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

// Schedule is an ordered set of dosing windows for one subject.
// Windows are kept sorted by time-of-day.
type Schedule []Window

// ToMap renders the schedule in the label->HH:MM shape stored as JSON.
func (s Schedule) ToMap() map[string]string {
	if len(s) == 0 {
		return nil
	}
	m := make(map[string]string, len(s))
	for _, w := range s {
		m[w.Label] = w.Clock()
	}
	return m
}

// ScheduleFromMap parses the label->HH:MM JSON shape into a sorted Schedule.
// Entries with malformed times are rejected.
func ScheduleFromMap(m map[string]string) (Schedule, error) {
	s := make(Schedule, 0, len(m))
	for label, clock := range m {
		t, err := time.Parse(ClockFormat, clock)
		if err != nil {
			return nil, fmt.Errorf("window %q: bad time %q: %w", label, clock, err)
		}
		s = append(s, Window{Label: label, Hour: t.Hour(), Minute: t.Minute()})
	}
	sort.Slice(s, func(i, j int) bool {
		if s[i].Hour != s[j].Hour {
			return s[i].Hour < s[j].Hour
		}
		if s[i].Minute != s[j].Minute {
			return s[i].Minute < s[j].Minute
		}
		return s[i].Label < s[j].Label
	})
	return s, nil
}

// Subject is the persisted per-subject record. The core reads a snapshot at
// the start of each reading and writes back pill weight and adherence score
// after classification.
type Subject struct {
	ID        SubjectID
	FirstName string
	LastName  string

	// PillWeight is the reference grams-per-pill. Zero means not yet known;
	// the classifier bootstraps an estimate from the prescription.
	PillWeight float64

	Prescription Prescription
	Schedule     Schedule

	// CurrAdherenceScore is the last computed score, 0-100.
	CurrAdherenceScore int
}

// Reading is one raw sample scoped to a connection. Ephemeral; only used to
// derive an Event.
type Reading struct {
	Grams float64
	At    time.Time
}

// Event is the persisted record of one classified dose. Immutable once
// written. Timestamps are server receipt time; the device has no clock.
type Event struct {
	ID             uuid.UUID
	SubjectID      SubjectID
	At             time.Time
	Grams          float64
	Kind           AnomalyKind
	AdherenceScore int
	Pills          int
}

// Day returns the event's calendar date in DayFormat.
func (e Event) Day() string {
	return e.At.Format(DayFormat)
}

// NewEvent builds an event with a fresh id.
func NewEvent(subjectID SubjectID, at time.Time, grams float64, kind AnomalyKind, score, pills int) Event {
	return Event{
		ID:             uuid.New(),
		SubjectID:      subjectID,
		At:             at,
		Grams:          grams,
		Kind:           kind,
		AdherenceScore: score,
		Pills:          pills,
	}
}
