package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/dosewatch/internal/domain/model"
)

func TestMemStore_SubjectLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	// Empty store has no latest subject.
	if _, err := store.LatestSubjectID(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	id1, err := store.CreateSubject(ctx, model.Subject{FirstName: "Alice", Prescription: model.Prescription{PillsPerDose: 2, PillCount: 90}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := store.CreateSubject(ctx, model.Subject{FirstName: "Bea"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ids must be monotonically increasing: %d then %d", id1, id2)
	}

	latest, err := store.LatestSubjectID(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != id2 {
		t.Errorf("latest = %d, want %d", latest, id2)
	}

	s, err := store.LoadSubject(ctx, id1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Prescription.PillsPerDose != 2 {
		t.Errorf("pillsPerDose = %d, want 2", s.Prescription.PillsPerDose)
	}

	if err := store.UpdateSubject(ctx, id1, 0.5, 80); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, _ = store.LoadSubject(ctx, id1)
	if s.PillWeight != 0.5 || s.CurrAdherenceScore != 80 {
		t.Errorf("update not applied: %+v", s)
	}

	if err := store.UpdateSubject(ctx, 999, 0.5, 80); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.LoadSubject(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	subjects, err := store.ListSubjects(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subjects) != 2 || subjects[0].ID != id1 || subjects[1].ID != id2 {
		t.Errorf("unexpected subject list: %+v", subjects)
	}
}

// Inserting an event must increase the same day's count by exactly one.
func TestMemStore_EventRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	id, _ := store.CreateSubject(ctx, model.Subject{FirstName: "Alice"})

	at := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	day := at.Format(model.DayFormat)

	total, bad, err := store.CountTodayEvents(ctx, id, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || bad != 0 {
		t.Fatalf("expected empty day, got total=%d bad=%d", total, bad)
	}

	if err := store.InsertEvent(ctx, model.NewEvent(id, at, 49.0, model.AnomalyOnTime, 100, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.InsertEvent(ctx, model.NewEvent(id, at.Add(time.Hour), 48.5, model.AnomalyTooLate, 50, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Different day, must not be counted.
	if err := store.InsertEvent(ctx, model.NewEvent(id, at.Add(24*time.Hour), 48.0, model.AnomalyOnTime, 100, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total, bad, err = store.CountTodayEvents(ctx, id, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || bad != 1 {
		t.Errorf("got total=%d bad=%d, want 2/1", total, bad)
	}

	events, err := store.ListEventsByDay(ctx, id, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].At.Before(events[1].At) {
		t.Error("events not ordered by receipt time")
	}
}
