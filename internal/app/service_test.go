package app

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dosewatch/internal/adapters/repository"
	"github.com/okian/dosewatch/internal/domain/model"
)

func newTestService(t *testing.T, store repository.Store, at time.Time) *Service {
	t.Helper()
	svc := New(
		WithStore(store),
		WithClock(func() time.Time { return at }),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func seedSubject(t *testing.T, store repository.Store) model.SubjectID {
	t.Helper()
	id, err := store.CreateSubject(context.Background(), model.Subject{
		FirstName:          "Alice",
		LastName:           "Johnson",
		PillWeight:         0.5,
		Prescription:       model.Prescription{PillsPerDose: 2, PillCount: 90},
		Schedule:           model.Schedule{{Label: "morning", Hour: 8}, {Label: "evening", Hour: 20}},
		CurrAdherenceScore: 100,
	})
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	return id
}

func TestServiceReadingPipeline(t *testing.T) {
	Convey("Given a subject dosing two 0.5g pills at 08:00 and 20:00", t, func() {
		ctx := context.Background()
		at := time.Date(2026, 5, 10, 8, 10, 0, 0, time.UTC)
		store := repository.NewMemStore()
		id := seedSubject(t, store)
		svc := newTestService(t, store, at)

		Convey("The first reading is a baseline and emits no event", func() {
			out, err := svc.ProcessReading(ctx, 50.0, nil)
			So(err, ShouldBeNil)
			So(out.Baseline, ShouldBeTrue)
			So(out.SubjectID, ShouldEqual, id)

			total, _, err := store.CountTodayEvents(ctx, id, at.Format(model.DayFormat))
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 0)
		})

		Convey("A 1.0g drop inside the window is an on-time two-pill dose", func() {
			_, err := svc.ProcessReading(ctx, 50.0, nil)
			So(err, ShouldBeNil)

			out, err := svc.ProcessReading(ctx, 49.0, nil)
			So(err, ShouldBeNil)
			So(out.Baseline, ShouldBeFalse)
			So(out.Event.Kind, ShouldEqual, model.AnomalyOnTime)
			So(out.Event.Pills, ShouldEqual, 2)
			So(out.Event.AdherenceScore, ShouldEqual, 100)

			Convey("And the subject snapshot is written back", func() {
				s, err := store.LoadSubject(ctx, id)
				So(err, ShouldBeNil)
				So(s.CurrAdherenceScore, ShouldEqual, 100)
				So(s.PillWeight, ShouldEqual, 0.5)
			})
		})

		Convey("A drop of three pills is flagged as a wrong count", func() {
			_, err := svc.ProcessReading(ctx, 50.0, nil)
			So(err, ShouldBeNil)

			out, err := svc.ProcessReading(ctx, 48.5, nil)
			So(err, ShouldBeNil)
			So(out.Event.Kind, ShouldEqual, model.AnomalyWrongCount)
			So(out.Event.AdherenceScore, ShouldEqual, 0)
		})

		Convey("A pinned subject id bypasses latest-subject resolution", func() {
			other := seedSubject(t, store)

			out, err := svc.ProcessReading(ctx, 50.0, &id)
			So(err, ShouldBeNil)
			So(out.SubjectID, ShouldEqual, id)
			So(out.SubjectID, ShouldNotEqual, other)
		})

		Convey("An unknown pinned subject fails with ErrNotFound", func() {
			missing := model.SubjectID(999)
			_, err := svc.ProcessReading(ctx, 50.0, &missing)
			So(repository.IsNotFound(err), ShouldBeTrue)
		})
	})
}

func TestServiceScoreDegrades(t *testing.T) {
	Convey("Given four on-time doses already recorded today", t, func() {
		ctx := context.Background()
		at := time.Date(2026, 5, 10, 20, 0, 0, 0, time.UTC)
		store := repository.NewMemStore()
		id := seedSubject(t, store)
		svc := newTestService(t, store, at)

		for i := 0; i < 4; i++ {
			e := model.NewEvent(id, at.Add(-time.Duration(i+1)*time.Hour), 49.0, model.AnomalyOnTime, 100, 2)
			So(store.InsertEvent(ctx, e), ShouldBeNil)
		}

		Convey("One anomalous dose drops the rolling score to 80", func() {
			_, err := svc.ProcessReading(ctx, 50.0, nil)
			So(err, ShouldBeNil)

			out, err := svc.ProcessReading(ctx, 48.5, nil) // three pills
			So(err, ShouldBeNil)
			So(out.Event.Kind, ShouldEqual, model.AnomalyWrongCount)
			So(out.Event.AdherenceScore, ShouldEqual, 80)
		})
	})
}

// flakyStore fails event inserts until healed.
type flakyStore struct {
	repository.Store
	failing bool
}

func (f *flakyStore) InsertEvent(ctx context.Context, e model.Event) error {
	if f.failing {
		return repository.ErrUnavailable
	}
	return f.Store.InsertEvent(ctx, e)
}

func TestServiceDoesNotAdvanceCacheOnStoreFailure(t *testing.T) {
	Convey("Given a store that rejects the first insert", t, func() {
		ctx := context.Background()
		at := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
		mem := repository.NewMemStore()
		seedSubject(t, mem)
		store := &flakyStore{Store: mem, failing: true}
		svc := newTestService(t, store, at)

		_, err := svc.ProcessReading(ctx, 50.0, nil) // baseline
		So(err, ShouldBeNil)

		Convey("The failed reading is dropped", func() {
			_, err := svc.ProcessReading(ctx, 49.0, nil)
			So(err, ShouldNotBeNil)

			Convey("And a retry classifies against the unchanged previous weight", func() {
				store.failing = false
				out, err := svc.ProcessReading(ctx, 49.0, nil)
				So(err, ShouldBeNil)
				So(out.Event.Pills, ShouldEqual, 2)
				So(out.Event.Kind, ShouldEqual, model.AnomalyOnTime)
			})
		})
	})
}

func TestServiceTare(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	store := repository.NewMemStore()
	seedSubject(t, store)

	svc := New(
		WithStore(store),
		WithTare(10.0),
		WithClock(func() time.Time { return at }),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	defer svc.Stop()

	if _, err := svc.ProcessReading(ctx, 60.0, nil); err != nil { // 50.0 net
		t.Fatalf("baseline: %v", err)
	}
	out, err := svc.ProcessReading(ctx, 59.0, nil) // 49.0 net
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if out.Event.Grams != 49.0 {
		t.Fatalf("net grams = %v, want 49.0", out.Event.Grams)
	}
	if out.Event.Pills != 2 {
		t.Fatalf("pills = %d, want 2", out.Event.Pills)
	}
}

func TestServiceStats(t *testing.T) {
	store := repository.NewMemStore()
	svc := newTestService(t, store, time.Now())

	stats := svc.GetStats()
	if stats["started"] != true {
		t.Fatalf("expected started=true, got %v", stats["started"])
	}
	if stats["windowMarginMinutes"] != 30 {
		t.Fatalf("expected default 30 minute margin, got %v", stats["windowMarginMinutes"])
	}
}
