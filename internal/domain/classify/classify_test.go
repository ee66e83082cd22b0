package classify_test

import (
	"testing"
	"time"

	"github.com/okian/dosewatch/internal/domain/classify"
	"github.com/okian/dosewatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func subjectFixture() model.Subject {
	return model.Subject{
		ID:         1,
		PillWeight: 0.5,
		Prescription: model.Prescription{
			PillsPerDose: 2,
			PillCount:    90,
		},
		Schedule: model.Schedule{
			{Label: "morning", Hour: 8, Minute: 0},
			{Label: "evening", Hour: 20, Minute: 0},
		},
	}
}

func at(hour, minute, second int) time.Time {
	return time.Date(2026, 5, 10, hour, minute, second, 0, time.UTC)
}

func TestClassifier_Baseline(t *testing.T) {
	Convey("Given a subject with no cached previous weight", t, func() {
		c := classify.New()

		Convey("When the first reading arrives", func() {
			res := c.Classify(classify.Input{
				Grams:       50.0,
				HasPrevious: false,
				Subject:     subjectFixture(),
				At:          at(8, 0, 0),
			})

			Convey("Then it is a baseline and derives no dose", func() {
				So(res.Baseline, ShouldBeTrue)
				So(res.Pills, ShouldEqual, 0)
				So(res.GramsPerPill, ShouldEqual, 0.5)
			})
		})

		Convey("When the subject has no stored pill weight", func() {
			subj := subjectFixture()
			subj.PillWeight = 0

			res := c.Classify(classify.Input{
				Grams:       45.0,
				HasPrevious: false,
				Subject:     subj,
				At:          at(8, 0, 0),
			})

			Convey("Then grams-per-pill is bootstrapped from the prescription", func() {
				So(res.Baseline, ShouldBeTrue)
				So(res.GramsPerPill, ShouldEqual, 45.0/90.0)
			})
		})

		Convey("When the prescription pill count is zero", func() {
			subj := subjectFixture()
			subj.PillWeight = 0
			subj.Prescription.PillCount = 0

			res := c.Classify(classify.Input{
				Grams:       45.0,
				HasPrevious: false,
				Subject:     subj,
				At:          at(8, 0, 0),
			})

			Convey("Then the divisor is clamped to one", func() {
				So(res.GramsPerPill, ShouldEqual, 45.0)
			})
		})
	})
}

func TestClassifier_PillCount(t *testing.T) {
	Convey("Given previous weight 50.0g and grams-per-pill 0.5", t, func() {
		c := classify.New()
		subj := subjectFixture()

		Convey("When the new reading is 49.0g", func() {
			res := c.Classify(classify.Input{
				Grams:          49.0,
				PreviousWeight: 50.0,
				HasPrevious:    true,
				Subject:        subj,
				At:             at(8, 0, 0),
			})

			Convey("Then two pills were consumed and the count is valid", func() {
				So(res.Baseline, ShouldBeFalse)
				So(res.Pills, ShouldEqual, 2)
				So(res.Kind, ShouldEqual, model.AnomalyOnTime)
			})
		})

		Convey("When the new reading is 49.5g", func() {
			res := c.Classify(classify.Input{
				Grams:          49.5,
				PreviousWeight: 50.0,
				HasPrevious:    true,
				Subject:        subj,
				At:             at(8, 0, 0),
			})

			Convey("Then one pill is a wrong count regardless of timing", func() {
				So(res.Pills, ShouldEqual, 1)
				So(res.Kind, ShouldEqual, model.AnomalyWrongCount)
			})
		})

		Convey("When grams-per-pill cannot be derived as positive", func() {
			bad := subj
			bad.PillWeight = 0
			bad.Prescription.PillCount = 1

			res := c.Classify(classify.Input{
				Grams:          0,
				PreviousWeight: 1.0,
				HasPrevious:    true,
				Subject:        bad,
				At:             at(8, 0, 0),
			})

			Convey("Then the computation is skipped and zero pills mismatch the dose", func() {
				So(res.Pills, ShouldEqual, 0)
				So(res.Kind, ShouldEqual, model.AnomalyWrongCount)
			})
		})
	})
}

func TestClassifier_Timing(t *testing.T) {
	Convey("Given a valid dose count and windows at 08:00 and 20:00", t, func() {
		c := classify.New()
		subj := subjectFixture()

		classifyAt := func(when time.Time) model.AnomalyKind {
			res := c.Classify(classify.Input{
				Grams:          49.0,
				PreviousWeight: 50.0,
				HasPrevious:    true,
				Subject:        subj,
				At:             when,
			})
			return res.Kind
		}

		Convey("Then exactly window-30min is on time", func() {
			So(classifyAt(at(7, 30, 0)), ShouldEqual, model.AnomalyOnTime)
		})

		Convey("Then exactly window+30min is on time", func() {
			So(classifyAt(at(8, 30, 0)), ShouldEqual, model.AnomalyOnTime)
		})

		Convey("Then one second before the margin is too early", func() {
			So(classifyAt(at(7, 29, 59)), ShouldEqual, model.AnomalyTooEarly)
		})

		Convey("Then one second past the margin is too late", func() {
			So(classifyAt(at(8, 30, 1)), ShouldEqual, model.AnomalyTooLate)
		})

		Convey("Then between windows the nearest one decides the direction", func() {
			// 13:00 is nearer to 08:00 than to 20:00 -> after nearest -> too late.
			So(classifyAt(at(13, 0, 0)), ShouldEqual, model.AnomalyTooLate)
			// 15:00 is nearer to 20:00 -> before nearest -> too early.
			So(classifyAt(at(15, 0, 0)), ShouldEqual, model.AnomalyTooEarly)
		})

		Convey("Then an empty schedule defaults to on time", func() {
			bare := subj
			bare.Schedule = nil
			res := c.Classify(classify.Input{
				Grams:          49.0,
				PreviousWeight: 50.0,
				HasPrevious:    true,
				Subject:        bare,
				At:             at(3, 0, 0),
			})
			So(res.Kind, ShouldEqual, model.AnomalyOnTime)
		})

		Convey("Then a custom margin widens the window", func() {
			wide := classify.New(classify.WithWindowMargin(2 * time.Hour))
			res := wide.Classify(classify.Input{
				Grams:          49.0,
				PreviousWeight: 50.0,
				HasPrevious:    true,
				Subject:        subj,
				At:             at(6, 30, 0),
			})
			So(res.Kind, ShouldEqual, model.AnomalyOnTime)
		})
	})
}
