// Package classify derives dose events from successive weight readings and
// assigns each one an anomaly kind.
package classify

import (
	"math"
	"time"

	"github.com/okian/dosewatch/internal/domain/model"
)

// DefaultWindowMargin is the ± tolerance around a scheduled dosing window.
const DefaultWindowMargin = 30 * time.Minute

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithWindowMargin sets the ± tolerance around scheduled windows.
func WithWindowMargin(margin time.Duration) Option {
	return func(c *Classifier) {
		if margin > 0 {
			c.margin = margin
		}
	}
}

// Input carries everything a classification needs. PreviousWeight is the
// cached reading for the subject; HasPrevious is false on first observation.
type Input struct {
	Grams          float64
	PreviousWeight float64
	HasPrevious    bool
	Subject        model.Subject
	At             time.Time
}

// Result is the classification outcome. When Baseline is true no dose was
// derived and no event should be emitted; the previous-weight cache should
// simply be initialized to the reading.
type Result struct {
	GramsPerPill float64
	Kind         model.AnomalyKind
	Pills        int
	Baseline     bool
}

// Classifier computes dose classifications. It is a pure function of its
// inputs plus the receipt time; it has no side effects.
type Classifier struct {
	margin time.Duration
}

// New constructs a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{margin: DefaultWindowMargin}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify derives pills consumed from the weight delta and assigns an
// anomaly kind. A wrong count takes precedence; timing is not evaluated
// when the count is off.
func (c *Classifier) Classify(in Input) Result {
	gpp := gramsPerPill(in)

	if !in.HasPrevious {
		// A connection's first sample is not a dose.
		return Result{GramsPerPill: gpp, Baseline: true}
	}

	pills := 0
	if gpp > 0 {
		pills = int(math.Round((in.PreviousWeight - in.Grams) / gpp))
	}

	if pills != in.Subject.Prescription.PillsPerDose {
		return Result{GramsPerPill: gpp, Kind: model.AnomalyWrongCount, Pills: pills}
	}

	return Result{GramsPerPill: gpp, Kind: c.timing(in.Subject.Schedule, in.At), Pills: pills}
}

// gramsPerPill prefers the subject's stored reference weight; with none, it
// estimates from the full-bottle reading and the prescription pill count.
func gramsPerPill(in Input) float64 {
	if in.Subject.PillWeight > 0 {
		return in.Subject.PillWeight
	}
	count := in.Subject.Prescription.PillCount
	if count < 1 {
		count = 1
	}
	return in.Grams / float64(count)
}

// timing compares the receipt time against today's scheduled windows.
// Exactly on the margin boundary counts as on time.
func (c *Classifier) timing(schedule model.Schedule, at time.Time) model.AnomalyKind {
	if len(schedule) == 0 {
		// No timing signal available.
		return model.AnomalyOnTime
	}

	var nearest time.Time
	var nearestDiff time.Duration
	for i, w := range schedule {
		sched := w.On(at)
		diff := at.Sub(sched)
		if diff < 0 {
			diff = -diff
		}
		if diff <= c.margin {
			return model.AnomalyOnTime
		}
		if i == 0 || diff < nearestDiff {
			nearest = sched
			nearestDiff = diff
		}
	}

	if at.Before(nearest) {
		return model.AnomalyTooEarly
	}
	return model.AnomalyTooLate
}
