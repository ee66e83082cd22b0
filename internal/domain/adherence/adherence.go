// Package adherence recomputes a subject's rolling adherence score.
package adherence

import (
	"math"

	"github.com/okian/dosewatch/internal/domain/model"
)

// Score bounds.
const (
	maxScore = 100
	minScore = 0
)

// Score folds a newly classified event into the day's history and returns
// the updated score in [0,100]. priorTotal and priorBad count today's
// already-persisted events for the subject.
//
// The score is non-increasing within a day as anomalous events accumulate.
func Score(priorTotal, priorBad int, kind model.AnomalyKind) int {
	total := priorTotal + 1
	bad := priorBad
	if kind.IsAnomalous() {
		bad++
	}
	if total <= 0 {
		// Cannot occur given the +1; kept as a guard against bad inputs.
		return maxScore
	}
	score := int(math.Round(maxScore * (1 - float64(bad)/float64(total))))
	if score > maxScore {
		return maxScore
	}
	if score < minScore {
		return minScore
	}
	return score
}
