package testreadings

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	doseOutcomeDivisor = 1000
)

// Synthetic subject parameter ranges.
const (
	minGramsPerPill = 0.25
	maxGramsPerPill = 1.0
	minPillCount    = 30
	maxPillCount    = 180
	earliestMinutes = 6 * 60  // first window no earlier than 06:00
	latestMinutes   = 22 * 60 // last window no later than 22:00
)

// Dose outcome thresholds out of doseOutcomeDivisor. Most doses are taken
// exactly as prescribed; a few are missed, doubled, or split.
const (
	caseMissedBelow  = 10  // 1%: bottle untouched
	casePartialBelow = 35  // 2.5%: roughly half the dose
	caseExtraBelow   = 65  // 3%: one pill too many
)

var firstNames = []string{
	"Liam", "Noah", "Oliver", "Emma", "Olivia", "Ava", "Sophia", "Mia",
	"James", "Lucas", "Henry", "Amelia", "Harper", "Evelyn", "Mason",
	"Ethan", "Luna", "Ella", "Grace", "Hazel",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Garcia", "Miller", "Davis",
	"Rodriguez", "Martinez", "Wilson", "Anderson", "Taylor", "Moore",
	"Jackson", "Lee", "Perez", "Thompson", "White", "Harris", "Clark",
}

// randomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomInt returns a random int in [lo, hi].
func randomInt(lo, hi int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	return lo + int(n.Int64())
}

// pick returns a random element of pool.
func pick(pool []string) string {
	return pool[randomInt(0, len(pool)-1)]
}

// dosesPerDay draws 1-4 daily doses, weighted toward two.
func dosesPerDay() int {
	switch r := randomFloat(); {
	case r < 0.05:
		return 1
	case r < 0.65:
		return 2
	case r < 0.95:
		return 3
	default:
		return 4
	}
}

// pillsPerDose draws 1-3 pills, weighted toward one.
func pillsPerDose() int {
	switch r := randomFloat(); {
	case r < 0.75:
		return 1
	case r < 0.95:
		return 2
	default:
		return 3
	}
}

// dosingWindows spaces doses evenly between 06:00 and 22:00. A single
// daily dose lands at 11:00.
func dosingWindows(doses int) map[string]string {
	minutes := make([]int, 0, doses)
	if doses == 1 {
		minutes = append(minutes, 11*60)
	} else {
		interval := float64(latestMinutes-earliestMinutes) / float64(doses-1)
		for i := 0; i < doses; i++ {
			minutes = append(minutes, earliestMinutes+int(float64(i)*interval))
		}
	}

	windows := make(map[string]string, len(minutes))
	for i, m := range minutes {
		windows[fmt.Sprintf("window_%d", i+1)] = fmt.Sprintf("%02d:%02d", m/60, m%60)
	}
	return windows
}

// generateSubject builds one synthetic subject with a plausible bottle.
func generateSubject() Subject {
	gramsPerPill := minGramsPerPill + randomFloat()*(maxGramsPerPill-minGramsPerPill)
	gramsPerPill = math.Round(gramsPerPill*1000) / 1000

	return Subject{
		FirstName:     pick(firstNames),
		LastName:      pick(lastNames),
		PillWeight:    gramsPerPill,
		PillsPerDose:  pillsPerDose(),
		PillCount:     randomInt(minPillCount, maxPillCount),
		DosingWindows: dosingWindows(dosesPerDay()),
	}
}

// generateReadings produces the monotonically decreasing bottle weights a
// scale would report for n doses, starting with the full-bottle baseline.
// Most doses remove exactly the prescribed pills; a small fraction are
// missed, partial, or one pill over, with light measurement noise on top.
func generateReadings(s Subject, n int) []float64 {
	readings := make([]float64, 0, n+1)

	pillsLeft := float64(s.PillCount)
	weight := pillsLeft * s.PillWeight
	readings = append(readings, round3(weight))

	for i := 0; i < n; i++ {
		dose := float64(s.PillsPerDose)
		outcome, _ := rand.Int(rand.Reader, big.NewInt(doseOutcomeDivisor))
		switch r := outcome.Int64(); {
		case r < caseMissedBelow:
			dose = 0
		case r < casePartialBelow:
			dose = math.Max(0.5, dose*0.5)
		case r < caseExtraBelow:
			dose++
		}

		if pillsLeft < dose {
			// Refill before the dose, like swapping in a new bottle.
			pillsLeft = float64(s.PillCount)
		}
		pillsLeft -= dose

		noise := 1.0 + (randomFloat()-0.5)*0.004
		readings = append(readings, round3(pillsLeft*s.PillWeight*noise))
	}

	return readings
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
