package climate

import (
	"math"
	"time"

	"github.com/i474232898/wine-region-evaluator/internal/common"
)

// DefaultViabilityYears is the trailing window used for long-term viability.
const DefaultViabilityYears = 30

// LongTermViability returns the percentage of optimal days among readings
// dated on or after today shifted back yearsBack calendar years. Days without
// a reading count toward neither side of the ratio. With no readings in the
// window the result carries the 0 sentinel and TotalDays == 0.
func LongTermViability(readings []Reading, yearsBack int, today time.Time) Viability {
	cutoff := common.YearsBefore(today, yearsBack)

	var v Viability
	for _, r := range readings {
		if r.Date.Before(cutoff) {
			continue
		}
		v.TotalDays++
		if IsOptimal(r) {
			v.OptimalDays++
		}
	}
	if v.TotalDays == 0 {
		return v
	}

	v.Percentage = round2(float64(v.OptimalDays) / float64(v.TotalDays) * 100)
	return v
}

// round2 rounds to two decimals, halves away from zero.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
