package climate

import "time"

// SeasonLength is the number of consecutive months in a growing season.
const SeasonLength = 3

// BestGrowingSeason finds the month with the highest mean score, aggregated
// across all years, and returns it with the two months that follow it,
// wrapping December into January. Months are returned best-first.
//
// Ties go to the earliest month in calendar order. An empty history returns
// ErrNoData.
func BestGrowingSeason(readings []Reading) ([]string, error) {
	if len(readings) == 0 {
		return nil, ErrNoData
	}

	var (
		sums   [12]float64
		counts [12]int
	)
	for _, r := range readings {
		i := int(r.Date.Month()) - 1
		sums[i] += Score(r)
		counts[i]++
	}

	best := -1
	var bestMean float64
	for i := range sums {
		if counts[i] == 0 {
			continue
		}
		mean := sums[i] / float64(counts[i])
		if best == -1 || mean > bestMean {
			best, bestMean = i, mean
		}
	}

	season := make([]string, 0, SeasonLength)
	for k := 0; k < SeasonLength; k++ {
		season = append(season, shiftMonth(time.Month(best+1), k).String())
	}
	return season, nil
}

// shiftMonth moves m forward by offset months, staying within 1-12.
func shiftMonth(m time.Month, offset int) time.Month {
	return time.Month((int(m)-1+offset)%12 + 1)
}
