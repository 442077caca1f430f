package climate

import (
	"sort"
	"strings"
	"time"

	"github.com/i474232898/wine-region-evaluator/internal/common"
)

// DefaultPerformanceYears is the trailing window used when comparing regions.
const DefaultPerformanceYears = 10

// Selection narrows a performance ranking.
type Selection int

const (
	SelectAll Selection = iota
	SelectBest
	SelectWorst
)

// ParseSelection validates a case-insensitive selection string. An empty
// string selects all regions.
func ParseSelection(s string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return SelectAll, nil
	case "best":
		return SelectBest, nil
	case "worst":
		return SelectWorst, nil
	default:
		return SelectAll, ErrInvalidSelection
	}
}

func (s Selection) String() string {
	switch s {
	case SelectBest:
		return "best"
	case SelectWorst:
		return "worst"
	default:
		return "all"
	}
}

// RankPerformance averages each region's scores over readings dated on or
// after today shifted back yearsBack years and orders regions best-first.
// Regions without readings in the window score the 0 sentinel. Equal scores
// keep their input order. SelectBest and SelectWorst return only the first or
// last entry of the ranking.
func RankPerformance(histories []RegionHistory, yearsBack int, sel Selection, today time.Time) []PerformanceEntry {
	cutoff := common.YearsBefore(today, yearsBack)

	entries := make([]PerformanceEntry, 0, len(histories))
	for _, h := range histories {
		entries = append(entries, averageScore(h, cutoff))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AverageScore > entries[j].AverageScore
	})

	if len(entries) == 0 {
		return entries
	}
	switch sel {
	case SelectBest:
		return entries[:1]
	case SelectWorst:
		return entries[len(entries)-1:]
	default:
		return entries
	}
}

func averageScore(h RegionHistory, cutoff time.Time) PerformanceEntry {
	entry := PerformanceEntry{Region: h.Region.Name}

	var sum float64
	for _, r := range h.Readings {
		if r.Date.Before(cutoff) {
			continue
		}
		sum += Score(r)
		entry.Days++
	}
	if entry.Days == 0 {
		return entry
	}

	entry.AverageScore = round2(sum / float64(entry.Days))
	return entry
}
