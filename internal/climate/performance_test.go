package climate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(name string, readings ...Reading) RegionHistory {
	return RegionHistory{Region: Region{Name: name}, Readings: readings}
}

func rankingFixture() []RegionHistory {
	return []RegionHistory{
		history("Coonawarra", at(poorDay, 2025, 1, 1), at(optimalDay, 2025, 1, 2)), // 66.25
		history("McLaren Vale", at(optimalDay, 2025, 1, 1), at(optimalDay, 2025, 1, 2)), // 97.5
		history("Empty"),
		history("Yarra Valley", at(poorDay, 2025, 1, 1)), // 35
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in   string
		want Selection
	}{
		{"", SelectAll}, {"all", SelectAll}, {"ALL", SelectAll},
		{"best", SelectBest}, {"Best", SelectBest}, {" BEST ", SelectBest},
		{"worst", SelectWorst}, {"WoRsT", SelectWorst},
	}
	for _, tt := range tests {
		got, err := ParseSelection(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSelection("median")
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestRankPerformance_SortedDescending(t *testing.T) {
	today := day(2025, 6, 1)

	got := RankPerformance(rankingFixture(), DefaultPerformanceYears, SelectAll, today)
	require.Len(t, got, 4)
	assert.Equal(t, []PerformanceEntry{
		{Region: "McLaren Vale", AverageScore: 97.5, Days: 2},
		{Region: "Coonawarra", AverageScore: 66.25, Days: 2},
		{Region: "Yarra Valley", AverageScore: 35, Days: 1},
		{Region: "Empty", AverageScore: 0, Days: 0},
	}, got)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].AverageScore, got[i].AverageScore)
	}
}

func TestRankPerformance_BestAndWorst(t *testing.T) {
	today := day(2025, 6, 1)
	all := RankPerformance(rankingFixture(), DefaultPerformanceYears, SelectAll, today)

	best := RankPerformance(rankingFixture(), DefaultPerformanceYears, SelectBest, today)
	require.Len(t, best, 1)
	assert.Equal(t, all[0], best[0])

	worst := RankPerformance(rankingFixture(), DefaultPerformanceYears, SelectWorst, today)
	require.Len(t, worst, 1)
	assert.Equal(t, all[len(all)-1], worst[0])
	assert.Equal(t, "Empty", worst[0].Region)
}

func TestRankPerformance_TiesKeepInputOrder(t *testing.T) {
	today := day(2025, 6, 1)
	histories := []RegionHistory{
		history("B", at(optimalDay, 2025, 1, 1)),
		history("A", at(optimalDay, 2025, 2, 1)),
		history("C", at(optimalDay, 2025, 3, 1)),
	}

	got := RankPerformance(histories, DefaultPerformanceYears, SelectAll, today)
	assert.Equal(t, "B", got[0].Region)
	assert.Equal(t, "A", got[1].Region)
	assert.Equal(t, "C", got[2].Region)
}

func TestRankPerformance_WindowFiltersOldReadings(t *testing.T) {
	today := day(2025, 6, 1)
	histories := []RegionHistory{
		history("Old glory", at(optimalDay, 2010, 1, 1), at(poorDay, 2025, 1, 1)),
		history("Steady", at(poorDay, 2025, 1, 1), at(optimalDay, 2025, 1, 2)),
	}

	got := RankPerformance(histories, 1, SelectAll, today)
	assert.Equal(t, "Steady", got[0].Region)
	assert.Equal(t, PerformanceEntry{Region: "Old glory", AverageScore: 35, Days: 1}, got[1])
}

func TestRankPerformance_Empty(t *testing.T) {
	today := day(2025, 6, 1)
	assert.Empty(t, RankPerformance(nil, DefaultPerformanceYears, SelectBest, today))
	assert.Empty(t, RankPerformance(nil, DefaultPerformanceYears, SelectWorst, today))
}
