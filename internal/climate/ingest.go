package climate

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/wine-region-evaluator/internal/common"
)

// DefaultBackfillYears is how far back ingestion reaches when no region has readings yet.
const DefaultBackfillYears = 1

// Planner decides which date range of climate data still needs fetching.
type Planner struct {
	store    Store
	clock    clockwork.Clock
	backfill int
}

// NewPlanner creates a Planner that backfills DefaultBackfillYears when no
// region has readings yet. A nil clock uses real time.
func NewPlanner(store Store, clock clockwork.Clock) *Planner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Planner{store: store, clock: clock, backfill: DefaultBackfillYears}
}

// StartDate returns the earliest watermark across regions, looked up with a
// single store query for the whole batch.
func (p *Planner) StartDate(ctx context.Context, regions []Region) (time.Time, error) {
	ids := make([]int64, 0, len(regions))
	for _, r := range regions {
		ids = append(ids, r.ID)
	}

	latest, err := p.store.LatestReadingDates(ctx, ids)
	if err != nil {
		return time.Time{}, err
	}
	return EarliestWatermark(latest, p.clock.Now(), p.backfill), nil
}

// EarliestWatermark returns the earliest of the per-region latest reading
// dates, so one fetch covers every region's gap. Regions already up to date
// get a few days re-fetched; persistence drops the duplicates. With no
// watermarks at all it reaches backfillYears before today.
func EarliestWatermark(latest map[int64]time.Time, today time.Time, backfillYears int) time.Time {
	var earliest time.Time
	for _, d := range latest {
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	if earliest.IsZero() {
		return common.YearsBefore(today, backfillYears)
	}
	return common.Day(earliest)
}

// FetchWindow bounds a fetch starting at start to end yesterday, never
// touching the possibly incomplete current day. ok is false when the window
// is empty or inverted and nothing should be fetched.
func FetchWindow(start, today time.Time) (from, to time.Time, ok bool) {
	from = common.Day(start)
	to = common.Yesterday(today)
	return from, to, from.Before(to)
}

// BuildReadings turns a provider series into unsaved readings for region.
// Duplicates are left for the store to drop.
func BuildReadings(region Region, series DailySeries) []Reading {
	readings := make([]Reading, 0, len(series.Days))
	for _, d := range series.Days {
		readings = append(readings, Reading{
			RegionID:        region.ID,
			Date:            common.Day(d.Date),
			MeanTemperature: d.MeanTemperature,
			MaxTemperature:  d.MaxTemperature,
			MinTemperature:  d.MinTemperature,
			MeanHumidity:    d.MeanHumidity,
			MaxHumidity:     d.MaxHumidity,
			MinHumidity:     d.MinHumidity,
			Rain:            d.Precipitation,
			CloudCover:      d.CloudCover,
			SoilMoisture:    d.SoilMoisture,
		})
	}
	return readings
}
