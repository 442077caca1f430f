package climate

import (
	"context"
	"time"
)

// Provider abstracts a daily climate data source (e.g. the Open-Meteo climate API).
type Provider interface {
	Name() string
	// FetchDaily returns one series per coordinate pair, in input order, covering
	// from..to inclusive.
	FetchDaily(ctx context.Context, lats, lons []float64, from, to time.Time) ([]DailySeries, error)
}

// Geocoder resolves a postal address to coordinates.
type Geocoder interface {
	Locate(ctx context.Context, addr Address) (lat, lon float64, err error)
}

// Address is the part of a postal address used for geocoding a region.
type Address struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// IsZero reports whether no address component is set.
func (a Address) IsZero() bool {
	return a.City == "" && a.State == "" && a.Country == ""
}

// Store is the contract every persistent (or in-memory) backend must satisfy.
type Store interface {
	CreateRegion(ctx context.Context, r Region) (Region, error)
	GetRegion(ctx context.Context, name string) (Region, error)
	// ListRegions returns the named regions, or every region when names is empty.
	ListRegions(ctx context.Context, names []string) ([]Region, error)
	DeleteRegion(ctx context.Context, name string) error
	CountRegions(ctx context.Context) (int, error)

	// Readings returns readings per region ID with Date >= since, ordered by date.
	// A zero since returns the whole history.
	Readings(ctx context.Context, regionIDs []int64, since time.Time) (map[int64][]Reading, error)
	// LatestReadingDates returns the watermark of every region that has readings.
	LatestReadingDates(ctx context.Context, regionIDs []int64) (map[int64]time.Time, error)
	// InsertReadings stores readings, ignoring ones whose (region, date) already exists,
	// and returns how many were inserted.
	InsertReadings(ctx context.Context, readings []Reading) (int64, error)
}
