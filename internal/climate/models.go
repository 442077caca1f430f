package climate

import (
	"errors"
	"time"
)

var (
	// ErrNoData is returned when an analysis has no readings to work with.
	ErrNoData = errors.New("insufficient climate history")
	// ErrRegionNotFound is returned when no region matches the request.
	ErrRegionNotFound = errors.New("region not found")
	// ErrRegionExists is returned when a region name or coordinate pair is already taken.
	ErrRegionExists = errors.New("region with this name or exact latitude and longitude already exists")
	// ErrCoordinateMismatch is returned when latitude and longitude lists differ in length.
	ErrCoordinateMismatch = errors.New("latitude and longitude lists must have the same length")
	// ErrInvalidSelection is returned for a selection other than all, best or worst.
	ErrInvalidSelection = errors.New("selection must be one of: all, best, worst")
)

// Region is a named geographic point whose climate we track.
// Name and the (Latitude, Longitude) pair are both unique.
type Region struct {
	ID          int64   `json:"-" db:"id"`
	Name        string  `json:"name" db:"name"`
	Latitude    float64 `json:"latitude" db:"latitude"`
	Longitude   float64 `json:"longitude" db:"longitude"`
	Description string  `json:"description,omitempty" db:"description"`
}

// Reading is one calendar day of observations for one region.
// At most one reading exists per (RegionID, Date).
type Reading struct {
	RegionID int64     `json:"-"`
	Date     time.Time `json:"date"` // UTC midnight

	MeanTemperature float64 `json:"mean_temperature"` // °C
	MaxTemperature  float64 `json:"max_temperature"`
	MinTemperature  float64 `json:"min_temperature"`
	MeanHumidity    float64 `json:"mean_humidity"` // %
	MaxHumidity     float64 `json:"max_humidity"`
	MinHumidity     float64 `json:"min_humidity"`
	Rain            float64 `json:"rain"`          // mm
	CloudCover      float64 `json:"cloud_cover"`   // %, 0-100
	SoilMoisture    float64 `json:"soil_moisture"` // m³/m³
}

// DailyObservation is one row of a provider's daily series.
type DailyObservation struct {
	Date time.Time

	MeanTemperature float64
	MaxTemperature  float64
	MinTemperature  float64
	MeanHumidity    float64
	MaxHumidity     float64
	MinHumidity     float64
	Precipitation   float64
	CloudCover      float64
	SoilMoisture    float64
}

// DailySeries is the ordered daily data a provider returned for one coordinate pair.
type DailySeries struct {
	Latitude  float64
	Longitude float64
	Days      []DailyObservation
}

// RegionHistory pairs a region with the readings loaded for it.
type RegionHistory struct {
	Region   Region
	Readings []Reading
}

// SeasonalSuitability is the best growing season of one region.
type SeasonalSuitability struct {
	Region            string   `json:"name"`
	BestGrowingSeason []string `json:"best_growing_season"`
	Error             string   `json:"error,omitempty"`
}

// Viability is the share of optimal days within a trailing window.
// TotalDays == 0 means there was no data and Percentage is the 0 sentinel.
type Viability struct {
	Region      string  `json:"name"`
	Percentage  float64 `json:"longterm_viability"`
	OptimalDays int     `json:"optimal_days"`
	TotalDays   int     `json:"total_days"`
}

// PerformanceEntry is a region's mean score within a trailing window.
// Days == 0 means there was no data and AverageScore is the 0 sentinel.
type PerformanceEntry struct {
	Region       string  `json:"name"`
	AverageScore float64 `json:"average_score"`
	Days         int     `json:"days"`
}

// IngestResult summarizes one ingestion pass.
type IngestResult struct {
	RunID    string    `json:"run_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Regions  int       `json:"regions"`
	Fetched  int       `json:"fetched"`
	Inserted int64     `json:"inserted"`
	Skipped  bool      `json:"skipped"`
	Reason   string    `json:"reason,omitempty"`
}
