package climate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/i474232898/wine-region-evaluator/internal/common"
	"github.com/i474232898/wine-region-evaluator/internal/observability"
)

var (
	// ErrUpstream wraps failures of the climate data provider.
	ErrUpstream = errors.New("climate provider request failed")
	// ErrIngestInProgress is returned when an ingestion pass is already running.
	ErrIngestInProgress = errors.New("ingestion already in progress")
	// ErrMissingName is returned when a region is created without a name.
	ErrMissingName = errors.New("region name is required")
	// ErrMissingCoordinates is returned when a region has neither coordinates nor a resolvable address.
	ErrMissingCoordinates = errors.New("latitude and longitude are required")
)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Clock         clockwork.Clock
	Metrics       *observability.Metrics
	Geocoder      Geocoder
	BackfillYears int
}

// Service orchestrates region administration, ingestion and analysis on top
// of a Store and a Provider.
type Service struct {
	store    Store
	provider Provider
	geocoder Geocoder
	planner  *Planner
	clock    clockwork.Clock
	metrics  *observability.Metrics
	backfill int

	ingestMu sync.Mutex
}

// NewService creates a new Service.
func NewService(store Store, provider Provider, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	if opts.BackfillYears <= 0 {
		opts.BackfillYears = DefaultBackfillYears
	}
	planner := NewPlanner(store, opts.Clock)
	planner.backfill = opts.BackfillYears

	return &Service{
		store:    store,
		provider: provider,
		geocoder: opts.Geocoder,
		planner:  planner,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		backfill: opts.BackfillYears,
	}
}

// Ingest fetches every region's missing days up to yesterday and stores them.
// Readings already stored are skipped by the store, so re-running is safe.
func (s *Service) Ingest(ctx context.Context) (IngestResult, error) {
	if !s.ingestMu.TryLock() {
		return IngestResult{}, ErrIngestInProgress
	}
	defer s.ingestMu.Unlock()

	start := s.clock.Now()
	result := IngestResult{RunID: uuid.NewString()}
	log := zap.L().With(zap.String("run_id", result.RunID))

	outcome := "error"
	defer func() {
		s.metrics.IngestRuns.WithLabelValues(outcome).Inc()
		s.metrics.IngestDuration.Observe(s.clock.Since(start).Seconds())
	}()

	regions, err := s.store.ListRegions(ctx, nil)
	if err != nil {
		return result, eris.Wrap(err, "ingest: list regions")
	}
	result.Regions = len(regions)
	if len(regions) == 0 {
		outcome = "skipped"
		result.Skipped, result.Reason = true, "no regions configured"
		log.Info("ingest skipped", zap.String("reason", result.Reason))
		return result, nil
	}

	startDate, err := s.planner.StartDate(ctx, regions)
	if err != nil {
		return result, eris.Wrap(err, "ingest: determine start date")
	}

	from, to, ok := FetchWindow(startDate, s.clock.Now())
	result.From, result.To = from, to
	if !ok {
		outcome = "skipped"
		result.Skipped, result.Reason = true, "no new data to fetch"
		log.Info("ingest skipped", zap.String("reason", result.Reason), zap.Time("from", from), zap.Time("to", to))
		return result, nil
	}

	log.Info("ingest started",
		zap.Int("regions", len(regions)),
		zap.String("from", from.Format(common.DateLayout)),
		zap.String("to", to.Format(common.DateLayout)),
	)

	result.Fetched, result.Inserted, err = s.fetchAndStore(ctx, regions, from, to)
	if err != nil {
		log.Error("ingest failed", zap.Error(err))
		return result, err
	}

	outcome = "success"
	log.Info("ingest complete",
		zap.Int("fetched", result.Fetched),
		zap.Int64("inserted", result.Inserted),
		zap.Duration("took", s.clock.Since(start)),
	)
	return result, nil
}

// fetchAndStore runs one batched provider call for regions and persists the
// resulting readings. Series are matched to regions by position.
func (s *Service) fetchAndStore(ctx context.Context, regions []Region, from, to time.Time) (int, int64, error) {
	lats := make([]float64, 0, len(regions))
	lons := make([]float64, 0, len(regions))
	for _, r := range regions {
		lats = append(lats, r.Latitude)
		lons = append(lons, r.Longitude)
	}

	series, err := s.provider.FetchDaily(ctx, lats, lons, from, to)
	if err != nil {
		s.metrics.ProviderRequests.WithLabelValues(s.provider.Name(), "error").Inc()
		if errors.Is(err, ErrCoordinateMismatch) {
			return 0, 0, err
		}
		return 0, 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	s.metrics.ProviderRequests.WithLabelValues(s.provider.Name(), "success").Inc()

	if len(series) != len(regions) {
		return 0, 0, fmt.Errorf("%w: provider returned %d series for %d regions", ErrUpstream, len(series), len(regions))
	}

	var readings []Reading
	for i, region := range regions {
		readings = append(readings, BuildReadings(region, series[i])...)
	}
	s.metrics.ReadingsFetched.Add(float64(len(readings)))

	if len(readings) == 0 {
		return 0, 0, nil
	}

	inserted, err := s.store.InsertReadings(ctx, readings)
	if err != nil {
		return len(readings), 0, eris.Wrap(err, "ingest: insert readings")
	}
	s.metrics.ReadingsInserted.Add(float64(inserted))
	return len(readings), inserted, nil
}

// RegionInput describes a region to create. Coordinates may be omitted when
// an address is given and a geocoder is configured.
type RegionInput struct {
	Name        string
	Latitude    *float64
	Longitude   *float64
	Description string
	Address     Address
}

// RegionCreated reports a new region and the outcome of its initial backfill.
type RegionCreated struct {
	Region        Region       `json:"region"`
	Backfill      IngestResult `json:"backfill"`
	BackfillError string       `json:"backfill_error,omitempty"`
}

// CreateRegion stores a new region and backfills its recent climate history.
// The backfill shares the ingestion lock: while a pass is running it is
// skipped, and a failed backfill leaves the region in place. In both cases
// the next ingestion run fills the gap.
func (s *Service) CreateRegion(ctx context.Context, in RegionInput) (RegionCreated, error) {
	region := Region{Name: strings.TrimSpace(in.Name), Description: in.Description}
	if region.Name == "" {
		return RegionCreated{}, ErrMissingName
	}

	switch {
	case in.Latitude != nil && in.Longitude != nil:
		region.Latitude, region.Longitude = *in.Latitude, *in.Longitude
	case s.geocoder != nil && !in.Address.IsZero():
		lat, lon, err := s.geocoder.Locate(ctx, in.Address)
		if err != nil {
			return RegionCreated{}, eris.Wrapf(err, "geocode region %q", region.Name)
		}
		region.Latitude, region.Longitude = lat, lon
	default:
		return RegionCreated{}, ErrMissingCoordinates
	}

	created, err := s.store.CreateRegion(ctx, region)
	if err != nil {
		return RegionCreated{}, err
	}

	today := s.clock.Now()
	from, to, _ := FetchWindow(common.YearsBefore(today, s.backfill), today)
	out := RegionCreated{
		Region:   created,
		Backfill: IngestResult{RunID: uuid.NewString(), From: from, To: to, Regions: 1},
	}

	if !s.ingestMu.TryLock() {
		out.Backfill.Skipped, out.Backfill.Reason = true, "ingestion in progress"
		zap.L().Info("region backfill deferred",
			zap.String("region", created.Name),
			zap.String("reason", out.Backfill.Reason),
		)
		return out, nil
	}
	defer s.ingestMu.Unlock()

	fetched, inserted, err := s.fetchAndStore(ctx, []Region{created}, from, to)
	out.Backfill.Fetched, out.Backfill.Inserted = fetched, inserted
	if err != nil {
		zap.L().Warn("region backfill failed",
			zap.String("region", created.Name),
			zap.String("run_id", out.Backfill.RunID),
			zap.Error(err),
		)
		out.BackfillError = err.Error()
	}
	return out, nil
}

// GetRegion returns a region by name.
func (s *Service) GetRegion(ctx context.Context, name string) (Region, error) {
	return s.store.GetRegion(ctx, name)
}

// ListRegions returns the named regions, or all regions when names is empty.
func (s *Service) ListRegions(ctx context.Context, names []string) ([]Region, error) {
	return s.store.ListRegions(ctx, names)
}

// DeleteRegion removes a region and all of its readings.
func (s *Service) DeleteRegion(ctx context.Context, name string) error {
	return s.store.DeleteRegion(ctx, name)
}

// SeedRegions creates regions only when the store has none yet. It returns
// how many regions were created.
func (s *Service) SeedRegions(ctx context.Context, regions []Region) (int, error) {
	n, err := s.store.CountRegions(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "seed: count regions")
	}
	if n > 0 {
		zap.L().Warn("regions already exist, skipping seeding", zap.Int("existing", n))
		return 0, nil
	}

	named := make([]Region, len(regions))
	for i, r := range regions {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return 0, fmt.Errorf("seed: region %d: %w", i+1, ErrMissingName)
		}
		named[i] = r
	}
	for _, r := range named {
		if _, err := s.store.CreateRegion(ctx, r); err != nil {
			return 0, eris.Wrapf(err, "seed: create region %q", r.Name)
		}
	}
	zap.L().Info("seeded regions", zap.Int("count", len(regions)))
	return len(regions), nil
}

// SeasonalSuitability returns the best growing season of each requested
// region. A region without history gets an error entry instead of failing
// the whole batch.
func (s *Service) SeasonalSuitability(ctx context.Context, names []string) ([]SeasonalSuitability, error) {
	s.metrics.AnalysisRequests.WithLabelValues("season").Inc()

	histories, err := s.histories(ctx, names, time.Time{})
	if err != nil {
		return nil, err
	}

	results := make([]SeasonalSuitability, 0, len(histories))
	for _, h := range histories {
		entry := SeasonalSuitability{Region: h.Region.Name}
		season, err := BestGrowingSeason(h.Readings)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.BestGrowingSeason = season
		}
		results = append(results, entry)
	}
	return results, nil
}

// LongTermViability returns the viability of each requested region over the
// trailing yearsBack years.
func (s *Service) LongTermViability(ctx context.Context, names []string, yearsBack int) ([]Viability, error) {
	s.metrics.AnalysisRequests.WithLabelValues("viability").Inc()
	if yearsBack <= 0 {
		yearsBack = DefaultViabilityYears
	}

	today := s.clock.Now()
	histories, err := s.histories(ctx, names, common.YearsBefore(today, yearsBack))
	if err != nil {
		return nil, err
	}

	results := make([]Viability, 0, len(histories))
	for _, h := range histories {
		v := LongTermViability(h.Readings, yearsBack, today)
		v.Region = h.Region.Name
		results = append(results, v)
	}
	return results, nil
}

// ComparePerformance ranks the requested regions by mean score over the
// trailing yearsBack years.
func (s *Service) ComparePerformance(ctx context.Context, names []string, yearsBack int, sel Selection) ([]PerformanceEntry, error) {
	s.metrics.AnalysisRequests.WithLabelValues("performance").Inc()
	if yearsBack <= 0 {
		yearsBack = DefaultPerformanceYears
	}

	today := s.clock.Now()
	histories, err := s.histories(ctx, names, common.YearsBefore(today, yearsBack))
	if err != nil {
		return nil, err
	}
	return RankPerformance(histories, yearsBack, sel, today), nil
}

// histories resolves regions and loads their readings with one store query.
func (s *Service) histories(ctx context.Context, names []string, since time.Time) ([]RegionHistory, error) {
	regions, err := s.store.ListRegions(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, ErrRegionNotFound
	}

	ids := make([]int64, 0, len(regions))
	for _, r := range regions {
		ids = append(ids, r.ID)
	}
	byRegion, err := s.store.Readings(ctx, ids, since)
	if err != nil {
		return nil, eris.Wrap(err, "load readings")
	}

	histories := make([]RegionHistory, 0, len(regions))
	for _, r := range regions {
		histories = append(histories, RegionHistory{Region: r, Readings: byRegion[r.ID]})
	}
	return histories, nil
}
