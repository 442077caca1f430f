package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
	"github.com/i474232898/wine-region-evaluator/internal/common"
)

// regionHistory holds a date-keyed set of readings for one region.
type regionHistory struct {
	readings map[time.Time]climate.Reading
}

// MemoryStore is a concurrency-safe in-memory implementation of climate.Store.
type MemoryStore struct {
	mu sync.RWMutex

	nextID  int64
	regions map[int64]climate.Region
	// key: region ID
	data map[int64]*regionHistory
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		regions: make(map[int64]climate.Region),
		data:    make(map[int64]*regionHistory),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// CreateRegion assigns an ID and stores the region, rejecting duplicate
// names and coordinate pairs.
func (s *MemoryStore) CreateRegion(_ context.Context, r climate.Region) (climate.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.regions {
		if existing.Name == r.Name ||
			(existing.Latitude == r.Latitude && existing.Longitude == r.Longitude) {
			return climate.Region{}, climate.ErrRegionExists
		}
	}

	s.nextID++
	r.ID = s.nextID
	s.regions[r.ID] = r
	s.data[r.ID] = &regionHistory{readings: make(map[time.Time]climate.Reading)}
	return r, nil
}

func (s *MemoryStore) GetRegion(_ context.Context, name string) (climate.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.regions {
		if r.Name == name {
			return r, nil
		}
	}
	return climate.Region{}, climate.ErrRegionNotFound
}

// ListRegions returns regions ordered by ID.
func (s *MemoryStore) ListRegions(_ context.Context, names []string) ([]climate.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	out := make([]climate.Region, 0, len(s.regions))
	for _, r := range s.regions {
		if len(names) == 0 || wanted[r.Name] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteRegion removes the region and, with it, its readings.
func (s *MemoryStore) DeleteRegion(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.regions {
		if r.Name == name {
			delete(s.regions, id)
			delete(s.data, id)
			return nil
		}
	}
	return climate.ErrRegionNotFound
}

func (s *MemoryStore) CountRegions(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regions), nil
}

// Readings returns readings on or after since, ordered by date.
func (s *MemoryStore) Readings(_ context.Context, regionIDs []int64, since time.Time) (map[int64][]climate.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64][]climate.Reading, len(regionIDs))
	for _, id := range regionIDs {
		history, ok := s.data[id]
		if !ok {
			continue
		}
		var result []climate.Reading
		for _, r := range history.readings {
			if !since.IsZero() && r.Date.Before(since) {
				continue
			}
			result = append(result, r)
		}
		sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
		if len(result) > 0 {
			out[id] = result
		}
	}
	return out, nil
}

func (s *MemoryStore) LatestReadingDates(_ context.Context, regionIDs []int64) (map[int64]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]time.Time, len(regionIDs))
	for _, id := range regionIDs {
		history, ok := s.data[id]
		if !ok {
			continue
		}
		for d := range history.readings {
			if d.After(out[id]) {
				out[id] = d
			}
		}
	}
	return out, nil
}

// InsertReadings keeps the first reading stored for each (region, date) and
// silently drops later duplicates. Readings of unknown regions are dropped too.
func (s *MemoryStore) InsertReadings(_ context.Context, readings []climate.Reading) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted int64
	for _, r := range readings {
		history, ok := s.data[r.RegionID]
		if !ok {
			continue
		}
		r.Date = common.Day(r.Date)
		if _, exists := history.readings[r.Date]; exists {
			continue
		}
		history.readings[r.Date] = r
		inserted++
	}
	return inserted, nil
}
