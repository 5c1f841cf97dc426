// Package feedstest provides an in-memory feeds.Store for adapter tests.
package feedstest

import (
	"context"
	"sync"
	"time"

	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/model"
)

// Store keeps everything adapters write so tests can assert on it. It mirrors
// the merge semantics of the Arango store closely enough for adapter-level
// assertions: records merge by id, EPSS and KEV rows only touch known ids.
type Store struct {
	mu sync.Mutex

	Vulns    map[string]model.VulnerabilityRecord
	Epss     map[string]feeds.EpssScore
	Kev      map[string]feeds.KevEntry
	EOL      map[string]model.EOLProduct
	Marks    map[string]time.Time
	SyncRuns []model.SyncRun

	// Err, when set, is returned by every write method.
	Err error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		Vulns: map[string]model.VulnerabilityRecord{},
		Epss:  map[string]feeds.EpssScore{},
		Kev:   map[string]feeds.KevEntry{},
		EOL:   map[string]model.EOLProduct{},
		Marks: map[string]time.Time{},
	}
}

// Seed adds an existing vulnerability so EPSS/KEV application has a target.
func (s *Store) Seed(recs ...model.VulnerabilityRecord) *Store {
	for _, rec := range recs {
		s.Vulns[rec.ID] = rec
	}
	return s
}

func (s *Store) UpsertVulnerabilities(_ context.Context, source string, recs []model.VulnerabilityRecord) (feeds.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats feeds.Stats
	if s.Err != nil {
		return stats, s.Err
	}
	for _, rec := range recs {
		if existing, ok := s.Vulns[rec.ID]; ok {
			if prior, seen := existing.SourceUpdatedAt[source]; seen && !rec.Modified.After(prior) {
				stats.Skipped++
				continue
			}
			stats.Updated++
		} else {
			stats.New++
		}
		s.Vulns[rec.ID] = rec
	}
	return stats, nil
}

func (s *Store) ApplyEpss(_ context.Context, scores []feeds.EpssScore) (feeds.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats feeds.Stats
	if s.Err != nil {
		return stats, s.Err
	}
	for _, score := range scores {
		if _, ok := s.Vulns[score.CveID]; !ok {
			stats.Skipped++
			continue
		}
		s.Epss[score.CveID] = score
		stats.Updated++
	}
	return stats, nil
}

func (s *Store) ApplyKev(_ context.Context, entries []feeds.KevEntry) (feeds.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats feeds.Stats
	if s.Err != nil {
		return stats, s.Err
	}
	for _, entry := range entries {
		if _, ok := s.Vulns[entry.CveID]; !ok {
			stats.Skipped++
			continue
		}
		s.Kev[entry.CveID] = entry
		stats.Updated++
	}
	return stats, nil
}

func (s *Store) UpsertEOLProducts(_ context.Context, products []model.EOLProduct) (feeds.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats feeds.Stats
	if s.Err != nil {
		return stats, s.Err
	}
	for _, product := range products {
		key := product.Product + "/" + product.Cycle
		if _, ok := s.EOL[key]; ok {
			stats.Updated++
		} else {
			stats.New++
		}
		s.EOL[key] = product
	}
	return stats, nil
}

func (s *Store) HighWaterMark(_ context.Context, source string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Marks[source], nil
}

func (s *Store) SetHighWaterMark(_ context.Context, source string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Marks[source] = t
	return nil
}

func (s *Store) SaveSyncRun(_ context.Context, run model.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i := range s.SyncRuns {
		if s.SyncRuns[i].Key == run.Key {
			s.SyncRuns[i] = run
			return nil
		}
	}
	s.SyncRuns = append(s.SyncRuns, run)
	return nil
}
