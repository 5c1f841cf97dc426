// Package feeds defines the advisory feed contract and the sync registry.
// Each upstream source (OSV.dev, NVD, JVN, CISA KEV, FIRST EPSS, endoflife.date)
// gets its own adapter package; this package owns scheduling semantics such as
// per-source single-flight and sync run bookkeeping.
package feeds

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/model"
)

// Stats counts the outcome of one sync pass.
type Stats struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Add merges counts from a partial pass.
func (s *Stats) Add(other Stats) {
	s.New += other.New
	s.Updated += other.Updated
	s.Skipped += other.Skipped
}

// EpssScore is one row of the FIRST EPSS daily CSV.
type EpssScore struct {
	CveID      string
	Score      float64
	Percentile float64
}

// KevEntry is one catalog entry from CISA KEV.
type KevEntry struct {
	CveID         string
	DateAdded     time.Time
	DueDate       time.Time
	RansomwareUse bool
}

// Store is the persistence surface adapters write through. Every method is a
// single server-side batch statement so a failed pass never leaves a
// half-applied advisory visible.
type Store interface {
	// UpsertVulnerabilities merges advisory records by id, unioning aliases
	// and stamping source_updated_at for the given source. Records whose
	// upstream modification time is at or before the stored one are skipped.
	UpsertVulnerabilities(ctx context.Context, source string, recs []model.VulnerabilityRecord) (Stats, error)

	// ApplyEpss attaches scores to already-known vulnerabilities. Scores for
	// unknown CVE ids are skipped, not inserted.
	ApplyEpss(ctx context.Context, scores []EpssScore) (Stats, error)

	// ApplyKev flags already-known vulnerabilities as KEV-listed.
	ApplyKev(ctx context.Context, entries []KevEntry) (Stats, error)

	// UpsertEOLProducts replaces end-of-life rows by product and cycle.
	UpsertEOLProducts(ctx context.Context, products []model.EOLProduct) (Stats, error)

	// HighWaterMark returns the last successful sync cutoff for a source,
	// zero time when the source has never synced.
	HighWaterMark(ctx context.Context, source string) (time.Time, error)
	SetHighWaterMark(ctx context.Context, source string, t time.Time) error

	// SaveSyncRun inserts or updates a sync run row.
	SaveSyncRun(ctx context.Context, run model.SyncRun) error
}

// Adapter is one upstream feed source.
type Adapter interface {
	// Source is the stable identifier used in sync runs and high-water marks.
	Source() string
	// Update fetches the upstream feed and writes through the store.
	Update(ctx context.Context, store Store) (Stats, error)
}

// CompletedFunc is invoked after a successful sync, outside the registry lock.
// The main wiring uses it to publish the sync-completed event that triggers
// recorrelation.
type CompletedFunc func(source string, runID string, stats Stats)

// Registry coordinates sync execution across adapters. One sync per source
// runs at a time; a second trigger while one is in flight coalesces onto the
// running pass instead of queueing.
type Registry struct {
	mu       sync.Mutex
	running  map[string]string // source -> run id of the in-flight pass
	adapters map[string]Adapter

	store       Store
	onCompleted CompletedFunc
	baseCtx     context.Context
	logger      *zap.Logger
}

// NewRegistry builds a registry over the given store. baseCtx bounds the
// lifetime of background sync passes; cancel it on shutdown.
func NewRegistry(baseCtx context.Context, store Store, logger *zap.Logger, onCompleted CompletedFunc) *Registry {
	return &Registry{
		running:     make(map[string]string),
		adapters:    make(map[string]Adapter),
		store:       store,
		onCompleted: onCompleted,
		baseCtx:     baseCtx,
		logger:      logger,
	}
}

// Register adds an adapter. Last registration for a source wins.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Source()] = a
}

// Sources returns the registered source names.
func (r *Registry) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// Sync triggers a background pass for the named source. When a pass for that
// source is already in flight the existing run id is returned with
// coalesced=true and no new work is started.
func (r *Registry) Sync(source string) (runID string, coalesced bool, err error) {
	r.mu.Lock()
	adapter, ok := r.adapters[source]
	if !ok {
		r.mu.Unlock()
		return "", false, ErrUnknownSource
	}
	if id, inFlight := r.running[source]; inFlight {
		r.mu.Unlock()
		return id, true, nil
	}

	runID = uuid.New().String()
	r.running[source] = runID
	r.mu.Unlock()

	run := model.NewSyncRun(runID, source)
	if err := r.store.SaveSyncRun(r.baseCtx, *run); err != nil {
		r.mu.Lock()
		delete(r.running, source)
		r.mu.Unlock()
		return "", false, err
	}

	go r.execute(adapter, *run)

	return runID, false, nil
}

// Running reports the in-flight run id for a source, if any.
func (r *Registry) Running(source string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.running[source]
	return id, ok
}

func (r *Registry) execute(adapter Adapter, run model.SyncRun) {
	defer func() {
		r.mu.Lock()
		delete(r.running, adapter.Source())
		r.mu.Unlock()
	}()

	log := r.logger.Sugar().With("source", adapter.Source(), "run_id", run.Key)
	log.Infof("Feed sync started")

	stats, err := adapter.Update(r.baseCtx, r.store)
	run.New = stats.New
	run.Updated = stats.Updated
	run.Skipped = stats.Skipped

	if err != nil {
		run.Finish(err.Error())
		log.Errorf("Feed sync failed: %v", err)
	} else {
		run.Finish("")
		log.Infof("Feed sync completed: %d new, %d updated, %d skipped", stats.New, stats.Updated, stats.Skipped)
	}

	// The terminal save must land even when baseCtx was just cancelled,
	// otherwise the run row stays in running forever.
	if saveErr := r.store.SaveSyncRun(context.WithoutCancel(r.baseCtx), run); saveErr != nil {
		log.Errorf("Failed to persist sync run: %v", saveErr)
	}

	if err == nil && r.onCompleted != nil {
		r.onCompleted(adapter.Source(), run.Key, stats)
	}
}
