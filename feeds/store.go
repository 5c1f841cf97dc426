package feeds

import (
	"context"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"golang.org/x/xerrors"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
)

// batchSize bounds how many records go into one AQL statement. Each statement
// executes atomically server-side, so a batch either lands whole or not at all.
const batchSize = 500

// ArangoStore is the Store implementation over ArangoDB.
type ArangoStore struct {
	db arangodb.Database
}

// NewArangoStore wraps a database handle.
func NewArangoStore(db arangodb.Database) *ArangoStore {
	return &ArangoStore{db: db}
}

// UpsertVulnerabilities merges advisory records by canonical id. Aliases are
// unioned and per-source update stamps merged rather than replaced, so OSV and
// NVD data for the same CVE accumulate on one document. Records not newer than
// the stored per-source stamp count as skipped.
func (s *ArangoStore) UpsertVulnerabilities(ctx context.Context, source string, recs []model.VulnerabilityRecord) (Stats, error) {
	var stats Stats

	query := `
		FOR rec IN @records
			LET existing = FIRST(FOR v IN vulnerability FILTER v.id == rec.id LIMIT 1 RETURN v)
			LET prior = existing == null ? null : existing.source_updated_at[@source]
			FILTER prior == null OR DATE_TIMESTAMP(rec.modified) > DATE_TIMESTAMP(prior)
			UPSERT { id: rec.id }
				INSERT rec
				UPDATE MERGE(rec, {
					aliases: UNIQUE(APPEND(NOT_NULL(OLD.aliases, []), NOT_NULL(rec.aliases, []))),
					source_updated_at: MERGE(NOT_NULL(OLD.source_updated_at, {}), NOT_NULL(rec.source_updated_at, {})),
					epss_score: NOT_NULL(OLD.epss_score, rec.epss_score),
					epss_percentile: NOT_NULL(OLD.epss_percentile, rec.epss_percentile),
					kev_listed: OLD.kev_listed == true ? true : rec.kev_listed
				}) IN vulnerability
			RETURN existing == null ? "new" : "updated"
	`

	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		for i := range batch {
			if batch[i].Key == "" {
				batch[i].Key = normalize.SanitizeKey(batch[i].ID)
			}
		}

		cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]interface{}{
				"records": batch,
				"source":  source,
			},
		})
		if err != nil {
			return stats, xerrors.Errorf("failed to upsert vulnerabilities: %w", err)
		}

		applied := 0
		for cursor.HasMore() {
			var op string
			if _, err := cursor.ReadDocument(ctx, &op); err != nil {
				cursor.Close()
				return stats, xerrors.Errorf("failed to read upsert result: %w", err)
			}
			applied++
			if op == "new" {
				stats.New++
			} else {
				stats.Updated++
			}
		}
		cursor.Close()
		stats.Skipped += len(batch) - applied
	}

	return stats, nil
}

// ApplyEpss attaches EPSS scores to known vulnerabilities, matching on the
// canonical id or any alias. Unknown CVE ids count as skipped.
func (s *ArangoStore) ApplyEpss(ctx context.Context, scores []EpssScore) (Stats, error) {
	var stats Stats

	query := `
		FOR row IN @scores
			FOR v IN vulnerability
				FILTER v.id == row.cve_id OR row.cve_id IN NOT_NULL(v.aliases, [])
				UPDATE v WITH {
					epss_score: row.score,
					epss_percentile: row.percentile
				} IN vulnerability
				RETURN row.cve_id
	`

	type epssRow struct {
		CveID      string  `json:"cve_id"`
		Score      float64 `json:"score"`
		Percentile float64 `json:"percentile"`
	}

	for start := 0; start < len(scores); start += batchSize {
		end := start + batchSize
		if end > len(scores) {
			end = len(scores)
		}

		rows := make([]epssRow, 0, end-start)
		for _, sc := range scores[start:end] {
			rows = append(rows, epssRow{CveID: sc.CveID, Score: sc.Score, Percentile: sc.Percentile})
		}

		cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]interface{}{"scores": rows},
		})
		if err != nil {
			return stats, xerrors.Errorf("failed to apply EPSS scores: %w", err)
		}

		matched := make(map[string]bool)
		for cursor.HasMore() {
			var id string
			if _, err := cursor.ReadDocument(ctx, &id); err != nil {
				cursor.Close()
				return stats, xerrors.Errorf("failed to read EPSS result: %w", err)
			}
			matched[id] = true
		}
		cursor.Close()

		stats.Updated += len(matched)
		stats.Skipped += (end - start) - len(matched)
	}

	return stats, nil
}

// ApplyKev flags known vulnerabilities as KEV-listed with catalog metadata.
func (s *ArangoStore) ApplyKev(ctx context.Context, entries []KevEntry) (Stats, error) {
	var stats Stats

	query := `
		FOR row IN @entries
			FOR v IN vulnerability
				FILTER v.id == row.cve_id OR row.cve_id IN NOT_NULL(v.aliases, [])
				UPDATE v WITH {
					kev_listed: true,
					kev_date_added: row.date_added,
					kev_due_date: row.due_date,
					kev_ransomware_use: row.ransomware_use
				} IN vulnerability
				RETURN row.cve_id
	`

	type kevRow struct {
		CveID         string     `json:"cve_id"`
		DateAdded     *time.Time `json:"date_added,omitempty"`
		DueDate       *time.Time `json:"due_date,omitempty"`
		RansomwareUse bool       `json:"ransomware_use"`
	}

	for start := 0; start < len(entries); start += batchSize {
		end := start + batchSize
		if end > len(entries) {
			end = len(entries)
		}

		rows := make([]kevRow, 0, end-start)
		for _, e := range entries[start:end] {
			row := kevRow{CveID: e.CveID, RansomwareUse: e.RansomwareUse}
			if !e.DateAdded.IsZero() {
				added := e.DateAdded
				row.DateAdded = &added
			}
			if !e.DueDate.IsZero() {
				due := e.DueDate
				row.DueDate = &due
			}
			rows = append(rows, row)
		}

		cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]interface{}{"entries": rows},
		})
		if err != nil {
			return stats, xerrors.Errorf("failed to apply KEV entries: %w", err)
		}

		matched := make(map[string]bool)
		for cursor.HasMore() {
			var id string
			if _, err := cursor.ReadDocument(ctx, &id); err != nil {
				cursor.Close()
				return stats, xerrors.Errorf("failed to read KEV result: %w", err)
			}
			matched[id] = true
		}
		cursor.Close()

		stats.Updated += len(matched)
		stats.Skipped += (end - start) - len(matched)
	}

	return stats, nil
}

// UpsertEOLProducts replaces end-of-life rows by product and cycle.
func (s *ArangoStore) UpsertEOLProducts(ctx context.Context, products []model.EOLProduct) (Stats, error) {
	var stats Stats

	query := `
		FOR p IN @products
			UPSERT { product: p.product, cycle: p.cycle }
				INSERT p
				UPDATE p IN eol_product
			RETURN OLD == null ? "new" : "updated"
	`

	for start := 0; start < len(products); start += batchSize {
		end := start + batchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]

		for i := range batch {
			if batch[i].Key == "" {
				batch[i].Key = normalize.SanitizeKey(batch[i].Product + "_" + batch[i].Cycle)
			}
		}

		cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]interface{}{"products": batch},
		})
		if err != nil {
			return stats, xerrors.Errorf("failed to upsert EOL products: %w", err)
		}

		for cursor.HasMore() {
			var op string
			if _, err := cursor.ReadDocument(ctx, &op); err != nil {
				cursor.Close()
				return stats, xerrors.Errorf("failed to read EOL result: %w", err)
			}
			if op == "new" {
				stats.New++
			} else {
				stats.Updated++
			}
		}
		cursor.Close()
	}

	return stats, nil
}

// HighWaterMark returns the last successful sync cutoff for a source.
func (s *ArangoStore) HighWaterMark(ctx context.Context, source string) (time.Time, error) {
	query := `
		FOR m IN metadata
			FILTER m._key == @key
			LIMIT 1
			RETURN m.last_sync
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"key": hwmKey(source)},
	})
	if err != nil {
		return time.Time{}, xerrors.Errorf("failed to read high-water mark: %w", err)
	}
	defer cursor.Close()

	if cursor.HasMore() {
		var last time.Time
		if _, err := cursor.ReadDocument(ctx, &last); err != nil {
			return time.Time{}, xerrors.Errorf("failed to read high-water mark: %w", err)
		}
		return last, nil
	}
	return time.Time{}, nil
}

// SetHighWaterMark stores the sync cutoff for a source.
func (s *ArangoStore) SetHighWaterMark(ctx context.Context, source string, t time.Time) error {
	query := `
		UPSERT { _key: @key }
			INSERT { _key: @key, objtype: "Metadata", source: @source, last_sync: @last }
			UPDATE { last_sync: @last } IN metadata
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"key":    hwmKey(source),
			"source": source,
			"last":   t.UTC(),
		},
	})
	if err != nil {
		return xerrors.Errorf("failed to set high-water mark: %w", err)
	}
	cursor.Close()
	return nil
}

// SaveSyncRun inserts or updates a sync run row keyed by run id.
func (s *ArangoStore) SaveSyncRun(ctx context.Context, run model.SyncRun) error {
	query := `
		UPSERT { _key: @key }
			INSERT @run
			UPDATE @run IN sync_run
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"key": run.Key,
			"run": run,
		},
	})
	if err != nil {
		return xerrors.Errorf("failed to save sync run: %w", err)
	}
	cursor.Close()
	return nil
}

func hwmKey(source string) string {
	return normalize.SanitizeKey("feed_hwm_" + source)
}
