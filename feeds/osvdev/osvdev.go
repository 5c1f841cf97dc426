// Package osvdev syncs advisories from the OSV.dev per-ecosystem zip dumps
// (osv-vulnerabilities.storage.googleapis.com) into the vulnerability store.
package osvdev

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/osv-scanner/pkg/models"
	"golang.org/x/xerrors"

	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/util"
)

const (
	defaultURL = "https://osv-vulnerabilities.storage.googleapis.com/%s/all.zip"
	retry      = 3
)

var defaultEcosystems = []string{"npm", "PyPI", "Go", "Maven", "crates.io"}

type options struct {
	url        string
	ecosystems []string
	timeout    time.Duration
	retry      int
}

type Option func(*options)

func WithURL(url string) Option {
	return func(opts *options) { opts.url = url }
}

func WithEcosystems(ecosystems []string) Option {
	return func(opts *options) { opts.ecosystems = ecosystems }
}

func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) { opts.timeout = timeout }
}

func WithRetry(retry int) Option {
	return func(opts *options) { opts.retry = retry }
}

// Updater is the OSV.dev feed adapter.
type Updater struct {
	*options
}

func NewUpdater(opts ...Option) *Updater {
	o := &options{
		url:        defaultURL,
		ecosystems: defaultEcosystems,
		timeout:    60 * time.Second,
		retry:      retry,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Updater{options: o}
}

// Source implements feeds.Adapter.
func (u *Updater) Source() string {
	return "osv"
}

// Update downloads each ecosystem dump, converts entries to canonical records
// and upserts them. A malformed entry is skipped, not fatal.
func (u *Updater) Update(ctx context.Context, store feeds.Store) (feeds.Stats, error) {
	var stats feeds.Stats

	for _, eco := range u.ecosystems {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		url := fmt.Sprintf(u.url, eco)
		body, err := feeds.FetchURL(ctx, url, "", u.timeout, u.retry)
		if err != nil {
			return stats, xerrors.Errorf("failed to download OSV %s: %w", eco, err)
		}

		recs, skipped, err := parseZip(body)
		if err != nil {
			return stats, xerrors.Errorf("failed to parse OSV %s archive: %w", eco, err)
		}
		stats.Skipped += skipped

		batchStats, err := store.UpsertVulnerabilities(ctx, u.Source(), recs)
		if err != nil {
			return stats, xerrors.Errorf("failed to store OSV %s advisories: %w", eco, err)
		}
		stats.Add(batchStats)
	}

	if err := store.SetHighWaterMark(ctx, u.Source(), time.Now().UTC()); err != nil {
		return stats, xerrors.Errorf("failed to store high-water mark: %w", err)
	}

	return stats, nil
}

func parseZip(body []byte) (recs []model.VulnerabilityRecord, skipped int, err error) {
	reader, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, 0, xerrors.Errorf("invalid zip archive: %w", err)
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !strings.HasSuffix(file.Name, ".json") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			skipped++
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			skipped++
			continue
		}

		var entry models.Vulnerability
		if err := json.Unmarshal(data, &entry); err != nil {
			skipped++
			continue
		}
		if entry.ID == "" {
			skipped++
			continue
		}

		recs = append(recs, Convert(entry))
	}
	return recs, skipped, nil
}

// Convert maps one OSV entry to the canonical record shape. The canonical id
// prefers a CVE alias over the native OSV id so NVD and OSV data merge onto
// one document.
func Convert(entry models.Vulnerability) model.VulnerabilityRecord {
	rec := model.NewVulnerabilityRecord(canonicalID(entry))
	rec.Aliases = unionAliases(entry)
	rec.Summary = entry.Summary
	rec.Description = entry.Details
	rec.Affected = entry.Affected
	rec.Published = entry.Published
	rec.Modified = entry.Modified
	rec.Touch("osv", entry.Modified)

	for _, sev := range entry.Severity {
		if sev.Type != models.SeverityCVSSV3 && sev.Type != models.SeverityCVSSV4 {
			continue
		}
		if score := util.CalculateCVSSScore(sev.Score); score > rec.CvssScore {
			rec.CvssScore = score
			rec.CvssVector = sev.Score
		}
	}
	if rec.CvssVector != "" {
		rec.SeverityRating = util.GetSeverityRating(rec.CvssScore)
	}

	for _, ref := range entry.References {
		if referenceIsExploit(ref) {
			rec.ExploitEvidence = true
			break
		}
	}

	return *rec
}

func canonicalID(entry models.Vulnerability) string {
	for _, alias := range entry.Aliases {
		if strings.HasPrefix(strings.ToUpper(alias), "CVE-") {
			return strings.ToUpper(alias)
		}
	}
	return entry.ID
}

func unionAliases(entry models.Vulnerability) []string {
	seen := map[string]bool{canonicalID(entry): true}
	aliases := []string{entry.ID}
	seen[entry.ID] = true
	for _, alias := range entry.Aliases {
		upper := alias
		if strings.HasPrefix(strings.ToUpper(alias), "CVE-") {
			upper = strings.ToUpper(alias)
		}
		if !seen[upper] {
			seen[upper] = true
			aliases = append(aliases, upper)
		}
	}
	return aliases
}

func referenceIsExploit(ref models.Reference) bool {
	if ref.Type == models.ReferenceEvidence {
		return true
	}
	url := strings.ToLower(ref.URL)
	return strings.Contains(url, "exploit-db.com") ||
		strings.Contains(url, "metasploit") ||
		strings.Contains(url, "/poc")
}
