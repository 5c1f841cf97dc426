// Package kev syncs the CISA Known Exploited Vulnerabilities catalog. Catalog
// membership drives the SSVC exploitation auto-derivation, so entries only
// flag vulnerabilities that already exist in the store.
package kev

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/riskhub/riskhub-backend/feeds"
)

const (
	defaultURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"
	retry      = 5
)

type options struct {
	url     string
	timeout time.Duration
	retry   int
}

type Option func(*options)

func WithURL(url string) Option {
	return func(opts *options) { opts.url = url }
}

func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) { opts.timeout = timeout }
}

func WithRetry(retry int) Option {
	return func(opts *options) { opts.retry = retry }
}

// Updater is the CISA KEV feed adapter.
type Updater struct {
	*options
}

func NewUpdater(opts ...Option) *Updater {
	o := &options{
		url:     defaultURL,
		timeout: 60 * time.Second,
		retry:   retry,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Updater{options: o}
}

// Source implements feeds.Adapter.
func (u *Updater) Source() string {
	return "kev"
}

type catalog struct {
	Count           int            `json:"count"`
	Vulnerabilities []catalogEntry `json:"vulnerabilities"`
}

type catalogEntry struct {
	CveID                      string `json:"cveID"`
	DateAdded                  string `json:"dateAdded"`
	DueDate                    string `json:"dueDate"`
	KnownRansomwareCampaignUse string `json:"knownRansomwareCampaignUse"`
}

// Update fetches the catalog and flags matching vulnerabilities.
func (u *Updater) Update(ctx context.Context, store feeds.Store) (feeds.Stats, error) {
	var stats feeds.Stats

	body, err := feeds.FetchURL(ctx, u.url, "", u.timeout, u.retry)
	if err != nil {
		return stats, xerrors.Errorf("failed to fetch KEV catalog: %w", err)
	}

	var cat catalog
	if err := json.Unmarshal(body, &cat); err != nil {
		return stats, xerrors.Errorf("failed to parse KEV catalog: %w", err)
	}
	if cat.Count != len(cat.Vulnerabilities) {
		return stats, xerrors.Errorf("KEV catalog count mismatch: count %d, entries %d", cat.Count, len(cat.Vulnerabilities))
	}

	entries := make([]feeds.KevEntry, 0, len(cat.Vulnerabilities))
	for _, vuln := range cat.Vulnerabilities {
		if vuln.CveID == "" {
			stats.Skipped++
			continue
		}
		entry := feeds.KevEntry{
			CveID:         strings.ToUpper(vuln.CveID),
			RansomwareUse: strings.EqualFold(vuln.KnownRansomwareCampaignUse, "Known"),
		}
		if added, ok := feeds.ParseDate(vuln.DateAdded); ok {
			entry.DateAdded = added
		}
		if due, ok := feeds.ParseDate(vuln.DueDate); ok {
			entry.DueDate = due
		}
		entries = append(entries, entry)
	}

	applied, err := store.ApplyKev(ctx, entries)
	if err != nil {
		return stats, xerrors.Errorf("failed to apply KEV entries: %w", err)
	}
	stats.Add(applied)

	if err := store.SetHighWaterMark(ctx, u.Source(), time.Now().UTC()); err != nil {
		return stats, xerrors.Errorf("failed to store high-water mark: %w", err)
	}

	return stats, nil
}
