// Package jvn syncs Japanese advisories from the JVN iPedia RSS feed
// (JVNRSS/RDF with the mod_sec extension). Entries without a parsable CVSS
// vector fall back to keyword severity rules, which is common for
// JPCERT-coordinated advisories published ahead of scoring.
package jvn

import (
	"context"
	"encoding/xml"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/riskhub/riskhub-backend/config"
	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/util"
)

const (
	defaultURL = "https://jvndb.jvn.jp/ja/rss/jvndb_new.rdf"
	retry      = 3
)

type options struct {
	url     string
	timeout time.Duration
	retry   int
	rules   []config.SeverityRule
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

func WithSeverityRules(rules []config.SeverityRule) Option {
	return func(opts *options) { opts.rules = rules }
}

// Updater is the JVN feed adapter.
type Updater struct {
	*options
}

func NewUpdater(opts ...Option) *Updater {
	o := &options{
		url:     defaultURL,
		timeout: 60 * time.Second,
		retry:   retry,
		rules:   config.Default().Severity.Keywords,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Updater{options: o}
}

// Source implements feeds.Adapter.
func (u *Updater) Source() string {
	return "jvn"
}

type rdfFeed struct {
	XMLName xml.Name  `xml:"RDF"`
	Items   []rdfItem `xml:"item"`
}

type rdfItem struct {
	Title       string         `xml:"title"`
	Link        string         `xml:"link"`
	Description string         `xml:"description"`
	Identifier  string         `xml:"identifier"`
	References  []rdfReference `xml:"references"`
	Cvss        []rdfCvss      `xml:"cvss"`
	Modified    string         `xml:"modified"`
	Date        string         `xml:"date"`
}

type rdfReference struct {
	Source string `xml:"source,attr"`
	ID     string `xml:"id,attr"`
	URL    string `xml:",chardata"`
}

type rdfCvss struct {
	Version  string `xml:"version,attr"`
	Score    string `xml:"score,attr"`
	Severity string `xml:"severity,attr"`
	Vector   string `xml:"vector,attr"`
}

// Update fetches the RSS feed and upserts converted records.
func (u *Updater) Update(ctx context.Context, store feeds.Store) (feeds.Stats, error) {
	var stats feeds.Stats

	body, err := feeds.FetchURL(ctx, u.url, "", u.timeout, u.retry)
	if err != nil {
		return stats, xerrors.Errorf("failed to fetch JVN feed: %w", err)
	}

	recs, skipped, err := u.parse(body)
	if err != nil {
		return stats, xerrors.Errorf("failed to parse JVN feed: %w", err)
	}
	stats.Skipped += skipped

	applied, err := store.UpsertVulnerabilities(ctx, u.Source(), recs)
	if err != nil {
		return stats, xerrors.Errorf("failed to store JVN advisories: %w", err)
	}
	stats.Add(applied)

	if err := store.SetHighWaterMark(ctx, u.Source(), time.Now().UTC()); err != nil {
		return stats, xerrors.Errorf("failed to store high-water mark: %w", err)
	}

	return stats, nil
}

func (u *Updater) parse(body []byte) (recs []model.VulnerabilityRecord, skipped int, err error) {
	var feed rdfFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, 0, xerrors.Errorf("invalid RDF document: %w", err)
	}

	for _, item := range feed.Items {
		if item.Identifier == "" {
			skipped++
			continue
		}
		recs = append(recs, u.convert(item))
	}
	return recs, skipped, nil
}

func (u *Updater) convert(item rdfItem) model.VulnerabilityRecord {
	id, aliases := identity(item)
	rec := model.NewVulnerabilityRecord(id)
	rec.Aliases = aliases
	rec.Summary = item.Title
	rec.Description = item.Description

	for _, cvss := range item.Cvss {
		if cvss.Vector == "" {
			continue
		}
		if score := util.CalculateCVSSScore(cvss.Vector); score > rec.CvssScore {
			rec.CvssScore = score
			rec.CvssVector = cvss.Vector
		}
	}
	if rec.CvssVector != "" {
		rec.SeverityRating = util.GetSeverityRating(rec.CvssScore)
	} else {
		rec.SeverityRating = feeds.SeverityFromText(u.rules, item.Title+" "+item.Description)
	}

	stamp := item.Modified
	if stamp == "" {
		stamp = item.Date
	}
	modified, ok := feeds.ParseDate(stamp)
	rec.Modified = modified
	if !ok {
		rec.Summary = strings.TrimSpace(feeds.DateErrorMarker + " " + rec.Summary)
	}
	rec.Touch("jvn", modified)

	return *rec
}

// identity prefers a CVE reference over the JVNDB identifier so advisories
// merge with NVD and OSV data. CVE ids mentioned anywhere in the entry become
// aliases.
func identity(item rdfItem) (id string, aliases []string) {
	var cves []string
	for _, ref := range item.References {
		if strings.EqualFold(ref.Source, "CVE") && ref.ID != "" {
			cves = append(cves, strings.ToUpper(ref.ID))
		}
	}
	cves = append(cves, feeds.ExtractCVEIDs(item.Description)...)

	seen := map[string]bool{item.Identifier: true}
	aliases = []string{item.Identifier}
	for _, cve := range cves {
		if !seen[cve] {
			seen[cve] = true
			aliases = append(aliases, cve)
		}
	}

	for _, alias := range aliases {
		if strings.HasPrefix(alias, "CVE-") {
			return alias, aliases
		}
	}
	return item.Identifier, aliases
}
