// Package nvd syncs CVE records from the NVD 2.0 REST API. NVD contributes
// authoritative CVSS vectors and descriptions; affected ranges come from OSV,
// so this adapter enriches rather than drives correlation.
package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/util"
)

const (
	defaultURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	retry      = 3
	// pageSize is the NVD maximum resultsPerPage.
	pageSize = 2000
	// backfillWindow bounds the first sync when no high-water mark exists.
	backfillWindow = 120 * 24 * time.Hour
)

type options struct {
	url     string
	apiKey  string
	timeout time.Duration
	retry   int
}

type Option func(*options)

func WithURL(url string) Option {
	return func(opts *options) { opts.url = url }
}

func WithAPIKey(key string) Option {
	return func(opts *options) { opts.apiKey = key }
}

func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) { opts.timeout = timeout }
}

func WithRetry(retry int) Option {
	return func(opts *options) { opts.retry = retry }
}

// Updater is the NVD feed adapter.
type Updater struct {
	*options
}

func NewUpdater(opts ...Option) *Updater {
	o := &options{
		url:     defaultURL,
		apiKey:  util.GetEnvDefault("NVD_API_KEY", ""),
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
	return "nvd"
}

// apiResponse is the page envelope of the 2.0 API.
type apiResponse struct {
	ResultsPerPage  int       `json:"resultsPerPage"`
	StartIndex      int       `json:"startIndex"`
	TotalResults    int       `json:"totalResults"`
	Vulnerabilities []cveItem `json:"vulnerabilities"`
}

type cveItem struct {
	Cve cveDetail `json:"cve"`
}

type cveDetail struct {
	ID           string `json:"id"`
	Published    string `json:"published"`
	LastModified string `json:"lastModified"`
	Descriptions []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics struct {
		CvssMetricV40 []cvssMetric `json:"cvssMetricV40"`
		CvssMetricV31 []cvssMetric `json:"cvssMetricV31"`
		CvssMetricV30 []cvssMetric `json:"cvssMetricV30"`
	} `json:"metrics"`
	References []struct {
		URL  string   `json:"url"`
		Tags []string `json:"tags"`
	} `json:"references"`
}

type cvssMetric struct {
	CvssData struct {
		VectorString string  `json:"vectorString"`
		BaseScore    float64 `json:"baseScore"`
	} `json:"cvssData"`
}

// Update pages through CVEs modified since the last high-water mark.
func (u *Updater) Update(ctx context.Context, store feeds.Store) (feeds.Stats, error) {
	var stats feeds.Stats

	since, err := store.HighWaterMark(ctx, u.Source())
	if err != nil {
		return stats, xerrors.Errorf("failed to read high-water mark: %w", err)
	}
	now := time.Now().UTC()
	if since.IsZero() {
		since = now.Add(-backfillWindow)
	}

	startIndex := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		url := fmt.Sprintf("%s?resultsPerPage=%d&startIndex=%d&lastModStartDate=%s&lastModEndDate=%s",
			u.url, pageSize, startIndex,
			since.Format("2006-01-02T15:04:05.000"), now.Format("2006-01-02T15:04:05.000"))

		body, err := feeds.FetchURL(ctx, url, u.apiKey, u.timeout, u.retry)
		if err != nil {
			return stats, xerrors.Errorf("failed to fetch NVD page at %d: %w", startIndex, err)
		}

		var page apiResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return stats, xerrors.Errorf("failed to parse NVD response: %w", err)
		}

		recs, skipped := convertPage(page)
		stats.Skipped += skipped

		if len(recs) > 0 {
			batchStats, err := store.UpsertVulnerabilities(ctx, u.Source(), recs)
			if err != nil {
				return stats, xerrors.Errorf("failed to store NVD records: %w", err)
			}
			stats.Add(batchStats)
		}

		startIndex += pageSize
		if startIndex >= page.TotalResults {
			break
		}
	}

	if err := store.SetHighWaterMark(ctx, u.Source(), now); err != nil {
		return stats, xerrors.Errorf("failed to store high-water mark: %w", err)
	}

	return stats, nil
}

func convertPage(page apiResponse) (recs []model.VulnerabilityRecord, skipped int) {
	for _, item := range page.Vulnerabilities {
		if item.Cve.ID == "" {
			skipped++
			continue
		}
		recs = append(recs, convert(item.Cve))
	}
	return recs, skipped
}

func convert(cve cveDetail) model.VulnerabilityRecord {
	rec := model.NewVulnerabilityRecord(strings.ToUpper(cve.ID))
	rec.Aliases = []string{rec.ID}

	for _, desc := range cve.Descriptions {
		if desc.Lang == "en" {
			rec.Description = desc.Value
			break
		}
	}

	// Highest listed score wins, newest CVSS version first.
	for _, group := range [][]cvssMetric{cve.Metrics.CvssMetricV40, cve.Metrics.CvssMetricV31, cve.Metrics.CvssMetricV30} {
		for _, metric := range group {
			if metric.CvssData.BaseScore > rec.CvssScore {
				rec.CvssScore = metric.CvssData.BaseScore
				rec.CvssVector = metric.CvssData.VectorString
			}
		}
	}
	if rec.CvssVector != "" {
		rec.SeverityRating = util.GetSeverityRating(rec.CvssScore)
	}

	for _, ref := range cve.References {
		for _, tag := range ref.Tags {
			if strings.EqualFold(tag, "Exploit") {
				rec.ExploitEvidence = true
			}
		}
	}

	if published, ok := feeds.ParseDate(cve.Published); ok {
		rec.Published = published
	}
	modified, ok := feeds.ParseDate(cve.LastModified)
	rec.Modified = modified
	if !ok {
		rec.Summary = strings.TrimSpace(feeds.DateErrorMarker + " " + rec.Summary)
	}
	rec.Touch("nvd", modified)

	return *rec
}
