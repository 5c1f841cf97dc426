// Package epss syncs the FIRST EPSS daily score file. The file is a
// gzip-compressed CSV with a leading comment line carrying the model version
// and score date.
package epss

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/riskhub/riskhub-backend/feeds"
)

const (
	defaultURL = "https://epss.cyentia.com/epss_scores-current.csv.gz"
	retry      = 3
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

// Updater is the FIRST EPSS feed adapter.
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
	return "epss"
}

// Update fetches the score file and applies rows to known vulnerabilities.
func (u *Updater) Update(ctx context.Context, store feeds.Store) (feeds.Stats, error) {
	var stats feeds.Stats

	body, err := feeds.FetchURL(ctx, u.url, "", u.timeout, u.retry)
	if err != nil {
		return stats, xerrors.Errorf("failed to fetch EPSS scores: %w", err)
	}

	scores, skipped, err := Parse(body)
	if err != nil {
		return stats, xerrors.Errorf("failed to parse EPSS scores: %w", err)
	}
	stats.Skipped += skipped

	applied, err := store.ApplyEpss(ctx, scores)
	if err != nil {
		return stats, xerrors.Errorf("failed to apply EPSS scores: %w", err)
	}
	stats.Add(applied)

	if err := store.SetHighWaterMark(ctx, u.Source(), time.Now().UTC()); err != nil {
		return stats, xerrors.Errorf("failed to store high-water mark: %w", err)
	}

	return stats, nil
}

// Parse decodes the score file. Input may be gzip-compressed or plain CSV.
// Malformed rows are skipped and counted, not fatal.
func Parse(body []byte) (scores []feeds.EpssScore, skipped int, err error) {
	var reader io.Reader = bytes.NewReader(body)
	if gz, gzErr := gzip.NewReader(bytes.NewReader(body)); gzErr == nil {
		reader = gz
		defer gz.Close()
	}

	cr := csv.NewReader(reader)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(row) < 3 || strings.EqualFold(row[0], "cve") {
			continue
		}

		score, scoreErr := strconv.ParseFloat(row[1], 64)
		percentile, pctErr := strconv.ParseFloat(row[2], 64)
		if scoreErr != nil || pctErr != nil || !strings.HasPrefix(strings.ToUpper(row[0]), "CVE-") {
			skipped++
			continue
		}

		scores = append(scores, feeds.EpssScore{
			CveID:      strings.ToUpper(row[0]),
			Score:      score,
			Percentile: percentile,
		})
	}

	return scores, skipped, nil
}
