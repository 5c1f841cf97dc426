// Package eol syncs product lifecycle data from endoflife.date. Rows match
// components by product name alone, so end-of-life findings apply even to
// components without version evidence.
package eol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/xerrors"

	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/model"
)

const (
	defaultURL = "https://endoflife.date/api"
	retry      = 3
)

var defaultProducts = []string{
	"nodejs", "python", "go", "java", "dotnet",
	"debian", "alpine", "ubuntu", "postgresql", "mysql", "redis", "nginx",
}

type options struct {
	url      string
	products []string
	timeout  time.Duration
	retry    int
}

type Option func(*options)

func WithURL(url string) Option {
	return func(opts *options) { opts.url = url }
}

func WithProducts(products []string) Option {
	return func(opts *options) { opts.products = products }
}

func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) { opts.timeout = timeout }
}

func WithRetry(retry int) Option {
	return func(opts *options) { opts.retry = retry }
}

// Updater is the endoflife.date feed adapter.
type Updater struct {
	*options
}

func NewUpdater(opts ...Option) *Updater {
	o := &options{
		url:      defaultURL,
		products: defaultProducts,
		timeout:  60 * time.Second,
		retry:    retry,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Updater{options: o}
}

// Source implements feeds.Adapter.
func (u *Updater) Source() string {
	return "eol"
}

// cycle is one release line of a product. The eol field is polymorphic
// upstream: a date string, or a boolean for products that never announce
// dates.
type cycle struct {
	Cycle  string          `json:"cycle"`
	EOL    json.RawMessage `json:"eol"`
	Latest string          `json:"latest"`
}

// Update fetches each product's cycle list and upserts lifecycle rows.
func (u *Updater) Update(ctx context.Context, store feeds.Store) (feeds.Stats, error) {
	var stats feeds.Stats
	now := time.Now().UTC()

	var products []model.EOLProduct
	for _, name := range u.products {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		body, err := feeds.FetchURL(ctx, fmt.Sprintf("%s/%s.json", u.url, name), "", u.timeout, u.retry)
		if err != nil {
			return stats, xerrors.Errorf("failed to fetch EOL data for %s: %w", name, err)
		}

		var cycles []cycle
		if err := json.Unmarshal(body, &cycles); err != nil {
			return stats, xerrors.Errorf("failed to parse EOL data for %s: %w", name, err)
		}

		for _, c := range cycles {
			if c.Cycle == "" {
				stats.Skipped++
				continue
			}
			products = append(products, convert(name, c, now))
		}
	}

	applied, err := store.UpsertEOLProducts(ctx, products)
	if err != nil {
		return stats, xerrors.Errorf("failed to store EOL products: %w", err)
	}
	stats.Add(applied)

	if err := store.SetHighWaterMark(ctx, u.Source(), now); err != nil {
		return stats, xerrors.Errorf("failed to store high-water mark: %w", err)
	}

	return stats, nil
}

func convert(product string, c cycle, now time.Time) model.EOLProduct {
	row := model.EOLProduct{
		ObjType:   "EOLProduct",
		Product:   product,
		Cycle:     c.Cycle,
		Latest:    c.Latest,
		UpdatedAt: now,
	}

	var dateStr string
	var flag bool
	if err := json.Unmarshal(c.EOL, &dateStr); err == nil {
		if eolDate, ok := feeds.ParseDate(dateStr); ok {
			row.EOLDate = &eolDate
			row.IsEOL = !eolDate.After(now)
		}
	} else if err := json.Unmarshal(c.EOL, &flag); err == nil {
		row.IsEOL = flag
	}

	return row
}
