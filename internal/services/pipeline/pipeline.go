// Package pipeline turns a dataset and a selection into every dashboard view.
// One filter stage feeds independent projections that run in parallel; results
// are memoized per dataset and selection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"salesdash/internal/models"
	"salesdash/internal/services/metrics"
)

// Chart identifiers accepted by Views.Chart
const (
	ChartTimeSeries = "timeseries"
	ChartCategory   = "category"
	ChartProfit     = "profit"
)

// ChartTypes lists the chart identifiers in page order
var ChartTypes = []string{ChartTimeSeries, ChartCategory, ChartProfit}

// ErrUnknownChart is returned for chart identifiers outside ChartTypes
var ErrUnknownChart = errors.New("unknown chart type")

// Views is every projection of one filtered dataset
type Views struct {
	Selection  models.Selection         `json:"selection"`
	Dataset    *models.Dataset          `json:"-"`
	KPI        models.KPISummary        `json:"kpi"`
	Series     []models.TimeSeriesPoint `json:"series"`
	TimeSeries *models.ChartResponse    `json:"timeseries"`
	Category   *models.ChartResponse    `json:"category"`
	Profit     *models.ChartResponse    `json:"profit"`
}

// Chart returns the chart with the given identifier
func (v *Views) Chart(chartType string) (*models.ChartResponse, error) {
	switch chartType {
	case ChartTimeSeries:
		return v.TimeSeries, nil
	case ChartCategory:
		return v.Category, nil
	case ChartProfit:
		return v.Profit, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, chartType)
	}
}

// Options tunes projection and memoization
type Options struct {
	HistogramBins int
	CacheSize     int
	CacheTTL      time.Duration
}

// Pipeline computes and memoizes dashboard views
type Pipeline struct {
	metrics  *metrics.Service
	bins     int
	filtered *lruCache[*models.Dataset]
	views    *lruCache[*Views]
	log      zerolog.Logger
}

// New creates a pipeline
func New(m *metrics.Service, opts Options, log zerolog.Logger) *Pipeline {
	if opts.HistogramBins < 1 {
		opts.HistogramBins = DefaultHistogramBins
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}

	return &Pipeline{
		metrics:  m,
		bins:     opts.HistogramBins,
		filtered: newLRUCache[*models.Dataset](opts.CacheSize, opts.CacheTTL),
		views:    newLRUCache[*Views](opts.CacheSize, opts.CacheTTL),
		log:      log,
	}
}

// Filter applies the category selection, reusing an earlier result for the same dataset and filter
func (p *Pipeline) Filter(ds *models.Dataset, categories []string) *models.Dataset {
	if len(categories) == 0 {
		return ds
	}

	key := ds.ID + "\x1d" + models.Selection{Categories: categories}.FilterKey()
	if cached, ok := p.filtered.Get(key); ok {
		return cached
	}

	filtered := ds.FilterByCategories(categories)
	p.filtered.Set(key, filtered)
	return filtered
}

// Run filters the dataset once and computes every projection in parallel.
// A repeated (dataset, selection) pair is served from memory.
func (p *Pipeline) Run(ctx context.Context, ds *models.Dataset, sel models.Selection) (*Views, error) {
	key := ds.ID + "\x1d" + sel.Key()
	if cached, ok := p.views.Get(key); ok {
		p.log.Debug().Str("dataset", ds.ID).Str("period", string(sel.Period)).Msg("View cache hit")
		return cached, nil
	}

	start := time.Now()
	filtered := p.Filter(ds, sel.Categories)

	v := &Views{Selection: sel, Dataset: filtered}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		v.KPI = p.metrics.Summarize(filtered)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		v.Series, v.TimeSeries = BuildTimeSeries(filtered, sel.Period)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		v.Category = CategoryChart(filtered)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		v.Profit = ProfitChart(filtered, p.bins)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute views: %w", err)
	}

	p.views.Set(key, v)
	p.log.Debug().
		Str("dataset", ds.ID).
		Str("period", string(sel.Period)).
		Int("records", filtered.Len()).
		Dur("duration", time.Since(start)).
		Msg("Computed views")
	return v, nil
}

// CleanExpired drops expired memoized results
func (p *Pipeline) CleanExpired() int {
	return p.filtered.CleanExpired() + p.views.CleanExpired()
}
