package pipeline

import (
	"github.com/shopspring/decimal"

	"salesdash/internal/models"
)

const (
	colorRevenue  = "#22c55e"
	colorExpenses = "#ef4444"
	colorProfit   = "#3b82f6"
)

// Placeholder titles of charts that cannot be drawn
const (
	TitleNoDate           = "No date data"
	TitleNoRevenueExpense = "No revenue/expense data"
	TitleNoCategoryData   = "No category expense data"
	TitleNoProfit         = "Cannot compute profit"
)

// ResampleTimeSeries buckets dated records into calendar periods labelled by period end.
// Periods between the first and last observed bucket that have no records appear with zero totals.
// Records without a date are skipped.
func ResampleTimeSeries(ds *models.Dataset, period models.Period) []models.TimeSeriesPoint {
	sorted := ds.SortByDate()
	if len(sorted) == 0 {
		return nil
	}

	first := period.BucketEnd(sorted[0].Date)
	last := period.BucketEnd(sorted[len(sorted)-1].Date)

	var points []models.TimeSeriesPoint
	for end := first; !end.After(last); end = period.NextBucketEnd(end) {
		points = append(points, models.TimeSeriesPoint{
			PeriodEnd: end,
			Revenue:   decimal.Zero,
			Expenses:  decimal.Zero,
		})
	}

	i := 0
	for _, r := range sorted {
		end := period.BucketEnd(r.Date)
		for !points[i].PeriodEnd.Equal(end) {
			i++
		}
		p := &points[i]
		if r.Revenue.Valid {
			p.Revenue = p.Revenue.Add(r.Revenue.Decimal)
		}
		if r.Expenses.Valid {
			p.Expenses = p.Expenses.Add(r.Expenses.Decimal)
		}
		p.Records++
	}

	return points
}

// BuildTimeSeries returns the resampled points together with their chart.
// Points are nil when the chart is a placeholder.
func BuildTimeSeries(ds *models.Dataset, period models.Period) ([]models.TimeSeriesPoint, *models.ChartResponse) {
	if !ds.Schema.Has(models.FieldDate) {
		return nil, models.EmptyChart(TitleNoDate)
	}
	if !ds.Schema.Has(models.FieldRevenue) || !ds.Schema.Has(models.FieldExpenses) {
		return nil, models.EmptyChart(TitleNoRevenueExpense)
	}

	points := ResampleTimeSeries(ds, period)
	if len(points) == 0 {
		return nil, models.EmptyChart(TitleNoDate)
	}

	labels := make([]string, len(points))
	revenue := make([]float64, len(points))
	expenses := make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.PeriodEnd.Format("2006-01-02")
		revenue[i] = p.Revenue.InexactFloat64()
		expenses[i] = p.Expenses.InexactFloat64()
	}

	return points, &models.ChartResponse{
		Data: []models.ChartData{
			{
				Type: "scatter",
				Mode: "lines+markers",
				Name: "Revenue",
				X:    labels,
				Y:    revenue,
				Line: &models.ChartLine{Color: colorRevenue, Width: 2},
			},
			{
				Type: "scatter",
				Mode: "lines+markers",
				Name: "Expenses",
				X:    labels,
				Y:    expenses,
				Line: &models.ChartLine{Color: colorExpenses, Width: 2},
			},
		},
		Layout: models.ChartLayout{
			Title:     &models.ChartText{Text: "Revenue and expenses by " + period.Label()},
			XAxis:     &models.ChartAxis{Title: &models.ChartText{Text: period.Label() + " ending"}},
			YAxis:     &models.ChartAxis{Title: &models.ChartText{Text: "Amount"}},
			HoverMode: "x unified",
			Legend:    &models.ChartLegend{Title: &models.ChartText{Text: "Metric"}},
		},
	}
}
