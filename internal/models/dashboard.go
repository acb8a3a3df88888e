package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPISummary contains the headline numbers of the dashboard
type KPISummary struct {
	Revenue     decimal.Decimal `json:"revenue"`
	Expenses    decimal.Decimal `json:"expenses"`
	Profit      decimal.Decimal `json:"profit"`
	RecordCount int             `json:"record_count"`

	// Display strings, e.g. "1,234.50 ₽"
	RevenueText  string `json:"revenue_text"`
	ExpensesText string `json:"expenses_text"`
	ProfitText   string `json:"profit_text"`
}

// TimeSeriesPoint is one resampled bucket, labelled by its period end
type TimeSeriesPoint struct {
	PeriodEnd time.Time       `json:"period_end"`
	Revenue   decimal.Decimal `json:"revenue"`
	Expenses  decimal.Decimal `json:"expenses"`
	Records   int             `json:"records"`
}

// CategorySlice is the expense total of one category
type CategorySlice struct {
	Category string          `json:"category"`
	Expenses decimal.Decimal `json:"expenses"`
}

// HistogramBin is one equal-width profit bin; Upper is exclusive except for the last bin
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Center returns the midpoint of the bin
func (b HistogramBin) Center() float64 {
	return (b.Lower + b.Upper) / 2
}

// ChartData represents one Plotly trace
type ChartData struct {
	Type         string       `json:"type"`                   // bar, pie, scatter
	X            interface{}  `json:"x,omitempty"`            // x-axis values
	Y            interface{}  `json:"y,omitempty"`            // y-axis values
	Labels       []string     `json:"labels,omitempty"`       // for pie charts
	Values       []float64    `json:"values,omitempty"`       // for pie charts
	Name         string       `json:"name,omitempty"`         // series name
	Mode         string       `json:"mode,omitempty"`         // for scatter: lines, markers, lines+markers
	TextPosition string       `json:"textposition,omitempty"` // pie label placement
	TextInfo     string       `json:"textinfo,omitempty"`
	Marker       *ChartMarker `json:"marker,omitempty"`
	Line         *ChartLine   `json:"line,omitempty"`
}

// ChartMarker sets trace colors
type ChartMarker struct {
	Color string `json:"color,omitempty"`
}

// ChartLine sets line trace styling
type ChartLine struct {
	Color string `json:"color,omitempty"`
	Width int    `json:"width,omitempty"`
}

// ChartText is a Plotly title object
type ChartText struct {
	Text string `json:"text"`
}

// ChartAxis defines an axis title
type ChartAxis struct {
	Title *ChartText `json:"title,omitempty"`
}

// ChartLegend defines legend options
type ChartLegend struct {
	Title *ChartText `json:"title,omitempty"`
}

// ChartLayout defines Plotly layout options
type ChartLayout struct {
	Title     *ChartText   `json:"title,omitempty"`
	XAxis     *ChartAxis   `json:"xaxis,omitempty"`
	YAxis     *ChartAxis   `json:"yaxis,omitempty"`
	HoverMode string       `json:"hovermode,omitempty"` // x unified
	BarGap    float64      `json:"bargap,omitempty"`
	Legend    *ChartLegend `json:"legend,omitempty"`
}

// ChartResponse wraps chart data with layout options
type ChartResponse struct {
	Data   []ChartData `json:"data"`
	Layout ChartLayout `json:"layout"`
}

// EmptyChart returns a chart without traces, titled with the reason it is empty
func EmptyChart(title string) *ChartResponse {
	return &ChartResponse{
		Data:   []ChartData{},
		Layout: ChartLayout{Title: &ChartText{Text: title}},
	}
}

// IsEmpty reports whether the chart has no traces
func (c *ChartResponse) IsEmpty() bool {
	return c == nil || len(c.Data) == 0
}

// TitleText returns the layout title, if any
func (c *ChartResponse) TitleText() string {
	if c == nil || c.Layout.Title == nil {
		return ""
	}
	return c.Layout.Title.Text
}
