package pipeline

import (
	"salesdash/internal/models"
)

// DefaultHistogramBins is the number of profit bins
const DefaultHistogramBins = 20

// ProfitValues returns revenue - expenses for every record where both are present
func ProfitValues(ds *models.Dataset) []float64 {
	var profits []float64
	for _, r := range ds.Records {
		if p, ok := r.Profit(); ok {
			profits = append(profits, p.InexactFloat64())
		}
	}
	return profits
}

// BinProfits splits values into n equal-width bins spanning [min, max].
// The last bin includes max. When every value is equal the bins are one unit wide,
// starting half a unit below the value.
func BinProfits(values []float64, n int) []models.HistogramBin {
	if len(values) == 0 {
		return nil
	}
	if n < 1 {
		n = DefaultHistogramBins
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	width := (hi - lo) / float64(n)
	if width == 0 {
		lo -= 0.5
		width = 1
	}

	bins := make([]models.HistogramBin, n)
	for i := range bins {
		bins[i].Lower = lo + float64(i)*width
		bins[i].Upper = lo + float64(i+1)*width
	}

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].Count++
	}
	return bins
}

// ProfitChart builds the profit distribution histogram
func ProfitChart(ds *models.Dataset, n int) *models.ChartResponse {
	if !ds.Schema.Has(models.FieldRevenue) || !ds.Schema.Has(models.FieldExpenses) {
		return models.EmptyChart(TitleNoProfit)
	}

	bins := BinProfits(ProfitValues(ds), n)

	centers := make([]float64, len(bins))
	counts := make([]int, len(bins))
	for i, b := range bins {
		centers[i] = b.Center()
		counts[i] = b.Count
	}

	return &models.ChartResponse{
		Data: []models.ChartData{
			{
				Type:   "bar",
				Name:   "Profit",
				X:      centers,
				Y:      counts,
				Marker: &models.ChartMarker{Color: colorProfit},
			},
		},
		Layout: models.ChartLayout{
			Title:  &models.ChartText{Text: "Profit distribution"},
			XAxis:  &models.ChartAxis{Title: &models.ChartText{Text: "Profit"}},
			YAxis:  &models.ChartAxis{Title: &models.ChartText{Text: "Count"}},
			BarGap: 0.1,
		},
	}
}
