package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"

	"salesdash/internal/models"
)

// CategoryExpenses sums expenses per category in sorted category order.
// Records with a blank category are skipped.
func CategoryExpenses(ds *models.Dataset) []models.CategorySlice {
	totals := make(map[string]decimal.Decimal)
	for _, r := range ds.Records {
		if r.Category == "" {
			continue
		}
		sum := totals[r.Category]
		if r.Expenses.Valid {
			sum = sum.Add(r.Expenses.Decimal)
		}
		totals[r.Category] = sum
	}

	categories := make([]string, 0, len(totals))
	for c := range totals {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	slices := make([]models.CategorySlice, len(categories))
	for i, c := range categories {
		slices[i] = models.CategorySlice{Category: c, Expenses: totals[c]}
	}
	return slices
}

// CategoryChart builds the expense-by-category pie chart
func CategoryChart(ds *models.Dataset) *models.ChartResponse {
	if !ds.Schema.Has(models.FieldExpenses) || !ds.Schema.Has(models.FieldCategory) {
		return models.EmptyChart(TitleNoCategoryData)
	}

	slices := CategoryExpenses(ds)

	labels := make([]string, len(slices))
	values := make([]float64, len(slices))
	for i, s := range slices {
		labels[i] = s.Category
		values[i] = s.Expenses.InexactFloat64()
	}

	return &models.ChartResponse{
		Data: []models.ChartData{
			{
				Type:         "pie",
				Labels:       labels,
				Values:       values,
				TextPosition: "inside",
				TextInfo:     "percent+label",
			},
		},
		Layout: models.ChartLayout{
			Title: &models.ChartText{Text: "Expenses by category"},
		},
	}
}
