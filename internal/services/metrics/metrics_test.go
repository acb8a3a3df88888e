package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"salesdash/internal/models"
)

func salesDataset() *models.Dataset {
	schema := models.NewSchema(map[models.Field]int{
		models.FieldDate:     0,
		models.FieldCategory: 1,
		models.FieldRevenue:  2,
		models.FieldExpenses: 3,
	})
	row := func(date, cat string, rev, exp int64) models.Record {
		d, _ := time.Parse("2006-01-02", date)
		return models.Record{
			Values:   []string{date, cat, decimal.NewFromInt(rev).String(), decimal.NewFromInt(exp).String()},
			Date:     d,
			Category: cat,
			Revenue:  decimal.NewNullDecimal(decimal.NewFromInt(rev)),
			Expenses: decimal.NewNullDecimal(decimal.NewFromInt(exp)),
		}
	}
	return models.NewDataset("ds", "sales.csv", []string{"Date", "Category", "Revenue", "Expenses"}, schema, []models.Record{
		row("2024-01-05", "A", 100, 40),
		row("2024-01-20", "B", 50, 10),
		row("2024-02-01", "A", 200, 80),
	})
}

func TestSummarize(t *testing.T) {
	svc := New("₽")
	ds := salesDataset()

	t.Run("unfiltered", func(t *testing.T) {
		kpi := svc.Summarize(ds)
		assert.True(t, kpi.Revenue.Equal(decimal.NewFromInt(350)))
		assert.True(t, kpi.Expenses.Equal(decimal.NewFromInt(130)))
		assert.True(t, kpi.Profit.Equal(decimal.NewFromInt(220)))
		assert.Equal(t, 3, kpi.RecordCount)
		assert.Equal(t, "350.00 ₽", kpi.RevenueText)
		assert.Equal(t, "130.00 ₽", kpi.ExpensesText)
		assert.Equal(t, "220.00 ₽", kpi.ProfitText)
	})

	t.Run("category A", func(t *testing.T) {
		kpi := svc.Summarize(ds.FilterByCategories([]string{"A"}))
		assert.True(t, kpi.Revenue.Equal(decimal.NewFromInt(300)))
		assert.True(t, kpi.Expenses.Equal(decimal.NewFromInt(120)))
		assert.True(t, kpi.Profit.Equal(decimal.NewFromInt(180)))
	})
}

func TestSummarizeMissingColumns(t *testing.T) {
	svc := New("₽")
	ds := models.NewDataset("ds", "notes.csv", []string{"Note"}, models.NewSchema(nil), []models.Record{
		{Values: []string{"hello"}},
	})

	kpi := svc.Summarize(ds)
	assert.True(t, kpi.Revenue.IsZero())
	assert.True(t, kpi.Expenses.IsZero())
	assert.True(t, kpi.Profit.IsZero())
	assert.Equal(t, "0.00 ₽", kpi.ProfitText)
}

func TestProfitIdentityIsExact(t *testing.T) {
	schema := models.NewSchema(map[models.Field]int{models.FieldRevenue: 0, models.FieldExpenses: 1})
	var records []models.Record
	for i := 0; i < 10; i++ {
		records = append(records, models.Record{
			Revenue:  decimal.NewNullDecimal(decimal.RequireFromString("0.1")),
			Expenses: decimal.NewNullDecimal(decimal.RequireFromString("0.2")),
		})
	}
	ds := models.NewDataset("ds", "f.csv", []string{"Revenue", "Expenses"}, schema, records)

	kpi := New("").Summarize(ds)
	assert.True(t, kpi.Revenue.Sub(kpi.Expenses).Equal(kpi.Profit))
	assert.Equal(t, "-1", kpi.Profit.String())
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		currency string
		amount   string
		expected string
	}{
		{"₽", "1234.5", "1,234.50 ₽"},
		{"₽", "0", "0.00 ₽"},
		{"₽", "-987654.321", "-987,654.32 ₽"},
		{"$", "1000000", "1,000,000.00 $"},
		{"", "12.3", "12.30"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := New(tt.currency).FormatMoney(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.expected, got)
		})
	}
}
