package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func amount(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func sample() *Dataset {
	schema := NewSchema(map[Field]int{FieldDate: 0, FieldCategory: 1, FieldRevenue: 2, FieldExpenses: 3})
	return NewDataset("ds", "sales.csv", []string{"Date", "Category", "Revenue", "Expenses"}, schema, []Record{
		{Values: []string{"2023-01-05", "A", "100", "50"}, Date: date("2023-01-05"), Category: "A", Revenue: amount(100), Expenses: amount(50)},
		{Values: []string{"2023-01-20", "B", "50", "10"}, Date: date("2023-01-20"), Category: "B", Revenue: amount(50), Expenses: amount(10)},
		{Values: []string{"2023-02-03", "A", "200", "70"}, Date: date("2023-02-03"), Category: "A", Revenue: amount(200), Expenses: amount(70)},
	})
}

func TestParsePeriod(t *testing.T) {
	tests := map[string]Period{
		"":          PeriodMonth,
		"month":     PeriodMonth,
		"Quarter":   PeriodQuarter,
		" year ":    PeriodYear,
		"fortnight": PeriodMonth,
		"M":         PeriodMonth,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePeriod(in), "input %q", in)
	}
}

func TestBucketEnd(t *testing.T) {
	tests := []struct {
		period Period
		in     string
		want   string
	}{
		{PeriodMonth, "2023-01-05", "2023-01-31"},
		{PeriodMonth, "2024-02-10", "2024-02-29"},
		{PeriodMonth, "2023-12-31", "2023-12-31"},
		{PeriodQuarter, "2023-01-05", "2023-03-31"},
		{PeriodQuarter, "2023-05-15", "2023-06-30"},
		{PeriodQuarter, "2023-11-01", "2023-12-31"},
		{PeriodYear, "2023-02-03", "2023-12-31"},
	}

	for _, tt := range tests {
		t.Run(string(tt.period)+"_"+tt.in, func(t *testing.T) {
			assert.Equal(t, date(tt.want), tt.period.BucketEnd(date(tt.in)))
		})
	}
}

func TestNextBucketEnd(t *testing.T) {
	assert.Equal(t, date("2023-02-28"), PeriodMonth.NextBucketEnd(date("2023-01-31")))
	assert.Equal(t, date("2024-03-31"), PeriodQuarter.NextBucketEnd(date("2023-12-31")))
	assert.Equal(t, date("2024-12-31"), PeriodYear.NextBucketEnd(date("2023-12-31")))
}

func TestSelectionKey(t *testing.T) {
	a := Selection{Period: PeriodMonth, Categories: []string{"B", "A"}}
	b := Selection{Period: PeriodMonth, Categories: []string{"A", "B"}}
	c := Selection{Period: PeriodQuarter, Categories: []string{"A", "B"}}

	assert.Equal(t, a.Key(), b.Key(), "category order does not matter")
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, []string{"B", "A"}, a.Categories, "FilterKey does not reorder the selection")

	assert.True(t, a.IsSelected("A"))
	assert.False(t, a.IsSelected("C"))
}

func TestFilterByCategories(t *testing.T) {
	ds := sample()

	assert.Same(t, ds, ds.FilterByCategories(nil))

	onlyA := ds.FilterByCategories([]string{"A"})
	require.Equal(t, 2, onlyA.Len())
	assert.Equal(t, ds.ID, onlyA.ID)
	assert.Equal(t, ds.Columns, onlyA.Columns)
	assert.Equal(t, 3, ds.Len(), "the source dataset is untouched")

	none := ds.FilterByCategories([]string{"a"})
	assert.Equal(t, 0, none.Len(), "matching is case-sensitive")
}

func TestCategoriesAndSums(t *testing.T) {
	ds := sample()

	assert.Equal(t, []string{"A", "B"}, ds.Categories())
	assert.True(t, decimal.NewFromInt(350).Equal(ds.SumRevenue()))
	assert.True(t, decimal.NewFromInt(130).Equal(ds.SumExpenses()))

	profit, ok := ds.Records[0].Profit()
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(50).Equal(profit))

	_, ok = Record{Revenue: amount(1)}.Profit()
	assert.False(t, ok)
}

func TestDateRange(t *testing.T) {
	ds := sample()
	assert.Equal(t, date("2023-01-05"), ds.MinDate())
	assert.Equal(t, date("2023-02-03"), ds.MaxDate())

	sorted := ds.SortByDate()
	require.Len(t, sorted, 3)
	assert.Equal(t, "B", sorted[1].Category)
}

func TestPaginate(t *testing.T) {
	ds := sample()

	assert.Equal(t, 2, ds.TotalPages(2))
	assert.Len(t, ds.Paginate(1, 2), 2)
	assert.Len(t, ds.Paginate(2, 2), 1)
	assert.Nil(t, ds.Paginate(3, 2))
	assert.Len(t, ds.Paginate(0, 0), 3, "invalid arguments fall back to the first page of ten")
}

func TestEmptyChart(t *testing.T) {
	c := EmptyChart("No date data")
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "No date data", c.TitleText())

	var missing *ChartResponse
	assert.True(t, missing.IsEmpty())
	assert.Equal(t, "", missing.TitleText())
}

func TestHistogramBinCenter(t *testing.T) {
	assert.Equal(t, 15.0, HistogramBin{Lower: 10, Upper: 20}.Center())
}
