package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Field is a semantic column the dashboard understands
type Field string

const (
	FieldDate     Field = "Date"
	FieldCategory Field = "Category"
	FieldRevenue  Field = "Revenue"
	FieldExpenses Field = "Expenses"
)

// Fields lists every semantic field in a stable order
var Fields = []Field{FieldDate, FieldCategory, FieldRevenue, FieldExpenses}

// Schema records which header position backs each semantic field.
// It is resolved once at ingestion; views only ask whether a field exists.
type Schema struct {
	index map[Field]int
}

// NewSchema builds a schema from a field -> column index map
func NewSchema(index map[Field]int) Schema {
	copied := make(map[Field]int, len(index))
	for f, i := range index {
		copied[f] = i
	}
	return Schema{index: copied}
}

// Has reports whether the field resolved to a column
func (s Schema) Has(f Field) bool {
	_, ok := s.index[f]
	return ok
}

// Index returns the column position of a field
func (s Schema) Index(f Field) (int, bool) {
	i, ok := s.index[f]
	return i, ok
}

// Record is one uploaded row: every raw cell plus the typed semantic values
type Record struct {
	Values   []string            `json:"values"`
	Date     time.Time           `json:"date"`
	Category string              `json:"category"`
	Revenue  decimal.NullDecimal `json:"revenue"`
	Expenses decimal.NullDecimal `json:"expenses"`
}

// HasDate reports whether the row carried a date value
func (r Record) HasDate() bool {
	return !r.Date.IsZero()
}

// Profit returns revenue minus expenses when both values are present
func (r Record) Profit() (decimal.Decimal, bool) {
	if !r.Revenue.Valid || !r.Expenses.Valid {
		return decimal.Zero, false
	}
	return r.Revenue.Decimal.Sub(r.Expenses.Decimal), true
}

// Dataset is an immutable, ordered set of records sharing one header.
// New uploads replace a Dataset; nothing mutates one in place.
type Dataset struct {
	ID      string   `json:"id"`
	Source  string   `json:"source"`
	Columns []string `json:"columns"`
	Schema  Schema   `json:"-"`
	Records []Record `json:"records"`
}

// NewDataset creates a Dataset from parsed records
func NewDataset(id, source string, columns []string, schema Schema, records []Record) *Dataset {
	return &Dataset{
		ID:      id,
		Source:  source,
		Columns: columns,
		Schema:  schema,
		Records: records,
	}
}

// Len returns the number of records
func (ds *Dataset) Len() int {
	return len(ds.Records)
}

// derive returns a dataset with the same identity and header but other rows
func (ds *Dataset) derive(records []Record) *Dataset {
	return &Dataset{
		ID:      ds.ID,
		Source:  ds.Source,
		Columns: ds.Columns,
		Schema:  ds.Schema,
		Records: records,
	}
}

// FilterByCategories keeps records whose category is in selected.
// An empty selection, or a dataset without a category column, is returned unchanged.
// Matching is exact and case-sensitive.
func (ds *Dataset) FilterByCategories(selected []string) *Dataset {
	if len(selected) == 0 || !ds.Schema.Has(FieldCategory) {
		return ds
	}

	wanted := make(map[string]bool, len(selected))
	for _, c := range selected {
		wanted[c] = true
	}

	var kept []Record
	for _, r := range ds.Records {
		if wanted[r.Category] {
			kept = append(kept, r)
		}
	}
	return ds.derive(kept)
}

// Categories returns the distinct non-blank categories in first-appearance order
func (ds *Dataset) Categories() []string {
	if !ds.Schema.Has(FieldCategory) {
		return []string{}
	}

	seen := make(map[string]bool)
	cats := []string{}
	for _, r := range ds.Records {
		if r.Category == "" || seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		cats = append(cats, r.Category)
	}
	return cats
}

// SumRevenue totals the revenue column; zero when the column is absent
func (ds *Dataset) SumRevenue() decimal.Decimal {
	sum := decimal.Zero
	if !ds.Schema.Has(FieldRevenue) {
		return sum
	}
	for _, r := range ds.Records {
		if r.Revenue.Valid {
			sum = sum.Add(r.Revenue.Decimal)
		}
	}
	return sum
}

// SumExpenses totals the expenses column; zero when the column is absent
func (ds *Dataset) SumExpenses() decimal.Decimal {
	sum := decimal.Zero
	if !ds.Schema.Has(FieldExpenses) {
		return sum
	}
	for _, r := range ds.Records {
		if r.Expenses.Valid {
			sum = sum.Add(r.Expenses.Decimal)
		}
	}
	return sum
}

// SortByDate returns the dated records ordered by date (stable, ascending)
func (ds *Dataset) SortByDate() []Record {
	sorted := make([]Record, 0, len(ds.Records))
	for _, r := range ds.Records {
		if r.HasDate() {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// MinDate returns the earliest record date
func (ds *Dataset) MinDate() time.Time {
	var minDate time.Time
	for _, r := range ds.Records {
		if r.HasDate() && (minDate.IsZero() || r.Date.Before(minDate)) {
			minDate = r.Date
		}
	}
	return minDate
}

// MaxDate returns the latest record date
func (ds *Dataset) MaxDate() time.Time {
	var maxDate time.Time
	for _, r := range ds.Records {
		if r.HasDate() && r.Date.After(maxDate) {
			maxDate = r.Date
		}
	}
	return maxDate
}

// Paginate returns the records for the given 1-based page
func (ds *Dataset) Paginate(page, perPage int) []Record {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	start := (page - 1) * perPage
	if start >= len(ds.Records) {
		return nil
	}

	end := start + perPage
	if end > len(ds.Records) {
		end = len(ds.Records)
	}

	return ds.Records[start:end]
}

// TotalPages returns the number of pages for the given page size
func (ds *Dataset) TotalPages(perPage int) int {
	if perPage < 1 {
		perPage = 10
	}
	return (len(ds.Records) + perPage - 1) / perPage
}
