package metrics

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"salesdash/internal/models"
)

// Service computes the KPI panels of the dashboard
type Service struct {
	currency string
	lang     language.Tag
}

// New creates a new metrics service that suffixes amounts with currency
func New(currency string) *Service {
	return &Service{
		currency: currency,
		lang:     language.English,
	}
}

// Summarize totals revenue and expenses; absent columns count as zero.
// Profit is computed on the exact decimal sums so revenue - expenses == profit always holds.
func (s *Service) Summarize(ds *models.Dataset) models.KPISummary {
	revenue := ds.SumRevenue()
	expenses := ds.SumExpenses()
	profit := revenue.Sub(expenses)

	return models.KPISummary{
		Revenue:      revenue,
		Expenses:     expenses,
		Profit:       profit,
		RecordCount:  ds.Len(),
		RevenueText:  s.FormatMoney(revenue),
		ExpensesText: s.FormatMoney(expenses),
		ProfitText:   s.FormatMoney(profit),
	}
}

// FormatMoney renders an amount with grouping separators, two decimals and the currency suffix,
// e.g. "1,234.50 ₽"
func (s *Service) FormatMoney(d decimal.Decimal) string {
	// message.Printer is not safe for concurrent use
	p := message.NewPrinter(s.lang)
	text := p.Sprintf("%.2f", d.Round(2).InexactFloat64())
	if s.currency == "" {
		return text
	}
	return text + " " + s.currency
}
