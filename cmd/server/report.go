package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"salesdash/internal/models"
	"salesdash/internal/services/dataloader"
	"salesdash/internal/services/metrics"
	"salesdash/internal/services/pipeline"
	"salesdash/internal/services/storage"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).MarginBottom(1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	numberStyle   = cellStyle.Align(lipgloss.Right)
	revenueStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22c55e"))
	expensesStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444"))
	profitStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func reportCmd() *cobra.Command {
	var (
		period     string
		categories []string
	)

	cmd := &cobra.Command{
		Use:   "report FILE.csv",
		Short: "Print KPIs and period totals of a CSV file",
		Long: `Print the dashboard numbers of a CSV file to the terminal: revenue, expenses
and profit totals, revenue and expenses per period, and expenses per category.

Encrypted files are decrypted with upload_passphrase, or a passphrase read
from the terminal when none is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args[0], models.Selection{
				Period:     models.ParsePeriod(period),
				Categories: categories,
			})
		},
	}

	cmd.Flags().StringVarP(&period, "period", "p", "month", "bucket size (month, quarter, year)")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "only include these categories (repeatable)")

	return cmd
}

func runReport(cmd *cobra.Command, path string, sel models.Selection) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	vault, err := storage.New(cfg.UploadPassphrase)
	if err != nil {
		return err
	}
	if storage.IsEncrypted(content) && !vault.IsUnlocked() {
		passphrase, err := promptPassphrase(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if err := vault.Unlock(passphrase); err != nil {
			return err
		}
	}

	ds, err := dataloader.New(vault, log).Load(path, content)
	if errors.Is(err, dataloader.ErrUnsupportedFile) {
		return fmt.Errorf("%s: only .csv files are supported", path)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	m := metrics.New(cfg.CurrencySymbol)
	p := pipeline.New(m, pipeline.Options{HistogramBins: cfg.HistogramBins}, log)
	views, err := p.Run(cmd.Context(), ds, sel)
	if err != nil {
		return err
	}

	return renderReport(cmd.OutOrStdout(), ds, views, m)
}

// promptPassphrase reads a passphrase from the terminal without echo
func promptPassphrase(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("file is encrypted: %w", storage.ErrLocked)
	}

	fmt.Fprint(w, "Passphrase: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(secret), nil
}

// renderReport writes the KPI line and the period and category tables
func renderReport(w io.Writer, ds *models.Dataset, v *pipeline.Views, m *metrics.Service) error {
	var out []string

	title := fmt.Sprintf("%s · %d rows", ds.Source, v.KPI.RecordCount)
	if from, to := ds.MinDate(), ds.MaxDate(); !from.IsZero() {
		title += fmt.Sprintf(" · %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	if len(v.Selection.Categories) > 0 {
		title += fmt.Sprintf(" · %d categories", len(v.Selection.Categories))
	}
	out = append(out, titleStyle.Render(title))

	out = append(out, lipgloss.JoinHorizontal(lipgloss.Top,
		"Revenue ", revenueStyle.Render(v.KPI.RevenueText), "   ",
		"Expenses ", expensesStyle.Render(v.KPI.ExpensesText), "   ",
		"Profit ", profitStyle.Render(v.KPI.ProfitText),
	), "")

	if len(v.Series) > 0 {
		rows := make([][]string, 0, len(v.Series))
		for _, p := range v.Series {
			rows = append(rows, []string{
				p.PeriodEnd.Format("2006-01-02"),
				m.FormatMoney(p.Revenue),
				m.FormatMoney(p.Expenses),
				m.FormatMoney(p.Revenue.Sub(p.Expenses)),
				strconv.Itoa(p.Records),
			})
		}
		out = append(out, newTable(v.Selection.Period.Label()+" ending", "Revenue", "Expenses", "Profit", "Rows").Rows(rows...).String(), "")
	} else {
		out = append(out, mutedStyle.Render(v.TimeSeries.TitleText()), "")
	}

	if !v.Category.IsEmpty() {
		slices := pipeline.CategoryExpenses(v.Dataset)
		rows := make([][]string, 0, len(slices))
		for _, s := range slices {
			rows = append(rows, []string{s.Category, m.FormatMoney(s.Expenses)})
		}
		out = append(out, newTable("Category", "Expenses").Rows(rows...).String())
	} else {
		out = append(out, mutedStyle.Render(v.Category.TitleText()))
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, out...))
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
}
