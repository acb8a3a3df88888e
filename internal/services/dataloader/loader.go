package dataloader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"salesdash/internal/models"
	"salesdash/internal/services/storage"
)

var (
	// ErrUnsupportedFile is returned for uploads whose name does not end in .csv
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrMissingHeader is returned for empty uploads
	ErrMissingHeader = errors.New("missing header row")

	// ErrInvalidEncoding is returned when the content is not valid UTF-8
	ErrInvalidEncoding = errors.New("content is not valid UTF-8")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DataLoader parses uploaded CSV files into datasets
type DataLoader struct {
	vault *storage.Vault
	log   zerolog.Logger
}

// columnAliases maps each semantic field to the header spellings it accepts, in precedence order
var columnAliases = map[models.Field][]string{
	models.FieldDate:     {"Date", "date"},
	models.FieldCategory: {"Category", "category"},
	models.FieldRevenue:  {"Revenue", "revenue"},
	models.FieldExpenses: {"Expenses", "expenses"},
}

// New creates a new DataLoader. A nil vault rejects encrypted uploads.
func New(vault *storage.Vault, log zerolog.Logger) *DataLoader {
	return &DataLoader{
		vault: vault,
		log:   log,
	}
}

// IsSupported reports whether the filename has a .csv extension
func IsSupported(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

// resolveSchema maps header positions to semantic fields.
// An earlier alias wins over a later one regardless of column order.
func resolveSchema(header []string) models.Schema {
	positions := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if _, exists := positions[col]; !exists {
			positions[col] = i
		}
	}

	index := make(map[models.Field]int)
	for _, field := range models.Fields {
		for _, alias := range columnAliases[field] {
			if i, ok := positions[alias]; ok {
				index[field] = i
				break
			}
		}
	}
	return models.NewSchema(index)
}

// Load parses an upload into a Dataset. Any failure leaves the caller's state untouched:
// the error is logged and returned, and no partial dataset is produced.
func (dl *DataLoader) Load(filename string, content []byte) (*models.Dataset, error) {
	if !IsSupported(filename) {
		dl.log.Debug().Str("file", filename).Msg("Ignoring unsupported upload")
		return nil, ErrUnsupportedFile
	}

	ds, err := dl.parse(filename, content)
	if err != nil {
		dl.log.Error().Err(err).Str("file", filename).Msg("Failed to parse upload")
		return nil, err
	}

	dl.log.Info().
		Str("file", filename).
		Str("dataset", ds.ID).
		Int("records", ds.Len()).
		Msg("Loaded dataset")
	return ds, nil
}

func (dl *DataLoader) parse(filename string, content []byte) (*models.Dataset, error) {
	if storage.IsEncrypted(content) {
		if dl.vault == nil {
			return nil, storage.ErrLocked
		}
		plain, err := dl.vault.Decode(content)
		if err != nil {
			return nil, fmt.Errorf("error decrypting upload: %w", err)
		}
		content = plain
	}

	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return nil, ErrInvalidEncoding
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1 // Short rows are padded below
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	schema := resolveSchema(header)

	var records []models.Record
	lineNum := 1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", lineNum, err)
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("line %d has %d fields, header has %d", lineNum, len(row), len(header))
		}

		values := make([]string, len(header))
		copy(values, row)

		rec, err := buildRecord(values, schema)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}

	return models.NewDataset(uuid.NewString(), filename, header, schema, records), nil
}

// buildRecord fills the typed fields of a row from its raw cells
func buildRecord(values []string, schema models.Schema) (models.Record, error) {
	rec := models.Record{Values: values}

	if idx, ok := schema.Index(models.FieldDate); ok {
		if s := strings.TrimSpace(values[idx]); s != "" {
			d, err := parseDate(s)
			if err != nil {
				return rec, err
			}
			rec.Date = d
		}
	}

	if idx, ok := schema.Index(models.FieldCategory); ok {
		rec.Category = strings.TrimSpace(values[idx])
	}

	if idx, ok := schema.Index(models.FieldRevenue); ok {
		v, err := parseAmount(values[idx])
		if err != nil {
			return rec, fmt.Errorf("revenue: %w", err)
		}
		rec.Revenue = v
	}

	if idx, ok := schema.Index(models.FieldExpenses); ok {
		v, err := parseAmount(values[idx])
		if err != nil {
			return rec, fmt.Errorf("expenses: %w", err)
		}
		rec.Expenses = v
	}

	return rec, nil
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// parseDate tries multiple date formats. Offsets are dropped and the wall
// clock kept, so a timestamp stays in the calendar day it was written in.
func parseDate(s string) (time.Time, error) {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q", s)
}

// parseAmount parses an amount string, handling currency symbols, thousands separators and parentheses.
// Blank cells yield an invalid NullDecimal.
func parseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', '₽', ',', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)

	// (100.00) -> -100.00
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("could not parse number %q", s)
	}
	return decimal.NewNullDecimal(d), nil
}
