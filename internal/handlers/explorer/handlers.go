package explorer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	apphttp "salesdash/internal/http"
	"salesdash/internal/logger"
	"salesdash/internal/models"
	"salesdash/internal/services/pipeline"
	"salesdash/internal/services/session"
	"salesdash/internal/templates"
)

const sheetName = "Data"

// Handler serves the paginated data table and its downloads
type Handler struct {
	pipeline *pipeline.Pipeline
	renderer *templates.Renderer
	pageSize int
}

// New creates a table handler showing pageSize rows per page
func New(p *pipeline.Pipeline, r *templates.Renderer, pageSize int) *Handler {
	if pageSize < 1 {
		pageSize = 10
	}
	return &Handler{
		pipeline: p,
		renderer: r,
		pageSize: pageSize,
	}
}

// RegisterRoutes registers all table routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard/table", h.handleTablePartial)
	r.Get("/dashboard/table/export", h.handleExport)
}

// filtered returns the session dataset narrowed to the requested categories
func (h *Handler) filtered(r *http.Request) (*models.Dataset, models.Selection, error) {
	sel := apphttp.ParseSelection(r)
	s, ok := apphttp.SessionFromContext(r.Context())
	if !ok {
		return nil, sel, session.ErrNoDataset
	}
	st, err := s.Snapshot()
	if err != nil {
		return nil, sel, err
	}
	return h.pipeline.Filter(st.Dataset, sel.Categories), sel, nil
}

func (h *Handler) handleTablePartial(w http.ResponseWriter, r *http.Request) {
	ds, sel, err := h.filtered(r)
	if errors.Is(err, session.ErrNoDataset) {
		apphttp.RenderPartial(w, r, h.renderer, "table", map[string]interface{}{"HasDataset": false})
		return
	}
	if err != nil {
		apphttp.ErrorResponse(w, r, err.Error(), http.StatusInternalServerError)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	totalPages := ds.TotalPages(h.pageSize)
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}

	rows := make([][]string, 0, h.pageSize)
	for _, rec := range ds.Paginate(page, h.pageSize) {
		rows = append(rows, rec.Values)
	}

	partialData := map[string]interface{}{
		"HasDataset":   true,
		"TotalRecords": ds.Len(),
		"Columns":      ds.Columns,
		"Rows":         rows,
		"Page":         page,
		"TotalPages":   totalPages,
		"PageRange":    calculatePageRange(page, totalPages),
		"Query":        template.URL(selectionQuery(sel).Encode()),
	}

	if h.renderer == nil {
		apphttp.WriteJSON(w, http.StatusOK, partialData)
		return
	}
	apphttp.RenderPartial(w, r, h.renderer, "table", partialData)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ds, _, err := h.filtered(r)
	if errors.Is(err, session.ErrNoDataset) {
		apphttp.ErrorResponse(w, r, "No dataset uploaded", http.StatusNotFound)
		return
	}
	if err != nil {
		apphttp.ErrorResponse(w, r, err.Error(), http.StatusInternalServerError)
		return
	}

	base := strings.TrimSuffix(filepath.Base(ds.Source), filepath.Ext(ds.Source))

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		var buf bytes.Buffer
		if err := writeCSV(&buf, ds); err != nil {
			apphttp.ErrorResponse(w, r, "Error building CSV", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s_filtered.csv\"", base))
		w.Write(buf.Bytes())

	case "xlsx":
		f, err := buildWorkbook(ds)
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("Error building workbook")
			apphttp.ErrorResponse(w, r, "Error building workbook", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		var buf bytes.Buffer
		if err := f.Write(&buf); err != nil {
			apphttp.ErrorResponse(w, r, "Error building workbook", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s_filtered.xlsx\"", base))
		w.Write(buf.Bytes())

	default:
		apphttp.ErrorResponse(w, r, "Unknown export format "+strconv.Quote(format), http.StatusBadRequest)
	}
}

// writeCSV writes the header and every raw row in upload order
func writeCSV(buf *bytes.Buffer, ds *models.Dataset) error {
	writer := csv.NewWriter(buf)
	if err := writer.Write(ds.Columns); err != nil {
		return err
	}
	for _, rec := range ds.Records {
		if err := writer.Write(rec.Values); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// buildWorkbook lays the dataset out on one sheet with a bold header row
func buildWorkbook(ds *models.Dataset) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#6366F1"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := setRow(f, 1, ds.Columns); err != nil {
		f.Close()
		return nil, err
	}
	if len(ds.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(ds.Columns), 1)
		f.SetCellStyle(sheetName, "A1", last, headerStyle)
	}

	for i, rec := range ds.Records {
		if err := setRow(f, i+2, rec.Values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &cells)
}

// selectionQuery encodes the selection so pagination and export links keep it
func selectionQuery(sel models.Selection) url.Values {
	q := url.Values{}
	q.Set("period", string(sel.Period))
	for _, c := range sel.Categories {
		q.Add("category", c)
	}
	return q
}

// calculatePageRange returns the page numbers to display in pagination.
// Zero marks a gap between the window around the current page and the first or last page.
func calculatePageRange(currentPage, totalPages int) []int {
	if totalPages <= 7 {
		result := make([]int, totalPages)
		for i := range result {
			result[i] = i + 1
		}
		return result
	}

	// Show pages around current page
	start := currentPage - 2
	end := currentPage + 2

	if start < 1 {
		start = 1
		end = 5
	}
	if end > totalPages {
		end = totalPages
		start = totalPages - 4
	}

	var pages []int
	if start > 1 {
		pages = append(pages, 1)
		if start > 2 {
			pages = append(pages, 0)
		}
	}
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	if end < totalPages {
		if end < totalPages-1 {
			pages = append(pages, 0)
		}
		pages = append(pages, totalPages)
	}

	return pages
}
