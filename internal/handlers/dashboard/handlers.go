package dashboard

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apphttp "salesdash/internal/http"
	"salesdash/internal/logger"
	"salesdash/internal/models"
	"salesdash/internal/services/dataloader"
	"salesdash/internal/services/pipeline"
	"salesdash/internal/services/session"
	"salesdash/internal/templates"
	"salesdash/internal/version"
)

// Handler serves the dashboard page, its partials and the chart data
type Handler struct {
	loader    *dataloader.DataLoader
	pipeline  *pipeline.Pipeline
	renderer  *templates.Renderer
	maxUpload int64
}

// New creates a dashboard handler. maxUpload caps the multipart body in bytes.
func New(l *dataloader.DataLoader, p *pipeline.Pipeline, r *templates.Renderer, maxUpload int64) *Handler {
	return &Handler{
		loader:    l,
		pipeline:  p,
		renderer:  r,
		maxUpload: maxUpload,
	}
}

// RegisterRoutes registers all dashboard routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
	})
	r.Get("/dashboard", h.handleDashboard)
	r.Post("/dashboard/upload", h.handleUpload)
	r.Get("/dashboard/categories", h.handleCategoriesPartial)
	r.Get("/dashboard/kpis", h.handleKPIsPartial)
	r.Get("/dashboard/charts/data/{chartType}", h.handleChartData)
	r.Get("/api/dashboard", h.handleAPIDashboard)
}

// categoryView feeds the "categories" partial
type categoryView struct {
	Categories []string
	Selection  models.Selection
	Source     string
	Records    int
	Notice     string
}

func newCategoryView(s *session.Session, sel models.Selection, notice string) categoryView {
	view := categoryView{
		Categories: s.Categories(),
		Selection:  sel,
		Notice:     notice,
	}
	if st, err := s.Snapshot(); err == nil {
		view.Source = st.Dataset.Source
		view.Records = st.Dataset.Len()
	}
	return view
}

func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := apphttp.SessionFromContext(r.Context())
	if !ok {
		apphttp.ErrorResponse(w, r, "No session", http.StatusInternalServerError)
	}
	return s, ok
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	sel := apphttp.ParseSelection(r)

	pageData := map[string]interface{}{
		"Title":      "Dashboard",
		"Version":    version.Get().Short(),
		"Periods":    models.Periods,
		"Selection":  sel,
		"Categories": newCategoryView(s, sel, ""),
	}
	apphttp.RenderTemplate(w, r, h.renderer, "base", pageData)
}

// handleUpload replaces the session dataset with the uploaded CSV.
// Unsupported files are ignored and parse failures keep the previous dataset;
// both answer 200 with the current category options and the submitted selection.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	log := logger.FromContext(r.Context())
	sel := apphttp.ParseSelection(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().Int64("limit", tooLarge.Limit).Msg("Upload too large")
			h.renderCategories(w, r, newCategoryView(s, sel, "File is too large."))
			return
		}
		apphttp.ErrorResponse(w, r, "Invalid upload", http.StatusBadRequest)
		return
	}
	// r.Form holds the query and the multipart fields sent by hx-include
	sel = apphttp.SelectionFromValues(r.Form)

	file, header, err := r.FormFile("file")
	if err != nil {
		apphttp.ErrorResponse(w, r, "Error reading file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !dataloader.IsSupported(header.Filename) {
		log.Debug().Str("file", header.Filename).Msg("Ignoring unsupported upload")
		h.renderCategories(w, r, newCategoryView(s, sel, ""))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		apphttp.ErrorResponse(w, r, "Error reading file", http.StatusInternalServerError)
		return
	}

	ds, err := h.loader.Load(header.Filename, content)
	if err != nil {
		log.Warn().Err(err).Str("file", header.Filename).Msg("Upload rejected")
		notice := "Could not load " + header.Filename + ": " + err.Error()
		h.renderCategories(w, r, newCategoryView(s, sel, notice))
		return
	}

	// A new dataset starts with every category selected
	s.Replace(ds)
	w.Header().Set("HX-Trigger", "dataset-changed")
	h.renderCategories(w, r, newCategoryView(s, models.Selection{Period: sel.Period}, ""))
}

func (h *Handler) handleCategoriesPartial(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	sel := apphttp.ParseSelection(r)
	h.renderCategories(w, r, newCategoryView(s, sel, ""))
}

func (h *Handler) renderCategories(w http.ResponseWriter, r *http.Request, view categoryView) {
	if h.renderer == nil {
		apphttp.WriteJSON(w, http.StatusOK, view)
		return
	}
	if err := h.renderer.RenderPartial(w, "categories", view); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Render failed")
	}
}

// views runs the pipeline for the session dataset. It returns session.ErrNoDataset before the first upload.
func (h *Handler) views(r *http.Request, s *session.Session) (*pipeline.Views, error) {
	st, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return h.pipeline.Run(r.Context(), st.Dataset, apphttp.ParseSelection(r))
}

func (h *Handler) handleKPIsPartial(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	partialData := map[string]interface{}{"HasDataset": false}

	v, err := h.views(r, s)
	switch {
	case errors.Is(err, session.ErrNoDataset):
	case err != nil:
		apphttp.ErrorResponse(w, r, err.Error(), http.StatusInternalServerError)
		return
	default:
		partialData["HasDataset"] = true
		partialData["KPI"] = v.KPI
	}

	if h.renderer == nil {
		apphttp.WriteJSON(w, http.StatusOK, partialData)
		return
	}
	apphttp.RenderPartial(w, r, h.renderer, "kpis", partialData)
}

func (h *Handler) handleChartData(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	chartType := chi.URLParam(r, "chartType")

	v, err := h.views(r, s)
	if errors.Is(err, session.ErrNoDataset) {
		// Known chart types answer 204 so the page can show its placeholder
		if !isChartType(chartType) {
			apphttp.ErrorResponse(w, r, "Unknown chart type", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		apphttp.ErrorResponse(w, r, err.Error(), http.StatusInternalServerError)
		return
	}

	chart, err := v.Chart(chartType)
	if errors.Is(err, pipeline.ErrUnknownChart) {
		apphttp.ErrorResponse(w, r, "Unknown chart type", http.StatusBadRequest)
		return
	}

	apphttp.WriteJSON(w, http.StatusOK, chart)
}

func isChartType(chartType string) bool {
	for _, t := range pipeline.ChartTypes {
		if t == chartType {
			return true
		}
	}
	return false
}

func (h *Handler) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}

	v, err := h.views(r, s)
	if errors.Is(err, session.ErrNoDataset) {
		apphttp.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		apphttp.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	apphttp.WriteJSON(w, http.StatusOK, v)
}

// Health reports liveness and the build version. It needs no session.
func Health(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Get().Short(),
	})
}
