package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/logger"
	"salesdash/internal/models"
	"salesdash/internal/services/session"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  models.Selection
	}{
		{"defaults", "", models.Selection{Period: models.PeriodMonth}},
		{"quarter", "period=quarter", models.Selection{Period: models.PeriodQuarter}},
		{"unknown period falls back", "period=fortnight", models.Selection{Period: models.PeriodMonth}},
		{"categories", "period=year&category=A&category=B", models.Selection{Period: models.PeriodYear, Categories: []string{"A", "B"}}},
		{"blank and repeated dropped", "category=&category=A&category=A", models.Selection{Period: models.PeriodMonth, Categories: []string{"A"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/dashboard/kpis?"+tt.query, nil)
			assert.Equal(t, tt.want, ParseSelection(r))
		})
	}
}

func TestSelectionFromFormValues(t *testing.T) {
	form := url.Values{"period": {"year"}, "category": {" B ", "A"}}
	r := httptest.NewRequest(http.MethodPost, "/dashboard/upload?category=C", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, r.ParseForm())

	sel := SelectionFromValues(r.Form)
	assert.Equal(t, models.PeriodYear, sel.Period)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, sel.Categories)
}

func TestSessionsMiddleware(t *testing.T) {
	store := session.NewStore(time.Hour, zerolog.Nop())

	var seen *session.Session
	handler := Sessions(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		seen = s
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, seen.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// A known cookie reuses the session without issuing a new one
	first := seen
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Same(t, first, seen)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionFromContextMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := SessionFromContext(r.Context())
	assert.False(t, ok)
}

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := middleware.RequestID(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger.FromContext(r.Context())
		l.Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	out := buf.String()
	assert.Contains(t, out, `"message":"inside handler"`)
	assert.Contains(t, out, `"message":"HTTP request"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/brew"`)
	assert.Contains(t, out, `"request_id":`)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"missing"}`, rec.Body.String())
}

func TestErrorResponseLogsWithRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := httptest.NewRequest(http.MethodGet, "/dashboard/table/export", nil)
	r = r.WithContext(logger.WithContext(r.Context(), zerolog.New(&buf)))

	rec := httptest.NewRecorder()
	ErrorResponse(rec, r, "Unknown format", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown format")
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"status":400`)
}
