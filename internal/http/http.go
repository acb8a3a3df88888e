package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"salesdash/internal/logger"
	"salesdash/internal/models"
	"salesdash/internal/services/session"
	"salesdash/internal/templates"
)

// SessionCookieName is the cookie carrying the opaque session ID
const SessionCookieName = "salesdash_session"

type contextKey string

const sessionKey contextKey = "session"

// RenderTemplate renders a full page template with data
func RenderTemplate(w http.ResponseWriter, r *http.Request, renderer *templates.Renderer, templateName string, data map[string]interface{}) {
	if renderer == nil {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>" + templateName + "</h1><p>Templates not loaded. Check configuration.</p></body></html>"))
		return
	}
	if err := renderer.Render(w, templateName, data); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("template", templateName).Msg("Render failed")
	}
}

// RenderPartial renders a partial template with data
func RenderPartial(w http.ResponseWriter, r *http.Request, renderer *templates.Renderer, partialName string, data map[string]interface{}) {
	if renderer == nil {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<div><!-- Partial " + partialName + " not loaded --></div>"))
		return
	}
	if err := renderer.RenderPartial(w, partialName, data); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("template", partialName).Msg("Render failed")
	}
}

// ErrorResponse logs and sends a plain-text error response
func ErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	log := logger.FromContext(r.Context())
	log.Warn().
		Int("status", statusCode).
		Str("path", r.URL.Path).
		Msg(message)
	http.Error(w, message, statusCode)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// ParseSelection reads the period and repeated category query parameters.
// Unknown periods fall back to month; blank and repeated categories are dropped.
func ParseSelection(r *http.Request) models.Selection {
	return SelectionFromValues(r.URL.Query())
}

// SelectionFromValues reads a selection from parsed form or query values
func SelectionFromValues(values url.Values) models.Selection {
	sel := models.Selection{Period: models.ParsePeriod(values.Get("period"))}

	seen := make(map[string]bool)
	for _, c := range values["category"] {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		sel.Categories = append(sel.Categories, c)
	}
	return sel
}

// Logger logs every request with its status, duration and request ID, and
// stores a request-scoped logger in the context.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			ev := reqLog.Info()
			if status >= http.StatusInternalServerError {
				ev = reqLog.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Sessions attaches the caller's session to the request context, issuing a
// new cookie when the request carries none or an unknown one.
func Sessions(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookieName); err == nil {
				id = c.Value
			}

			s, created := store.GetOrCreate(id)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    s.ID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// WithSession stores a session in the context
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session stored by the Sessions middleware
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok && s != nil
}
