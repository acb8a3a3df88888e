package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"salesdash/internal/config"
	"salesdash/internal/handlers/dashboard"
	"salesdash/internal/handlers/explorer"
	apphttp "salesdash/internal/http"
	"salesdash/internal/services/dataloader"
	"salesdash/internal/services/metrics"
	"salesdash/internal/services/pipeline"
	"salesdash/internal/services/session"
	"salesdash/internal/services/storage"
	"salesdash/internal/templates"
	"salesdash/internal/version"
	"salesdash/web"
)

const (
	cleanupInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

// App wires configuration, services and handlers into one server
type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	sessions *session.Store
	static   fs.FS

	dashboard *dashboard.Handler
	explorer  *explorer.Handler
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		RunE:  runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Bool("debug", false, "reload templates on every request")
	_ = viper.BindPFlag("listen_addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("debug", cmd.Flags().Lookup("debug"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := SetupDependencies(cfg, log)
	if err != nil {
		return err
	}
	return app.Serve(cmd.Context())
}

// SetupDependencies builds every service from configuration
func SetupDependencies(c *config.Config, l zerolog.Logger) (*App, error) {
	templateFS, err := assetFS(c.TemplatesDirectory, web.TemplatesFS, "templates")
	if err != nil {
		return nil, err
	}
	staticFS, err := assetFS(c.StaticDirectory, web.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	renderer, err := templates.New(templateFS, c.Debug, l)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	vault, err := storage.New(c.UploadPassphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload vault: %w", err)
	}

	pipe := pipeline.New(metrics.New(c.CurrencySymbol), pipeline.Options{
		HistogramBins: c.HistogramBins,
		CacheSize:     c.CacheSize,
		CacheTTL:      c.CacheTTL,
	}, l)

	sessions := session.NewStore(c.SessionTTL, l)
	sessions.Register(pipe)

	loader := dataloader.New(vault, l)

	return &App{
		cfg:       c,
		log:       l,
		sessions:  sessions,
		static:    staticFS,
		dashboard: dashboard.New(loader, pipe, renderer, c.MaxUploadBytes()),
		explorer:  explorer.New(pipe, renderer, c.PageSize),
	}, nil
}

// assetFS returns dir from disk when set, otherwise the embedded copy
func assetFS(dir string, embedded fs.FS, root string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(embedded, root)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded %s: %w", root, err)
	}
	return sub, nil
}

// Router builds the HTTP routes
func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apphttp.Logger(a.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Static files
	fileServer := http.FileServer(http.FS(a.static))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	r.Get("/api/health", dashboard.Health)

	r.Group(func(r chi.Router) {
		r.Use(apphttp.Sessions(a.sessions))
		a.dashboard.RegisterRoutes(r)
		a.explorer.RegisterRoutes(r)
	})

	return r
}

// Serve runs the server until ctx is cancelled, then drains in-flight requests
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.sessions.StartCleanup(cleanupInterval)
	defer a.sessions.Stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", a.cfg.ListenAddr).
			Str("version", version.Get().Short()).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
