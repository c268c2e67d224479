// Package app wires the configured components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/promptstudio/internal/config"
	"github.com/mihaimyh/promptstudio/pkg/api"
	"github.com/mihaimyh/promptstudio/pkg/credential"
	"github.com/mihaimyh/promptstudio/pkg/genai"
	"github.com/mihaimyh/promptstudio/pkg/kv"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
	"github.com/mihaimyh/promptstudio/pkg/library"
	"github.com/mihaimyh/promptstudio/pkg/obs"
	zerologadapter "github.com/mihaimyh/promptstudio/pkg/obs/logger/zerolog"
	prommetrics "github.com/mihaimyh/promptstudio/pkg/obs/metrics/prometheus"
	"github.com/mihaimyh/promptstudio/pkg/pipeline"
)

// Options override parts of the wiring, mainly for tests.
type Options struct {
	// LogOutput receives log lines (default: os.Stderr)
	LogOutput io.Writer

	// Store replaces the configured storage backend
	Store kv.Store

	// Factory replaces the OpenAI-compatible backend factory
	Factory genai.Factory

	// Now replaces the wall clock of the ledger and the libraries
	Now func() time.Time
}

// App holds the wired components.
type App struct {
	Config *config.Config
	Logger obs.Logger

	Registry *prometheus.Registry
	Metrics  obs.Metrics

	Store        kv.Store
	Ledger       *ledger.Ledger
	Prompts      *library.Prompts
	Images       *library.Images
	Client       *genai.Client
	Credentials  *credential.Manager
	Orchestrator *pipeline.Orchestrator

	closers []func() error
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	zl, err := newZerolog(cfg.Log, opts.LogOutput)
	if err != nil {
		return nil, err
	}
	a.Logger = zerologadapter.NewLogger(&zl)

	a.Metrics = &obs.NoopMetrics{}
	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = prommetrics.NewMetrics(a.Registry, cfg.Metrics.Namespace)
	}

	if opts.Store != nil {
		a.Store = opts.Store
	} else {
		store, closers, err := openStore(ctx, cfg.Storage, a.Logger, a.Metrics)
		if err != nil {
			return nil, err
		}
		a.Store = store
		a.closers = append(a.closers, closers...)
	}

	loc, err := cfg.Location()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Ledger, err = ledger.New(a.Store, ledger.Config{
		Limits:   ledger.Limits{Text: cfg.Limits.Text, Image: cfg.Limits.Image},
		Location: loc,
		Now:      opts.Now,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	libCfg := library.Config{
		ImageRetention:  cfg.Library.ImageRetention,
		PromptRetention: cfg.Library.PromptRetention,
		Now:             opts.Now,
		Logger:          a.Logger,
		Metrics:         a.Metrics,
	}
	a.Prompts = library.NewPrompts(a.Store, libCfg)
	a.Images = library.NewImages(a.Store, libCfg)

	factory := opts.Factory
	if factory == nil {
		factory = genai.OpenAIFactory(genai.OpenAIConfig{
			BaseURL:     cfg.Provider.BaseURL,
			TextModel:   cfg.Provider.TextModel,
			VisionModel: cfg.Provider.VisionModel,
			ImageModel:  cfg.Provider.ImageModel,
			ImageSize:   cfg.Provider.ImageSize,
			Timeout:     cfg.Provider.Timeout,
		})
	}
	a.Client, err = genai.NewClient(genai.ClientConfig{Factory: factory, Logger: a.Logger, Metrics: a.Metrics})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Credentials = credential.NewManager(a.Store, a.Client, a.Logger)
	a.loadCredential(ctx)

	a.Orchestrator, err = pipeline.New(pipeline.Config{
		Ledger:    a.Ledger,
		Generator: a.Client,
		Prompts:   a.Prompts,
		Images:    a.Images,
		Notifier:  pipeline.LogNotifier{Logger: a.Logger},
		Logger:    a.Logger,
		Metrics:   a.Metrics,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) loadCredential(ctx context.Context) {
	err := a.Credentials.Load(ctx)
	switch {
	case err == nil:
		a.Logger.Info("api key loaded from storage")
	case errors.Is(err, credential.ErrNoCredential) && a.Config.Provider.APIKey != "":
		if err := a.Client.Configure(a.Config.Provider.APIKey); err != nil {
			a.Logger.Warn("configured api key rejected", obs.Err(err))
			return
		}
		a.Logger.Info("api key taken from configuration", obs.F("key", credential.Mask(a.Config.Provider.APIKey)))
	case errors.Is(err, credential.ErrNoCredential):
		a.Logger.Info("no api key configured yet")
	default:
		a.Logger.Warn("failed to load api key", obs.Err(err))
	}
}

func newZerolog(cfg config.LogConfig, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log.level: %w", err)
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Handler returns the API routes plus the metrics endpoint when enabled.
func (a *App) Handler() (http.Handler, error) {
	h, err := api.NewHandler(api.Config{
		Orchestrator: a.Orchestrator,
		Ledger:       a.Ledger,
		Prompts:      a.Prompts,
		Images:       a.Images,
		Credentials:  a.Credentials,
		Logger:       a.Logger,
	})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	if a.Registry != nil {
		r.Handle(a.Config.Metrics.Path, promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Mount("/", h.Routes())
	return r, nil
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down.
func (a *App) Serve(ctx context.Context) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", obs.F("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	a.Logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close releases storage connections. Async tier writes are flushed first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
