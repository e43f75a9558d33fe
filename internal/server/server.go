package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/config"
	"github.com/mohammad-safakhou/searchbrief/internal/runtime"
	"github.com/mohammad-safakhou/searchbrief/internal/search"
	"github.com/mohammad-safakhou/searchbrief/internal/store"
	"github.com/mohammad-safakhou/searchbrief/provider"
	"github.com/mohammad-safakhou/searchbrief/repository/redis_repository"
	"github.com/mohammad-safakhou/searchbrief/session"
	"github.com/mohammad-safakhou/searchbrief/session/inmemory"
	"github.com/mohammad-safakhou/searchbrief/tools/web_fetch"
	"github.com/mohammad-safakhou/searchbrief/tools/web_search"
)

// Deps is everything the HTTP layer needs. Run builds it from config; tests
// assemble it from fakes.
type Deps struct {
	Logger       *zap.Logger
	Registry     *prometheus.Registry
	Service      *search.Service
	Sessions     *session.Manager
	Store        session.Store
	LLM          provider.Provider
	Model        string
	Placeholders *gocache.Cache
	Metrics      *search.Metrics
	Secret       []byte
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error { return rv.v.Struct(i) }

// NewEcho wires middleware, the error handler and every route.
func NewEcho(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	httpLogger := d.Logger.Named("http")
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		httpLogger.Info("request failed",
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))

	sh := &SearchHandler{Service: d.Service, Sessions: d.Sessions, Metrics: d.Metrics, Logger: d.Logger.Named("search")}
	sh.Register(e, d.Secret)

	ss := &SessionsHandler{Store: d.Store, Logger: d.Logger.Named("sessions")}
	ss.Register(e.Group("/sessions"), d.Secret)

	ph := &PlaceholdersHandler{LLM: d.LLM, Model: d.Model, Cache: d.Placeholders, Logger: d.Logger.Named("placeholders")}
	ph.Register(e)

	return e
}

// Run builds the dependency graph from cfg and serves until SIGINT/SIGTERM.
func Run(cfg *config.Config) error {
	logger := runtime.NewLogger(cfg.General.LogLevel, cfg.General.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tele, _, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{ServiceName: cfg.Telemetry.ServiceName, ServiceVersion: "dev"})
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tele.Shutdown(shutdownCtx)
	}()

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	if err := cfg.LLM.Validate(); err != nil {
		return err
	}
	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := search.NewMetrics(reg)

	// Sessions live in postgres when configured and in process memory otherwise.
	var st session.Store
	if runtime.PostgresConfigured(cfg) {
		dsn, err := runtime.BuildPostgresDSN(cfg)
		if err != nil {
			return err
		}
		pg, err := store.NewWithDSN(ctx, dsn)
		if err != nil {
			return err
		}
		defer pg.Close()
		st = pg
	} else {
		logger.Warn("postgres not configured, sessions are kept in memory")
		st = inmemory.NewInMemorySessionStore()
	}

	var (
		rdb    *redis.Client
		cache  search.ImageCache
		locker session.Locker = session.NopLocker{}
	)
	if cfg.Storage.Redis.Enabled() {
		rdb, err = redis_repository.Conn(ctx, cfg.Storage.Redis, logger.Named("redis"))
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = search.NewRedisImageCache(rdb, cfg.Images.CacheTTL, logger.Named("image-cache"))
		locker = session.NewRedisLocker(rdb, 0)
	}

	httpClient := &http.Client{}
	providers, err := web_search.FromConfig(cfg.Search, httpClient, logger.Named("providers"))
	if err != nil {
		return err
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.GoqueryFetcherType, httpClient, cfg.Images.PageTimeout, 0)
	if err != nil {
		return err
	}

	svc := &search.Service{
		Gateway:    search.NewGateway(providers, cfg.Search.Timeout, logger.Named("gateway"), metrics),
		Summarizer: search.NewSummarizer(llm, cfg.LLM.CompletionModel, metrics),
		Images: search.NewResolver(search.ResolverOptions{
			Fetcher:     fetcher,
			Prober:      web_fetch.Prober{Timeout: cfg.Images.ProbeTimeout, Client: httpClient},
			Cache:       cache,
			Concurrency: cfg.Images.Concurrency,
			FaviconURL:  cfg.Images.FaviconURL,
			Logger:      logger.Named("images"),
			Metrics:     metrics,
		}),
		Suggester: search.NewSuggester(llm, cfg.LLM.SuggestionModel, logger.Named("suggest")),
	}

	mgr := session.NewManager(st, locker, cfg.Sessions, logger.Named("session"))

	if cfg.Sessions.RetentionDays > 0 {
		sweeper := &RetentionSweeper{
			Store:  st,
			Cron:   cfg.Sessions.RetentionCron,
			MaxAge: time.Duration(cfg.Sessions.RetentionDays) * 24 * time.Hour,
			Logger: logger.Named("retention"),
		}
		if rdb != nil {
			sweeper.Locker = session.NewRedisLocker(rdb, 10*time.Millisecond)
		}
		sweeper.Start(ctx)
	}

	e := NewEcho(Deps{
		Logger:       logger,
		Registry:     reg,
		Service:      svc,
		Sessions:     mgr,
		Store:        st,
		LLM:          llm,
		Model:        cfg.LLM.SuggestionModel,
		Placeholders: gocache.New(cfg.Placeholders.TTL, 2*cfg.Placeholders.TTL),
		Metrics:      metrics,
		Secret:       secret,
	})

	addr := cfg.General.Listen
	if addr == "" {
		addr = ":10001"
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.Int("providers", len(providers)))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
