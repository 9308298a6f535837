package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iliyamo/farm-monitor/internal/auth"
	"github.com/iliyamo/farm-monitor/internal/config"
	"github.com/iliyamo/farm-monitor/internal/database"
	"github.com/iliyamo/farm-monitor/internal/handler"
	"github.com/iliyamo/farm-monitor/internal/ingest"
	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/middleware"
	"github.com/iliyamo/farm-monitor/internal/queue"
	"github.com/iliyamo/farm-monitor/internal/repository"
	"github.com/iliyamo/farm-monitor/internal/router"
	"github.com/iliyamo/farm-monitor/internal/seed"
	"github.com/iliyamo/farm-monitor/internal/service"
	"github.com/iliyamo/farm-monitor/internal/telemetry"
)

const serviceName = "farm-monitor"

// app holds the long-lived dependencies shared by the commands.
type app struct {
	cfg      config.Config
	log      logging.Logger
	db       *sql.DB
	rdb      *redis.Client
	importer *ingest.Importer
	seeder   *seed.Seeder

	users    *repository.UserRepo
	roles    *repository.RoleRepo
	regions  *repository.RegionRepo
	weather  *repository.WeatherRepo
	soil     *repository.SoilRepo
	services *repository.ServiceRepo
}

// open connects to MySQL and builds the repositories.  Redis is left to
// the serve command.
func open() (*app, error) {
	cfg := config.Load()
	log := logging.New(cfg.Env, os.Stdout)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		users:    repository.NewUserRepo(db),
		roles:    repository.NewRoleRepo(db),
		regions:  repository.NewRegionRepo(db),
		weather:  repository.NewWeatherRepo(db),
		soil:     repository.NewSoilRepo(db),
		services: repository.NewServiceRepo(db),
	}
	a.importer = &ingest.Importer{
		DB:      db,
		Weather: a.weather,
		Soil:    a.soil,
		Policy:  cfg.ImportPolicy,
		Log:     log.With("component", "ingest"),
	}
	a.seeder = &seed.Seeder{
		DB:         db,
		Users:      a.users,
		Roles:      a.roles,
		Regions:    a.regions,
		Services:   a.services,
		Importer:   a.importer,
		BcryptCost: cfg.BcryptCost,
		StaticDir:  cfg.StaticDir,
		Log:        log.With("component", "seed"),
	}
	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}

func withSeeder(ctx context.Context, fn func(*app) error) error {
	a, err := open()
	if err != nil {
		return err
	}
	defer a.close()
	if err := fn(a); err != nil {
		a.log.Error(ctx, "init failed", "err", err)
		return err
	}
	return nil
}

func serve(ctx context.Context) error {
	a, err := open()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, serviceName, a.log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(sctx)
	}()

	// The revocation store is required: without it no session can be
	// verified.
	a.rdb, err = config.NewRedisClient()
	if err != nil {
		return err
	}
	if err := database.CreateAll(ctx, a.db); err != nil {
		return err
	}
	if err := a.seeder.SeedRoles(ctx); err != nil {
		return err
	}

	tokens := repository.NewTokenRepo(a.rdb)
	gate := auth.NewGate(a.cfg.JWTSecret, tokens, a.users)
	issuer := auth.NewIssuer(a.cfg.JWTSecret, a.cfg.JWTTTL, tokens)
	client := &http.Client{Timeout: a.cfg.HTTPTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}

	var events handler.EventPublisher
	if a.cfg.QueueEnabled {
		pub := queue.NewPublisher(a.cfg.RabbitURL)
		defer func() { _ = pub.Close() }()
		events = pub

		consumer := &queue.Consumer{URL: a.cfg.RabbitURL, Dir: a.cfg.ImportLogDir, Log: a.log.With("component", "queue")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error(ctx, "import event consumer stopped", "err", err)
			}
		}()
	}

	log := a.log.With("component", "http")
	h := router.Handlers{
		Auth:   handler.NewAuthHandler(a.cfg, a.users, issuer, log),
		Admin:  handler.NewAdminHandler(a.cfg, a.users, a.regions, issuer, log),
		Role:   handler.NewRoleHandler(a.roles, log),
		Region: handler.NewRegionHandler(a.regions, log),
		Information: &handler.InformationHandler{
			Cfg:      a.cfg,
			Regions:  a.regions,
			Weather:  a.weather,
			Soil:     a.soil,
			Importer: a.importer,
			Features: &ingest.FeatureService{Client: client},
			Forecast: service.NewForecastClient(a.cfg.WeatherPredictURL, a.cfg.WeatherRegionCodes, client),
			Events:   events,
			Log:      log,
		},
		Service: handler.NewServiceHandler(a.regions, a.services, log),
	}
	guards := router.Guards{
		Gate:      gate,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.rdb, log.With("component", "ratelimit")),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), a.rdb),
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, handler.Ready(map[string]handler.Pinger{
		"mysql": a.db,
		"redis": handler.PingFunc(func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }),
	}))
	router.RegisterAPI(e, h, guards)

	server := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           otelhttp.NewHandler(e, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "listening", "addr", server.Addr, "env", a.cfg.Env, "import_policy", a.cfg.ImportPolicy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		a.log.Error(sctx, "shutdown", "err", err)
		return err
	}
	a.log.Info(sctx, "server stopped")
	return nil
}
