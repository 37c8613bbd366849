// Package main villa booking API.
//
// @title           Villa Booking API
// @version         1.0
// @description     Villa availability calendar and admin booking management.
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/app/echoServer"
	availabilityctrl "github.com/photsathonspd1-create/bann-mae-villa-sub000/app/echoServer/controller/availability"
	bookingctrl "github.com/photsathonspd1-create/bann-mae-villa-sub000/app/echoServer/controller/booking"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/app/echoServer/validation"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/config"
	bookingrepo "github.com/photsathonspd1-create/bann-mae-villa-sub000/repository/booking"
	cacherepo "github.com/photsathonspd1-create/bann-mae-villa-sub000/repository/cache"
	notifyrepo "github.com/photsathonspd1-create/bann-mae-villa-sub000/repository/notify"
	availabilitysvc "github.com/photsathonspd1-create/bann-mae-villa-sub000/service/availability"
	bookingsvc "github.com/photsathonspd1-create/bann-mae-villa-sub000/service/booking"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/clock"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/database"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/metrics"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/obs"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Otel.Enabled {
		shutdown, err := obs.InitTracer(ctx, "villa-booking", cfg.Otel.Endpoint, cfg.Env)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}
	metrics.Register()

	clk := clock.Real{}

	// store: Postgres when configured, otherwise process memory
	var store bookingrepo.Store
	if cfg.DatabaseURL != "" {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := bookingrepo.Migrate(ctx, db.Pool); err != nil {
			log.Error("migrate failed", "err", err)
			os.Exit(1)
		}
		store = bookingrepo.New(db.Pool)
	} else {
		log.Warn("DATABASE_URL empty, bookings are kept in memory")
		store = bookingrepo.NewMemory(clk)
	}

	// availability cache
	var cache cacherepo.Intervals = cacherepo.Nop{}
	if cfg.Redis.Addr != "" {
		rdb := cacherepo.NewRedisClient(cfg.Redis)
		defer func() { _ = cacherepo.Close(rdb) }()
		if err := cacherepo.Ping(ctx, rdb); err != nil {
			log.Warn("redis unavailable, serving availability uncached", "err", err)
		} else {
			cache = cacherepo.New(rdb, cfg.Redis.CacheTTL)
		}
	}

	// booking events
	var notifier notifyrepo.Notifier = notifyrepo.Nop{}
	if cfg.Rabbit.URL != "" {
		p, err := notifyrepo.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Warn("rabbitmq unavailable, booking events disabled", "err", err)
		} else {
			notifier = p
		}
	}
	defer func() { _ = notifier.Close() }()

	// services
	bs := bookingsvc.New(store, bookingsvc.Options{
		OperationTimeout: cfg.Booking.OperationTimeout,
		HoldTTL:          cfg.Booking.HoldTTL,
		Clock:            clk,
	})
	as := availabilitysvc.New(store, availabilitysvc.Options{
		Clock:    clk,
		Location: loc,
		Cache:    cache,
		Log:      log,

		MaxWindowDays: cfg.Booking.MaxWindowDays,
	})
	cleaner := bookingsvc.NewCleaner(store, clk, log)
	go cleaner.Run(ctx, cfg.Booking.SweepInterval)

	// controllers
	v := validation.Engine()
	bookingC := &bookingctrl.Controller{Svc: bs, Avail: as, Notify: notifier, V: v, Log: log}
	availabilityC := &availabilityctrl.Controller{Svc: as, Log: log}

	// echo
	e := echo.New()
	e.HideBanner = true
	echoServer.RegisterMiddlewares(e, log)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	echoServer.RegisterDocs(e)

	echoServer.Register(e, echoServer.C{
		Booking:      bookingC,
		Availability: availabilityC,
		JWTSecret:    cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		log.Info("starting server", "port", port, "env", cfg.Env)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
