package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"stockhold/internal/config"
	"stockhold/internal/http/handlers"
	applog "stockhold/internal/log"
	"stockhold/internal/metrics"
	"stockhold/internal/notify"
	"stockhold/internal/repos"
	"stockhold/internal/tracing"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			ml := applog.Component("main")
			ml.Warn().Err(err).Str("file", cfg.LogFile).Msg("could not open log file")
		} else {
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	applog.Setup(out, cfg.LogLevel)
	lg := applog.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "stockhold", cfg.OTLPEndpoint)
	if err != nil {
		lg.Fatal().Err(err).Msg("init tracing")
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		lg.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if cfg.SeedDemo {
		if seeded, err := repos.SeedIfEmpty(ctx, db, time.Now().UTC()); err != nil {
			lg.Fatal().Err(err).Msg("seed database")
		} else if seeded {
			lg.Info().Str("product", repos.DemoProductID).Msg("seeded demo product")
		}
	}

	// Events go to Kafka when brokers are configured, otherwise to the log.
	var sink notify.Sink = notify.NewLogSink()
	if len(cfg.KafkaBrokers) > 0 {
		sink = notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		lg.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	}
	notifier := notify.New(sink, cfg.NotifyMaxAttempts, cfg.NotifyBaseDelay)

	deps := handlers.NewDeps(db, cfg, notifier)

	// Templates & app
	engine := html.New("./web/templates", ".html")
	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: handlers.ErrorHandler,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: applog.Output()}))
	app.Use(helmet.New())
	app.Use(metrics.Middleware)
	app.Use(tracing.Middleware())
	app.Use(handlers.RequestTimeout(cfg.RequestTimeout))

	// ---------- Routes ----------
	handlers.Mount(app, deps, handlers.DefaultRouteLimits())
	if !deps.Auth.Enabled() {
		lg.Info().Msg("ADMIN_PASSWORD_HASH not set, admin pages disabled")
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Page not found")
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info().Str("port", cfg.Port).Msg("listening")
		return app.Listen(":" + cfg.Port)
	})
	sweeperDone := make(chan struct{})
	g.Go(func() error {
		defer close(sweeperDone)
		return deps.Sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var errs []error
		if err := app.ShutdownWithContext(sctx); err != nil {
			errs = append(errs, err)
		}
		// no handler or sweep tick may enqueue once the notifier closes
		select {
		case <-sweeperDone:
		case <-sctx.Done():
			errs = append(errs, errors.New("sweeper did not stop in time"))
		}
		if err := notifier.Close(sctx); err != nil {
			errs = append(errs, err)
		}
		if err := shutdownTracing(sctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		lg.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
	lg.Info().Msg("stopped")
}
