package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/brevet-tracker/internal/adapter/feed"
	"github.com/couchcryptid/brevet-tracker/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/brevet-tracker/internal/adapter/kafka"
	"github.com/couchcryptid/brevet-tracker/internal/config"
	"github.com/couchcryptid/brevet-tracker/internal/dashboard"
	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/couchcryptid/brevet-tracker/internal/eventtime"
	"github.com/couchcryptid/brevet-tracker/internal/feedcache"
	"github.com/couchcryptid/brevet-tracker/internal/observability"
	"github.com/couchcryptid/brevet-tracker/internal/progress"
	"github.com/couchcryptid/brevet-tracker/internal/refresh"
	"github.com/couchcryptid/brevet-tracker/internal/route"
	"github.com/couchcryptid/brevet-tracker/internal/weather"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error("tracker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	routes, err := route.LoadFile(cfg.RouteConfig)
	if err != nil {
		return fmt.Errorf("load route: %w", err)
	}
	times, err := eventtime.NewResolver(cfg.EventTimezone, cfg.EventStartDate, logger)
	if err != nil {
		return fmt.Errorf("event time: %w", err)
	}
	calc := progress.NewCalculator(routes, times, cfg.DNFThreshold)
	logger.Info("event configured",
		"controls", len(routes.Controls()),
		"finish_km", routes.Finish().Km,
		"timezone", cfg.EventTimezone,
		"start_date", cfg.EventStartDate,
		"dnf_threshold", cfg.DNFThreshold,
	)

	clock := clockwork.NewRealClock()

	trackingClient := feed.NewClient("tracking", cfg.TrackingFeedURL, cfg.FeedTimeout, logger, metrics)
	trackingSrc := feed.NewTrackingSource(trackingClient, times, logger)
	tracking := feedcache.New[domain.Snapshot]("tracking", trackingSrc.Fetch, cfg.FeedCacheTTL, clock, logger, metrics)

	var opts []refresh.Option
	var weatherCache dashboard.WeatherSource
	if cfg.WeatherFeedURL != "" {
		weatherClient := feed.NewClient("weather", cfg.WeatherFeedURL, cfg.FeedTimeout, logger, metrics)
		wc := feedcache.New[weather.Report]("weather", feed.NewWeatherSource(weatherClient).Fetch, cfg.FeedCacheTTL, clock, logger, metrics)
		weatherCache = wc
		opts = append(opts, refresh.WithWeather(wc))
		logger.Info("weather feed enabled")
	} else {
		logger.Info("weather feed disabled")
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaArrivalsTopic, logger)
		opts = append(opts, refresh.WithPublisher(writer))
		logger.Info("arrival publishing enabled", "topic", cfg.KafkaArrivalsTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("arrival publishing disabled")
	}

	refresher := refresh.New(tracking, calc, cfg.RefreshInterval, logger, metrics, opts...)
	board := dashboard.NewService(tracking, weatherCache, calc, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, refresher, board, refresher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return refresher.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()

	if writer != nil {
		if cerr := writer.Close(); cerr != nil {
			logger.Error("kafka writer close error", "error", cerr)
		}
	}
	logger.Info("shutdown complete")
	return err
}
