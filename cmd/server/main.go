package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/handler"
	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
	"github.com/iliyamo/greenhouse-led-hub/internal/middleware"
	"github.com/iliyamo/greenhouse-led-hub/internal/mqtt"
	"github.com/iliyamo/greenhouse-led-hub/internal/queue"
	"github.com/iliyamo/greenhouse-led-hub/internal/router"
	"github.com/iliyamo/greenhouse-led-hub/internal/service"
	"github.com/iliyamo/greenhouse-led-hub/internal/tsdb"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.UsesDefaultSecret() && cfg.Env != "dev" {
		log.Warn().Str("env", cfg.Env).Msg("SECRET_KEY is the built-in default; set a real secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	defer db.Close()
	if err := db.CreateSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("create schema")
	}

	var (
		opts   []service.Option
		checks []handler.Check
	)

	var cache *middleware.ResponseCache
	if cfg.Cache.Enabled {
		rdb, err := config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; led poll cache disabled")
		} else {
			defer rdb.Close()
			cache = middleware.NewResponseCache(cfg.Cache, rdb)
			opts = append(opts, service.WithLedCache(cache))
			checks = append(checks, handler.Check{Name: "redis", Pinger: cache})
		}
	}

	var mq *mqtt.Client
	if cfg.MQTT.Enabled {
		mq, err = mqtt.Connect(cfg.MQTT, log)
		if err != nil {
			log.Warn().Err(err).Msg("mqtt unavailable; led push and button subscription disabled")
		} else {
			defer mq.Close()
			opts = append(opts, service.WithCommandPublisher(mq))
			checks = append(checks, handler.Check{Name: "mqtt", Pinger: mq})
		}
	}

	if cfg.AMQP.Enabled {
		pub := service.NewQueuePublisher(cfg.AMQP)
		defer pub.Close()
		opts = append(opts, service.WithEventPublisher(pub))
		if cfg.AMQP.ConsumerEnabled {
			go func() {
				if err := queue.StartConsumer(ctx, cfg.AMQP, log); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("event consumer stopped")
				}
			}()
		}
	}

	if cfg.Influx.Enabled {
		w, err := tsdb.Connect(cfg.Influx, log)
		if err != nil {
			log.Warn().Err(err).Msg("influxdb unavailable; telemetry mirroring disabled")
		} else {
			defer w.Close()
			opts = append(opts, service.WithMetrics(w))
			checks = append(checks, handler.Check{Name: "influxdb", Pinger: w})
		}
	}

	devices := service.NewDeviceService(db, log, opts...)
	if mq != nil {
		if err := mq.SubscribeButtons(ctx, devices); err != nil {
			log.Warn().Err(err).Msg("subscribe to button reports")
		}
	}

	e, err := router.New(router.Deps{Cfg: cfg, DB: db, Log: log, Devices: devices, Cache: cache, Checks: checks})
	if err != nil {
		log.Fatal().Err(err).Msg("build router")
	}

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("db", cfg.DB.Driver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}
