package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	alertapi "github.com/qiniu/cloudmonitor/internal/alerting/api"
	adb "github.com/qiniu/cloudmonitor/internal/alerting/database"
	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/engine"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/eventlog"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/healthcheck"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/metricsource"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/notifier"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/remediation"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/statecache"
	"github.com/qiniu/cloudmonitor/internal/config"
	"github.com/qiniu/cloudmonitor/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.Logging)
	log.Info().Str("version", version).Msg("Starting cloudmonitor")

	policy, err := cfg.AlertPolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid alert policy")
	}

	shutdownTracing, err := telemetry.Init(telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		EnableTracing:  cfg.Telemetry.EnableTracing,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// optional incident history
	var incidents *adb.IncidentStore
	if cfg.Database.Enabled {
		db, derr := adb.New(ctx, cfg.Database.DSN())
		if derr != nil {
			log.Error().Err(derr).Msg("alerting DB init failed; running without incident history")
		} else {
			store, serr := adb.PrepareIncidentStore(ctx, db)
			if serr != nil {
				log.Error().Err(serr).Msg("failed to prepare incident schema; running without incident history")
			} else {
				defer db.Close()
				incidents = store
			}
		}
	}

	dispatcher := healthcheck.Dispatcher{
		Trigger:             remediation.SimulatedTrigger{},
		NotifyTimeout:       config.ParseDuration(cfg.Notify.Timeout, 5*time.Second),
		ObservationDuration: config.ParseDuration(cfg.Remediation.ObservationWindow, remediation.DefaultObservationDuration),
	}
	var openAlerts alertapi.OpenAlertReader
	if rdb := healthcheck.NewRedisClientFromConfig(&cfg.Redis); rdb != nil {
		defer rdb.Close()
		cache := statecache.NewRedisCache(rdb)
		dispatcher.Cache = cache
		dispatcher.Windows = remediation.NewRedisObservationWindowManager(rdb)
		openAlerts = cache
	}
	if incidents != nil {
		dispatcher.Incidents = incidents
	}
	sinks, closers, err := buildNotifier(cfg.Notify)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build notification sinks")
	}
	for _, c := range closers {
		defer c.Close()
	}
	dispatcher.Notifier = sinks

	registry, err := buildRegistry(cfg, policy)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build targets")
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		healthcheck.StartScheduler(ctx, healthcheck.Deps{
			Registry:   registry,
			Dispatcher: healthcheck.NewDispatcher(dispatcher),
			Interval:   config.ParseDuration(cfg.Monitor.Interval, 200*time.Millisecond),
		})
	}()

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Telemetry.EnableTracing {
		router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	var lister alertapi.IncidentLister
	if incidents != nil {
		lister = incidents
	}
	alertapi.NewApi(router, alertapi.Deps{
		Registry:  registry,
		Incidents: lister,
		Alerts:    openAlerts,
		Bearer:    cfg.Server.Bearer,
	})

	srv := &http.Server{Addr: cfg.Server.BindAddr, Handler: router}
	go func() {
		log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown failed")
	}
	<-schedulerDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}
	log.Info().Msg("cloudmonitor exit...")
}

func setupLogging(c config.LoggingConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	if c.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	switch strings.ToLower(c.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func buildRegistry(cfg *config.Config, policy model.Policy) (*healthcheck.Registry, error) {
	reg := healthcheck.NewRegistry()
	opts := engine.Options{
		PrimaryRecipient:       cfg.Monitor.PrimaryRecipient,
		SecondaryRecipient:     cfg.Monitor.SecondaryRecipient,
		RemediationProbability: cfg.Monitor.RemediationProbability,
		NotifyOnResolve:        cfg.Monitor.NotifyOnResolve,
		SecondaryEdgeTriggered: cfg.Monitor.SecondaryEdgeTriggered,
	}
	for _, tc := range cfg.Targets {
		if tc.Name == "" {
			return nil, fmt.Errorf("target without a name")
		}
		var src metricsource.Source
		switch strings.ToLower(tc.Source) {
		case "synthetic":
			src = metricsource.NewSynthetic(tc.Seed)
		case "prometheus":
			p, err := metricsource.NewPrometheus(cfg.Prometheus.URL, tc.LatencyQuery, tc.FailureRateQuery,
				config.ParseDuration(cfg.Prometheus.QueryTimeout, 10*time.Second))
			if err != nil {
				return nil, fmt.Errorf("target %s: %w", tc.Name, err)
			}
			src = p
		default:
			return nil, fmt.Errorf("target %s: unknown source %q", tc.Name, tc.Source)
		}
		reg.Add(&healthcheck.Target{
			Name:   tc.Name,
			Source: src,
			Engine: engine.New(policy, opts),
			Log:    eventlog.NewRecorder(cfg.Monitor.LogCapacity),
		})
		log.Info().Str("target", tc.Name).Str("source", tc.Source).Msg("target registered")
	}
	return reg, nil
}

func buildNotifier(c config.NotifyConfig) (notifier.Fanout, []io.Closer, error) {
	var (
		sinks   notifier.Fanout
		closers []io.Closer
	)
	openTimeout := config.ParseDuration(c.Breaker.OpenTimeout, 30*time.Second)
	for _, name := range c.Sinks {
		switch strings.ToLower(name) {
		case "log":
			sinks = append(sinks, notifier.LogNotifier{})
		case "kafka":
			k, err := notifier.NewKafkaNotifier(c.Kafka.Brokers, c.Kafka.Topic)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, k)
			sinks = append(sinks, notifier.NewBreaker("kafka", k, c.Breaker.MaxFailures, openTimeout))
		case "nats":
			n, err := notifier.NewNATSNotifier(c.NATS.URL, c.NATS.Subject)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, n)
			sinks = append(sinks, notifier.NewBreaker("nats", n, c.Breaker.MaxFailures, openTimeout))
		default:
			return nil, closers, fmt.Errorf("unknown notification sink %q", name)
		}
	}
	return sinks, closers, nil
}
