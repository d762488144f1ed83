package main

import (
	"context"
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/renderinc/notice-cache/internal/annotate"
	"github.com/renderinc/notice-cache/internal/broker"
	"github.com/renderinc/notice-cache/internal/config"
	"github.com/renderinc/notice-cache/internal/fetch"
	"github.com/renderinc/notice-cache/internal/freshness"
	"github.com/renderinc/notice-cache/internal/icao"
	"github.com/renderinc/notice-cache/internal/logging"
	"github.com/renderinc/notice-cache/internal/metrics"
	"github.com/renderinc/notice-cache/internal/search"
	"github.com/renderinc/notice-cache/internal/storage"
	"github.com/renderinc/notice-cache/internal/summarize"
)

// app holds the wired components shared by the commands
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   storage.Store
	idx     *search.Index
	broker  broker.Broker
	metrics *metrics.Metrics
	orch    *fetch.Orchestrator
	worker  *annotate.Worker // nil when no summarizer is reachable
}

// loadConfig applies the root flags on top of files and env
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFiles(configPaths...)
	if err != nil {
		return nil, err
	}
	config.ApplyFlagOverrides(cfg, dataDir, storeDriver)
	return cfg, cfg.Validate()
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverPostgres:
		return storage.OpenPostgres(cfg.Storage.DSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return storage.Open(cfg.DBPath())
	}
}

// newApp opens the store and index and wires the orchestrator. The
// summarizer is optional: when it is unreachable the worker stays nil.
func newApp(ctx context.Context, withSummarizer bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging)

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		store.Close()
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	idx, err := search.Open(cfg.IndexPath())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}

	var b broker.Broker
	if len(cfg.Broker.Brokers) > 0 {
		kb, err := broker.NewKafkaBroker(cfg.Broker.Brokers, logger)
		if err != nil {
			idx.Close()
			store.Close()
			return nil, fmt.Errorf("connect broker: %w", err)
		}
		b = kb
	} else {
		b = broker.NewInMemoryBroker()
	}

	policy, err := fetch.ParseStampPolicy(cfg.Fetch.StampPolicy)
	if err != nil {
		b.Close()
		idx.Close()
		store.Close()
		return nil, err
	}

	m := metrics.New(prometheus.NewRegistry())
	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		idx:     idx,
		broker:  b,
		metrics: m,
	}

	source := icao.NewClient(cfg.Upstream.URL, cfg.Upstream.APIKey, cfg.Upstream.Timeout.Std())
	a.orch = fetch.NewOrchestrator(store, freshness.NewTracker(store, cfg.Fetch.FreshnessWindow.Std()), source, fetch.Options{
		Policy:  policy,
		Broker:  b,
		Index:   idx,
		Metrics: m,
		Logger:  logger,
	})

	if withSummarizer {
		a.worker = a.newWorker(ctx)
	}
	return a, nil
}

// newWorker returns nil, with a warning, when the summarizer is not usable
func (a *app) newWorker(ctx context.Context) *annotate.Worker {
	sc := a.cfg.Summarizer
	if sc.Provider == "" || sc.Provider == "none" {
		return nil
	}

	completer, err := summarize.NewCompleter(sc.Provider, sc.URL, sc.APIKey, sc.Timeout.Std())
	if err != nil {
		a.logger.Warn().Err(err).Msg("summarizer disabled")
		return nil
	}

	model := sc.Model
	if model == "" {
		model = summarize.DefaultModel(sc.Provider)
	}
	s := summarize.New(completer, model, sc.BriefingModel)

	if err := s.Health(ctx); err != nil {
		a.logger.Warn().Str("provider", sc.Provider).Str("model", model).Err(err).Msg("summarizer not available, interpretation disabled")
		return nil
	}
	a.logger.Info().Str("provider", sc.Provider).Str("model", model).Msg("summarizer available")

	return annotate.NewWorker(a.store, s, annotate.WithMetrics(a.metrics), annotate.WithLogger(a.logger))
}

func (a *app) requireWorker() error {
	if a.worker == nil {
		return fmt.Errorf("summarizer not available (provider %q); check the [summarizer] config", a.cfg.Summarizer.Provider)
	}
	return nil
}

func (a *app) Close() {
	if err := a.broker.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close broker")
	}
	if err := a.idx.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close index")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close store")
	}
}
