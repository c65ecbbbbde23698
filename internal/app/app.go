// Package app wires storage, extraction and processing for the binaries.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sales-insights-go/internal/config"
	"sales-insights-go/internal/dataset"
	"sales-insights-go/internal/extractor"
	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/metrics"
	"sales-insights-go/internal/pipeline"
	"sales-insights-go/internal/processor"
	"sales-insights-go/internal/store"
)

type App struct {
	Config   config.Config
	Log      *logger.Logger
	Store    *store.Store
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Pipeline *pipeline.Pipeline
	Batch    *processor.BatchController
	Ingester *dataset.Ingester
}

func New(cfg config.Config, log *logger.Logger) (*App, error) {
	gen, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ex := extractor.New(gen, cfg.ExtractionTimeout, log)
	p := pipeline.New(st, ex, cfg.TopKeywords, m, log)
	batch := processor.NewBatchController(st, p, m, log)
	batch.FailFast = cfg.BatchFailFast

	log.WithField("provider", cfg.Provider()).WithField("db_path", cfg.DBPath).Info("application wired")
	return &App{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Registry: reg,
		Metrics:  m,
		Pipeline: p,
		Batch:    batch,
		Ingester: dataset.NewIngester(st, m, log),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// NewGenerator builds the generative service client selected by cfg.
func NewGenerator(cfg config.Config) (extractor.Generator, error) {
	switch cfg.Provider() {
	case config.ProviderMock:
		return extractor.MockGenerator{}, nil
	case config.ProviderGateway:
		return extractor.NewGatewayClient(cfg.LLMGatewayURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMMaxRetry), nil
	case config.ProviderGemini:
		return extractor.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMMaxRetry), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider())
	}
}
