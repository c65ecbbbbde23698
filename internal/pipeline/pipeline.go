// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sales-insights-go/internal/analysis"
	"sales-insights-go/internal/extractor"
	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/metrics"
	"sales-insights-go/internal/store"
	"sales-insights-go/internal/types"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusSkipped    Status = "SKIPPED"
	StatusFailed     Status = "FAILED"
)

type FailureKind string

const (
	KindClientNotFound    FailureKind = "client_not_found"
	KindMalformedResponse FailureKind = "malformed_response"
	KindExtractionParse   FailureKind = "extraction_parse"
	KindExtractionTimeout FailureKind = "extraction_timeout"
	// KindExtractionFailed covers generator errors and an empty result.
	KindExtractionFailed FailureKind = "extraction_failed"
	KindStorageError     FailureKind = "storage_error"
)

// Skip reasons.
const (
	ReasonInsightExists    = "insight_exists"
	ReasonDuplicateInsight = "duplicate_insight"
)

// Outcome is the terminal state of one client's processing.
type Outcome struct {
	ClientID  int64       `json:"client_id"`
	Status    Status      `json:"status"`
	Kind      FailureKind `json:"kind,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Message   string      `json:"message,omitempty"`
	InsightID int64       `json:"insight_id,omitempty"`
	Err       error       `json:"-"`
}

// Store is the subset of storage the pipeline needs.
type Store interface {
	FindInsightByClientID(ctx context.Context, clientID int64) (*types.Insight, error)
	FindClientByID(ctx context.Context, id int64) (types.Client, error)
	CreateInsight(ctx context.Context, ins types.Insight) (types.Insight, error)
}

type Extractor interface {
	Extract(ctx context.Context, transcript string) (*extractor.Fields, error)
}

type Pipeline struct {
	store     Store
	extractor Extractor
	topN      int
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func New(st Store, ex Extractor, topN int, m *metrics.Metrics, log *logger.Logger) *Pipeline {
	if topN <= 0 {
		topN = analysis.DefaultTopKeywords
	}
	if m == nil {
		m = metrics.Nop()
	}
	if log == nil {
		log = logger.FromEnv()
	}
	return &Pipeline{store: st, extractor: ex, topN: topN, metrics: m, log: log.WithComponent("pipeline")}
}

// Process derives and persists the insight for one client. It never returns
// an error; failures are reported in the Outcome.
func (p *Pipeline) Process(ctx context.Context, clientID int64) Outcome {
	start := time.Now()
	out := p.process(ctx, clientID)

	p.metrics.OutcomesTotal.WithLabelValues(string(out.Status), string(out.Kind)).Inc()
	entry := p.log.WithFields(logrus.Fields{
		"client_id":   clientID,
		"status":      out.Status,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	switch out.Status {
	case StatusFailed:
		entry.WithField("kind", out.Kind).WithField("error", out.Message).Warn("insight processing failed")
	case StatusSkipped:
		entry.WithField("reason", out.Reason).Info("insight skipped")
	default:
		entry.WithField("insight_id", out.InsightID).Info("insight created")
	}
	return out
}

func (p *Pipeline) process(ctx context.Context, clientID int64) Outcome {
	existing, err := p.store.FindInsightByClientID(ctx, clientID)
	if err != nil {
		return failed(clientID, KindStorageError, fmt.Errorf("find insight: %w", err))
	}
	if existing != nil {
		return Outcome{ClientID: clientID, Status: StatusSkipped, Reason: ReasonInsightExists, InsightID: existing.ID}
	}

	client, err := p.store.FindClientByID(ctx, clientID)
	if errors.Is(err, store.ErrClientNotFound) {
		return failed(clientID, KindClientNotFound, err)
	}
	if err != nil {
		return failed(clientID, KindStorageError, fmt.Errorf("find client: %w", err))
	}

	p.log.WithField("client_id", clientID).WithField("status", StatusProcessing).Debug("extracting insight")

	wordCount := analysis.WordCount(client.Transcript)
	keywords := analysis.TopKeywords(client.Transcript, p.topN)

	started := time.Now()
	fields, err := p.extractor.Extract(ctx, client.Transcript)
	p.metrics.ExtractionSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		return failed(clientID, extractionKind(err), err)
	}
	if fields == nil {
		return failed(clientID, KindExtractionFailed, errors.New("extractor returned no fields"))
	}

	created, err := p.store.CreateInsight(ctx, types.Insight{
		ClientID:               clientID,
		TranscriptWordCount:    wordCount,
		TopKeywords:            keywords,
		Industry:               fields.Industry,
		UseCase:                fields.UseCase,
		PrimaryPainPoints:      fields.PrimaryPainPoints,
		Sentiment:              fields.Sentiment,
		ProductFamiliarity:     fields.ProductFamiliarity,
		LeadSource:             fields.LeadSource,
		MainGoal:               fields.MainGoal,
		EngagementScore:        fields.EngagementScore,
		InteractionVolumeRaw:   fields.InteractionVolumeRaw,
		InteractionVolumeLevel: fields.InteractionVolumeLevel,
	})
	switch {
	case errors.Is(err, store.ErrDuplicateInsight):
		return Outcome{ClientID: clientID, Status: StatusSkipped, Reason: ReasonDuplicateInsight}
	case errors.Is(err, store.ErrClientNotFound):
		return failed(clientID, KindClientNotFound, err)
	case err != nil:
		return failed(clientID, KindStorageError, fmt.Errorf("create insight: %w", err))
	}

	return Outcome{ClientID: clientID, Status: StatusDone, InsightID: created.ID}
}

func extractionKind(err error) FailureKind {
	switch {
	case errors.Is(err, extractor.ErrExtractionTimeout):
		return KindExtractionTimeout
	case errors.Is(err, extractor.ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, extractor.ErrExtractionParse):
		return KindExtractionParse
	default:
		return KindExtractionFailed
	}
}

func failed(clientID int64, kind FailureKind, err error) Outcome {
	return Outcome{ClientID: clientID, Status: StatusFailed, Kind: kind, Message: err.Error(), Err: err}
}
