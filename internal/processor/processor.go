// internal/processor/processor.go
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/metrics"
	"sales-insights-go/internal/pipeline"
)

// PendingLister returns the IDs of clients that have no insight yet.
type PendingLister interface {
	ListClientIDsMissingInsight(ctx context.Context) ([]int64, error)
}

type ClientProcessor interface {
	Process(ctx context.Context, clientID int64) pipeline.Outcome
}

type Failure struct {
	ClientID int64                `json:"client_id"`
	Kind     pipeline.FailureKind `json:"kind"`
	Message  string               `json:"message"`
}

// Report summarizes one batch run.
type Report struct {
	RunID       string             `json:"run_id"`
	Total       int                `json:"total"`
	Done        int                `json:"done"`
	Skipped     int                `json:"skipped"`
	Failed      int                `json:"failed"`
	Remaining   int                `json:"remaining"`
	Aborted     bool               `json:"aborted"`
	Outcomes    []pipeline.Outcome `json:"outcomes"`
	Failures    []Failure          `json:"failures"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
}

type BatchController struct {
	pending   PendingLister
	processor ClientProcessor
	// FailFast stops the run at the first FAILED outcome.
	FailFast bool
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewBatchController(pending PendingLister, proc ClientProcessor, m *metrics.Metrics, log *logger.Logger) *BatchController {
	if m == nil {
		m = metrics.Nop()
	}
	if log == nil {
		log = logger.FromEnv()
	}
	return &BatchController{pending: pending, processor: proc, metrics: m, log: log.WithComponent("batch")}
}

// Pending lists the clients a Run would process.
func (b *BatchController) Pending(ctx context.Context) ([]int64, error) {
	ids, err := b.pending.ListClientIDsMissingInsight(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending clients: %w", err)
	}
	return ids, nil
}

// Run processes every client lacking an insight, one at a time.
func (b *BatchController) Run(ctx context.Context) (Report, error) {
	ids, err := b.Pending(ctx)
	if err != nil {
		b.metrics.BatchRunsTotal.WithLabelValues("error").Inc()
		return Report{}, err
	}
	return b.RunIDs(ctx, ids), nil
}

// RunIDs processes the given clients in order. A failed client does not stop
// the run unless FailFast is set. Cancellation is observed between clients;
// clients not reached are counted in Remaining.
func (b *BatchController) RunIDs(ctx context.Context, ids []int64) Report {
	rep := Report{
		RunID:     uuid.New().String(),
		Total:     len(ids),
		Outcomes:  make([]pipeline.Outcome, 0, len(ids)),
		Failures:  []Failure{},
		StartedAt: time.Now().UTC(),
	}
	log := b.log.WithField("run_id", rep.RunID)
	log.WithField("total", rep.Total).Info("batch run started")

	for i, id := range ids {
		if ctx.Err() != nil {
			rep.Remaining = len(ids) - i
			rep.Aborted = true
			log.WithError(ctx.Err()).Warn("batch run cancelled")
			break
		}

		out := b.processor.Process(ctx, id)
		rep.Outcomes = append(rep.Outcomes, out)

		switch out.Status {
		case pipeline.StatusDone:
			rep.Done++
		case pipeline.StatusSkipped:
			rep.Skipped++
		case pipeline.StatusFailed:
			rep.Failed++
			rep.Failures = append(rep.Failures, Failure{ClientID: id, Kind: out.Kind, Message: out.Message})
		}

		if b.FailFast && out.Status == pipeline.StatusFailed {
			rep.Remaining = len(ids) - i - 1
			rep.Aborted = true
			log.WithField("client_id", id).Warn("batch run stopped on first failure")
			break
		}
	}

	rep.CompletedAt = time.Now().UTC()
	result := "completed"
	if rep.Aborted {
		result = "aborted"
	}
	b.metrics.BatchRunsTotal.WithLabelValues(result).Inc()

	log.WithFields(logrus.Fields{
		"done":        rep.Done,
		"skipped":     rep.Skipped,
		"failed":      rep.Failed,
		"remaining":   rep.Remaining,
		"duration_ms": rep.CompletedAt.Sub(rep.StartedAt).Milliseconds(),
	}).Info("batch run finished")
	return rep
}
