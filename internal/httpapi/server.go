package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"sales-insights-go/internal/actionable"
	"sales-insights-go/internal/aggregator"
	"sales-insights-go/internal/dataset"
	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/pipeline"
	"sales-insights-go/internal/processor"
	"sales-insights-go/internal/types"
)

// PageSize is the number of clients per /clients page.
const PageSize = 15

// maxUploadBytes bounds dataset uploads.
const maxUploadBytes = 32 << 20

type ClientLister interface {
	ListClientsWithInsights(ctx context.Context) ([]types.ClientWithInsight, error)
}

type Processor interface {
	Process(ctx context.Context, clientID int64) pipeline.Outcome
}

type Batch interface {
	Pending(ctx context.Context) ([]int64, error)
	Run(ctx context.Context) (processor.Report, error)
}

type Ingester interface {
	Ingest(ctx context.Context, rows []dataset.Row) (dataset.Summary, error)
}

type Server struct {
	clients  ClientLister
	proc     Processor
	batch    Batch
	ingester Ingester
	gatherer prometheus.Gatherer
	log      *logger.Logger
}

func NewServer(clients ClientLister, proc Processor, batch Batch, ingester Ingester, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	return &Server{
		clients:  clients,
		proc:     proc,
		batch:    batch,
		ingester: ingester,
		gatherer: gatherer,
		log:      log.WithComponent("http"),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /pending-insights", s.handlePending)
	mux.HandleFunc("POST /process-insight/{id}", s.handleProcessOne)
	mux.HandleFunc("POST /process-insights", s.handleProcessAll)
	mux.HandleFunc("GET /clients", s.handleClients)
	mux.HandleFunc("POST /clients/import", s.handleImport)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	fmt.Fprint(w, "ok")
}

type pendingResponse struct {
	TotalPending int     `json:"total_pending"`
	ClientIDs    []int64 `json:"client_ids"`
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "pending")
	ids, err := s.batch.Pending(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("list pending failed")
		http.Error(w, "could not list pending clients", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, reqLog, http.StatusOK, pendingResponse{TotalPending: len(ids), ClientIDs: ids})
}

func (s *Server) handleProcessOne(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "process-insight")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}

	start := time.Now()
	out := s.proc.Process(r.Context(), id)
	reqLog.WithField("client_id", id).
		WithField("status", out.Status).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("processor finished")
	writeJSON(w, reqLog, outcomeStatus(out), out)
}

// outcomeStatus maps a per-client outcome to an HTTP status code.
func outcomeStatus(out pipeline.Outcome) int {
	if out.Status != pipeline.StatusFailed {
		return http.StatusOK
	}
	switch out.Kind {
	case pipeline.KindClientNotFound:
		return http.StatusNotFound
	case pipeline.KindExtractionFailed, pipeline.KindExtractionTimeout,
		pipeline.KindMalformedResponse, pipeline.KindExtractionParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleProcessAll(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "process-insights")
	rep, err := s.batch.Run(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("batch run failed")
		http.Error(w, "batch run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, rep)
}

type clientsPage struct {
	Page       int                       `json:"page"`
	PageSize   int                       `json:"page_size"`
	Total      int                       `json:"total"`
	TotalPages int                       `json:"total_pages"`
	Clients    []types.ClientWithInsight `json:"clients"`
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "clients")
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}

	rows, err := s.clients.ListClientsWithInsights(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("list clients failed")
		http.Error(w, "could not list clients", http.StatusInternalServerError)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, paginate(rows, page))
}

func paginate(rows []types.ClientWithInsight, page int) clientsPage {
	out := clientsPage{
		Page:       page,
		PageSize:   PageSize,
		Total:      len(rows),
		TotalPages: (len(rows) + PageSize - 1) / PageSize,
		Clients:    []types.ClientWithInsight{},
	}
	start := (page - 1) * PageSize
	if start >= len(rows) {
		return out
	}
	end := min(start+PageSize, len(rows))
	out.Clients = rows[start:end]
	return out
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "import")
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var rows []dataset.Row
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		rows, err = dataset.ReadCSV(file)
	case ".xlsx", ".xlsm":
		rows, err = dataset.ReadXLSX(file)
	default:
		http.Error(w, "file must be .csv or .xlsx", http.StatusBadRequest)
		return
	}
	if err != nil {
		reqLog.WithError(err).Warn("dataset unreadable")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sum, err := s.ingester.Ingest(r.Context(), rows)
	if err != nil {
		reqLog.WithError(err).Error("ingestion failed")
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, reqLog, http.StatusOK, sum)
}

type reportResponse struct {
	View  aggregator.View         `json:"view"`
	Cards []actionable.ActionCard `json:"cards"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "report")
	rows, err := s.clients.ListClientsWithInsights(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("list clients failed")
		http.Error(w, "could not build report", http.StatusInternalServerError)
		return
	}
	view := aggregator.Aggregate(rows)
	writeJSON(w, reqLog, http.StatusOK, reportResponse{View: view, Cards: actionable.Generate(view)})
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
