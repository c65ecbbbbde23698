package dataset

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/metrics"
	"sales-insights-go/internal/types"
)

// Slash and dash dates are month first.
var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "01/02/2006", "01-02-2006", "1/2/2006"}

type ClientCreator interface {
	CreateClient(ctx context.Context, c types.Client) (types.Client, error)
}

type Rejection struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Summary reports the result of one ingestion.
type Summary struct {
	TotalRows  int         `json:"total_rows"`
	Created    int         `json:"created"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections"`
	ClientIDs  []int64     `json:"client_ids"`
}

type Ingester struct {
	creator  ClientCreator
	validate *validator.Validate
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewIngester(creator ClientCreator, m *metrics.Metrics, log *logger.Logger) *Ingester {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("col")
	})
	if m == nil {
		m = metrics.Nop()
	}
	if log == nil {
		log = logger.FromEnv()
	}
	return &Ingester{creator: creator, validate: v, metrics: m, log: log.WithComponent("dataset")}
}

// Ingest validates and stores rows. Invalid rows are rejected with a reason;
// a storage failure stops ingestion and is returned with the partial summary.
func (in *Ingester) Ingest(ctx context.Context, rows []Row) (Summary, error) {
	sum := Summary{TotalRows: len(rows), Rejections: []Rejection{}, ClientIDs: []int64{}}

	for _, row := range rows {
		client, err := in.ToClient(row)
		if err != nil {
			sum.Rejected++
			sum.Rejections = append(sum.Rejections, Rejection{Line: row.Line, Reason: err.Error()})
			in.metrics.IngestedRowsTotal.WithLabelValues("rejected").Inc()
			in.log.WithField("line", row.Line).WithField("reason", err.Error()).Warn("row rejected")
			continue
		}

		created, err := in.creator.CreateClient(ctx, client)
		if err != nil {
			return sum, fmt.Errorf("create client from line %d: %w", row.Line, err)
		}
		sum.Created++
		sum.ClientIDs = append(sum.ClientIDs, created.ID)
		in.metrics.IngestedRowsTotal.WithLabelValues("created").Inc()
	}

	in.log.WithField("total_rows", sum.TotalRows).
		WithField("created", sum.Created).
		WithField("rejected", sum.Rejected).
		Info("dataset ingested")
	return sum, nil
}

// ToClient validates a row and converts it.
func (in *Ingester) ToClient(row Row) (types.Client, error) {
	if err := in.validate.Struct(row); err != nil {
		return types.Client{}, describe(err)
	}

	date, err := parseDate(row.MeetingDate)
	if err != nil {
		return types.Client{}, err
	}

	c := types.Client{
		Name:        row.Name,
		Email:       row.Email,
		SalesRep:    row.SalesRep,
		MeetingDate: date,
		Closed:      parseClosed(row.Closed),
		Transcript:  row.Transcript,
	}
	if row.Phone != "" {
		phone := row.Phone
		c.Phone = &phone
	}
	return c, nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, "missing "+fe.Field())
		default:
			parts = append(parts, fmt.Sprintf("invalid %s", fe.Field()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", ColMeetingDate, v)
}

// parseClosed treats any numeric value equal to 1 as closed.
func parseClosed(v string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil && f == 1
}
