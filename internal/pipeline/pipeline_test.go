package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insights-go/internal/extractor"
	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/metrics"
	"sales-insights-go/internal/store"
	"sales-insights-go/internal/types"
)

type extractFunc func(ctx context.Context, transcript string) (*extractor.Fields, error)

func (f extractFunc) Extract(ctx context.Context, transcript string) (*extractor.Fields, error) {
	return f(ctx, transcript)
}

func fixedFields(industry string) extractFunc {
	return func(context.Context, string) (*extractor.Fields, error) {
		return extractor.ParseResponse(`{"industry":"` + industry + `","sentiment":"POSITIVO","engagementScore":4}`)
	}
}

func setup(t *testing.T) (*store.Store, types.Client) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c, err := st.CreateClient(context.Background(), types.Client{
		Name:        "Banco Sur",
		Email:       "contacto@bancosur.cl",
		SalesRep:    "Toro",
		MeetingDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Transcript:  "Somos un banco regional con muchas consultas de clientes, consultas repetidas",
	})
	require.NoError(t, err)
	return st, c
}

func TestProcess_DoneThenSkipped(t *testing.T) {
	st, c := setup(t)
	m := metrics.Nop()
	p := New(st, fixedFields("banca"), 3, m, logger.Discard())
	ctx := context.Background()

	first := p.Process(ctx, c.ID)
	assert.Equal(t, StatusDone, first.Status)
	assert.NotZero(t, first.InsightID)

	ins, err := st.FindInsightByClientID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, ins)
	assert.Equal(t, 11, ins.TranscriptWordCount)
	assert.Equal(t, "consultas", ins.TopKeywords[0].Term)
	assert.Equal(t, 2, ins.TopKeywords[0].Count)
	assert.Len(t, ins.TopKeywords, 3)
	assert.Equal(t, "banca", *ins.Industry)

	second := p.Process(ctx, c.ID)
	assert.Equal(t, StatusSkipped, second.Status)
	assert.Equal(t, ReasonInsightExists, second.Reason)
	assert.Equal(t, first.InsightID, second.InsightID)

	rows, err := st.ListClientsWithInsights(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("DONE", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("SKIPPED", "")))
}

func TestProcess_ClientNotFound(t *testing.T) {
	st, _ := setup(t)
	called := false
	p := New(st, extractFunc(func(context.Context, string) (*extractor.Fields, error) {
		called = true
		return nil, nil
	}), 0, nil, logger.Discard())

	out := p.Process(context.Background(), 999)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, KindClientNotFound, out.Kind)
	assert.ErrorIs(t, out.Err, store.ErrClientNotFound)
	assert.False(t, called)
}

func TestProcess_MalformedResponseWritesNothing(t *testing.T) {
	st, c := setup(t)
	ex := extractor.New(generatorFunc(func(context.Context, extractor.Request) (string, error) {
		return "no tengo información", nil
	}), time.Second, logger.Discard())
	p := New(st, ex, 0, nil, logger.Discard())

	out := p.Process(context.Background(), c.ID)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, KindMalformedResponse, out.Kind)
	assert.ErrorIs(t, out.Err, extractor.ErrMalformedResponse)

	ins, err := st.FindInsightByClientID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Nil(t, ins)
}

func TestProcess_FailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     FailureKind
	}{
		{"no object", "no tengo información", nil, KindMalformedResponse},
		{"invalid json", `{"industry": banca}`, nil, KindExtractionParse},
		{"generator error", "", errors.New("quota exceeded"), KindExtractionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, c := setup(t)
			ex := extractor.New(generatorFunc(func(context.Context, extractor.Request) (string, error) {
				return tt.response, tt.err
			}), time.Second, logger.Discard())

			out := New(st, ex, 0, nil, logger.Discard()).Process(context.Background(), c.ID)
			assert.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, tt.want, out.Kind)
		})
	}
}

func TestProcess_Timeout(t *testing.T) {
	st, c := setup(t)
	ex := extractor.New(generatorFunc(func(ctx context.Context, _ extractor.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 10*time.Millisecond, logger.Discard())
	p := New(st, ex, 0, nil, logger.Discard())

	out := p.Process(context.Background(), c.ID)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, KindExtractionTimeout, out.Kind)
}

func TestProcess_ConcurrentWriterWinsIsSkipped(t *testing.T) {
	st, c := setup(t)
	racer := extractFunc(func(ctx context.Context, transcript string) (*extractor.Fields, error) {
		_, err := st.CreateInsight(ctx, types.Insight{
			ClientID:               c.ID,
			Sentiment:              types.SentimentNeutral,
			ProductFamiliarity:     types.LevelUnknown,
			InteractionVolumeLevel: types.LevelUnknown,
		})
		require.NoError(t, err)
		return fixedFields("retail")(ctx, transcript)
	})
	p := New(st, racer, 0, nil, logger.Discard())

	out := p.Process(context.Background(), c.ID)
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, ReasonDuplicateInsight, out.Reason)

	ins, err := st.FindInsightByClientID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Nil(t, ins.Industry)
}

func TestProcess_ClientDeletedDuringExtraction(t *testing.T) {
	st, c := setup(t)
	deleter := extractFunc(func(ctx context.Context, transcript string) (*extractor.Fields, error) {
		require.NoError(t, st.DeleteClient(ctx, c.ID))
		return fixedFields("banca")(ctx, transcript)
	})
	p := New(st, deleter, 0, nil, logger.Discard())

	out := p.Process(context.Background(), c.ID)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, KindClientNotFound, out.Kind)
}

type failingStore struct{ Store }

func (failingStore) FindInsightByClientID(context.Context, int64) (*types.Insight, error) {
	return nil, errors.New("disk I/O error")
}

func TestProcess_StorageError(t *testing.T) {
	st, c := setup(t)
	p := New(failingStore{st}, fixedFields("banca"), 0, nil, logger.Discard())

	out := p.Process(context.Background(), c.ID)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, KindStorageError, out.Kind)
	assert.Contains(t, out.Message, "disk I/O error")
}

type generatorFunc func(ctx context.Context, req extractor.Request) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req extractor.Request) (string, error) {
	return f(ctx, req)
}
