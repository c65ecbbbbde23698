package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insights-go/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "insights.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedClient(t *testing.T, s *Store, name string, date time.Time) types.Client {
	t.Helper()
	c, err := s.CreateClient(context.Background(), types.Client{
		Name:        name,
		Email:       name + "@example.com",
		SalesRep:    "Ana",
		MeetingDate: date,
		Closed:      true,
		Transcript:  "Hola, somos un banco",
	})
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

func TestCreateAndFindClient(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	phone := "+56 9 1234 5678"

	created, err := s.CreateClient(ctx, types.Client{
		Name:        "Acme",
		Email:       "acme@example.com",
		Phone:       &phone,
		SalesRep:    "Toro",
		MeetingDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Closed:      true,
		Transcript:  "texto",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := s.FindClientByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	require.NotNil(t, got.Phone)
	assert.Equal(t, phone, *got.Phone)
	assert.True(t, got.Closed)
	assert.True(t, got.MeetingDate.Equal(created.MeetingDate))

	_, err = s.FindClientByID(ctx, created.ID+100)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestCreateInsight_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "acme", time.Now())

	none, err := s.FindInsightByClientID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	score := 4
	created, err := s.CreateInsight(ctx, types.Insight{
		ClientID:               c.ID,
		TranscriptWordCount:    4,
		TopKeywords:            []types.KeywordCount{{Term: "banco", Count: 1}},
		Industry:               strPtr("banca"),
		UseCase:                []string{"automatizar consultas"},
		Sentiment:              types.SentimentPositive,
		ProductFamiliarity:     types.LevelLow,
		EngagementScore:        &score,
		InteractionVolumeLevel: types.LevelUnknown,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := s.FindInsightByClientID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ClientID)
	assert.Equal(t, []types.KeywordCount{{Term: "banco", Count: 1}}, got.TopKeywords)
	assert.Equal(t, "banca", *got.Industry)
	assert.Nil(t, got.LeadSource)
	assert.Equal(t, []string{"automatizar consultas"}, got.UseCase)
	assert.Equal(t, []string{}, got.PrimaryPainPoints)
	assert.Equal(t, 4, *got.EngagementScore)
	assert.Equal(t, types.SentimentPositive, got.Sentiment)
}

func TestCreateInsight_DuplicateIsRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "acme", time.Now())

	ins := types.Insight{
		ClientID:               c.ID,
		Sentiment:              types.SentimentNeutral,
		ProductFamiliarity:     types.LevelUnknown,
		InteractionVolumeLevel: types.LevelUnknown,
	}
	_, err := s.CreateInsight(ctx, ins)
	require.NoError(t, err)

	_, err = s.CreateInsight(ctx, ins)
	assert.ErrorIs(t, err, ErrDuplicateInsight)

	rows, err := s.ListClientsWithInsights(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCreateInsight_MissingClient(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CreateInsight(context.Background(), types.Insight{
		ClientID:               42,
		Sentiment:              types.SentimentNeutral,
		ProductFamiliarity:     types.LevelUnknown,
		InteractionVolumeLevel: types.LevelUnknown,
	})
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestListClientIDsMissingInsight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := seedClient(t, s, "a", time.Now())
	b := seedClient(t, s, "b", time.Now())
	c := seedClient(t, s, "c", time.Now())

	_, err := s.CreateInsight(ctx, types.Insight{
		ClientID:               b.ID,
		Sentiment:              types.SentimentNeutral,
		ProductFamiliarity:     types.LevelUnknown,
		InteractionVolumeLevel: types.LevelUnknown,
	})
	require.NoError(t, err)

	ids, err := s.ListClientIDsMissingInsight(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, c.ID}, ids)
}

func TestListClientsWithInsights_LeftJoinOrderedByMeetingDate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	late := seedClient(t, s, "late", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	early := seedClient(t, s, "early", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := s.CreateInsight(ctx, types.Insight{
		ClientID:               late.ID,
		Sentiment:              types.SentimentNeutral,
		ProductFamiliarity:     types.LevelHigh,
		InteractionVolumeLevel: types.LevelLow,
	})
	require.NoError(t, err)

	rows, err := s.ListClientsWithInsights(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, early.ID, rows[0].Client.ID)
	assert.Nil(t, rows[0].Insight)
	assert.Equal(t, late.ID, rows[1].Client.ID)
	require.NotNil(t, rows[1].Insight)
	assert.Equal(t, types.LevelHigh, rows[1].Insight.ProductFamiliarity)
}

func TestDeleteClientCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "gone", time.Now())
	_, err := s.CreateInsight(ctx, types.Insight{
		ClientID:               c.ID,
		Sentiment:              types.SentimentNeutral,
		ProductFamiliarity:     types.LevelUnknown,
		InteractionVolumeLevel: types.LevelUnknown,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteClient(ctx, c.ID))
	assert.ErrorIs(t, s.DeleteClient(ctx, c.ID), ErrClientNotFound)

	ins, err := s.FindInsightByClientID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, ins)
}
