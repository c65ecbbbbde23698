package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sales-insights-go/internal/types"
)

type scanner interface {
	Scan(dest ...any) error
}

type clientRow struct {
	id          int64
	name        string
	email       string
	phone       sql.NullString
	salesRep    string
	meetingDate string
	closed      int
	transcript  string
}

func (r *clientRow) dest() []any {
	return []any{&r.id, &r.name, &r.email, &r.phone, &r.salesRep, &r.meetingDate, &r.closed, &r.transcript}
}

func (r *clientRow) toClient() (types.Client, error) {
	meetingDate, err := time.Parse(time.RFC3339, r.meetingDate)
	if err != nil {
		return types.Client{}, fmt.Errorf("parse meeting_date of client %d: %w", r.id, err)
	}
	c := types.Client{
		ID:          r.id,
		Name:        r.name,
		Email:       r.email,
		SalesRep:    r.salesRep,
		MeetingDate: meetingDate,
		Closed:      r.closed != 0,
		Transcript:  r.transcript,
	}
	if r.phone.Valid {
		phone := r.phone.String
		c.Phone = &phone
	}
	return c, nil
}

// nullableInsightRow scans the right side of a LEFT JOIN, where every column
// may be NULL.
type nullableInsightRow struct {
	id                     sql.NullInt64
	clientID               sql.NullInt64
	wordCount              sql.NullInt64
	topKeywords            sql.NullString
	industry               sql.NullString
	useCase                sql.NullString
	painPoints             sql.NullString
	sentiment              sql.NullString
	familiarity            sql.NullString
	leadSource             sql.NullString
	mainGoal               sql.NullString
	engagementScore        sql.NullInt64
	interactionVolumeRaw   sql.NullString
	interactionVolumeLevel sql.NullString
	createdAt              sql.NullString
}

func (r *nullableInsightRow) dest() []any {
	return []any{
		&r.id, &r.clientID, &r.wordCount, &r.topKeywords, &r.industry, &r.useCase,
		&r.painPoints, &r.sentiment, &r.familiarity, &r.leadSource, &r.mainGoal,
		&r.engagementScore, &r.interactionVolumeRaw, &r.interactionVolumeLevel, &r.createdAt,
	}
}

func (r *nullableInsightRow) toInsight() (*types.Insight, error) {
	if !r.id.Valid {
		return nil, nil
	}
	ins := &types.Insight{
		ID:                     r.id.Int64,
		ClientID:               r.clientID.Int64,
		TranscriptWordCount:    int(r.wordCount.Int64),
		Industry:               stringPtr(r.industry),
		Sentiment:              types.Sentiment(r.sentiment.String),
		ProductFamiliarity:     types.Level(r.familiarity.String),
		LeadSource:             stringPtr(r.leadSource),
		MainGoal:               stringPtr(r.mainGoal),
		InteractionVolumeRaw:   stringPtr(r.interactionVolumeRaw),
		InteractionVolumeLevel: types.Level(r.interactionVolumeLevel.String),
	}
	if r.engagementScore.Valid {
		score := int(r.engagementScore.Int64)
		ins.EngagementScore = &score
	}
	if err := json.Unmarshal([]byte(r.topKeywords.String), &ins.TopKeywords); err != nil {
		return nil, fmt.Errorf("decode top_keywords of insight %d: %w", ins.ID, err)
	}
	if err := json.Unmarshal([]byte(r.useCase.String), &ins.UseCase); err != nil {
		return nil, fmt.Errorf("decode use_case of insight %d: %w", ins.ID, err)
	}
	if err := json.Unmarshal([]byte(r.painPoints.String), &ins.PrimaryPainPoints); err != nil {
		return nil, fmt.Errorf("decode primary_pain_points of insight %d: %w", ins.ID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, r.createdAt.String)
	if err != nil {
		return nil, fmt.Errorf("parse created_at_utc of insight %d: %w", ins.ID, err)
	}
	ins.CreatedAt = createdAt
	return ins, nil
}

func scanClient(row scanner) (types.Client, error) {
	var r clientRow
	if err := row.Scan(r.dest()...); err != nil {
		return types.Client{}, err
	}
	return r.toClient()
}

func scanInsight(row scanner) (*types.Insight, error) {
	var r nullableInsightRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.toInsight()
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
