package types

import "time"

// Sentiment values are the literals the extraction contract asks the model for.
type Sentiment string

const (
	SentimentNegative Sentiment = "NEGATIVO"
	SentimentNeutral  Sentiment = "NEUTRO"
	SentimentPositive Sentiment = "POSITIVO"
)

// Level is shared by product familiarity and interaction volume.
type Level string

const (
	LevelUnknown Level = "UNKNOWN"
	LevelLow     Level = "LOW"
	LevelMedium  Level = "MEDIUM"
	LevelHigh    Level = "HIGH"
)

// Rank orders levels for display: UNKNOWN < LOW < MEDIUM < HIGH.
// Values outside the set rank after HIGH.
func (l Level) Rank() int {
	switch l {
	case LevelUnknown:
		return 0
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	default:
		return 4
	}
}

type Client struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone,omitempty"`
	SalesRep    string    `json:"sales_rep"`
	MeetingDate time.Time `json:"meeting_date"`
	Closed      bool      `json:"closed"`
	Transcript  string    `json:"transcript,omitempty"`
}

type KeywordCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type Insight struct {
	ID                     int64          `json:"id"`
	ClientID               int64          `json:"client_id"`
	TranscriptWordCount    int            `json:"transcript_word_count"`
	TopKeywords            []KeywordCount `json:"top_keywords"`
	Industry               *string        `json:"industry"`
	UseCase                []string       `json:"use_case"`
	PrimaryPainPoints      []string       `json:"primary_pain_points"`
	Sentiment              Sentiment      `json:"sentiment"`
	ProductFamiliarity     Level          `json:"product_familiarity"`
	LeadSource             *string        `json:"lead_source"`
	MainGoal               *string        `json:"main_goal"`
	EngagementScore        *int           `json:"engagement_score"`
	InteractionVolumeRaw   *string        `json:"interaction_volume_raw"`
	InteractionVolumeLevel Level          `json:"interaction_volume_level"`
	CreatedAt              time.Time      `json:"created_at"`
}

// ClientWithInsight is one row of the client/insight left join. Insight is nil
// for pending clients.
type ClientWithInsight struct {
	Client  Client   `json:"client"`
	Insight *Insight `json:"insight,omitempty"`
}
