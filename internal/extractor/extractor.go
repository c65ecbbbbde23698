package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/types"
)

var (
	// ErrMalformedResponse means the model output holds no {...} pair.
	ErrMalformedResponse = errors.New("no JSON object found in model response")
	// ErrExtractionParse means the {...} substring is not valid JSON for the schema.
	ErrExtractionParse = errors.New("model response is not valid insight JSON")
	// ErrExtractionTimeout means the generator did not answer before the deadline.
	ErrExtractionTimeout = errors.New("insight extraction timed out")
)

// Request is what the generative service receives for one transcript.
type Request struct {
	SystemInstruction string
	Content           string
	Temperature       float64
}

// Generator is the external text-generation service. Its output is untrusted.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Fields is the model-derived part of an Insight after defaults are applied.
type Fields struct {
	Industry               *string         `json:"industry"`
	UseCase                []string        `json:"use_case"`
	PrimaryPainPoints      []string        `json:"primary_pain_points"`
	Sentiment              types.Sentiment `json:"sentiment"`
	ProductFamiliarity     types.Level     `json:"product_familiarity"`
	LeadSource             *string         `json:"lead_source"`
	MainGoal               *string         `json:"main_goal"`
	EngagementScore        *int            `json:"engagement_score"`
	InteractionVolumeRaw   *string         `json:"interaction_volume_raw"`
	InteractionVolumeLevel types.Level     `json:"interaction_volume_level"`
}

// SystemPrompt is the fixed instruction sent with every transcript.
const SystemPrompt = `Eres un analista de ventas B2B.

Dada la transcripción de una conversación con un potencial cliente,
extrae SOLO la información que esté explícita o sea razonable inferir
directamente del texto. No inventes detalles que no estén soportados.

Responde ÚNICAMENTE con un objeto JSON válido.
NO uses bloques de código, markdown ni backticks.
NO agregues texto antes ni después del JSON.

El JSON debe tener exactamente este esquema:

{
  "industry": "string o null",
  "useCase": ["string"],
  "primaryPainPoints": ["string"],
  "sentiment": "NEGATIVO" | "NEUTRO" | "POSITIVO",
  "productFamiliarity": "LOW" | "MEDIUM" | "HIGH" | "UNKNOWN",
  "leadSource": "string o null",
  "mainGoal": "string o null",
  "engagementScore": 1,
  "interactionVolumeRaw": "string o null",
  "interactionVolumeLevel": "LOW" | "MEDIUM" | "HIGH" | "UNKNOWN"
}

- useCase: lista corta de frases, por ejemplo "automatizar consultas repetitivas".
- primaryPainPoints: problemas principales que describe el cliente.
- leadSource: cómo conoció el producto (webinar, conferencia, google, amigo, etc.).
- mainGoal: objetivo principal al contratar.
- engagementScore: número de 1 a 5 según qué tan interesado se muestra.
- interactionVolumeRaw: frase del tipo "500 interacciones semanales", o null.

Si un campo no es claro, usa null o "UNKNOWN".
Tu salida debe ser SOLO JSON válido.`

type Extractor struct {
	gen     Generator
	timeout time.Duration
	log     *logger.Logger
}

// New returns an Extractor. A zero timeout leaves the deadline to ctx.
func New(gen Generator, timeout time.Duration, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.FromEnv()
	}
	return &Extractor{gen: gen, timeout: timeout, log: log.WithComponent("extractor")}
}

// Extract classifies one transcript. On any failure it returns nil fields;
// callers must not persist a partial insight.
func (e *Extractor) Extract(ctx context.Context, transcript string) (*Fields, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.gen.Generate(ctx, Request{
		SystemInstruction: SystemPrompt,
		Content:           transcript,
		Temperature:       0,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
		}
		return nil, fmt.Errorf("generate: %w", err)
	}

	fields, err := ParseResponse(raw)
	if err != nil {
		e.log.WithError(err).WithField("raw", raw).Warn("could not parse model response")
		return nil, err
	}
	return fields, nil
}

var jsonFence = regexp.MustCompile("(?i)```json")

// RepairResponse strips code fences and returns the text between the first
// '{' and the last '}' inclusive.
func RepairResponse(raw string) (string, error) {
	cleaned := jsonFence.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end <= start {
		return "", ErrMalformedResponse
	}
	return cleaned[start : end+1], nil
}

// rawFields mirrors the schema with every field optional so absent keys can
// be told apart from zero values.
type rawFields struct {
	Industry               *string  `json:"industry"`
	UseCase                []string `json:"useCase"`
	PrimaryPainPoints      []string `json:"primaryPainPoints"`
	Sentiment              *string  `json:"sentiment"`
	ProductFamiliarity     *string  `json:"productFamiliarity"`
	LeadSource             *string  `json:"leadSource"`
	MainGoal               *string  `json:"mainGoal"`
	EngagementScore        *float64 `json:"engagementScore"`
	InteractionVolumeRaw   *string  `json:"interactionVolumeRaw"`
	InteractionVolumeLevel *string  `json:"interactionVolumeLevel"`
}

// ParseResponse repairs, decodes and defaults a raw model response.
func ParseResponse(raw string) (*Fields, error) {
	candidate, err := RepairResponse(raw)
	if err != nil {
		return nil, err
	}

	var rf rawFields
	if err := json.Unmarshal([]byte(candidate), &rf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionParse, err)
	}

	f := &Fields{
		Industry:               rf.Industry,
		UseCase:                rf.UseCase,
		PrimaryPainPoints:      rf.PrimaryPainPoints,
		Sentiment:              normalizeSentiment(rf.Sentiment),
		ProductFamiliarity:     normalizeLevel(rf.ProductFamiliarity),
		LeadSource:             rf.LeadSource,
		MainGoal:               rf.MainGoal,
		InteractionVolumeRaw:   rf.InteractionVolumeRaw,
		InteractionVolumeLevel: normalizeLevel(rf.InteractionVolumeLevel),
	}
	if f.UseCase == nil {
		f.UseCase = []string{}
	}
	if f.PrimaryPainPoints == nil {
		f.PrimaryPainPoints = []string{}
	}
	if rf.EngagementScore != nil {
		score := int(math.Round(*rf.EngagementScore))
		f.EngagementScore = &score
	}
	return f, nil
}

func normalizeSentiment(v *string) types.Sentiment {
	if v == nil {
		return types.SentimentNeutral
	}
	switch strings.ToUpper(strings.TrimSpace(*v)) {
	case "NEGATIVO", "NEGATIVE":
		return types.SentimentNegative
	case "POSITIVO", "POSITIVE":
		return types.SentimentPositive
	default:
		return types.SentimentNeutral
	}
}

func normalizeLevel(v *string) types.Level {
	if v == nil {
		return types.LevelUnknown
	}
	switch strings.ToUpper(strings.TrimSpace(*v)) {
	case "LOW", "BAJO", "BAJA":
		return types.LevelLow
	case "MEDIUM", "MEDIO", "MEDIA":
		return types.LevelMedium
	case "HIGH", "ALTO", "ALTA":
		return types.LevelHigh
	default:
		return types.LevelUnknown
	}
}
