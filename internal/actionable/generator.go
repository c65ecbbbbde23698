package actionable

import (
	"fmt"
	"math"

	"sales-insights-go/internal/aggregator"
	"sales-insights-go/internal/taxonomy"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const (
	// minBucketSize keeps single-client buckets from producing cards.
	minBucketSize = 2
	// flatSlope is the per-word slope below which the trend counts as flat.
	flatSlope = 1e-4
)

// Generate derives highlight cards from a report view. It always returns at
// least one card.
func Generate(v aggregator.View) []ActionCard {
	var cards []ActionCard

	if len(v.SalesReps) > 0 && v.SalesReps[0].Closed > 0 {
		top := v.SalesReps[0]
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%s lidera con %d cierres (%.0f%% de sus reuniones)", top.Rep, top.Closed, top.Rate*100),
			Action:  "Documentar su guion de reunión y compartirlo con el equipo",
			Impact:  "Subir la tasa de cierre del resto de vendedores",
		})
	}

	if best, ok := bestLevel(v.Familiarity); ok {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Clientes con familiaridad %s cierran al %.0f%%", best.Level, closeRate(best.Closed, best.Total)*100),
			Action:  "Priorizar leads con este nivel de conocimiento del producto",
			Impact:  "Mejor uso del tiempo comercial",
		})
	}

	if industry, ok := topIndustry(v.Industries); ok {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%s concentra %d clientes con %d cierres", industry.Label, industry.Count, industry.Closed),
			Action:  "Preparar casos de éxito y material específico para esta industria",
			Impact:  "Acortar el ciclo de venta en el segmento principal",
		})
	}

	if v.Trend != nil && math.Abs(v.Trend.Slope) >= flatSlope {
		card := ActionCard{
			Insight: "Las reuniones más largas tienden a cerrar más",
			Action:  "Reservar tiempo suficiente para demos y preguntas",
			Impact:  "Más conversaciones completas antes de la decisión",
		}
		if v.Trend.Slope < 0 {
			card = ActionCard{
				Insight: "Las reuniones más largas tienden a cerrar menos",
				Action:  "Revisar reuniones extensas sin cierre y acotar la agenda",
				Impact:  "Menos tiempo en oportunidades de baja probabilidad",
			}
		}
		cards = append(cards, card)
	}

	if len(cards) == 0 {
		return []ActionCard{{
			Insight: "No se detectan patrones claros",
			Action:  "Procesar más transcripciones y volver a revisar",
			Impact:  "Sin intervención inmediata",
		}}
	}
	return cards
}

func bestLevel(buckets []aggregator.LevelBucket) (aggregator.LevelBucket, bool) {
	var best aggregator.LevelBucket
	found := false
	for _, b := range buckets {
		if b.Total < minBucketSize || b.Closed == 0 {
			continue
		}
		if !found || closeRate(b.Closed, b.Total) > closeRate(best.Closed, best.Total) {
			best = b
			found = true
		}
	}
	return best, found
}

func topIndustry(buckets []aggregator.CategoryBucket) (aggregator.CategoryBucket, bool) {
	for _, b := range buckets {
		if b.Label == taxonomy.IndustryOther {
			continue
		}
		if b.Count >= minBucketSize {
			return b, true
		}
		break
	}
	return aggregator.CategoryBucket{}, false
}

func closeRate(closed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(closed) / float64(total)
}
