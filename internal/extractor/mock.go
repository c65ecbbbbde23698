package extractor

import "context"

// MockGenerator returns a fixed fenced response, for offline demos.
type MockGenerator struct{}

const mockResponse = "```json\n" + `{
  "industry": "Servicios financieros",
  "useCase": ["automatizar consultas repetitivas"],
  "primaryPainPoints": ["alto volumen de consultas"],
  "sentiment": "POSITIVO",
  "productFamiliarity": "LOW",
  "leadSource": "webinar",
  "mainGoal": "reducir tiempos de respuesta",
  "engagementScore": 4,
  "interactionVolumeRaw": "500 interacciones semanales",
  "interactionVolumeLevel": "MEDIUM"
}` + "\n```"

func (MockGenerator) Generate(ctx context.Context, _ Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return mockResponse, nil
}
