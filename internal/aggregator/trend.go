package aggregator

// Point is one (transcript word count, closed) observation.
type Point struct {
	ClientID int64   `json:"client_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// TrendLine is y = Slope*x + Intercept, with endpoints at the smallest and
// largest observed x.
type TrendLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Start     Point   `json:"start"`
	End       Point   `json:"end"`
}

// FitLine fits an ordinary least-squares line. It reports false when there
// are fewer than two points or x has no variance.
func FitLine(points []Point) (*TrendLine, bool) {
	n := float64(len(points))
	if len(points) < 2 {
		return nil, false
	}

	var sumX, sumY, sumXY, sumXX float64
	minX, maxX := points[0].X, points[0].X
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumXX += p.X * p.X
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 || minX == maxX {
		return nil, false
	}
	m := (n*sumXY - sumX*sumY) / denom
	b := (sumY - m*sumX) / n

	return &TrendLine{
		Slope:     m,
		Intercept: b,
		Start:     Point{X: minX, Y: m*minX + b},
		End:       Point{X: maxX, Y: m*maxX + b},
	}, true
}
