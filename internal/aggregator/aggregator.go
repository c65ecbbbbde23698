package aggregator

import (
	"sort"
	"strings"

	"sales-insights-go/internal/taxonomy"
	"sales-insights-go/internal/types"
)

// NoRepLabel groups clients without an assigned sales rep.
const NoRepLabel = "Sin vendedor"

type CategoryBucket struct {
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Closed int    `json:"closed"`
}

type RepStats struct {
	Rep    string  `json:"rep"`
	Total  int     `json:"total"`
	Closed int     `json:"closed"`
	Rate   float64 `json:"rate"`
}

type LevelBucket struct {
	Level  types.Level `json:"level"`
	Total  int         `json:"total"`
	Closed int         `json:"closed"`
}

type Totals struct {
	Clients       int     `json:"clients"`
	WithInsights  int     `json:"with_insights"`
	Closed        int     `json:"closed"`
	Open          int     `json:"open"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// View is the report computed from every client and its insight.
type View struct {
	Totals            Totals           `json:"totals"`
	Industries        []CategoryBucket `json:"industries"`
	LeadSources       []CategoryBucket `json:"lead_sources"`
	SalesReps         []RepStats       `json:"sales_reps"`
	Familiarity       []LevelBucket    `json:"familiarity"`
	InteractionVolume []LevelBucket    `json:"interaction_volume"`
	Goals             []CategoryBucket `json:"goals"`
	Points            []Point          `json:"points"`
	Trend             *TrendLine       `json:"trend,omitempty"`
}

// Aggregate is a pure function of rows; it does not modify them.
func Aggregate(rows []types.ClientWithInsight) View {
	industries := newCounter()
	leadSources := newCounter()
	goals := newCounter()
	reps := map[string]*RepStats{}
	familiarity := map[types.Level]*LevelBucket{}
	volume := map[types.Level]*LevelBucket{}

	var v View
	engagementSum := 0
	points := make([]Point, 0, len(rows))

	for _, row := range rows {
		closed := row.Client.Closed
		ins := row.Insight

		v.Totals.Clients++
		if closed {
			v.Totals.Closed++
		}

		var industry, leadSource, goal *string
		famLevel, volLevel := types.LevelUnknown, types.LevelUnknown
		if ins != nil {
			v.Totals.WithInsights++
			if ins.EngagementScore != nil {
				engagementSum += *ins.EngagementScore
			}
			industry, leadSource, goal = ins.Industry, ins.LeadSource, ins.MainGoal
			famLevel = orUnknown(ins.ProductFamiliarity)
			volLevel = orUnknown(ins.InteractionVolumeLevel)
			points = append(points, Point{ClientID: row.Client.ID, X: float64(ins.TranscriptWordCount), Y: boolToFloat(closed)})
		}

		industries.add(taxonomy.NormalizeIndustry(deref(industry)), closed)
		leadSources.add(taxonomy.NormalizeLeadSource(deref(leadSource)), closed)
		if goal != nil && strings.TrimSpace(*goal) != "" {
			goals.add(taxonomy.CategorizeGoal(*goal), closed)
		}

		rep := strings.TrimSpace(row.Client.SalesRep)
		if rep == "" {
			rep = NoRepLabel
		}
		rs, ok := reps[rep]
		if !ok {
			rs = &RepStats{Rep: rep}
			reps[rep] = rs
		}
		rs.Total++
		if closed {
			rs.Closed++
		}

		levelBucket(familiarity, famLevel).add(closed)
		levelBucket(volume, volLevel).add(closed)
	}

	v.Totals.Open = v.Totals.Clients - v.Totals.Closed
	if v.Totals.WithInsights > 0 {
		v.Totals.AvgEngagement = float64(engagementSum) / float64(v.Totals.WithInsights)
	}

	v.Industries = industries.sorted()
	v.LeadSources = leadSources.sorted()
	v.Goals = goals.sorted()
	v.SalesReps = sortedReps(reps)
	v.Familiarity = sortedLevels(familiarity)
	v.InteractionVolume = sortedLevels(volume)

	sort.SliceStable(points, func(i, j int) bool { return points[i].X < points[j].X })
	v.Points = points
	if line, ok := FitLine(points); ok {
		v.Trend = line
	}
	return v
}

type counter struct {
	buckets map[string]*CategoryBucket
}

func newCounter() *counter {
	return &counter{buckets: map[string]*CategoryBucket{}}
}

func (c *counter) add(label string, closed bool) {
	b, ok := c.buckets[label]
	if !ok {
		b = &CategoryBucket{Label: label}
		c.buckets[label] = b
	}
	b.Count++
	if closed {
		b.Closed++
	}
}

// sorted orders buckets by count desc, then label asc.
func (c *counter) sorted() []CategoryBucket {
	out := make([]CategoryBucket, 0, len(c.buckets))
	for _, b := range c.buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func sortedReps(reps map[string]*RepStats) []RepStats {
	out := make([]RepStats, 0, len(reps))
	for _, r := range reps {
		if r.Total > 0 {
			r.Rate = float64(r.Closed) / float64(r.Total)
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Closed != out[j].Closed {
			return out[i].Closed > out[j].Closed
		}
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		return out[i].Rep < out[j].Rep
	})
	return out
}

func levelBucket(m map[types.Level]*LevelBucket, level types.Level) *LevelBucket {
	b, ok := m[level]
	if !ok {
		b = &LevelBucket{Level: level}
		m[level] = b
	}
	return b
}

func (b *LevelBucket) add(closed bool) {
	b.Total++
	if closed {
		b.Closed++
	}
}

func sortedLevels(m map[types.Level]*LevelBucket) []LevelBucket {
	out := make([]LevelBucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level.Rank() != out[j].Level.Rank() {
			return out[i].Level.Rank() < out[j].Level.Rank()
		}
		return out[i].Level < out[j].Level
	})
	return out
}

func orUnknown(l types.Level) types.Level {
	if l == "" {
		return types.LevelUnknown
	}
	return l
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
