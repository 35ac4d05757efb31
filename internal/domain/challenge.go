// Package domain contains core domain types for the dailycase application.
package domain

// Difficulty grades how demanding a day's challenge is.
type Difficulty string

const (
	Beginner     Difficulty = "Beginner"
	Intermediate Difficulty = "Intermediate"
	Advanced     Difficulty = "Advanced"
)

// Difficulties lists every difficulty in rotation order.
var Difficulties = []Difficulty{Beginner, Intermediate, Advanced}

// Content holds the fields produced by the model for one challenge.
type Content struct {
	Title         string   `json:"title"`
	Problem       string   `json:"problem"`
	Hints         []string `json:"hints"`
	KeyMetrics    []string `json:"keyMetrics"`
	Tools         []string `json:"tools"`
	TeachingPoint string   `json:"teachingPoint"`
}

// Challenge is a fully assembled daily challenge.
// It is only ever built from validated Content.
type Challenge struct {
	Content
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	DayIndex   int        `json:"dayIndex"`
	CacheKey   string     `json:"cacheKey"`
}

// Summary returns the fields the progress history keeps about a challenge.
func (c *Challenge) Summary(analysis string) ChallengeSummary {
	return ChallengeSummary{
		Title:      c.Title,
		Category:   c.Category,
		Difficulty: c.Difficulty,
		Analysis:   analysis,
	}
}

// Submission is the user's written answer to a challenge.
type Submission struct {
	Analysis       string `json:"analysis"`
	Recommendation string `json:"recommendation"`
}

// ChallengeSummary is what a completion contributes to history.
type ChallengeSummary struct {
	Title      string
	Category   string
	Difficulty Difficulty
	Analysis   string
}
