package prompt

import (
	"strings"
	"testing"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/schedule"
	"github.com/stretchr/testify/assert"
)

func sampleChallenge() *domain.Challenge {
	return &domain.Challenge{
		Content: domain.Content{
			Title:         "The Vanishing Trial Users",
			Problem:       "Trial signups are flat but conversions fell 18%.",
			Hints:         []string{"Look at cohorts"},
			KeyMetrics:    []string{"trial-to-paid rate", "day-7 activation"},
			Tools:         []string{"SQL"},
			TeachingPoint: "Segment before you conclude.",
		},
		Category:   "Funnel Analysis",
		Difficulty: domain.Intermediate,
		DayIndex:   42,
	}
}

func TestChallengePrompt(t *testing.T) {
	t.Parallel()
	p := Challenge(schedule.Assignment{
		Category:   "A/B Testing",
		Angle:      "novelty effect",
		Difficulty: domain.Advanced,
		DayIndex:   99,
	})

	for _, want := range []string{
		"day 99", "A/B Testing", "Advanced", "novelty effect",
		`"title"`, `"problem"`, `"hints"`, `"keyMetrics"`, `"tools"`, `"teachingPoint"`,
		"trade-off",
	} {
		assert.Contains(t, p, want)
	}
}

func TestChallengePromptWithoutAngle(t *testing.T) {
	t.Parallel()
	p := Challenge(schedule.Assignment{Category: "Pricing", Difficulty: domain.Beginner, DayIndex: 1})
	assert.NotContains(t, p, "Angle to build")
}

func TestFeedbackPrompt(t *testing.T) {
	t.Parallel()
	p := Feedback(sampleChallenge(), domain.Submission{
		Analysis:       "Conversions fell only on Android.",
		Recommendation: "Roll back the paywall change.",
	})

	assert.Contains(t, p, "The Vanishing Trial Users")
	assert.Contains(t, p, "Segment before you conclude.")
	assert.Contains(t, p, "Conversions fell only on Android.")
	assert.Contains(t, p, "Roll back the paywall change.")
	assert.Contains(t, p, "Strengths:")
	assert.Contains(t, p, "Gaps:")
	assert.Contains(t, p, "Next step:")
	assert.Contains(t, p, "220 words")
}

func TestThreadPrompt(t *testing.T) {
	t.Parallel()
	p := Thread(sampleChallenge(), domain.Submission{Analysis: "a", Recommendation: "r"}, 42)

	assert.Contains(t, p, ThreadDelimiter)
	assert.Contains(t, p, "270 characters")
	assert.Contains(t, p, "day 42")
	assert.Contains(t, p, "trial-to-paid rate, day-7 activation")
	assert.Equal(t, 5, strings.Count(p, "- Post "))
}

func TestBuildersTolerateEmptyInput(t *testing.T) {
	t.Parallel()
	empty := &domain.Challenge{}
	assert.NotPanics(t, func() {
		_ = Challenge(schedule.Assignment{})
		_ = Feedback(empty, domain.Submission{})
		_ = Thread(empty, domain.Submission{}, 0)
	})
}
