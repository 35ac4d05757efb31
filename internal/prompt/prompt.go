// Package prompt builds the model prompts for challenge generation,
// submission feedback and thread generation.
//
// Builders never fail. Empty inputs are embedded as-is.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/schedule"
)

// ThreadDelimiter separates thread posts in the model's reply.
const ThreadDelimiter = "---POST---"

// ThreadPosts is the number of posts a thread asks for.
const ThreadPosts = 5

// PostBudget is the hard per-post character limit given to the model.
const PostBudget = 270

// FeedbackWordLimit caps the feedback reply length.
const FeedbackWordLimit = 220

// ChallengeSystem is the system instruction for challenge generation.
const ChallengeSystem = "You write realistic business analytics case challenges. Reply with a single JSON object and nothing else."

var complexity = map[domain.Difficulty]string{
	domain.Beginner:     "Keep it to one dataset and one clear question. Numbers should be round and the path to an answer obvious once the right metric is picked.",
	domain.Intermediate: "Involve two interacting factors or data sources and at least one misleading signal the analyst must rule out.",
	domain.Advanced:     "Combine several stakeholders, conflicting metrics and incomplete data. The best answer should require a trade-off, not a single fix.",
}

// Challenge builds the generation prompt for an assignment.
func Challenge(a schedule.Assignment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create day %d of a daily analytics challenge series.\n", a.DayIndex)
	fmt.Fprintf(&b, "Category: %s\n", a.Category)
	fmt.Fprintf(&b, "Difficulty: %s\n", a.Difficulty)
	if a.Angle != "" {
		fmt.Fprintf(&b, "Angle to build the scenario around: %s\n", a.Angle)
	}
	b.WriteString("\n")
	b.WriteString(complexity[a.Difficulty])
	b.WriteString("\n\nReturn a JSON object with exactly these fields:\n")
	b.WriteString(`- "title": a short, specific headline (under 10 words)` + "\n")
	b.WriteString(`- "problem": 3 to 5 sentences describing the company, the data available and what leadership is asking, with concrete numbers` + "\n")
	b.WriteString(`- "hints": an array of 2 to 3 short hints, ordered from gentle to revealing` + "\n")
	b.WriteString(`- "keyMetrics": an array of the 3 to 5 metrics an analyst should compute` + "\n")
	b.WriteString(`- "tools": an array of tools or techniques that fit (for example SQL, cohort tables, regression)` + "\n")
	b.WriteString(`- "teachingPoint": one sentence stating the lesson this case teaches` + "\n")
	b.WriteString("\nDo not wrap the JSON in markdown. Do not add commentary.")
	return b.String()
}

// Feedback builds the coaching prompt for a submission.
func Feedback(ch *domain.Challenge, sub domain.Submission) string {
	var b strings.Builder
	b.WriteString("You are a senior analytics lead reviewing a junior analyst's answer.\n\n")
	fmt.Fprintf(&b, "Challenge: %s\n", ch.Title)
	fmt.Fprintf(&b, "Scenario: %s\n", ch.Problem)
	fmt.Fprintf(&b, "Intended lesson: %s\n\n", ch.TeachingPoint)
	fmt.Fprintf(&b, "Analyst's analysis:\n%s\n\n", sub.Analysis)
	fmt.Fprintf(&b, "Analyst's recommendation:\n%s\n\n", sub.Recommendation)
	b.WriteString("Respond in exactly three sections with these headings:\n")
	b.WriteString("Strengths: what the analyst got right.\n")
	b.WriteString("Gaps: what was missed or could mislead a stakeholder.\n")
	b.WriteString("Next step: one concrete thing to try on the next challenge.\n")
	fmt.Fprintf(&b, "\nKeep the whole reply under %d words.", FeedbackWordLimit)
	return b.String()
}

// Thread builds the prompt that turns a submission into a social thread.
func Thread(ch *domain.Challenge, sub domain.Submission, dayIndex int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-post social media thread about day %d of my daily analytics challenge.\n\n", ThreadPosts, dayIndex)
	fmt.Fprintf(&b, "Challenge: %s (%s, %s)\n", ch.Title, ch.Category, ch.Difficulty)
	fmt.Fprintf(&b, "Scenario: %s\n", ch.Problem)
	fmt.Fprintf(&b, "Key metrics: %s\n\n", strings.Join(ch.KeyMetrics, ", "))
	fmt.Fprintf(&b, "My analysis:\n%s\n\n", sub.Analysis)
	fmt.Fprintf(&b, "My recommendation:\n%s\n\n", sub.Recommendation)
	fmt.Fprintf(&b, "Rules:\n")
	fmt.Fprintf(&b, "- Exactly %d posts, separated by a line containing only %s\n", ThreadPosts, ThreadDelimiter)
	fmt.Fprintf(&b, "- Every post must be under %d characters, including hashtags\n", PostBudget)
	fmt.Fprintf(&b, "- Post 1: a hook that names day %d and the problem\n", dayIndex)
	b.WriteString("- Post 2: the data and the numbers that matter\n")
	b.WriteString("- Post 3: the analysis and what it revealed\n")
	b.WriteString("- Post 4: the conclusion and recommendation\n")
	b.WriteString("- Post 5: a call to action inviting others to try it, plus 2 to 3 relevant hashtags\n")
	b.WriteString("\nReturn only the posts and delimiters. No numbering, no preamble.")
	return b.String()
}
