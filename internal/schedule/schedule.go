// Package schedule maps calendar days to challenge assignments.
//
// Assignment is a pure function of the clock and a day offset: two processes
// that share a catalog compute the same category and difficulty for the same
// day without coordinating.
package schedule

import (
	"fmt"
	"time"

	"github.com/ashureev/dailycase/internal/domain"
)

// DateLayout is the calendar date format used for keys and history.
const DateLayout = "2006-01-02"

// Epoch is day zero of the rotation. The first day after it has index 1.
var Epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Assignment is the category, difficulty and index derived for one day.
type Assignment struct {
	Category   string            `json:"category"`
	Angle      string            `json:"angle"`
	Difficulty domain.Difficulty `json:"difficulty"`
	DayIndex   int               `json:"dayIndex"`
}

// Assign derives the assignment for now shifted by offsetDays.
func (c *Catalog) Assign(now time.Time, offsetDays int) Assignment {
	dayIndex := ElapsedDays(now) + offsetDays + 1
	n := len(c.Categories)
	cat := c.Categories[mod(dayIndex, n)]
	rotation := floorDiv(dayIndex, n)

	a := Assignment{
		Category:   cat.Label,
		Difficulty: domain.Difficulties[mod(rotation, len(domain.Difficulties))],
		DayIndex:   dayIndex,
	}
	if len(cat.Angles) > 0 {
		a.Angle = cat.Angles[mod(rotation, len(cat.Angles))]
	}
	return a
}

// ElapsedDays counts whole calendar days from Epoch to now's local date.
func ElapsedDays(now time.Time) int {
	y, m, d := now.Date()
	local := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return floorDiv(int(local.Sub(Epoch)/time.Hour), 24)
}

// Today formats now's calendar date.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// Yesterday returns the calendar date before date, or "" if date is not a valid date.
func Yesterday(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DateLayout)
}

// CacheKey names the cache slot for offsetDays relative to now.
// Today's slot is keyed by date, navigated days by their index.
func CacheKey(now time.Time, offsetDays int) string {
	if offsetDays == 0 {
		return "challenge:" + Today(now)
	}
	return fmt.Sprintf("challenge:day:%d", ElapsedDays(now)+offsetDays+1)
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
