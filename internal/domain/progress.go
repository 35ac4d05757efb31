package domain

// HistoryEntry records one completed day.
type HistoryEntry struct {
	Date            string     `json:"date"`
	DayIndex        int        `json:"dayIndex"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	Difficulty      Difficulty `json:"difficulty"`
	AnalysisExcerpt string     `json:"analysisExcerpt"`
}

// Progress is the persisted streak and completion history.
type Progress struct {
	StreakCount       int            `json:"streakCount"`
	LastCompletedDate string         `json:"lastCompletedDate"`
	History           []HistoryEntry `json:"history"`
}
