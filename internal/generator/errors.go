package generator

import "fmt"

// GenerationFailed reports that every generation attempt failed.
// Err is the last attempt's error.
type GenerationFailed struct {
	CacheKey string
	Attempts int
	Err      error
}

func (e *GenerationFailed) Error() string {
	return fmt.Sprintf("challenge generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationFailed) Unwrap() error {
	return e.Err
}

// Message is the last underlying error message, suitable for display.
func (e *GenerationFailed) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
