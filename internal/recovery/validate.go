package recovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/dailycase/internal/domain"
)

func validate(doc fields) (domain.Content, error) {
	var c domain.Content
	var err error
	if c.Title, err = requireString(doc, "title"); err != nil {
		return c, err
	}
	if c.Problem, err = requireString(doc, "problem"); err != nil {
		return c, err
	}
	if c.Hints, err = requireList(doc, "hints"); err != nil {
		return c, err
	}
	if len(c.Hints) == 0 {
		return c, fmt.Errorf("hints is empty")
	}
	if c.KeyMetrics, err = requireList(doc, "keyMetrics"); err != nil {
		return c, err
	}
	if c.Tools, err = requireList(doc, "tools"); err != nil {
		return c, err
	}
	if c.TeachingPoint, err = requireString(doc, "teachingPoint"); err != nil {
		return c, err
	}
	return c, nil
}

func requireString(doc fields, name string) (string, error) {
	raw, ok := doc[name]
	if !ok {
		return "", fmt.Errorf("%s is missing", name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s is not a string", name)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s is empty", name)
	}
	return s, nil
}

func requireList(doc fields, name string) ([]string, error) {
	raw, ok := doc[name]
	if !ok {
		return nil, fmt.Errorf("%s is missing", name)
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%s is not a list of strings", name)
	}
	return items, nil
}
