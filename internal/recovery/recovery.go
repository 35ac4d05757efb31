// Package recovery turns free-form model output into a validated challenge.
//
// Recovery runs a cascade of tiers, each a pure function of the raw text.
// The first tier that yields a document wins; that document is then
// validated once. Later tiers are only tried when earlier ones fail to parse.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/dailycase/internal/domain"
)

// ReasonMissingFields is the MalformedResponse reason when a parsed document
// lacks a required field or has one of the wrong shape.
const ReasonMissingFields = "missing required fields"

// ReasonUnparseable is the MalformedResponse reason when every tier failed.
const ReasonUnparseable = "unparseable response"

// MalformedResponse reports text that could not be reduced to a valid record.
// Cause is the tier-1 parser message, kept for diagnostics.
type MalformedResponse struct {
	Reason string
	Cause  string
}

func (e *MalformedResponse) Error() string {
	if e.Cause == "" {
		return "malformed response: " + e.Reason
	}
	return fmt.Sprintf("malformed response: %s (%s)", e.Reason, e.Cause)
}

// fields is a parsed document, keyed by field name.
type fields map[string]json.RawMessage

type tier struct {
	name  string
	parse func(raw string) (fields, error)
}

var tiers = []tier{
	{name: "strip", parse: stripAndParse},
	{name: "sanitize", parse: sanitizeAndParse},
	{name: "reconstruct", parse: reconstruct},
}

// Recover extracts challenge content from raw model output.
func Recover(raw string) (domain.Content, error) {
	c, _, err := RecoverWithTier(raw)
	return c, err
}

// RecoverWithTier is Recover that also names the tier that succeeded.
func RecoverWithTier(raw string) (domain.Content, string, error) {
	var firstErr error
	for _, t := range tiers {
		doc, err := t.parse(raw)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		content, err := validate(doc)
		if err != nil {
			return domain.Content{}, t.name, &MalformedResponse{Reason: ReasonMissingFields, Cause: err.Error()}
		}
		return content, t.name, nil
	}
	return domain.Content{}, "", &MalformedResponse{Reason: ReasonUnparseable, Cause: firstErr.Error()}
}

// quotedString matches a JSON string literal, escapes included.
const quotedString = `"(?:[^"\\]|\\.)*"`

var (
	fencePattern  = regexp.MustCompile("```(?:json|JSON)?")
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	quotedPattern = regexp.MustCompile(quotedString)
	// Raw control characters are invalid inside JSON strings; line breaks
	// and tabs are the usual ones.
	controlPattern = regexp.MustCompile(`[\x00-\x1f]+`)
)

var errNoObject = errors.New("no JSON object found")

// stripAndParse removes code fences and parses the widest {...} span.
func stripAndParse(raw string) (fields, error) {
	cleaned := fencePattern.ReplaceAllString(raw, "")
	span := objectPattern.FindString(cleaned)
	if span == "" {
		return nil, errNoObject
	}
	return decode(span)
}

// sanitizeAndParse collapses raw line breaks and other control characters
// inside string literals, which models often emit in long prose fields.
func sanitizeAndParse(raw string) (fields, error) {
	span := outermostObject(raw)
	if span == "" {
		return nil, errNoObject
	}
	return decode(collapseControlsInStrings(span))
}

// reconstruct pulls each required field out of the text on its own.
func reconstruct(raw string) (fields, error) {
	doc := make(fields, len(fieldPatterns))
	var missing []string
	for _, fp := range fieldPatterns {
		m := fp.pattern.FindStringSubmatch(raw)
		if m == nil {
			missing = append(missing, fp.name)
			continue
		}
		doc[fp.name] = json.RawMessage(collapseControlsInStrings(m[1]))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("fields not found: %s", strings.Join(missing, ", "))
	}
	return doc, nil
}

type fieldPattern struct {
	name    string
	pattern *regexp.Regexp
}

var fieldPatterns = []fieldPattern{
	scalarField("title"),
	scalarField("problem"),
	listField("hints"),
	listField("keyMetrics"),
	listField("tools"),
	scalarField("teachingPoint"),
}

func scalarField(name string) fieldPattern {
	return fieldPattern{
		name:    name,
		pattern: regexp.MustCompile(`"` + name + `"\s*:\s*(` + quotedString + `)`),
	}
}

func listField(name string) fieldPattern {
	return fieldPattern{
		name: name,
		// Items are matched as whole quoted strings so a ']' inside an item
		// does not end the list.
		pattern: regexp.MustCompile(`"` + name + `"\s*:\s*(\[\s*(?:` + quotedString + `\s*,?\s*)*\])`),
	}
}

func outermostObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func collapseControlsInStrings(s string) string {
	return quotedPattern.ReplaceAllStringFunc(s, func(q string) string {
		return controlPattern.ReplaceAllString(q, " ")
	})
}

func decode(s string) (fields, error) {
	var doc fields
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
