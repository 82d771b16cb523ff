package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrParse indicates the model response contained no parseable JSON object
var ErrParse = errors.New("no valid JSON object in model response")

// dateFormats are the fallback layouts tried when the model ignores the
// YYYY-MM-DD instruction
var dateFormats = []string{
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
}

// parseResult extracts the first {...} JSON object from the model's text
// response, tolerating surrounding prose and markdown fences, and parses it
// into a Result.
func parseResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, ErrParse
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, ErrParse
	}

	text = text[startIdx : endIdx+1]

	var result Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	normalizeDate(&result)

	if result.Currency == "" {
		result.Currency = "USD"
	}

	return &result, nil
}

// normalizeDate coerces the extracted date to YYYY-MM-DD, or nulls it when
// no known layout matches. An unreadable date must stay null rather than be
// invented.
func normalizeDate(result *Result) {
	if result.Date == nil {
		return
	}

	raw := strings.TrimSpace(*result.Date)
	if raw == "" {
		result.Date = nil
		return
	}

	if d, err := time.Parse("2006-01-02", raw); err == nil {
		formatted := d.Format("2006-01-02")
		result.Date = &formatted
		return
	}

	for _, format := range dateFormats {
		if d, err := time.Parse(format, raw); err == nil {
			formatted := d.Format("2006-01-02")
			result.Date = &formatted
			return
		}
	}

	result.Date = nil
	if result.FieldConfidence.Date > 0.2 {
		result.FieldConfidence.Date = 0.2
	}
}
