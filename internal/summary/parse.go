package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

var (
	ErrNoJSONObject     = errors.New("no_json_object")
	ErrInvalidAISummary = errors.New("invalid_ai_summary")
	codeFenceReplacer   = strings.NewReplacer("```json\n", "", "```json", "", "```\n", "", "```", "")
)

// stripCodeFences removes markdown fences a model may wrap around its answer.
func stripCodeFences(content string) string {
	return strings.TrimSpace(codeFenceReplacer.Replace(content))
}

// firstJSONObject returns the first balanced {...} span, skipping braces inside strings.
func firstJSONObject(content string) (string, error) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}
	depth := 0
	inString := false
	escaped := false
	for index := start; index < len(content); index++ {
		character := content[index]
		if inString {
			switch {
			case escaped:
				escaped = false
			case character == '\\':
				escaped = true
			case character == '"':
				inString = false
			}
			continue
		}
		switch character {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : index+1], nil
			}
		}
	}
	return "", ErrNoJSONObject
}

// ParseCompletion decodes and validates a model answer. Any failure rejects the whole answer.
func ParseCompletion(content string) (model.SummaryData, error) {
	objectText, err := firstJSONObject(stripCodeFences(content))
	if err != nil {
		return model.SummaryData{}, err
	}
	var data model.SummaryData
	if err := json.Unmarshal([]byte(objectText), &data); err != nil {
		return model.SummaryData{}, fmt.Errorf("%w: %v", ErrInvalidAISummary, err)
	}
	if err := data.Validate(); err != nil {
		return model.SummaryData{}, fmt.Errorf("%w: %v", ErrInvalidAISummary, err)
	}
	return data, nil
}
