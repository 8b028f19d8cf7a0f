package schema

import (
	"fmt"
	"regexp"
	"strings"

	"ai-shopping-assistant-be/pkg/llm"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON pulls the JSON object out of a free-text model answer. A fenced
// ```json block wins; otherwise the span from the first '{' to the last '}'
// is used.
func ExtractJSON(text string) ([]byte, error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return []byte(m[1]), nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", llm.ErrSchemaInvalid)
	}
	return []byte(text[start : end+1]), nil
}
