package storytelling

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moodtales/storyteller/internal/providers"
)

// ParseResult extracts the analysis and story from a model reply. Markdown
// code fences are tolerated; anything that is not then a JSON object with
// both fields is ErrMalformedResponse.
func ParseResult(response string) (providers.GenerationResult, error) {
	var result struct {
		Analysis *string `json:"analysis"`
		Story    *string `json:"story"`
	}

	body := trimCodeFence(response)
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		slog.Debug("Generation reply is not JSON", "length", len(response))
		return providers.GenerationResult{}, fmt.Errorf("%w: %v", providers.ErrMalformedResponse, err)
	}

	switch {
	case result.Analysis == nil && result.Story == nil:
		return providers.GenerationResult{}, fmt.Errorf("%w: missing analysis and story fields", providers.ErrMalformedResponse)
	case result.Analysis == nil:
		return providers.GenerationResult{}, fmt.Errorf("%w: missing analysis field", providers.ErrMalformedResponse)
	case result.Story == nil:
		return providers.GenerationResult{}, fmt.Errorf("%w: missing story field", providers.ErrMalformedResponse)
	}

	return providers.GenerationResult{Analysis: *result.Analysis, Story: *result.Story}, nil
}

func trimCodeFence(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```JSON")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
