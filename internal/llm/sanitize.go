package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cardwatch/agreements-tracker/internal/common"
)

// StripResponseNoise removes common formatting wrappers models put around
// JSON payloads: a fenced code block, and a leading "json" language tag.
// The result is the best candidate for JSON decoding; it is not guaranteed
// to be valid JSON.
func StripResponseNoise(content string) string {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		parts := strings.Split(s, "```")
		// parts[0] is whatever preceded the fence (usually empty); the fenced
		// body is the next segment.
		if len(parts) > 1 {
			s = strings.TrimSpace(parts[1])
		}
	}

	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = strings.TrimSpace(s[4:])
	}
	return s
}

// DecodeFieldMap parses cleaned response content into a FieldMap.
func DecodeFieldMap(content []byte) (FieldMap, error) {
	var m FieldMap
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("%w: decode response object: %v", common.ErrExtractionParse, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: response is JSON null", common.ErrExtractionParse)
	}
	return m, nil
}
