package advisor

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidResponseFormat is returned when a model reply holds no JSON object.
var ErrInvalidResponseFormat = errors.New("invalid advisory response format")

// Advisory is a parsed set of planning recommendations.
type Advisory struct {
	ID                string           `json:"id,omitempty"`
	Provider          string           `json:"provider,omitempty"`
	UserType          string           `json:"user_type,omitempty"`
	OverallAssessment string           `json:"overall_assessment"`
	Recommendations   []Recommendation `json:"recommendations"`
	Raw               json.RawMessage  `json:"raw,omitempty"`
}

// Recommendation is one actionable item.
type Recommendation struct {
	Action     string     `json:"action"`
	Rationale  string     `json:"rationale"`
	Department string     `json:"department"`
	Confidence Confidence `json:"confidence"`
}

// Confidence is a score in [0, 1]. It decodes from a number, a numeric
// string, a percentage (1 < v <= 100) or a Low/Medium/High label.
type Confidence float64

var confidenceLabels = map[string]Confidence{
	"low":    0.3,
	"medium": 0.6,
	"high":   0.9,
}

// UnmarshalJSON implements json.Unmarshaler. Unrecognized values decode to 0.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*c = normalizeConfidence(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "advisor: decode confidence")
	}
	s = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")))
	if v, ok := confidenceLabels[s]; ok {
		*c = v
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*c = normalizeConfidence(f)
		return nil
	}
	*c = 0
	return nil
}

func normalizeConfidence(f float64) Confidence {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f <= 1:
		return Confidence(f)
	case f <= 100:
		return Confidence(f / 100)
	default:
		return 1
	}
}

// Parse extracts an Advisory from a model reply. The whole reply is tried
// as JSON first, then the span from the first '{' to the last '}'.
func Parse(text string) (*Advisory, error) {
	raw, ok := extractObject(text)
	if !ok {
		return nil, eris.Wrap(ErrInvalidResponseFormat, "advisor: parse")
	}

	var a Advisory
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, eris.Wrapf(ErrInvalidResponseFormat, "advisor: parse: %v", err)
	}
	a.Raw = raw
	return &a, nil
}

func extractObject(text string) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, false
	}
	return json.RawMessage(candidate), true
}
