package advisor

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultUserType is the persona used when a caller names none.
const DefaultUserType = "city planner"

const promptTemplate = `You are an expert urban planner and environmental analyst.
Given structured tile-level metrics and model outputs, produce concise, evidence-based, professional planning recommendations.
Consider the user's designation ({{user_type}}) while tailoring suggestions.
Output must follow the provided JSON schema exactly, be factual, cite 2–3 supporting metrics in the rationale,
and provide actionable next steps with department assignments.
Avoid speculative language and absolute commands; use measured professional phrasing (e.g., "recommend", "consider", "prioritize").
Return only valid JSON (no extra text).

Schema:
{
  "overall_assessment": "<one-paragraph summary of the key findings>",
  "recommendations": [
    {
      "action": "<specific action>",
      "rationale": "<rationale citing supporting metrics>",
      "department": "<responsible city department>",
      "confidence": <number between 0 and 1>
    }
  ]
}

Data Input:
{{data}}
`

// BuildPrompt renders the advisory prompt for data, which is embedded as
// indented JSON.
func BuildPrompt(data any, userType string) (string, error) {
	if strings.TrimSpace(userType) == "" {
		userType = DefaultUserType
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "advisor: marshal prompt data")
	}
	r := strings.NewReplacer("{{user_type}}", userType, "{{data}}", string(b))
	return r.Replace(promptTemplate), nil
}
