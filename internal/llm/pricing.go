package llm

import "strings"

// ModelCost is USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the USD cost of a request.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*c.InputPerMTok + float64(outputTokens)*c.OutputPerMTok) / 1_000_000
}

// LookupCost returns pricing for a model ID. OpenRouter IDs are matched
// without their vendor prefix. The backend and mock providers are free.
func LookupCost(modelID string) (ModelCost, bool) {
	if c, ok := modelCosts[modelID]; ok {
		return c, true
	}
	if _, name, found := strings.Cut(modelID, "/"); found {
		c, ok := modelCosts[name]
		return c, ok
	}
	return ModelCost{}, false
}

// modelCosts covers the models reachable through the built-in aliases plus
// a few common alternatives. Prices as of 2026-02.
var modelCosts = map[string]ModelCost{
	"investory-backend": {0, 0},
	"mock":              {0, 0},

	"claude-haiku-4-5-20251001":  {1, 5},
	"claude-haiku-4-5":           {1, 5},
	"claude-sonnet-4-5-20250929": {3, 15},
	"claude-sonnet-4-5":          {3, 15},
	"claude-3-5-haiku-latest":    {0.8, 4},

	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-5-mini":   {0.25, 2},

	"gemini-2.0-flash":     {0.1, 0.4},
	"gemini-2.0-flash-001": {0.1, 0.4},
	"gemini-2.5-flash":     {0.3, 2.5},
	"gemini-2.5-pro":       {1.25, 10},
}
