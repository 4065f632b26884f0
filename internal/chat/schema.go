package chat

import "github.com/abhisek/investory/internal/llm"

// ReplySchema is the structured reply the tutor must produce.
var ReplySchema = &llm.Schema{
	Name:        "tutor-reply",
	Description: "An answer to a learner's investing question with optional follow-up questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Plain-language answer, 2-6 sentences, no financial advice",
			},
			"followUps": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"maxItems":    3,
				"description": "Up to three short questions the learner might ask next",
			},
		},
		"required":             []any{"answer", "followUps"},
		"additionalProperties": false,
	},
}

// OfflineReply is the canned reply used by the mock provider.
var OfflineReply = []byte(`{"answer":"The tutor is offline right now. Try the level stories and quizzes, and ask again later.","followUps":[]}`)
