package resolver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parts-cli/pkg/anthropic"
)

// cleanJSON strips markdown fences and leading/trailing prose from an AI
// response, leaving the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// askJSON sends a single user prompt and unmarshals the cleaned response
// into out. Malformed JSON is an error the caller degrades on, not a panic.
func askJSON(ctx context.Context, ai anthropic.Client, aiModel string, maxTokens int64, system, prompt string, out any) error {
	resp, err := ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     aiModel,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return eris.Wrap(err, "resolver: create message")
	}
	resp.Usage.LogUsage(aiModel, "resolver")

	cleaned := cleanJSON(anthropic.Text(resp))
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return eris.Wrap(err, "resolver: parse AI answer")
	}
	return nil
}

// joinNonEmpty joins the non-empty parts with single spaces. Query builders
// use it so missing make/model/year fields don't leave double spaces.
func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// equalFold reports case-insensitive equality after trimming.
func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
