// Package moderate decides whether fetched page text is harmful, using
// an external moderation oracle.
package moderate

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// ModerationModel is the oracle class submitted text is judged under.
const ModerationModel = "omni-moderation-latest"

// Moderator submits text to an external moderation oracle and decides
// harmfulness. A Moderator without a client (the zero value, or one built
// by New with an empty key) always returns false without attempting a call.
type Moderator struct {
	client *openai.Client
}

// New builds a Moderator backed by apiKey. An empty apiKey yields a
// Moderator that never calls the oracle.
func New(apiKey string) *Moderator {
	if apiKey == "" {
		return &Moderator{}
	}
	return &Moderator{client: openai.NewClient(apiKey)}
}

// Moderate reports whether text is harmful. Empty text short-circuits to
// false without calling the oracle. Any oracle error returns false.
// harmful is true iff the oracle flags the content and marks the
// "sexual" category.
func (m *Moderator) Moderate(ctx context.Context, text string) bool {
	if text == "" || m.client == nil {
		return false
	}

	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: ModerationModel,
	})
	if err != nil || len(resp.Results) == 0 {
		return false
	}

	result := resp.Results[0]
	return result.Flagged && result.Categories.Sexual
}
