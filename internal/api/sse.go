package api

import (
	"encoding/json"

	"ashteams-intelligence/backend/internal/models"
)

// sseDelta encodes one streamed reply fragment as an event payload
func sseDelta(fragment string) (string, error) {
	b, err := json.Marshal(map[string]string{"content": fragment})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sseFinal encodes the persisted message pair sent before the [DONE] marker
func sseFinal(resp *models.SendMessageResponse) (string, error) {
	b, err := json.Marshal(map[string]any{
		"done":        true,
		"userMessage": resp.UserMessage,
		"aiMessage":   resp.AIMessage,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
