package ai

import (
	"context"
	"errors"
	"net/http"
)

const chatSystemMessage = "You output JSON only."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatBackend speaks the bearer-authenticated chat-completion protocol.
type chatBackend struct {
	client   *http.Client
	endpoint string
	key      string
	model    string
}

func newChatBackend(client *http.Client, endpoint, key, model string) *chatBackend {
	return &chatBackend{client: client, endpoint: endpoint, key: key, model: model}
}

func (b *chatBackend) name() string {
	return "chat-completion"
}

func (b *chatBackend) complete(ctx context.Context, prompt string) (string, error) {
	const op = "ChatCompletion"

	body := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: chatSystemMessage},
			{Role: "user", Content: prompt},
		},
	}
	body.ResponseFormat.Type = "json_object"

	var resp chatResponse
	if err := postJSON(ctx, b.client, op, b.endpoint, map[string]string{
		"Authorization": "Bearer " + b.key,
	}, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", malformedEnvelope(op, errors.New("response has no choices"))
	}

	return resp.Choices[0].Message.Content, nil
}
