package ai

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generativeBackend speaks the generative-content protocol, keyed through the
// query string.
type generativeBackend struct {
	client   *http.Client
	endpoint string
}

func newGenerativeBackend(client *http.Client, baseURL, key, model string) *generativeBackend {
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/" + model + ":generateContent?key=" + url.QueryEscape(key)

	return &generativeBackend{client: client, endpoint: endpoint}
}

func (b *generativeBackend) name() string {
	return "generative-content"
}

func (b *generativeBackend) complete(ctx context.Context, prompt string) (string, error) {
	const op = "GenerateContent"

	body := generateRequest{
		Contents: []content{{Parts: []contentPart{{Text: prompt}}}},
	}
	body.GenerationConfig.ResponseMimeType = "application/json"

	var resp generateResponse
	if err := postJSON(ctx, b.client, op, b.endpoint, nil, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", malformedEnvelope(op, errors.New("response has no candidate parts"))
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
