package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nano-agent/internal/config"
	"nano-agent/internal/entity"
	"nano-agent/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, conf *config.AIConfig) *Client {
	t.Helper()

	if conf.Timeout == 0 {
		conf.Timeout = 5 * time.Second
	}

	client, err := NewClient(Params{
		Config: &config.Config{AIConfig: conf},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return client
}

func samplePlanRequest() entity.PlanRequest {
	idx := 0

	return entity.PlanRequest{
		Goal: "click the login button",
		URL:  "https://example.com/",
		Elements: []entity.ElementDescriptor{
			{Index: 0, Tag: "BUTTON", Text: "Log In", Selector: "#login-secret-selector"},
			{Index: 1, Tag: "A", Text: "Buy now", Selector: "#buy", Sensitive: true},
		},
		History: []entity.HistoryEntry{
			{Step: 1, Action: entity.ActionScroll},
			{Step: 2, Action: entity.ActionClick, TargetIndex: &idx, Target: "Menu"},
		},
	}
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(Params{
		Config: &config.Config{AIConfig: &config.AIConfig{Model: "deepseek-chat", APIKey: ""}},
		Logger: zaptest.NewLogger(t),
	})

	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestRequestPlan_ChatCompletionBackend(t *testing.T) {
	requests := make(chan chatRequest, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer ds-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var captured chatRequest
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		requests <- captured

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"action\":\"click\",\"target_index\":0,\"reasoning\":\"press login\"}"}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, &config.AIConfig{
		Model:            "deepseek-chat",
		APIKey:           "generic-key",
		DeepSeekAPIKey:   "ds-key",
		DeepSeekEndpoint: srv.URL,
	})

	plan, err := client.RequestPlan(context.Background(), samplePlanRequest())

	require.NoError(t, err)
	assert.Equal(t, entity.ActionClick, plan.Action)
	require.NotNil(t, plan.TargetIndex)
	assert.Equal(t, 0, *plan.TargetIndex)
	assert.Equal(t, "press login", plan.Reasoning)

	captured := <-requests
	assert.Equal(t, "deepseek-chat", captured.Model)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, chatSystemMessage, captured.Messages[0].Content)

	prompt := captured.Messages[1].Content
	assert.Contains(t, prompt, `GOAL: "click the login button"`)
	assert.Contains(t, prompt, `URL: "https://example.com/"`)
	assert.Contains(t, prompt, `HISTORY: scroll -> click("Menu")`)
	assert.Contains(t, prompt, `{"i":1,"t":"A","txt":"Buy now","sensitive":true}`)
	assert.NotContains(t, prompt, "login-secret-selector", "selectors must not leave the process")
}

func TestRequestPlan_GenerativeContentBackend(t *testing.T) {
	requests := make(chan generateRequest, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "gm-key", r.URL.Query().Get("key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var captured generateRequest
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		requests <- captured

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"action\":\"type\",\"target_index\":\"1\",\"value\":\"shoes\"}"}]}}]}`))
	}))
	defer srv.Close()

	for _, model := range []string{"gemini-1.5-flash", "models/gemini-1.5-flash"} {
		client := newTestClient(t, &config.AIConfig{Model: model, APIKey: "gm-key", GeminiBaseURL: srv.URL})

		plan, err := client.RequestPlan(context.Background(), samplePlanRequest())

		require.NoError(t, err, model)
		assert.Equal(t, entity.ActionType, plan.Action)
		assert.Equal(t, "shoes", plan.ValueOrEmpty())

		captured := <-requests
		assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
		require.Len(t, captured.Contents, 1)
		assert.Contains(t, captured.Contents[0].Parts[0].Text, "RESPONSE FORMAT")
	}
}

func TestRequestPlan_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{name: "upstream error payload", status: http.StatusBadRequest, body: `{"error":{"message":"API key not valid"}}`, code: apperr.CodeUpstream},
		{name: "error payload on 200", status: http.StatusOK, body: `{"error":{"message":"quota"}}`, code: apperr.CodeUpstream},
		{name: "bad status without payload", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, code: apperr.CodeTransport},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, code: apperr.CodeMalformedPlan},
		{name: "envelope not json", status: http.StatusOK, body: `not json`, code: apperr.CodeMalformedPlan},
		{name: "payload not json", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":"click it"}]}}]}`, code: apperr.CodeMalformedPlan},
		{name: "payload unknown action", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":"{\"action\":\"hover\"}"}]}}]}`, code: apperr.CodeInvalidPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := newTestClient(t, &config.AIConfig{Model: "gemini-1.5-flash", APIKey: "k", GeminiBaseURL: srv.URL})

			_, err := client.RequestPlan(context.Background(), samplePlanRequest())

			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestRequestPlan_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := newTestClient(t, &config.AIConfig{Model: "gemini-1.5-flash", APIKey: "secret-key", GeminiBaseURL: srv.URL})

	_, err := client.RequestPlan(context.Background(), samplePlanRequest())

	require.Error(t, err)
	assert.Equal(t, apperr.CodeTransport, apperr.CodeOf(err))
	assert.NotContains(t, err.Error(), "secret-key")
}
