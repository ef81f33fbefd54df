package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"nano-agent/pkg/apperr"
)

// errorEnvelope matches the error payload both providers return.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// postJSON sends body to endpoint and decodes a successful response into out.
// An explicit error payload wins over the status code.
func postJSON(ctx context.Context, client *http.Client, op, endpoint string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "marshal_failed",
			apperr.MetaStage:  apperr.StagePlanning,
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "request_create_failed",
			apperr.MetaStage:  apperr.StagePlanning,
		})
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		// The request URL may carry the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}

		return apperr.Wrap(op, apperr.CodeTransport, err, map[string]any{
			apperr.MetaReason: "http_request_failed",
			apperr.MetaStage:  apperr.StagePlanning,
		})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeTransport, err, map[string]any{
			apperr.MetaReason: "read_body_failed",
			apperr.MetaStage:  apperr.StagePlanning,
		})
	}

	var envelope errorEnvelope
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return apperr.Wrap(op, apperr.CodeUpstream, errors.New(envelope.Error.Message), map[string]any{
			apperr.MetaReason: "api_error",
			apperr.MetaStage:  apperr.StagePlanning,
			"status_code":     resp.StatusCode,
		})
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return apperr.Wrap(op, apperr.CodeTransport, fmt.Errorf("unexpected status %d", resp.StatusCode), map[string]any{
			apperr.MetaReason: "bad_status",
			apperr.MetaStage:  apperr.StagePlanning,
			"status_code":     resp.StatusCode,
		})
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return malformedEnvelope(op, err)
	}

	return nil
}

func malformedEnvelope(op string, err error) error {
	return apperr.Wrap(op, apperr.CodeMalformedPlan, err, map[string]any{
		apperr.MetaReason: "unexpected_envelope",
		apperr.MetaStage:  apperr.StagePlanning,
	})
}
