// Package webhook provides the outbound webhook action executor.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/template"
)

const actionType = "webhook"

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true,
}

// Config defines the validated configuration for webhook actions.
type Config struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Payload string            `json:"payload,omitempty"`
	Timeout int               `json:"timeout"` // Seconds
}

// Executor performs one outbound HTTP call per action. HTTP outcomes are
// classified into the result, never raised: 2xx succeeds, 4xx fails without
// retry (the config is wrong), 5xx and transport errors fail with retry.
type Executor struct {
	config Config
	client *http.Client
}

// NewExecutor validates config into a webhook executor.
func NewExecutor(config map[string]any) (*Executor, error) {
	parsed := Config{
		Method:  "POST",
		Headers: make(map[string]string),
		Timeout: 30,
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, journeyerr.NewConfigurationError(actionType, "url", errors.New("missing required field 'url'"))
	}

	parsed.URL = url

	if method, ok := config["method"].(string); ok {
		upper := strings.ToUpper(method)
		if !validMethods[upper] {
			return nil, journeyerr.NewConfigurationError(actionType, "method",
				fmt.Errorf("invalid HTTP method %q", method))
		}

		parsed.Method = upper
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if strVal, okStr := value.(string); okStr {
				parsed.Headers[key] = strVal
			}
		}
	}

	if payload, ok := config["payload"].(string); ok {
		parsed.Payload = payload
	}

	if timeout, ok := config["timeout"].(float64); ok {
		if timeout < 1 || timeout > 300 {
			return nil, journeyerr.NewConfigurationError(actionType, "timeout",
				errors.New("timeout must be between 1 and 300 seconds"))
		}

		parsed.Timeout = int(timeout)
	}

	return &Executor{
		config: parsed,
		client: &http.Client{Timeout: time.Duration(parsed.Timeout) * time.Second},
	}, nil
}

// renderPayload renders the payload template and keeps JSON bodies JSON: a
// structured render result is re-encoded instead of stringified.
func renderPayload(payload string, actionCtx protocol.ActionContext) (string, error) {
	rendered, err := template.RenderWithContext(payload, actionCtx)
	if err != nil {
		return "", err
	}

	if str, ok := rendered.(string); ok {
		return str, nil
	}

	encoded, err := json.Marshal(rendered)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// Execute performs the HTTP call and classifies the outcome.
func (e *Executor) Execute(ctx context.Context, actionCtx protocol.ActionContext) (protocol.ExecutionResult, error) {
	started := time.Now()

	url, err := template.RenderString(e.config.URL, actionCtx)
	if err != nil {
		return protocol.ExecutionResult{}, journeyerr.NewConfigurationError(actionType, "url", err)
	}

	var body io.Reader

	if e.config.Payload != "" {
		rendered, renderErr := renderPayload(e.config.Payload, actionCtx)
		if renderErr != nil {
			return protocol.ExecutionResult{}, journeyerr.NewConfigurationError(actionType, "payload", renderErr)
		}

		body = strings.NewReader(rendered)
	}

	req, err := http.NewRequestWithContext(ctx, e.config.Method, url, body)
	if err != nil {
		return protocol.ExecutionResult{}, journeyerr.NewConfigurationError(actionType, "url", err)
	}

	for key, value := range e.config.Headers {
		req.Header.Set(key, value)
	}

	if e.config.Payload != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		// Transport failure or timeout: transient, retryable.
		return protocol.FailureResult(fmt.Sprintf("webhook request failed: %v", err), true, time.Since(started)), nil
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.FailureResult(fmt.Sprintf("failed to read webhook response: %v", err), true, time.Since(started)), nil
	}

	data := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		data["json"] = jsonBody
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return protocol.SuccessResult(data, time.Since(started)), nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		result := protocol.FailureResult(fmt.Sprintf("webhook returned client error %d", resp.StatusCode), false, time.Since(started))
		result.Data = data

		return result, nil
	default:
		result := protocol.FailureResult(fmt.Sprintf("webhook returned server error %d", resp.StatusCode), true, time.Since(started))
		result.Data = data

		return result, nil
	}
}

// Factory creates webhook executors for the registry.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return actionType
}

func (f *Factory) Create(config map[string]any) (protocol.ActionExecutor, error) {
	return NewExecutor(config)
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":     map[string]any{"type": "string", "minLength": 1},
			"method":  map[string]any{"type": "string"},
			"headers": map[string]any{"type": "object"},
			"payload": map[string]any{"type": "string"},
			"timeout": map[string]any{"type": "number", "minimum": 1, "maximum": 300},
		},
		"required": []any{"url"},
	}
}
