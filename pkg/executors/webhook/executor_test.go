package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/protocol"
)

func TestExecutePostsRenderedPayload(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotBody        map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"received": true}`))
	}))
	defer server.Close()

	executor, err := NewExecutor(map[string]any{
		"url":     server.URL,
		"payload": `{"contact_id": "{{.execution.contact_id}}"}`,
	})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{
		ExecutionID: "exec-1",
		ContactID:   "contact-1",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "contact-1", gotBody["contact_id"])
	assert.Equal(t, 200, result.Data["status_code"])
	assert.Equal(t, map[string]any{"received": true}, result.Data["json"])
}

func TestExecuteSendsConfiguredHeaders(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	executor, err := NewExecutor(map[string]any{
		"url":     server.URL,
		"method":  "PUT",
		"headers": map[string]any{"Authorization": "Bearer token-1"},
	})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Bearer token-1", gotAuth)
}

func TestExecuteClientErrorDoesNotRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	executor, err := NewExecutor(map[string]any{"url": server.URL})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.ShouldRetry, "a 4xx means the config is wrong")
	assert.Equal(t, 422, result.Data["status_code"])
}

func TestExecuteServerErrorRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	executor, err := NewExecutor(map[string]any{"url": server.URL})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.ShouldRetry)
}

func TestExecuteTransportFailureRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	executor, err := NewExecutor(map[string]any{"url": server.URL})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ActionContext{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.ShouldRetry)
}

func TestNewExecutorValidatesConfig(t *testing.T) {
	_, err := NewExecutor(map[string]any{})
	assert.Error(t, err, "url is required")

	_, err = NewExecutor(map[string]any{"url": "https://x.test", "method": "TRACE"})
	assert.Error(t, err)

	_, err = NewExecutor(map[string]any{"url": "https://x.test", "timeout": 500.0})
	assert.Error(t, err)
}

func TestNewExecutorDefaults(t *testing.T) {
	executor, err := NewExecutor(map[string]any{"url": "https://x.test"})
	require.NoError(t, err)

	assert.Equal(t, "POST", executor.config.Method)
	assert.Equal(t, 30, executor.config.Timeout)
}
