package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

func validLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		APIKey:     "test-key",
		Model:      "gemini-2.0-flash",
		APITimeout: 5 * time.Second,
		MaxTokens:  1024,
	}
}

// setupClient rigs a GoogleClient against a mock HTTP server.
func setupClient(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := validLLMConfig()
	cfg.Endpoint = server.URL

	client, err := NewGoogleClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func candidateResponse(text string) string {
	payload := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func testRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "You decide browser actions.",
		Messages: []schemas.Message{
			{Role: schemas.RoleUser, Content: "go to example.com"},
			{Role: schemas.RoleAssistant, Content: `{"action_type":"navigate"}`},
			{Role: schemas.RoleUser, Content: "Current state: {}"},
		},
		Options: schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true},
	}
}

func TestNewGoogleClient_DefaultEndpoint(t *testing.T) {
	cfg := validLLMConfig()
	client, err := NewGoogleClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		client.endpoint)
}

func TestNewGoogleClient_RequiresAPIKey(t *testing.T) {
	cfg := validLLMConfig()
	cfg.APIKey = ""

	client, err := NewGoogleClient(cfg, zaptest.NewLogger(t))
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API Key is required")
}

func TestBuildRequestPayload_MapsRolesAndOptions(t *testing.T) {
	client, err := NewGoogleClient(validLLMConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	payload := client.buildRequestPayload(testRequest())

	require.NotNil(t, payload.SystemInstruction)
	assert.Equal(t, "You decide browser actions.", payload.SystemInstruction.Parts[0].Text)

	require.Len(t, payload.Contents, 3)
	assert.Equal(t, "user", payload.Contents[0].Role)
	assert.Equal(t, "model", payload.Contents[1].Role)
	assert.Equal(t, "user", payload.Contents[2].Role)

	assert.Equal(t, "application/json", payload.GenerationConfig.ResponseMimeType)
	assert.InDelta(t, 0.2, payload.GenerationConfig.Temperature, 0.0001)
	assert.Equal(t, 1024, payload.GenerationConfig.MaxOutputTokens)
}

func TestGenerate_Success(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(candidateResponse(`{"action_type":"finished"}`)))
	})

	text, err := client.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"action_type":"finished"}`, text)
}

func TestGenerate_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(candidateResponse("ok")))
	})

	text, err := client.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerate_PermanentErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_NoCandidatesIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := client.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_ContextCancellation(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable) // always transient
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, testRequest())
	require.Error(t, err)
}
