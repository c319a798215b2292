package analyze

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) (*OpenAIAnalyzer, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	analyzer, err := NewOpenAIAnalyzer(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return analyzer, srv
}

func TestNewOpenAIAnalyzer_RequiresKey(t *testing.T) {
	_, err := NewOpenAIAnalyzer(OpenAIConfig{})
	assert.Error(t, err)
}

func TestOpenAIAnalyzer_DecodesFindings(t *testing.T) {
	var gotReq chatRequest
	analyzer, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		content := `{"summary":"looks risky","issues":[{"title":"Indemnity gap","severity":"high"}]}`
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	findings, err := analyzer.Analyze(context.Background(), "chunk text", 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, "looks risky", findings.Summary)
	require.Len(t, findings.Issues, 1)
	assert.Equal(t, "Indemnity gap", findings.Issues[0].Title)

	assert.Equal(t, defaultModel, gotReq.Model)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, defaultSystemPrompt, gotReq.Messages[0].Content)
	assert.Equal(t, "chunk text", gotReq.Messages[1].Content)
}

func TestOpenAIAnalyzer_AppliesOverrides(t *testing.T) {
	var gotReq chatRequest
	analyzer, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"summary":"ok","issues":[]}`}},
			},
		})
	})

	opts := Options{Prompt: "custom prompt", Model: "gpt-4o", MaxTokens: 512}
	_, err := analyzer.Analyze(context.Background(), "text", 1, opts)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", gotReq.Model)
	assert.Equal(t, 512, gotReq.MaxTokens)
	assert.Equal(t, "custom prompt", gotReq.Messages[0].Content)
}

func TestOpenAIAnalyzer_ProviderError(t *testing.T) {
	analyzer, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limit exceeded"},
		})
	})

	_, err := analyzer.Analyze(context.Background(), "text", 3, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Contains(t, err.Error(), "chunk 3")
}

func TestOpenAIAnalyzer_MalformedFindings(t *testing.T) {
	analyzer, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "not json"}},
			},
		})
	})

	_, err := analyzer.Analyze(context.Background(), "text", 0, Options{})
	assert.Error(t, err)
}
