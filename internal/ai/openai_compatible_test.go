package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4-turbo", body.Model)
		assert.False(t, body.Stream)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"}}]}`)
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-4-turbo"}

	got, err := client.Complete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: srv.URL, APIKey: "bad", Model: "gpt-4-turbo"}

	_, err := client.Complete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.True(t, apiErr.IsAuth())
}

func TestStreamComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-3.5-turbo"}

	var chunks []string
	full, err := client.StreamComplete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestStreamCompleteOnChunkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: srv.URL, Model: "gpt-3.5-turbo"}

	sentinel := errors.New("client went away")
	_, err := client.StreamComplete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}}, func(string) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2]},{"embedding":[0.3,0.4]}]}`)
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "text-embedding-ada-002"}

	got, err := client.EmbedBatch(context.Background(), cfg, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float32{0.1, 0.2}, got[0])
	assert.Equal(t, []float32{0.3, 0.4}, got[1])
}

func TestEmbedEmptyInput(t *testing.T) {
	client := NewOpenAICompatibleClient()
	_, err := client.Embed(context.Background(), EmbeddingConfig{BaseURL: "http://unused"}, "   ")
	assert.Error(t, err)
}
