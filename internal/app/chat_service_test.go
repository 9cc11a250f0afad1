package app

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brieflycloud/internal/ai"
	"brieflycloud/internal/config"
	"brieflycloud/internal/model"
	"brieflycloud/internal/rag"
)

func TestDeriveTitle(t *testing.T) {
	t.Run("short content becomes the title", func(t *testing.T) {
		assert.Equal(t, "What is in my contract?", deriveTitle("  What is in my contract?  "))
	})

	t.Run("long content is cut at 40 runes", func(t *testing.T) {
		long := strings.Repeat("a", 80)
		got := deriveTitle(long)
		assert.Equal(t, 40, len([]rune(got)))
	})

	t.Run("rune cut does not split multibyte text", func(t *testing.T) {
		long := strings.Repeat("日", 60)
		got := deriveTitle(long)
		assert.Equal(t, 40, len([]rune(got)))
	})

	t.Run("blank content keeps the default", func(t *testing.T) {
		assert.Equal(t, defaultConversationTitle, deriveTitle("   "))
	})
}

func TestTrimMessages(t *testing.T) {
	messages := []model.ChatMessage{
		{Content: "one"}, {Content: "two"}, {Content: "three"},
	}

	t.Run("keeps the newest tail", func(t *testing.T) {
		got := trimMessages(messages, 2)
		require.Len(t, got, 2)
		assert.Equal(t, "two", got[0].Content)
		assert.Equal(t, "three", got[1].Content)
	})

	t.Run("limit beyond length is a no-op", func(t *testing.T) {
		assert.Len(t, trimMessages(messages, 10), 3)
	})

	t.Run("non-positive limit is a no-op", func(t *testing.T) {
		assert.Len(t, trimMessages(messages, 0), 3)
	})
}

func TestBuildPrompt(t *testing.T) {
	history := []model.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}

	t.Run("with passages uses the grounded system prompt", func(t *testing.T) {
		passages := []rag.Passage{{ID: "c1", Content: "the lease ends in June"}}
		got := buildPrompt(passages, history, "when does my lease end?")

		require.Len(t, got, 4)
		assert.Equal(t, "system", got[0].Role)
		assert.Equal(t, rag.SystemPrompt, got[0].Content)
		assert.Equal(t, "user", got[1].Role)
		assert.Equal(t, "assistant", got[2].Role)
		assert.Equal(t, "user", got[3].Role)
		assert.Contains(t, got[3].Content, "the lease ends in June")
		assert.Contains(t, got[3].Content, "when does my lease end?")
	})

	t.Run("without passages falls back to a plain assistant", func(t *testing.T) {
		got := buildPrompt(nil, nil, "tell me a joke")

		require.Len(t, got, 2)
		assert.NotEqual(t, rag.SystemPrompt, got[0].Content)
		assert.Equal(t, "tell me a joke", got[1].Content)
	})

	t.Run("history with empty role defaults to user", func(t *testing.T) {
		got := buildPrompt(nil, []model.ChatMessage{{Content: "legacy row"}}, "q")
		require.Len(t, got, 3)
		assert.Equal(t, "user", got[1].Role)
	})
}

func TestResolveLLM(t *testing.T) {
	svc := &ChatService{llmCfg: config.LLMConfig{
		BaseURL:   "https://api.openai.com/v1",
		APIKey:    "server-key",
		FreeModel: "gpt-3.5-turbo",
		ProModel:  "gpt-4-turbo",
	}}

	t.Run("free tier gets the free model", func(t *testing.T) {
		cfg, byok := svc.resolveLLM(&model.User{Tier: model.TierFree})
		assert.False(t, byok)
		assert.Equal(t, "gpt-3.5-turbo", cfg.Model)
		assert.Equal(t, "server-key", cfg.APIKey)
	})

	t.Run("pro tier gets the pro model", func(t *testing.T) {
		cfg, byok := svc.resolveLLM(&model.User{Tier: model.TierPro})
		assert.False(t, byok)
		assert.Equal(t, "gpt-4-turbo", cfg.Model)
	})

	t.Run("byok without a key falls back to pro", func(t *testing.T) {
		cfg, byok := svc.resolveLLM(&model.User{Tier: model.TierProByok})
		assert.False(t, byok)
		assert.Equal(t, "gpt-4-turbo", cfg.Model)
		assert.Equal(t, "server-key", cfg.APIKey)
	})

	t.Run("byok with a key uses it", func(t *testing.T) {
		cfg, byok := svc.resolveLLM(&model.User{
			Tier:        model.TierProByok,
			ByokAPIKey:  "sk-user",
			ByokModel:   "claude-3-opus",
			ByokBaseURL: "https://api.anthropic.com/v1",
		})
		assert.True(t, byok)
		assert.Equal(t, "sk-user", cfg.APIKey)
		assert.Equal(t, "claude-3-opus", cfg.Model)
		assert.Equal(t, "https://api.anthropic.com/v1", cfg.BaseURL)
	})

	t.Run("byok key without model keeps pro model", func(t *testing.T) {
		cfg, byok := svc.resolveLLM(&model.User{Tier: model.TierProByok, ByokAPIKey: "sk-user"})
		assert.True(t, byok)
		assert.Equal(t, "gpt-4-turbo", cfg.Model)
	})
}

func TestMapLLMError(t *testing.T) {
	svc := &ChatService{}

	t.Run("byok auth failure becomes a user-facing error", func(t *testing.T) {
		err := svc.mapLLMError(&ai.APIError{StatusCode: 401, Body: "invalid key"}, true)
		assert.ErrorIs(t, err, ErrByokUnauthorized)
	})

	t.Run("server key auth failure stays internal", func(t *testing.T) {
		err := svc.mapLLMError(&ai.APIError{StatusCode: 401, Body: "invalid key"}, false)
		assert.NotErrorIs(t, err, ErrByokUnauthorized)
	})

	t.Run("byok non-auth failure passes through", func(t *testing.T) {
		original := &ai.APIError{StatusCode: 500, Body: "oops"}
		err := svc.mapLLMError(original, true)
		var apiErr *ai.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 500, apiErr.StatusCode)
	})

	t.Run("plain errors pass through", func(t *testing.T) {
		original := errors.New("timeout")
		assert.Equal(t, original, svc.mapLLMError(original, true))
	})
}
