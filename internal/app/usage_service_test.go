package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"brieflycloud/internal/model"
)

func TestLimitsFor(t *testing.T) {
	t.Run("known tiers", func(t *testing.T) {
		free := LimitsFor(model.TierFree)
		assert.Equal(t, int64(10), free.Documents)
		assert.Equal(t, int64(100), free.ChatMessages)
		assert.Equal(t, int64(1000), free.APICalls)
		assert.Equal(t, int64(100<<20), free.StorageBytes)

		pro := LimitsFor(model.TierPro)
		assert.Equal(t, int64(1000), pro.Documents)
		assert.Equal(t, int64(10<<30), pro.StorageBytes)

		byok := LimitsFor(model.TierProByok)
		assert.Equal(t, int64(5000), byok.ChatMessages)
	})

	t.Run("unknown tier falls back to free", func(t *testing.T) {
		assert.Equal(t, LimitsFor(model.TierFree), LimitsFor("enterprise"))
		assert.Equal(t, LimitsFor(model.TierFree), LimitsFor(""))
	})
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 0, percentOf(0, 100))
	assert.Equal(t, 50, percentOf(5, 10))
	assert.Equal(t, 100, percentOf(10, 10))
	assert.Equal(t, 120, percentOf(12, 10))
	assert.Equal(t, 0, percentOf(5, 0))
}

func TestWarningFor(t *testing.T) {
	t.Run("quiet below 80 percent", func(t *testing.T) {
		assert.Empty(t, warningFor(model.UsageActionChatMessage, 0))
		assert.Empty(t, warningFor(model.UsageActionChatMessage, 79))
	})

	t.Run("escalates with usage", func(t *testing.T) {
		assert.Contains(t, warningFor(model.UsageActionChatMessage, 80), "high")
		assert.Contains(t, warningFor(model.UsageActionChatMessage, 90), "almost at limit")
		assert.Contains(t, warningFor(model.UsageActionChatMessage, 95), "critical")
		assert.Contains(t, warningFor(model.UsageActionChatMessage, 110), "critical")
	})

	t.Run("names the action", func(t *testing.T) {
		assert.Contains(t, warningFor(model.UsageActionStorage, 85), model.UsageActionStorage)
	})
}

func TestUsageLimitError(t *testing.T) {
	err := &UsageLimitError{Action: model.UsageActionDocumentUpload, Used: 10, Limit: 10}
	assert.Equal(t, "document_upload limit reached (10/10)", err.Error())
}

func TestActionUsage(t *testing.T) {
	got := actionUsage(80, 100)
	assert.Equal(t, int64(80), got.Used)
	assert.Equal(t, int64(100), got.Limit)
	assert.Equal(t, 80, got.Percent)
}
