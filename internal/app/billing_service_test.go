package app

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brieflycloud/internal/config"
	"brieflycloud/internal/model"
)

func TestTiersCatalog(t *testing.T) {
	svc := NewBillingService(nil, config.StripeConfig{})
	tiers := svc.Tiers()

	require.Len(t, tiers, 3)
	assert.Equal(t, model.TierFree, tiers[0].Tier)
	assert.Equal(t, model.TierPro, tiers[1].Tier)
	assert.Equal(t, model.TierProByok, tiers[2].Tier)

	for _, tier := range tiers {
		assert.NotEmpty(t, tier.Name)
		assert.NotEmpty(t, tier.Features)
		assert.Equal(t, LimitsFor(tier.Tier), tier.Limits)
	}
}

func TestCheckoutRejectsUnknownTier(t *testing.T) {
	svc := NewBillingService(nil, config.StripeConfig{ProPriceID: "price_pro"})

	_, err := svc.Checkout(uuid.New(), "free")
	assert.ErrorIs(t, err, ErrUnknownTier)

	_, err = svc.Checkout(uuid.New(), "enterprise")
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc := NewBillingService(nil, config.StripeConfig{WebhookSecret: "whsec_test"})

	err := svc.HandleWebhook([]byte(`{"type":"checkout.session.completed"}`), "t=1,v1=bogus")
	assert.ErrorIs(t, err, ErrWebhookSignature)
}
