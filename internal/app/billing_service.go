package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"brieflycloud/internal/config"
	"brieflycloud/internal/model"
	"brieflycloud/internal/repository"
)

var (
	ErrUnknownTier      = errors.New("unknown billing tier")
	ErrWebhookSignature = errors.New("webhook signature verification failed")
)

type BillingService struct {
	userRepo *repository.UserRepository
	cfg      config.StripeConfig
}

type TierInfo struct {
	Tier     string     `json:"tier"`
	Name     string     `json:"name"`
	Limits   TierLimits `json:"limits"`
	Features []string   `json:"features"`
}

func NewBillingService(userRepo *repository.UserRepository, cfg config.StripeConfig) *BillingService {
	stripe.Key = cfg.SecretKey
	return &BillingService{userRepo: userRepo, cfg: cfg}
}

// Tiers is the plan catalog shown on the pricing page.
func (s *BillingService) Tiers() []TierInfo {
	return []TierInfo{
		{
			Tier:   model.TierFree,
			Name:   "Free",
			Limits: LimitsFor(model.TierFree),
			Features: []string{
				"Google Drive and OneDrive sync",
				"GPT-3.5 answers over your documents",
			},
		},
		{
			Tier:   model.TierPro,
			Name:   "Pro",
			Limits: LimitsFor(model.TierPro),
			Features: []string{
				"Everything in Free, with higher limits",
				"GPT-4 answers",
			},
		},
		{
			Tier:   model.TierProByok,
			Name:   "Pro BYOK",
			Limits: LimitsFor(model.TierProByok),
			Features: []string{
				"Everything in Pro",
				"Bring your own API key and model",
			},
		},
	}
}

// Checkout opens a Stripe Checkout session for a paid tier and returns
// its hosted URL. The target tier rides along in the session metadata
// so the webhook can apply it without a second lookup.
func (s *BillingService) Checkout(userID uuid.UUID, tier string) (string, error) {
	var priceID string
	switch tier {
	case model.TierPro:
		priceID = s.cfg.ProPriceID
	case model.TierProByok:
		priceID = s.cfg.ByokPriceID
	default:
		return "", ErrUnknownTier
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	if user.StripeCustomerID != "" {
		params.Customer = stripe.String(user.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(user.Email)
	}
	params.AddMetadata("user_id", user.ID.String())
	params.AddMetadata("tier", tier)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session failed: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and applies one Stripe event. Events this
// service does not care about are acknowledged silently so Stripe
// stops retrying them.
func (s *BillingService) HandleWebhook(payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session failed: %w", err)
		}
		return s.applyCheckoutCompleted(&sess)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription failed: %w", err)
		}
		return s.applySubscriptionDeleted(&sub)
	default:
		return nil
	}
}

func (s *BillingService) applyCheckoutCompleted(sess *stripe.CheckoutSession) error {
	userID, err := uuid.Parse(sess.Metadata["user_id"])
	if err != nil {
		return fmt.Errorf("checkout session carries no valid user_id: %w", err)
	}
	tier := sess.Metadata["tier"]
	if tier != model.TierPro && tier != model.TierProByok {
		return fmt.Errorf("checkout session carries unknown tier %q", tier)
	}

	fields := map[string]any{
		"tier":                tier,
		"subscription_status": "active",
	}
	if sess.Customer != nil {
		fields["stripe_customer_id"] = sess.Customer.ID
	}
	if sess.Subscription != nil {
		fields["stripe_subscription_id"] = sess.Subscription.ID
	}
	return s.userRepo.UpdateFields(userID, fields)
}

func (s *BillingService) applySubscriptionDeleted(sub *stripe.Subscription) error {
	if sub.Customer == nil {
		return nil
	}
	user, err := s.userRepo.GetByStripeCustomerID(sub.Customer.ID)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	return s.userRepo.UpdateFields(user.ID, map[string]any{
		"tier":                   model.TierFree,
		"subscription_status":    "canceled",
		"stripe_customer_id":     "",
		"stripe_subscription_id": "",
	})
}
