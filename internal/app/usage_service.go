package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"brieflycloud/internal/model"
	"brieflycloud/internal/repository"
)

// TierLimits is the monthly allowance for one subscription tier.
// Documents and storage track current holdings rather than a monthly
// flow, so they are not reset.
type TierLimits struct {
	Documents    int64 `json:"documents"`
	ChatMessages int64 `json:"chat_messages"`
	APICalls     int64 `json:"api_calls"`
	StorageBytes int64 `json:"storage_bytes"`
}

var tierLimits = map[string]TierLimits{
	model.TierFree:    {Documents: 10, ChatMessages: 100, APICalls: 1000, StorageBytes: 100 << 20},
	model.TierPro:     {Documents: 1000, ChatMessages: 1000, APICalls: 10000, StorageBytes: 10 << 30},
	model.TierProByok: {Documents: 10000, ChatMessages: 5000, APICalls: 50000, StorageBytes: 100 << 30},
}

// LimitsFor returns the limits for a tier, falling back to free for
// anything unrecognized.
func LimitsFor(tier string) TierLimits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[model.TierFree]
}

// UsageLimitError reports which quota blocked a request, so the
// handler can put current and limit in the rejection payload.
type UsageLimitError struct {
	Action string
	Used   int64
	Limit  int64
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("%s limit reached (%d/%d)", e.Action, e.Used, e.Limit)
}

// UsageStatus is the counter state right after a successful increment.
type UsageStatus struct {
	Action  string `json:"action"`
	Used    int64  `json:"used"`
	Limit   int64  `json:"limit"`
	Warning bool   `json:"warning"`
}

type ActionUsage struct {
	Used    int64 `json:"used"`
	Limit   int64 `json:"limit"`
	Percent int   `json:"percent"`
}

type UsageSummary struct {
	Tier           string                 `json:"tier"`
	PeriodStart    time.Time              `json:"period_start"`
	Actions        map[string]ActionUsage `json:"actions"`
	Warnings       []string               `json:"warnings"`
	Recommendation string                 `json:"recommendation,omitempty"`
}

type UsageService struct {
	userRepo *repository.UserRepository
	logRepo  *repository.UsageLogRepository
}

func NewUsageService(userRepo *repository.UserRepository, logRepo *repository.UsageLogRepository) *UsageService {
	return &UsageService{userRepo: userRepo, logRepo: logRepo}
}

// CheckAndIncrement consumes quota for one action. The increment is a
// single guarded UPDATE, so concurrent requests cannot overshoot the
// limit between check and write. Counters from a previous month are
// reset before the check.
func (s *UsageService) CheckAndIncrement(userID uuid.UUID, action string, amount int64) (*UsageStatus, error) {
	if userID == uuid.Nil || amount <= 0 {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	user, err = s.maybeResetPeriod(user)
	if err != nil {
		return nil, err
	}

	column, used, limit, err := s.counterFor(user, action)
	if err != nil {
		return nil, err
	}

	ok, err := s.userRepo.TryIncrementUsage(userID, column, amount, limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &UsageLimitError{Action: action, Used: used, Limit: limit}
	}

	log := &model.UsageLog{UserID: userID, Action: action, Amount: amount}
	if err := s.logRepo.Create(log); err != nil {
		return nil, err
	}

	used += amount
	return &UsageStatus{
		Action:  action,
		Used:    used,
		Limit:   limit,
		Warning: percentOf(used, limit) >= 80,
	}, nil
}

// Release gives quota back, for deletions and failed ingests. Releases
// are not usage, so no log row is written.
func (s *UsageService) Release(userID uuid.UUID, action string, amount int64) error {
	if userID == uuid.Nil || amount <= 0 {
		return ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	column, _, _, err := s.counterFor(user, action)
	if err != nil {
		return err
	}
	return s.userRepo.AddUsage(userID, column, -amount)
}

func (s *UsageService) Summary(userID uuid.UUID) (*UsageSummary, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	user, err = s.maybeResetPeriod(user)
	if err != nil {
		return nil, err
	}

	limits := LimitsFor(user.Tier)
	summary := &UsageSummary{
		Tier:        user.Tier,
		PeriodStart: user.UsageResetAt,
		Actions: map[string]ActionUsage{
			model.UsageActionDocumentUpload: actionUsage(user.DocumentsUploaded, limits.Documents),
			model.UsageActionChatMessage:    actionUsage(user.ChatMessagesUsed, limits.ChatMessages),
			model.UsageActionAPICall:        actionUsage(user.APICallsUsed, limits.APICalls),
			model.UsageActionStorage:        actionUsage(user.StorageUsedBytes, limits.StorageBytes),
		},
	}
	for _, action := range []string{
		model.UsageActionDocumentUpload,
		model.UsageActionChatMessage,
		model.UsageActionAPICall,
		model.UsageActionStorage,
	} {
		if warning := warningFor(action, summary.Actions[action].Percent); warning != "" {
			summary.Warnings = append(summary.Warnings, warning)
		}
	}
	switch user.Tier {
	case model.TierFree:
		summary.Recommendation = "Upgrade to Pro for higher limits and GPT-4 answers."
	case model.TierPro:
		summary.Recommendation = "Upgrade to Pro BYOK to bring your own model key."
	}
	return summary, nil
}

func (s *UsageService) Logs(userID uuid.UUID, limit int) ([]model.UsageLog, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	return s.logRepo.ListByUserID(userID, limit)
}

// maybeResetPeriod zeroes the monthly counters once the stored reset
// timestamp falls in an earlier month than now.
func (s *UsageService) maybeResetPeriod(user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	last := user.UsageResetAt.UTC()
	if !last.IsZero() && last.Year() == now.Year() && last.Month() == now.Month() {
		return user, nil
	}
	if err := s.userRepo.ResetPeriod(user.ID, now); err != nil {
		return nil, err
	}
	user.ChatMessagesUsed = 0
	user.APICallsUsed = 0
	user.UsageResetAt = now
	return user, nil
}

func (s *UsageService) counterFor(user *model.User, action string) (column string, used, limit int64, err error) {
	limits := LimitsFor(user.Tier)
	switch action {
	case model.UsageActionDocumentUpload:
		return "documents_uploaded", user.DocumentsUploaded, limits.Documents, nil
	case model.UsageActionChatMessage:
		return "chat_messages_used", user.ChatMessagesUsed, limits.ChatMessages, nil
	case model.UsageActionAPICall:
		return "api_calls_used", user.APICallsUsed, limits.APICalls, nil
	case model.UsageActionStorage:
		return "storage_used_bytes", user.StorageUsedBytes, limits.StorageBytes, nil
	default:
		return "", 0, 0, ErrInvalidInput
	}
}

func actionUsage(used, limit int64) ActionUsage {
	return ActionUsage{Used: used, Limit: limit, Percent: percentOf(used, limit)}
}

func percentOf(used, limit int64) int {
	if limit <= 0 {
		return 0
	}
	return int(used * 100 / limit)
}

func warningFor(action string, percent int) string {
	switch {
	case percent >= 95:
		return fmt.Sprintf("%s usage critical (%d%% of limit)", action, percent)
	case percent >= 90:
		return fmt.Sprintf("%s usage almost at limit (%d%%)", action, percent)
	case percent >= 80:
		return fmt.Sprintf("%s usage high (%d%%)", action, percent)
	default:
		return ""
	}
}
