package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"brieflycloud/internal/model"
	"brieflycloud/internal/pkg/jwtutil"
	"brieflycloud/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmailExists       = errors.New("email already registered")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrUserNotFound      = errors.New("user not found")
)

type AuthService struct {
	userRepo        *repository.UserRepository
	jwtSecret       string
	jwtExpireMinute int
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// ProfileResult wraps the user row with derived display fields that
// the model keeps out of JSON, like the masked BYOK key.
type ProfileResult struct {
	User          *model.User `json:"user"`
	Limits        TierLimits  `json:"limits"`
	ByokKeyMasked string      `json:"byok_key_masked,omitempty"`
}

type UpdateProfileInput struct {
	Name        *string
	ByokAPIKey  *string
	ByokBaseURL *string
	ByokModel   *string
}

func NewAuthService(userRepo *repository.UserRepository, jwtSecret string, jwtExpireMinute int) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		jwtSecret:       jwtSecret,
		jwtExpireMinute: jwtExpireMinute,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	name := strings.TrimSpace(input.Name)

	if email == "" || !strings.Contains(email, "@") || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Tier:         model.TierFree,
		UsageResetAt: time.Now().UTC(),
	}
	if err := s.userRepo.Create(user); err != nil {
		// Two racing registrations can both pass the GetByEmail check;
		// the unique index decides the loser.
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpireMinute, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpireMinute, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) GetProfile(userID uuid.UUID) (*ProfileResult, error) {
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
	return s.profileResult(user), nil
}

// UpdateProfile changes the display name and BYOK settings. Nil fields
// are left untouched; an explicit empty string clears the value.
func (s *AuthService) UpdateProfile(userID uuid.UUID, input UpdateProfileInput) (*ProfileResult, error) {
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

	fields := map[string]any{}
	if input.Name != nil {
		fields["name"] = strings.TrimSpace(*input.Name)
	}
	if input.ByokAPIKey != nil {
		fields["byok_api_key"] = strings.TrimSpace(*input.ByokAPIKey)
	}
	if input.ByokBaseURL != nil {
		fields["byok_base_url"] = strings.TrimSpace(*input.ByokBaseURL)
	}
	if input.ByokModel != nil {
		fields["byok_model"] = strings.TrimSpace(*input.ByokModel)
	}
	if err := s.userRepo.UpdateFields(userID, fields); err != nil {
		return nil, err
	}

	user, err = s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.profileResult(user), nil
}

func (s *AuthService) profileResult(user *model.User) *ProfileResult {
	result := &ProfileResult{User: user, Limits: LimitsFor(user.Tier)}
	if user.ByokAPIKey != "" {
		result.ByokKeyMasked = maskSecret(user.ByokAPIKey)
	}
	return result
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
