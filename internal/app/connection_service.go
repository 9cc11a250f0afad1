package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"brieflycloud/internal/cache"
	"brieflycloud/internal/extract"
	"brieflycloud/internal/model"
	"brieflycloud/internal/provider"
	"brieflycloud/internal/repository"
)

// tokenRefreshMargin is how close to expiry a token may get before a
// call refreshes it instead of using it.
const tokenRefreshMargin = 5 * time.Minute

var (
	ErrUnknownProvider = errors.New("unknown storage provider")
	ErrNotConnected    = errors.New("storage provider not connected")
	ErrOAuthState      = errors.New("invalid or expired oauth state")
	ErrReauthRequired  = errors.New("storage authorization expired, reconnect the provider")
)

type ConnectionService struct {
	connRepo   *repository.ConnectionRepository
	states     *cache.OAuthStateStore
	providers  map[string]provider.Client
	publicBase string
}

type ProviderStatus struct {
	Provider     string     `json:"provider"`
	Connected    bool       `json:"connected"`
	AccountEmail string     `json:"account_email,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func NewConnectionService(
	connRepo *repository.ConnectionRepository,
	states *cache.OAuthStateStore,
	providers map[string]provider.Client,
	publicBase string,
) *ConnectionService {
	return &ConnectionService{
		connRepo:   connRepo,
		states:     states,
		providers:  providers,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Authorize starts the OAuth dance: it parks a state nonce in Redis
// and returns the provider's consent URL for the client to open.
func (s *ConnectionService) Authorize(ctx context.Context, userID uuid.UUID, providerName string) (string, error) {
	cli, ok := s.providers[providerName]
	if !ok {
		return "", ErrUnknownProvider
	}
	if userID == uuid.Nil {
		return "", ErrInvalidInput
	}
	state, err := s.states.Issue(ctx, userID)
	if err != nil {
		return "", err
	}
	return cli.AuthURL(state, s.redirectURI(providerName)), nil
}

// Callback finishes the dance. The state nonce identifies the user;
// the code is exchanged and the tokens land in storage_connections.
func (s *ConnectionService) Callback(ctx context.Context, providerName, state, code string) (*model.StorageConnection, error) {
	cli, ok := s.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if strings.TrimSpace(state) == "" || strings.TrimSpace(code) == "" {
		return nil, ErrInvalidInput
	}

	userID, found, err := s.states.Take(ctx, state)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOAuthState
	}

	token, err := cli.Exchange(ctx, code, s.redirectURI(providerName))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code failed: %w", err)
	}
	email, err := cli.AccountEmail(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch provider account failed: %w", err)
	}

	conn := &model.StorageConnection{
		UserID:       userID,
		Provider:     providerName,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        token.Scope,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
		AccountEmail: email,
	}
	if err := s.connRepo.Upsert(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Status reports every known provider's connection state, queried
// concurrently.
func (s *ConnectionService) Status(ctx context.Context, userID uuid.UUID) ([]ProviderStatus, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	names := s.providerNames()
	statuses := make([]ProviderStatus, len(names))

	g, _ := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			conn, err := s.connRepo.GetByUserAndProvider(userID, name)
			if err != nil {
				return err
			}
			status := ProviderStatus{Provider: name}
			if conn != nil {
				status.Connected = true
				status.AccountEmail = conn.AccountEmail
				status.ExpiresAt = &conn.ExpiresAt
			}
			statuses[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (s *ConnectionService) Disconnect(userID uuid.UUID, providerName string) error {
	if _, ok := s.providers[providerName]; !ok {
		return ErrUnknownProvider
	}
	conn, err := s.connRepo.GetByUserAndProvider(userID, providerName)
	if err != nil {
		return err
	}
	if conn == nil {
		return ErrNotConnected
	}
	return s.connRepo.DeleteByUserAndProvider(userID, providerName)
}

// Connection returns the stored grant without touching the provider.
func (s *ConnectionService) Connection(userID uuid.UUID, providerName string) (*model.StorageConnection, error) {
	if _, ok := s.providers[providerName]; !ok {
		return nil, ErrUnknownProvider
	}
	return s.connRepo.GetByUserAndProvider(userID, providerName)
}

// Provider exposes the raw client for callers that download content.
func (s *ConnectionService) Provider(name string) (provider.Client, bool) {
	cli, ok := s.providers[name]
	return cli, ok
}

// AccessToken returns a token good for at least tokenRefreshMargin,
// refreshing and persisting rotated credentials when needed.
func (s *ConnectionService) AccessToken(ctx context.Context, userID uuid.UUID, providerName string) (string, error) {
	cli, ok := s.providers[providerName]
	if !ok {
		return "", ErrUnknownProvider
	}
	conn, err := s.connRepo.GetByUserAndProvider(userID, providerName)
	if err != nil {
		return "", err
	}
	if conn == nil {
		return "", ErrNotConnected
	}

	if time.Until(conn.ExpiresAt) > tokenRefreshMargin {
		return conn.AccessToken, nil
	}
	if conn.RefreshToken == "" {
		return "", ErrReauthRequired
	}

	token, err := cli.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		if errors.Is(err, provider.ErrUnauthorized) {
			return "", ErrReauthRequired
		}
		return "", fmt.Errorf("refresh %s token failed: %w", providerName, err)
	}
	expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	if err := s.connRepo.UpdateTokens(conn.ID, token.AccessToken, token.RefreshToken, expiresAt); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// ListRemoteFiles returns the provider's documents this service can
// ingest. Files with no text extractor are dropped here rather than
// failing later in the pipeline.
func (s *ConnectionService) ListRemoteFiles(ctx context.Context, userID uuid.UUID, providerName string) ([]provider.RemoteFile, error) {
	cli, ok := s.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}
	token, err := s.AccessToken(ctx, userID, providerName)
	if err != nil {
		return nil, err
	}
	files, err := cli.ListFiles(ctx, token)
	if err != nil {
		if errors.Is(err, provider.ErrUnauthorized) {
			return nil, ErrReauthRequired
		}
		return nil, fmt.Errorf("list %s files failed: %w", providerName, err)
	}

	supported := files[:0]
	for _, f := range files {
		if extract.Supported(f.Name) || provider.IsGoogleNative(f.MimeType) {
			supported = append(supported, f)
		}
	}
	return supported, nil
}

func (s *ConnectionService) redirectURI(providerName string) string {
	return s.publicBase + "/api/v1/storage/" + providerName + "/callback"
}

func (s *ConnectionService) providerNames() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
