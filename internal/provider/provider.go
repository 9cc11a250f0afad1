package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized means the provider rejected the access token. The
// caller should refresh and retry, or mark the connection revoked.
var ErrUnauthorized = errors.New("provider token rejected")

// Token is the provider's token endpoint reply. ExpiresIn is seconds
// from now; callers pin it to a wall-clock expiry when persisting.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}

// RemoteFile is one listable document on a provider.
type RemoteFile struct {
	ID         string
	Name       string
	MimeType   string
	Size       int64
	ModifiedAt time.Time
}

// Client is one cloud storage integration. Implementations are
// stateless; tokens are passed per call.
type Client interface {
	Name() string
	AuthURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	ListFiles(ctx context.Context, accessToken string) ([]RemoteFile, error)
	Download(ctx context.Context, accessToken string, file RemoteFile) ([]byte, error)
	AccountEmail(ctx context.Context, accessToken string) (string, error)
}

// IsGoogleNative reports whether the file is a Google-native document
// that must be exported as text rather than downloaded.
func IsGoogleNative(mimeType string) bool {
	switch mimeType {
	case "application/vnd.google-apps.document",
		"application/vnd.google-apps.spreadsheet",
		"application/vnd.google-apps.presentation":
		return true
	}
	return false
}

func postTokenForm(ctx context.Context, httpClient *http.Client, endpoint string, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, string(raw))
	}

	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse token response failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &tok, nil
}

func getJSON(ctx context.Context, httpClient *http.Client, endpoint, accessToken string, out any) error {
	raw, err := getBytes(ctx, httpClient, endpoint, accessToken)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse provider response failed: %w", err)
	}
	return nil
}

func getBytes(ctx context.Context, httpClient *http.Client, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider response failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: status 401", ErrUnauthorized)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
