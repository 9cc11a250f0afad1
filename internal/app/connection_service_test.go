package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"brieflycloud/internal/provider"
)

func TestConnectionServiceUnknownProvider(t *testing.T) {
	svc := NewConnectionService(nil, nil, map[string]provider.Client{}, "http://localhost:8080")
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Authorize(ctx, userID, "dropbox")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = svc.Callback(ctx, "dropbox", "state", "code")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	err = svc.Disconnect(userID, "dropbox")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = svc.ListRemoteFiles(ctx, userID, "dropbox")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRedirectURI(t *testing.T) {
	t.Run("joins base and provider", func(t *testing.T) {
		svc := NewConnectionService(nil, nil, nil, "http://localhost:8080")
		assert.Equal(t, "http://localhost:8080/api/v1/storage/google_drive/callback", svc.redirectURI("google_drive"))
	})

	t.Run("trailing slash on base is tolerated", func(t *testing.T) {
		svc := NewConnectionService(nil, nil, nil, "https://api.briefly.cloud/")
		assert.Equal(t, "https://api.briefly.cloud/api/v1/storage/onedrive/callback", svc.redirectURI("onedrive"))
	})
}

func TestProviderNamesSorted(t *testing.T) {
	svc := NewConnectionService(nil, nil, map[string]provider.Client{
		"onedrive":     nil,
		"google_drive": nil,
	}, "")
	assert.Equal(t, []string{"google_drive", "onedrive"}, svc.providerNames())
}
