package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jakechorley/retro-shifts/internal/config"
)

func TestTokenStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store, err := NewTokenStore(path, "test")
	require.NoError(t, err)

	token, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, token)

	expiry := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(&oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: expiry}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	token, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)
	assert.True(t, expiry.Equal(token.Expiry))

	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete())
	token, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestTokenStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := NewTokenStore(path, "test")
	require.NoError(t, err)
	_, err = store.Load()
	assert.Error(t, err)
}

func TestNewTokenStore_DefaultPathPerEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	store, err := NewTokenStore("", "prod")
	require.NoError(t, err)
	assert.Equal(t, "token-prod.json", filepath.Base(store.Path()))
	assert.Contains(t, store.Path(), filepath.Join(".retro-shifts", "tokens"))
}

func TestMissingScopes(t *testing.T) {
	assert.Empty(t, missingScopes(ScopeGmailModify+" "+ScopeGmailSend+" openid"))
	assert.Equal(t, []string{ScopeGmailModify}, missingScopes(ScopeGmailSend))
	assert.Equal(t, requiredScopes(), missingScopes(""))
}

func TestGetOAuthConfig(t *testing.T) {
	cfg := &config.OAuthClientConfig{
		Installed: config.OAuthInstalled{
			ClientID:                "client-id",
			ProjectID:               "project",
			AuthURI:                 "https://accounts.google.com/o/oauth2/auth",
			TokenURI:                "https://oauth2.googleapis.com/token",
			AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
			ClientSecret:            "secret",
			RedirectURIs:            []string{"http://localhost"},
		},
	}

	oauthConfig, err := GetOAuthConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "client-id", oauthConfig.ClientID)
	assert.Equal(t, "http://localhost:3000/oauth/callback", oauthConfig.RedirectURL)
	assert.ElementsMatch(t, requiredScopes(), oauthConfig.Scopes)
}
