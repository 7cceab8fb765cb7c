package googlecalendar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memoryStore struct {
	tok   *oauth2.Token
	saves int
}

func (m *memoryStore) Load() (*oauth2.Token, error) {
	if m.tok == nil {
		return nil, fs.ErrNotExist
	}
	return m.tok, nil
}

func (m *memoryStore) Save(tok *oauth2.Token) error {
	m.tok = tok
	m.saves++
	return nil
}

func TestFileTokenStore(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "nested", "token.json")}

	_, err := store.Load()
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	expiry := time.Date(2026, time.October, 15, 13, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(&oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry}))

	info, err := os.Stat(store.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.True(t, expiry.Equal(tok.Expiry))
}

func TestAuthorizeUsesCachedToken(t *testing.T) {
	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer api.Close()

	store := &memoryStore{tok: &oauth2.Token{AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}}
	cfg := OAuthConfig("id", "secret", "http://127.0.0.1:8080/")

	client, err := Authorize(context.Background(), cfg, store, func(context.Context, string) (string, error) {
		t.Fatal("consent flow must not run with a valid cached token")
		return "", nil
	}, nil)
	require.NoError(t, err)

	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer cached", gotAuth)
	assert.Zero(t, store.saves)
}

func TestAuthorizeRunsConsentFlow(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") != "the-code" {
			http.Error(w, "bad code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh", "token_type": "Bearer", "refresh_token": "r1", "expires_in": 3600}`)
	}))
	defer tokenSrv.Close()

	cfg := OAuthConfig("id", "secret", "http://127.0.0.1:8080/")
	cfg.Endpoint = oauth2.Endpoint{AuthURL: tokenSrv.URL + "/auth", TokenURL: tokenSrv.URL + "/token"}
	store := &memoryStore{}

	var shownURL string
	_, err := Authorize(context.Background(), cfg, store, func(_ context.Context, authURL string) (string, error) {
		shownURL = authURL
		return "the-code", nil
	}, nil)
	require.NoError(t, err)

	assert.Contains(t, shownURL, "access_type=offline")
	require.NotNil(t, store.tok)
	assert.Equal(t, "fresh", store.tok.AccessToken)
	assert.Equal(t, 1, store.saves)
}

func TestAuthorizeWithoutConsentFlow(t *testing.T) {
	_, err := Authorize(context.Background(), OAuthConfig("id", "secret", ""), &memoryStore{}, nil, nil)
	assert.Error(t, err)
}
