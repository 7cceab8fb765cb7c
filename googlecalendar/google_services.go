package googlecalendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// CredentialStore persists the calendar OAuth token between runs.
type CredentialStore interface {
	// Load returns fs.ErrNotExist when nothing has been stored yet.
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// FileTokenStore keeps the token as JSON in a file only the user can read.
type FileTokenStore struct {
	Path string
}

func (f FileTokenStore) Load() (*oauth2.Token, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(file).Decode(tok); err != nil {
		return nil, pkgerrors.Wrapf(err, "decoding token cache %s", f.Path)
	}
	return tok, nil
}

func (f FileTokenStore) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return pkgerrors.Wrap(err, "creating token cache directory")
	}
	file, err := os.OpenFile(f.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return pkgerrors.Wrap(err, "unable to cache oauth token")
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(tok)
}

// AuthCodeFunc shows authURL to the user and returns the authorization code.
type AuthCodeFunc func(ctx context.Context, authURL string) (string, error)

// OAuthConfig returns the OAuth client configuration for calendar access.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarScope},
		Endpoint:     google.Endpoint,
	}
}

// Authorize returns an HTTP client carrying a valid calendar token. A cached
// token is reused and refreshed; otherwise getCode runs the consent flow.
// Refreshed or new tokens are written back to store.
func Authorize(ctx context.Context, cfg *oauth2.Config, store CredentialStore, getCode AuthCodeFunc, logger hclog.Logger) (*http.Client, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	log := logger.Named("oauth")

	tok, err := store.Load()
	switch {
	case err == nil:
		log.Debug("using cached token", "valid", tok.Valid())
	case errors.Is(err, fs.ErrNotExist):
		log.Info("no cached token, requesting authorization")
	default:
		log.Warn("unreadable token cache, requesting authorization", "error", err)
	}

	if tok == nil || (!tok.Valid() && tok.RefreshToken == "") {
		if getCode == nil {
			return nil, errors.New("calendar authorization required")
		}
		authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		code, err := getCode(ctx, authURL)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "obtaining authorization code")
		}
		tok, err = cfg.Exchange(ctx, code)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "unable to retrieve token from web")
		}
		if err := store.Save(tok); err != nil {
			return nil, err
		}
		log.Info("new token stored")
	}

	src := &savingTokenSource{
		base:  cfg.TokenSource(ctx, tok),
		store: store,
		last:  tok.AccessToken,
		log:   log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// savingTokenSource writes refreshed tokens back to the store.
type savingTokenSource struct {
	base  oauth2.TokenSource
	store CredentialStore
	log   hclog.Logger

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			s.log.Warn("unable to cache refreshed token", "error", err)
		} else {
			s.log.Debug("refreshed token stored")
		}
	}
	return tok, nil
}

// LocalCallback prints the consent URL and waits for the browser to be
// redirected to redirectURL, which must point at this machine.
func LocalCallback(redirectURL string, logger hclog.Logger) AuthCodeFunc {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return func(ctx context.Context, authURL string) (string, error) {
		u, err := url.Parse(redirectURL)
		if err != nil {
			return "", pkgerrors.Wrap(err, "invalid redirect url")
		}
		ln, err := net.Listen("tcp", u.Host)
		if err != nil {
			return "", pkgerrors.Wrapf(err, "listening on %s", u.Host)
		}

		codes := make(chan string, 1)
		mux := http.NewServeMux()
		path := u.Path
		if path == "" {
			path = "/"
		}
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, "Authorization completed. You can close this window.")
			select {
			case codes <- code:
			default:
			}
		})
		server := &http.Server{Handler: mux}
		go func() {
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("callback server stopped", "error", err)
			}
		}()
		defer server.Shutdown(context.Background())

		fmt.Printf("Go to the following link in your browser to authorize calendar access:\n%v\n", authURL)
		select {
		case code := <-codes:
			return code, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
