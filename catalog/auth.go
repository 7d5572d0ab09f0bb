package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Auth holds the application credentials used to reach the catalog
type Auth struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// TokenPath is where the user's token is cached between runs.
	TokenPath string

	// Prompt is shown the URL the user must visit to grant access.
	Prompt func(url string)
}

// AppClient returns an HTTP client authenticated as the application only.
// It can search the catalog but can't touch anyone's playlists.
func (a *Auth) AppClient(ctx context.Context) *http.Client {
	config := &clientcredentials.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return config.Client(ctx)
}

// UserClient returns an HTTP client authenticated as the user, able to
// manage their playlists. A cached token is used if present; otherwise the
// user is sent through the authorization flow. Refreshed tokens are written
// back to the cache.
func (a *Auth) UserClient(ctx context.Context) (*http.Client, error) {
	config := a.oauthConfig()

	token, err := a.loadToken()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Ignoring unreadable token cache", "path", a.TokenPath, "error", err)
		}

		token, err = a.authorize(ctx, config)
		if err != nil {
			return nil, err
		}

		if err := a.saveToken(token); err != nil {
			slog.Warn("Unable to cache token", "path", a.TokenPath, "error", err)
		}
	}

	src := &persistingSource{
		next:    config.TokenSource(ctx, token),
		current: token.AccessToken,
		save:    a.saveToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

func (a *Auth) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		RedirectURL:  a.RedirectURL,
		Scopes:       []string{spotifyauth.ScopePlaylistModifyPrivate, spotifyauth.ScopePlaylistModifyPublic, spotifyauth.ScopePlaylistReadPrivate},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// authorize runs the authorization code flow, listening on the redirect URL
// for the callback
func (a *Auth) authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	redirect, err := url.Parse(a.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL: %w", err)
	}

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("unable to listen for authorization callback: %w", err)
	}

	type result struct {
		token *oauth2.Token
		err   error
	}
	results := make(chan result, 1)
	var once sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}

		var res result
		if msg := r.URL.Query().Get("error"); msg != "" {
			res.err = fmt.Errorf("authorization denied: %s", msg)
		} else {
			res.token, res.err = config.Exchange(r.Context(), r.URL.Query().Get("code"))
		}

		if res.err != nil {
			http.Error(w, "Authorization failed", http.StatusInternalServerError)
		} else {
			_, _ = fmt.Fprintln(w, "Authorized, you can close this window.")
		}
		once.Do(func() { results <- res })
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Authorization callback server failed", "error", err)
		}
	}()
	defer server.Close()

	authURL := config.AuthCodeURL(state)
	if a.Prompt != nil {
		a.Prompt(authURL)
	} else {
		slog.Info("Visit the following URL to authorize access", "url", authURL)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, fmt.Errorf("unable to obtain token: %w", res.err)
		}
		return res.token, nil
	}
}

func (a *Auth) loadToken() (*oauth2.Token, error) {
	if a.TokenPath == "" {
		return nil, os.ErrNotExist
	}

	data, err := os.ReadFile(a.TokenPath)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("invalid token cache: %w", err)
	}
	if token.RefreshToken == "" && token.AccessToken == "" {
		return nil, errors.New("invalid token cache: no tokens")
	}
	return token, nil
}

func (a *Auth) saveToken(token *oauth2.Token) error {
	if a.TokenPath == "" {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(a.TokenPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(a.TokenPath, data, 0o600)
}

// persistingSource saves tokens whenever the underlying source refreshes
type persistingSource struct {
	next    oauth2.TokenSource
	save    func(*oauth2.Token) error
	mutex   sync.Mutex
	current string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.next.Token()
	if err != nil {
		return nil, err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if token.AccessToken != p.current {
		p.current = token.AccessToken
		if err := p.save(token); err != nil {
			slog.Warn("Unable to cache refreshed token", "error", err)
		}
	}
	return token, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
