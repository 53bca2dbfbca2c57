package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	tokenFileSuffix = "_token.json"

	// authTimeout is how long the user has to finish signing in.
	authTimeout     = 5 * time.Minute
	exchangeTimeout = 30 * time.Second
)

// StoredToken is the cached form of a sign-in: the oauth2 token plus the raw
// id_token, which the oauth2 package does not persist on its own.
type StoredToken struct {
	oauth2.Token
	IDToken string `json:"id_token,omitempty"`
}

func newStoredToken(tok *oauth2.Token, previousIDToken string) *StoredToken {
	idToken := previousIDToken
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		idToken = raw
	}
	return &StoredToken{Token: *tok, IDToken: idToken}
}

// TokenStore keeps one token file per provider in Dir.
type TokenStore struct {
	Dir string
}

func (s TokenStore) path(provider string) string {
	return filepath.Join(s.Dir, provider+tokenFileSuffix)
}

func (s TokenStore) Load(provider string) (*StoredToken, error) {
	f, err := os.Open(s.path(provider))
	if err != nil {
		return nil, &Error{Code: CodeTokenCacheUnavailable, Err: err}
	}
	defer f.Close()

	tok := &StoredToken{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, &Error{Code: CodeTokenCacheUnavailable, Err: fmt.Errorf("decoding %s: %w", s.path(provider), err)}
	}
	return tok, nil
}

func (s TokenStore) Save(provider string, tok *StoredToken) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory %s: %w", s.Dir, err)
	}
	f, err := os.OpenFile(s.path(provider), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("caching token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// Remove deletes the provider's token. A missing file is not an error.
func (s TokenStore) Remove(provider string) error {
	err := os.Remove(s.path(provider))
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return &Error{Code: CodeSignOutCleanup, Err: err}
}

// Provider runs the browser sign-in for one OAuth2 identity provider and
// caches the result in Store.
type Provider struct {
	Name   string
	Config *oauth2.Config
	Store  TokenStore
	Logger *zap.Logger

	// Prompt receives the authorization URL. Defaults to io.Discard.
	Prompt io.Writer
	// Options are appended to the authorization URL.
	Options []oauth2.AuthCodeOption
	// OpenBrowser, if set, is handed the authorization URL.
	OpenBrowser func(authURL string) error
}

func (p *Provider) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Stored returns the cached token, or a CodeTokenCacheUnavailable error.
func (p *Provider) Stored() (*StoredToken, error) {
	return p.Store.Load(p.Name)
}

// TokenSource returns a refreshing source over the cached token. Refreshed
// tokens are written back to the store.
func (p *Provider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	stored, err := p.Stored()
	if err != nil {
		return nil, err
	}
	return &savingSource{
		base:     p.Config.TokenSource(ctx, &stored.Token),
		provider: p,
		last:     stored,
	}, nil
}

// Client returns an authenticated HTTP client, signing in through the
// browser when no token is cached.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	ts, err := p.TokenSource(ctx)
	if IsCode(err, CodeTokenCacheUnavailable) {
		p.logger().Info("no cached token, starting browser sign-in", zap.String("provider", p.Name))
		if _, err = p.Authorize(ctx); err != nil {
			return nil, err
		}
		ts, err = p.TokenSource(ctx)
	}
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

// SignOut forgets the cached token.
func (p *Provider) SignOut() error {
	return p.Store.Remove(p.Name)
}

type callbackResult struct {
	code string
	err  error
}

// Authorize runs the authorization code flow with PKCE. A local server on
// the redirect URL's host captures the code; port 0 picks a free port.
func (p *Provider) Authorize(ctx context.Context) (*StoredToken, error) {
	cfg := *p.Config
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return nil, &Error{Code: CodeAuthorizationFailed, Err: fmt.Errorf("parsing redirect url: %w", err)}
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, &Error{Code: CodeAuthorizationFailed, Err: fmt.Errorf("starting listener on %s: %w", redirect.Host, err)}
	}
	defer listener.Close()

	if redirect.Port() == "0" {
		port := listener.Addr().(*net.TCPAddr).Port
		redirect.Host = net.JoinHostPort(redirect.Hostname(), fmt.Sprint(port))
		cfg.RedirectURL = redirect.String()
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)
	deliver := func(r callbackResult) {
		select {
		case results <- r:
		default:
		}
	}

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch {
			case q.Get("state") != state:
				http.Error(w, "State mismatch", http.StatusBadRequest)
				return
			case q.Get("error") == "access_denied":
				fmt.Fprint(w, "Sign-in cancelled. You can close this window.")
				deliver(callbackResult{err: &Error{Code: CodeConsentCancelled, Err: errors.New(q.Get("error_description"))}})
				return
			case q.Get("error") != "":
				http.Error(w, "Sign-in failed", http.StatusBadRequest)
				deliver(callbackResult{err: &Error{Code: CodeAuthorizationFailed, Err: fmt.Errorf("%s: %s", q.Get("error"), q.Get("error_description"))}})
				return
			case q.Get("code") == "":
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				deliver(callbackResult{err: &Error{Code: CodeAuthorizationFailed, Err: errors.New("authorization code not found in redirect")}})
				return
			}
			fmt.Fprint(w, "Authentication successful! You can close this window.")
			deliver(callbackResult{code: q.Get("code")})
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(callbackResult{err: &Error{Code: CodeAuthorizationFailed, Err: err}})
		}
	}()
	defer server.Shutdown(context.Background())

	opts := append([]oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}, p.Options...)
	authURL := cfg.AuthCodeURL(state, opts...)

	prompt := p.Prompt
	if prompt == nil {
		prompt = io.Discard
	}
	fmt.Fprintf(prompt, "Open the following URL in your browser to sign in:\n%s\n", authURL)
	if p.OpenBrowser != nil {
		if err := p.OpenBrowser(authURL); err != nil {
			p.logger().Warn("could not open browser", zap.Error(err))
		}
	}

	var result callbackResult
	select {
	case result = <-results:
	case <-ctx.Done():
		return nil, &Error{Code: CodeConsentCancelled, Err: ctx.Err()}
	case <-time.After(authTimeout):
		return nil, &Error{Code: CodeAuthorizationFailed, Err: errors.New("authorization timed out")}
	}
	if result.err != nil {
		return nil, result.err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	tok, err := cfg.Exchange(exchangeCtx, result.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &Error{Code: CodeAuthorizationFailed, Err: fmt.Errorf("exchanging authorization code: %w", err)}
	}

	stored := newStoredToken(tok, "")
	if err := p.Store.Save(p.Name, stored); err != nil {
		p.logger().Warn("could not cache token", zap.String("provider", p.Name), zap.Error(err))
	}
	return stored, nil
}

// savingSource writes refreshed tokens back to the provider's store.
type savingSource struct {
	mu       sync.Mutex
	base     oauth2.TokenSource
	provider *Provider
	last     *StoredToken
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, &Error{Code: CodeInteractionRequired, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		s.last = newStoredToken(tok, s.last.IDToken)
		if err := s.provider.Store.Save(s.provider.Name, s.last); err != nil {
			s.provider.logger().Warn("could not cache refreshed token", zap.Error(err))
		}
	}
	return tok, nil
}
