package auth

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	ProviderGoogle = "google"

	// CredentialsFile is the Google API client secret downloaded from the
	// cloud console, expected in the config directory.
	CredentialsFile = "credentials.json"
)

// GoogleConfig reads credentials.json from dir. Localhost and out-of-band
// redirect URLs are forced onto port so the local listener receives the code.
func GoogleConfig(dir string, port int, logger *zap.Logger, scopes ...string) (*oauth2.Config, error) {
	path := filepath.Join(dir, CredentialsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}

	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	want := strconv.Itoa(port)
	u, err := url.Parse(cfg.RedirectURL)
	switch {
	case cfg.RedirectURL == "urn:ietf:wg:oauth:2.0:oob":
		cfg.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", want)
	case err != nil:
		logger.Warn("could not parse redirect url, using it as is", zap.String("redirect_url", cfg.RedirectURL), zap.Error(err))
	case u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1":
		if u.Port() != want {
			u.Host = u.Hostname() + ":" + want
			cfg.RedirectURL = u.String()
		}
	default:
		logger.Warn("redirect url is not a localhost callback", zap.String("redirect_url", cfg.RedirectURL))
	}
	return cfg, nil
}

// NewGoogle returns the provider used to authorize the calendar mirror.
func NewGoogle(dir string, port int, logger *zap.Logger, prompt io.Writer) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := GoogleConfig(dir, port, logger, calendar.CalendarEventsScope, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, err
	}
	return &Provider{
		Name:   ProviderGoogle,
		Config: cfg,
		Store:  TokenStore{Dir: dir},
		Logger: logger,
		Prompt: prompt,
		Options: []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		},
	}, nil
}
