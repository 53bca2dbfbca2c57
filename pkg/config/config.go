package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	xdgAppName = "onetask"
	configFile = "config.yaml"
	envFile    = ".env"

	DefaultBaseURL      = "http://localhost:7071/api"
	DefaultClientID     = "24243302-91ba-46a3-bbe2-f946278e5a33"
	DefaultTenant       = "common"
	DefaultRedirectPort = 6789
	DefaultCalendar     = "Tasks"
	DemoUserID          = "demo-user"
	DemoUserName        = "Demo User"
)

type Config struct {
	API      APIConfig      `yaml:"api"`
	Chat     ChatConfig     `yaml:"chat"`
	Auth     AuthConfig     `yaml:"auth"`
	User     UserConfig     `yaml:"user"`
	Calendar CalendarConfig `yaml:"calendar"`
	Log      LogConfig      `yaml:"log"`

	// SampleData seeds the store with demo content while the backend is unreachable (default true).
	SampleData *bool `yaml:"sample_data,omitempty"`
}

type APIConfig struct {
	// BaseURL is the root of the REST API, without a trailing slash.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each CRUD request (default 30s).
	Timeout time.Duration `yaml:"timeout"`
}

type ChatConfig struct {
	// BaseURL of the chat service. Defaults to api.base_url.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each chat attempt (default 45s).
	Timeout time.Duration `yaml:"timeout"`

	// Retry is the number of extra attempts after a network failure, 0 or 1 (default 1).
	Retry *int `yaml:"retry,omitempty"`
}

type AuthConfig struct {
	// ClientID is the Azure AD application (client) id of the public client.
	ClientID string `yaml:"client_id"`

	// Tenant is "common", "organizations", "consumers" or a tenant id.
	Tenant string `yaml:"tenant"`

	// RedirectPort is the localhost port that receives the authorization redirect.
	RedirectPort int `yaml:"redirect_port"`

	// Scopes requested at sign-in. Defaults to openid, profile, offline_access and User.Read.
	Scopes []string `yaml:"scopes"`
}

type UserConfig struct {
	// ID scopes every API request. Set by login, reset to the demo user by logout.
	ID string `yaml:"id"`

	// Name is the display name shown by whoami.
	Name string `yaml:"name"`
}

type CalendarConfig struct {
	// Name of the Google calendar tasks are mirrored into.
	Name string `yaml:"name"`

	// Enabled turns on mirroring after each sync.
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	// File is the rotated JSON log path. Defaults to onetask.log in the config directory.
	File string `yaml:"file"`

	// Level for console output (default warn).
	Level string `yaml:"level"`

	// Dev enables the human readable console encoder.
	Dev bool `yaml:"dev"`
}

var DefaultScopes = []string{"openid", "profile", "offline_access", "User.Read"}

// GetXdgHome returns the directory holding config, tokens and logs.
func GetXdgHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetXdgHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the default config file, loads .env files and applies
// ONETASK_* environment overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), envFile))
	return LoadFrom(path)
}

// LoadFrom reads the config at path and applies environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults(dir string) error {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.Chat.BaseURL == "" {
		c.Chat.BaseURL = c.API.BaseURL
	}
	if c.Chat.Timeout <= 0 {
		c.Chat.Timeout = 45 * time.Second
	}
	if c.Chat.Retry == nil {
		one := 1
		c.Chat.Retry = &one
	}
	if *c.Chat.Retry < 0 || *c.Chat.Retry > 1 {
		return fmt.Errorf("chat.retry must be 0 or 1, got %d", *c.Chat.Retry)
	}
	if c.Auth.ClientID == "" {
		c.Auth.ClientID = DefaultClientID
	}
	if c.Auth.Tenant == "" {
		c.Auth.Tenant = DefaultTenant
	}
	if c.Auth.RedirectPort == 0 {
		c.Auth.RedirectPort = DefaultRedirectPort
	}
	if len(c.Auth.Scopes) == 0 {
		c.Auth.Scopes = append([]string(nil), DefaultScopes...)
	}
	if c.User.ID == "" {
		c.User.ID = DemoUserID
		c.User.Name = DemoUserName
	}
	if c.Calendar.Name == "" {
		c.Calendar.Name = DefaultCalendar
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(dir, "onetask.log")
	}
	if c.SampleData == nil {
		yes := true
		c.SampleData = &yes
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"ONETASK_API_URL":   &c.API.BaseURL,
		"ONETASK_CHAT_URL":  &c.Chat.BaseURL,
		"ONETASK_CLIENT_ID": &c.Auth.ClientID,
		"ONETASK_TENANT":    &c.Auth.Tenant,
		"ONETASK_USER_ID":   &c.User.ID,
		"ONETASK_CALENDAR":  &c.Calendar.Name,
		"ONETASK_LOG_FILE":  &c.Log.File,
		"ONETASK_LOG_LEVEL": &c.Log.Level,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"ONETASK_API_TIMEOUT":  &c.API.Timeout,
		"ONETASK_CHAT_TIMEOUT": &c.Chat.Timeout,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := os.LookupEnv("ONETASK_CHAT_RETRY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ONETASK_CHAT_RETRY: %w", err)
		}
		c.Chat.Retry = &n
	}
	if v, ok := os.LookupEnv("ONETASK_SAMPLE_DATA"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ONETASK_SAMPLE_DATA: %w", err)
		}
		c.SampleData = &b
	}
	return nil
}

// UseSampleData reports whether demo content may be shown while offline.
func (c *Config) UseSampleData() bool {
	return c.SampleData == nil || *c.SampleData
}

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}
