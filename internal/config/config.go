// Package config assembles client and dev server settings from defaults,
// an optional .env file and INVESTORY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhisek/investory/internal/debounce"
	"github.com/abhisek/investory/internal/llm"
	"github.com/abhisek/investory/internal/market"
)

const (
	defaultAPIURL     = "http://localhost:8787"
	defaultAPITimeout = 15 * time.Second
	defaultDevAddr    = ":8787"
	defaultDevSecret  = "investory-dev-secret"
)

// DefaultSymbols is the ticker watch set when none is configured.
var DefaultSymbols = []string{"^NSEI", "^BSESN", "RELIANCE", "TCS", "INFY"}

// Config holds everything the CLI needs to build its collaborators.
type Config struct {
	// APIURL is the backend base URL.
	APIURL string

	// DBPath overrides the database location. Empty means store.DefaultDBPath.
	DBPath string

	// Token, when set, is used instead of the signed-in identity.
	Token string

	APITimeout     time.Duration
	DebounceWindow time.Duration

	// Symbols is the default ticker subscription.
	Symbols []string

	DevServer DevServerConfig
	LLM       llm.Config
}

// DevServerConfig configures the in-memory reference backend.
type DevServerConfig struct {
	Addr string

	// Secret signs and verifies HS256 bearer tokens.
	Secret string

	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string

	// TickInterval is how often the quote broadcaster moves prices.
	TickInterval time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		APIURL:         defaultAPIURL,
		APITimeout:     defaultAPITimeout,
		DebounceWindow: debounce.DefaultWindow,
		Symbols:        append([]string(nil), DefaultSymbols...),
		DevServer: DevServerConfig{
			Addr:         defaultDevAddr,
			Secret:       defaultDevSecret,
			TickInterval: 2 * time.Second,
		},
		LLM: llm.DefaultConfig(),
	}
}

// Load reads the given .env files (default ".env") into the process
// environment without overriding variables already set, then returns
// FromEnv. Missing files are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

// FromEnv applies INVESTORY_* variables on top of DefaultConfig.
// Unparseable durations are ignored with a warning.
func FromEnv() Config {
	cfg := DefaultConfig()

	cfg.APIURL = envOr("INVESTORY_API_URL", cfg.APIURL)
	cfg.DBPath = os.Getenv("INVESTORY_DB")
	cfg.Token = os.Getenv("INVESTORY_TOKEN")
	cfg.APITimeout = durationOr("INVESTORY_API_TIMEOUT", cfg.APITimeout)
	cfg.DebounceWindow = durationOr("INVESTORY_DEBOUNCE", cfg.DebounceWindow)
	if v := os.Getenv("INVESTORY_SYMBOLS"); v != "" {
		cfg.Symbols = splitList(v)
	}

	cfg.DevServer.Addr = envOr("INVESTORY_DEV_ADDR", cfg.DevServer.Addr)
	cfg.DevServer.Secret = envOr("INVESTORY_DEV_SECRET", cfg.DevServer.Secret)
	if v := os.Getenv("INVESTORY_DEV_ORIGINS"); v != "" {
		cfg.DevServer.AllowedOrigins = splitList(v)
	}
	cfg.DevServer.TickInterval = durationOr("INVESTORY_DEV_TICK", cfg.DevServer.TickInterval)

	cfg.LLM = llm.ConfigFromEnv()
	return cfg
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("INVESTORY_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got %s", c.APITimeout)
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("debounce window must not be negative, got %s", c.DebounceWindow)
	}
	if _, err := market.NormalizeSymbols(c.Symbols); err != nil {
		return fmt.Errorf("INVESTORY_SYMBOLS: %w", err)
	}
	if c.DevServer.Secret == "" {
		return errors.New("dev server secret must not be empty")
	}
	if c.DevServer.TickInterval <= 0 {
		return fmt.Errorf("dev server tick must be positive, got %s", c.DevServer.TickInterval)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring %s=%q: %v\n", key, v, err)
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
