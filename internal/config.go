package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Completion CompletionConfig  `yaml:"completion"`
	Organizer  OrganizerConfig   `yaml:"organizer"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Completion.Validate(); err != nil {
		return err
	}
	return c.Organizer.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CompletionConfig holds the completion service connection and the model
// profile fallback order.
type CompletionConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Models  []string      `yaml:"models"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the completion configuration.
func (c *CompletionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Models, validation.Required, validation.Length(1, 0)),
	)
}

// HistoryConfig bounds the undo log.
type HistoryConfig struct {
	MaxItems  int           `yaml:"max_items"`
	Retention time.Duration `yaml:"retention"`
}

// SuggestionsConfig bounds the local suggestion cache.
type SuggestionsConfig struct {
	MaxEntries      int           `yaml:"max_entries"`
	MaxAge          time.Duration `yaml:"max_age"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// QualityGateConfig holds the refinement validation thresholds. These are
// heuristics, exposed in config rather than baked in.
type QualityGateConfig struct {
	MinSimilarity  float64 `yaml:"min_similarity"`
	MinLengthRatio float64 `yaml:"min_length_ratio"`
	MaxLengthRatio float64 `yaml:"max_length_ratio"`
}

// OrganizerConfig holds the auto-organization engine settings.
type OrganizerConfig struct {
	DefaultPath      string            `yaml:"default_path"`
	RulesPath        string            `yaml:"rules_path"`
	MaxContextBlocks int               `yaml:"max_context_blocks"`
	RefreshDelay     time.Duration     `yaml:"refresh_delay"`
	History          HistoryConfig     `yaml:"history"`
	Suggestions      SuggestionsConfig `yaml:"suggestions"`
	QualityGate      QualityGateConfig `yaml:"quality_gate"`
}

// Validate validates the organizer configuration.
func (c *OrganizerConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxContextBlocks, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	return c.History.Validate()
}

// Validate validates the history bounds. An unbounded undo log is a
// misconfiguration, not a mode.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxItems, validation.Required, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./raido.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Completion: CompletionConfig{
			BaseURL: "http://localhost:8090",
			Models:  []string{"standard", "fallback"},
			Timeout: 60 * time.Second,
		},
		Organizer: OrganizerConfig{
			DefaultPath:      "/Inbox",
			RulesPath:        "./rules.md",
			MaxContextBlocks: 30,
			RefreshDelay:     500 * time.Millisecond,
			History: HistoryConfig{
				MaxItems:  50,
				Retention: 7 * 24 * time.Hour,
			},
			Suggestions: SuggestionsConfig{
				MaxEntries:      32,
				MaxAge:          5 * time.Minute,
				RefreshInterval: time.Minute,
			},
			QualityGate: QualityGateConfig{
				MinSimilarity:  0.4,
				MinLengthRatio: 0.3,
				MaxLengthRatio: 3.0,
			},
		},
	}
}
