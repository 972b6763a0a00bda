package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all server configuration
type Config struct {
	Port        int    `envconfig:"PORT" default:"5000" validate:"min=1,max=65535"`
	Environment string `envconfig:"ENVIRONMENT" default:"production" validate:"oneof=development production"`
	// PublicBaseURL prefixes callback paths in voice documents. Relative paths are used when empty.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" validate:"omitempty,url"`
	// DefaultDestination is dialed by /call when no "to" parameter is given.
	DefaultDestination string `envconfig:"DEFAULT_DESTINATION" required:"true" validate:"required,e164"`

	Twilio   TwilioConfig
	Google   GoogleConfig
	Redis    RedisConfig
	Gemini   GeminiConfig
	Dialogue DialogueConfig

	SessionTimeout  time.Duration `envconfig:"SESSION_TIMEOUT" default:"30m" validate:"gt=0"`
	CallRateLimit   float64       `envconfig:"CALL_RATE_LIMIT" default:"1" validate:"gt=0"`
	CallRateBurst   int           `envconfig:"CALL_RATE_BURST" default:"5" validate:"min=1"`
	MonitorOrigins  []string      `envconfig:"MONITOR_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// TwilioConfig holds the Twilio REST credentials and caller id
type TwilioConfig struct {
	AccountSID  string `envconfig:"ACCOUNT_SID" required:"true" validate:"required"`
	AuthToken   string `envconfig:"AUTH_TOKEN" required:"true" validate:"required"`
	PhoneNumber string `envconfig:"PHONE_NUMBER" required:"true" validate:"required,e164"`
}

// GoogleConfig holds the Google Calendar client settings
type GoogleConfig struct {
	CredentialsFile string        `envconfig:"CREDENTIALS_FILE" required:"true" validate:"required"`
	TokenFile       string        `envconfig:"TOKEN_FILE" default:"token.json" validate:"required"`
	CalendarID      string        `envconfig:"CALENDAR_ID" default:"primary" validate:"required"`
	Timezone        string        `envconfig:"TIMEZONE" default:"Asia/Kolkata" validate:"required,timezone"`
	MeetingDuration time.Duration `envconfig:"MEETING_DURATION" default:"30m" validate:"gte=0"`
}

// RedisConfig holds the optional session mirror settings
type RedisConfig struct {
	URL      string `envconfig:"URL" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

// GeminiConfig enables the model-based date fallback when APIKey is set
type GeminiConfig struct {
	APIKey string `envconfig:"API_KEY"`
	Model  string `envconfig:"MODEL" default:"gemini-2.5-flash"`
}

// DialogueConfig holds settings for the spoken documents
type DialogueConfig struct {
	GatherTimeout int `envconfig:"GATHER_TIMEOUT" default:"5" validate:"min=1,max=60"`
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadGoogleConfig reads only the GOOGLE_* settings, for tools that need the
// calendar credentials without the rest of the service
func LoadGoogleConfig() (*GoogleConfig, error) {
	_ = godotenv.Load()

	var cfg GoogleConfig
	if err := envconfig.Process("GOOGLE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks field constraints declared on the config structs
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Location resolves the configured calendar time zone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Google.Timezone)
}

// IsDevelopment reports whether development logging should be used
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// CallbackURL joins PublicBaseURL and a callback path
func (c *Config) CallbackURL(path string) string {
	if c.PublicBaseURL == "" {
		return path
	}
	return strings.TrimRight(c.PublicBaseURL, "/") + path
}
