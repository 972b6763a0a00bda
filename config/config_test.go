package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DEFAULT_DESTINATION", "+918275760425")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15005550006")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "credentials.json")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != 5000 {
		t.Errorf("Port = %d, want 5000", cfg.Port)
	}
	if cfg.Google.TokenFile != "token.json" {
		t.Errorf("TokenFile = %q, want token.json", cfg.Google.TokenFile)
	}
	if cfg.Google.CalendarID != "primary" {
		t.Errorf("CalendarID = %q, want primary", cfg.Google.CalendarID)
	}
	if cfg.Google.MeetingDuration != 30*time.Minute {
		t.Errorf("MeetingDuration = %v, want 30m", cfg.Google.MeetingDuration)
	}
	if cfg.Dialogue.GatherTimeout != 5 {
		t.Errorf("GatherTimeout = %d, want 5", cfg.Dialogue.GatherTimeout)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Errorf("SessionTimeout = %v, want 30m", cfg.SessionTimeout)
	}
	if len(cfg.MonitorOrigins) != 1 || cfg.MonitorOrigins[0] != "*" {
		t.Errorf("MonitorOrigins = %v, want [*]", cfg.MonitorOrigins)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Asia/Kolkata" {
		t.Errorf("Location = %s, want Asia/Kolkata", loc)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8081")
	t.Setenv("GOOGLE_TIMEZONE", "Europe/Berlin")
	t.Setenv("GOOGLE_MEETING_DURATION", "45m")
	t.Setenv("MONITOR_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 8081 {
		t.Errorf("Port = %d, want 8081", cfg.Port)
	}
	if cfg.Google.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q", cfg.Google.Timezone)
	}
	if cfg.Google.MeetingDuration != 45*time.Minute {
		t.Errorf("MeetingDuration = %v", cfg.Google.MeetingDuration)
	}
	if len(cfg.MonitorOrigins) != 2 {
		t.Errorf("MonitorOrigins = %v", cfg.MonitorOrigins)
	}
	if cfg.Gemini.APIKey != "key" {
		t.Errorf("Gemini.APIKey = %q", cfg.Gemini.APIKey)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"missing destination", "DEFAULT_DESTINATION", ""},
		{"non e164 destination", "DEFAULT_DESTINATION", "8275760425"},
		{"non e164 caller id", "TWILIO_PHONE_NUMBER", "twilio"},
		{"unknown timezone", "GOOGLE_TIMEZONE", "Mars/Olympus"},
		{"bad port", "PORT", "not-a-port"},
		{"gather timeout too large", "GATHER_TIMEOUT", "600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestCallbackURL(t *testing.T) {
	cfg := &Config{}
	if got := cfg.CallbackURL("/process"); got != "/process" {
		t.Errorf("relative CallbackURL = %q", got)
	}

	cfg.PublicBaseURL = "https://caller.example.com/"
	got := cfg.CallbackURL("/process_date")
	if !strings.HasPrefix(got, "https://caller.example.com/process_date") {
		t.Errorf("absolute CallbackURL = %q", got)
	}
}

func TestLoadGoogleConfigIgnoresServiceSettings(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "client_secret.json")
	t.Setenv("GOOGLE_TOKEN_FILE", "/var/lib/salescaller/token.json")
	t.Setenv("DEFAULT_DESTINATION", "")
	t.Setenv("TWILIO_ACCOUNT_SID", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should need the Twilio settings")
	}

	cfg, err := LoadGoogleConfig()
	if err != nil {
		t.Fatalf("LoadGoogleConfig: %v", err)
	}
	if cfg.CredentialsFile != "client_secret.json" || cfg.TokenFile != "/var/lib/salescaller/token.json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CalendarID != "primary" {
		t.Errorf("CalendarID = %q, want primary", cfg.CalendarID)
	}
}

func TestLoadGoogleConfigRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "")

	if _, err := LoadGoogleConfig(); err == nil {
		t.Fatal("expected error without GOOGLE_CREDENTIALS_FILE")
	}
}
