package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DialerConfig holds the dialer backend configuration
type DialerConfig struct {
	Port string

	// Public base URL of this server, used to build Twilio callback URLs.
	// Twilio requires absolute URLs for status and action callbacks.
	ServerURL string

	// Twilio configuration
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioAPIKey     string
	TwilioAPISecret  string
	TwilioTwimlApp   string
	TwilioCallerID   string

	// Number of the Voiceflow voice agent the callee is transferred to
	VoiceflowNumber string

	// Voiceflow state API (optional, best-effort context priming)
	VoiceflowAPIKey  string
	VoiceflowBaseURL string

	// Downstream automation webhook notified with the transfer leg id (optional)
	AutomationWebhookURL string

	// When true the transfer-leg notification fires when the leg is answered
	// (<Number url=...>); otherwise when the leg is initiated (<Number statusCallback=...>).
	TransferNotifyOnAnswer bool

	// Identity granted to the browser SDK access token
	AgentIdentity string

	// Session registry sweep. Zero disables the sweeper.
	SessionTTL time.Duration
}

// requiredEnvVars must be present for the dialer to place and redirect calls
var requiredEnvVars = []string{
	"TWILIO_ACCOUNT_SID",
	"TWILIO_AUTH_TOKEN",
	"TWILIO_API_KEY",
	"TWILIO_API_SECRET",
	"TWILIO_TWIML_APP_SID",
	"TWILIO_CALLER_ID",
}

// LoadFromEnv loads the dialer configuration from environment variables
func LoadFromEnv() *DialerConfig {
	return &DialerConfig{
		Port:      GetEnvOrDefault("PORT", "3001"),
		ServerURL: strings.TrimRight(os.Getenv("SERVER_URL"), "/"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioAPIKey:     os.Getenv("TWILIO_API_KEY"),
		TwilioAPISecret:  os.Getenv("TWILIO_API_SECRET"),
		TwilioTwimlApp:   os.Getenv("TWILIO_TWIML_APP_SID"),
		TwilioCallerID:   os.Getenv("TWILIO_CALLER_ID"),

		VoiceflowNumber:  os.Getenv("TWILIO_VOICEFLOW_NUMBER"),
		VoiceflowAPIKey:  os.Getenv("VOICEFLOW_API_KEY"),
		VoiceflowBaseURL: GetEnvOrDefault("VOICEFLOW_BASE_URL", "https://general-runtime.voiceflow.com"),

		AutomationWebhookURL:   os.Getenv("AUTOMATION_WEBHOOK_URL"),
		TransferNotifyOnAnswer: GetEnvAsBoolOrDefault("TRANSFER_NOTIFY_ON_ANSWER", false),

		AgentIdentity: GetEnvOrDefault("AGENT_IDENTITY", "agent"),
		SessionTTL:    time.Duration(GetEnvAsIntOrDefault("SESSION_TTL_MINUTES", 0)) * time.Minute,
	}
}

// Validate reports all missing required environment variables at once
func (c *DialerConfig) Validate() error {
	missing := make([]string, 0)
	for _, key := range requiredEnvVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CallbackURL joins the public server URL with a callback path
func (c *DialerConfig) CallbackURL(path string) string {
	return c.ServerURL + path
}

// GetEnvOrDefault gets environment variable or returns default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsIntOrDefault gets environment variable as int or returns default
func GetEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBoolOrDefault gets environment variable as bool or returns default
func GetEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
