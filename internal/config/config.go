package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by HELPDESK_MODEL_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ServerConfig holds configuration for the helpdeskd HTTP server.
type ServerConfig struct {
	ListenAddr      string
	DBPath          string
	IdentityBaseURL string
	IdentityTimeout time.Duration

	ModelProvider   string
	OpenAIAPIKey    string
	OpenAIChatURL   string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string

	SystemPrompt    string
	HistoryWindow   int
	MaxOutputTokens int
	Temperature     float64
	ProviderTimeout time.Duration
	ProviderRetries int
}

// CleanupConfig holds configuration for the cleanupd batch job.
type CleanupConfig struct {
	DBPath          string
	IdentityBaseURL string
	IdentityTimeout time.Duration
	GracePeriod     time.Duration
	Interval        time.Duration
	PageSize        int
}

const defaultSystemPrompt = "You are a concise IT support assistant. " +
	"Answer briefly and give actionable steps."

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HELPDESK_LISTEN_ADDR", ":8080")
	v.SetDefault("HELPDESK_DB_PATH", "/state/helpdesk.db")
	v.SetDefault("IDENTITY_TIMEOUT_SECONDS", 10)
	v.SetDefault("HELPDESK_MODEL_PROVIDER", ProviderOpenAI)
	v.SetDefault("OPENAI_CHAT_COMPLETIONS_URL", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-7-sonnet-latest")
	v.SetDefault("HELPDESK_SYSTEM_PROMPT", defaultSystemPrompt)
	v.SetDefault("HELPDESK_HISTORY_WINDOW", 50)
	v.SetDefault("HELPDESK_MAX_OUTPUT_TOKENS", 500)
	v.SetDefault("HELPDESK_TEMPERATURE", 0.7)
	v.SetDefault("HELPDESK_PROVIDER_TIMEOUT_SECONDS", 120)
	v.SetDefault("HELPDESK_PROVIDER_MAX_RETRIES", 3)

	v.SetDefault("CLEANUP_GRACE_HOURS", 24)
	v.SetDefault("CLEANUP_INTERVAL_HOURS", 24)
	v.SetDefault("CLEANUP_PAGE_SIZE", 1000)

	return v
}

// LoadServerConfig reads helpdeskd configuration from environment variables.
func LoadServerConfig() (ServerConfig, error) {
	v := newViper()

	identityBase := v.GetString("IDENTITY_BASE_URL")
	if identityBase == "" {
		return ServerConfig{}, fmt.Errorf("IDENTITY_BASE_URL is required in environment")
	}

	provider := v.GetString("HELPDESK_MODEL_PROVIDER")
	openaiKey := v.GetString("OPENAI_API_KEY")
	anthropicKey := v.GetString("ANTHROPIC_API_KEY")
	switch provider {
	case ProviderOpenAI:
		if openaiKey == "" {
			return ServerConfig{}, fmt.Errorf("OPENAI_API_KEY is required in environment when HELPDESK_MODEL_PROVIDER=openai")
		}
	case ProviderAnthropic:
		if anthropicKey == "" {
			return ServerConfig{}, fmt.Errorf("ANTHROPIC_API_KEY is required in environment when HELPDESK_MODEL_PROVIDER=anthropic")
		}
	default:
		return ServerConfig{}, fmt.Errorf("unknown HELPDESK_MODEL_PROVIDER %q", provider)
	}

	return ServerConfig{
		ListenAddr:      v.GetString("HELPDESK_LISTEN_ADDR"),
		DBPath:          v.GetString("HELPDESK_DB_PATH"),
		IdentityBaseURL: identityBase,
		IdentityTimeout: time.Duration(v.GetInt("IDENTITY_TIMEOUT_SECONDS")) * time.Second,
		ModelProvider:   provider,
		OpenAIAPIKey:    openaiKey,
		OpenAIChatURL:   v.GetString("OPENAI_CHAT_COMPLETIONS_URL"),
		OpenAIModel:     v.GetString("OPENAI_MODEL"),
		AnthropicAPIKey: anthropicKey,
		AnthropicModel:  v.GetString("ANTHROPIC_MODEL"),
		SystemPrompt:    v.GetString("HELPDESK_SYSTEM_PROMPT"),
		HistoryWindow:   v.GetInt("HELPDESK_HISTORY_WINDOW"),
		MaxOutputTokens: v.GetInt("HELPDESK_MAX_OUTPUT_TOKENS"),
		Temperature:     v.GetFloat64("HELPDESK_TEMPERATURE"),
		ProviderTimeout: time.Duration(v.GetInt("HELPDESK_PROVIDER_TIMEOUT_SECONDS")) * time.Second,
		ProviderRetries: v.GetInt("HELPDESK_PROVIDER_MAX_RETRIES"),
	}, nil
}

// LoadCleanupConfig reads cleanupd configuration from environment variables.
func LoadCleanupConfig() (CleanupConfig, error) {
	v := newViper()

	identityBase := v.GetString("IDENTITY_BASE_URL")
	if identityBase == "" {
		return CleanupConfig{}, fmt.Errorf("IDENTITY_BASE_URL is required in environment")
	}

	return CleanupConfig{
		DBPath:          v.GetString("HELPDESK_DB_PATH"),
		IdentityBaseURL: identityBase,
		IdentityTimeout: time.Duration(v.GetInt("IDENTITY_TIMEOUT_SECONDS")) * time.Second,
		GracePeriod:     time.Duration(v.GetInt("CLEANUP_GRACE_HOURS")) * time.Hour,
		Interval:        time.Duration(v.GetInt("CLEANUP_INTERVAL_HOURS")) * time.Hour,
		PageSize:        v.GetInt("CLEANUP_PAGE_SIZE"),
	}, nil
}
