package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	KEVFeedURL            string
	KEVTTLMinutes         int
	SearchEnabled         bool
	SearchEndpoint        string
	SearchMaxResults      int
	SearchThrottleMS      int
	LLMProvider           string
	LLMAPIKey             string
	LLMBaseURL            string
	LLMModel              string
	SlackWebhookURL       string
}

const defaultKEVFeedURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for API access (empty = no auth)")
	fs.StringVar(&c.KEVFeedURL, "kev-feed-url", defaultKEVFeedURL, "CISA Known Exploited Vulnerabilities feed URL")
	fs.IntVar(&c.KEVTTLMinutes, "kev-ttl-minutes", 60, "minutes to cache the KEV feed before refetching (1..1440)")
	fs.BoolVar(&c.SearchEnabled, "search-enabled", true, "enrich briefs with web search context by default")
	fs.StringVar(&c.SearchEndpoint, "search-endpoint", "", "search endpoint override (empty = DuckDuckGo HTML endpoint)")
	fs.IntVar(&c.SearchMaxResults, "search-max-results", 3, "search results fetched per CVE identifier (1..10)")
	fs.IntVar(&c.SearchThrottleMS, "search-throttle-ms", 500, "pause between per-identifier searches in milliseconds (0..10000)")
	fs.StringVar(&c.LLMProvider, "llm-provider", "openai", "classifier backend: openai (chat-completions compatible) or claude")
	fs.StringVar(&c.LLMAPIKey, "llm-api-key", "", "API key for the classifier backend")
	fs.StringVar(&c.LLMBaseURL, "llm-base-url", "https://api.deepseek.com", "base URL for the classifier backend")
	fs.StringVar(&c.LLMModel, "llm-model", "deepseek-chat", "default model for classification")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.KEVFeedURL == "" {
		errs = append(errs, errors.New("KEV_FEED_URL is required"))
	}
	if c.KEVTTLMinutes <= 0 || c.KEVTTLMinutes > 1440 {
		errs = append(errs, fmt.Errorf("invalid KEV_TTL_MINUTES %d (must be 1..1440)", c.KEVTTLMinutes))
	}

	if c.SearchMaxResults <= 0 || c.SearchMaxResults > 10 {
		errs = append(errs, fmt.Errorf("invalid SEARCH_MAX_RESULTS %d (must be 1..10)", c.SearchMaxResults))
	}
	if c.SearchThrottleMS < 0 || c.SearchThrottleMS > 10000 {
		errs = append(errs, fmt.Errorf("invalid SEARCH_THROTTLE_MS %d (must be 0..10000)", c.SearchThrottleMS))
	}

	// Classifier backend selection and credentials
	if c.LLMProvider != "openai" && c.LLMProvider != "claude" {
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be openai or claude)", c.LLMProvider))
	}
	if c.LLMAPIKey == "" {
		errs = append(errs, errors.New("LLM_API_KEY is required"))
	}
	if c.LLMModel == "" {
		errs = append(errs, errors.New("LLM_MODEL is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
