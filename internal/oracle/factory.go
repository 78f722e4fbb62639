package oracle

import (
	"time"

	"marketplace/categorizer/internal/config"
	"marketplace/categorizer/internal/proxy"

	log "github.com/sirupsen/logrus"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// New selects the oracle for the configured provider. A provider without an
// API key, or an unknown provider, gives the NoAnswer oracle so every
// resolution falls back to the top shortlisted candidate.
func New(cfg config.LLMConfig, systemPrompt string, proxies proxy.Supplier) Oracle {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			log.Warn("⚠️ OpenAI selected but no API key configured, oracle disabled")
			return NoAnswer()
		}
		log.Infof("🤖 Using OpenAI oracle: %s", cfg.OpenAI.Model)
		return NewOpenAI(cfg.OpenAI, systemPrompt, timeout, cfg.MaxRequestsPerSecond, proxies)

	case ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			log.Warn("⚠️ Anthropic selected but no API key configured, oracle disabled")
			return NoAnswer()
		}
		log.Infof("🤖 Using Anthropic oracle: %s", cfg.Anthropic.Model)
		return NewAnthropic(cfg.Anthropic, systemPrompt, timeout, cfg.MaxRequestsPerSecond, proxies)

	default:
		log.Warnf("⚠️ Unknown oracle provider %q, oracle disabled", cfg.Provider)
		return NoAnswer()
	}
}

// ProbeURL is the endpoint used to check proxies for the configured provider.
func ProbeURL(cfg config.LLMConfig) string {
	if cfg.Provider == ProviderAnthropic {
		return cfg.Anthropic.BaseURL
	}
	return cfg.OpenAI.BaseURL
}
