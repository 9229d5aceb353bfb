package llm

import "fmt"

// Provider names accepted by NewCompleter.
const (
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig selects and configures a completion backend.
type ProviderConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// NewCompleter builds the Completer for cfg.Provider. The groq provider
// posts through http; anthropic uses its own SDK client.
func NewCompleter(cfg ProviderConfig, http Poster) (Completer, error) {
	switch cfg.Provider {
	case "", ProviderGroq:
		return NewOpenAIClient(http, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
