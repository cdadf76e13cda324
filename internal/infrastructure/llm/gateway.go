package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"

	"ContractsOrchestrator/internal/config"
	"ContractsOrchestrator/internal/ports"
)

// New selects the gateway implementation for cfg.Provider. Gemini is reached
// through its OpenAI-compatible endpoint.
func New(cfg config.ModelConfig) (ports.ModelGateway, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderAnthropic:
		var opts []option.RequestOption
		if cfg.TimeoutSeconds > 0 {
			opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
		}
		return NewAnthropicGateway(cfg, opts...)
	case config.ProviderOpenAI, config.ProviderGemini:
		return NewChatCompletionsGateway(cfg, nil)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
