// Package ai calls the hosted speech-to-text and language models used for
// call recaps.
package ai

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

type Config struct {
	MistralAPIKey   string        `mapstructure:"mistral_api_key"`
	MistralModel    string        `mapstructure:"mistral_model"`
	MistralURL      string        `mapstructure:"mistral_url"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	AnthropicModel  string        `mapstructure:"anthropic_model"`
	AnthropicURL    string        `mapstructure:"anthropic_url"`
	SummaryPrompt   string        `mapstructure:"summary_prompt"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Concurrency     int           `mapstructure:"concurrency"`
}

const (
	DefaultMistralURL     = "https://api.mistral.ai/v1/audio/transcriptions"
	DefaultMistralModel   = "voxtral-mini-latest"
	DefaultAnthropicURL   = "https://api.anthropic.com/v1/messages"
	DefaultAnthropicModel = "claude-haiku-4-5"
)

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 2048

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}

// readResponse returns the body of a 200 response or an error carrying the status.
func readResponse(resp *http.Response, provider string) ([]byte, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%s API error (HTTP %d): %s", provider, resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", provider, err)
	}
	return b, nil
}
