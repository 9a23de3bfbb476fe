package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dkeye/callrecap/internal/domain"
)

// DefaultSummaryPrompt asks for a short, friendly recap rather than minutes.
const DefaultSummaryPrompt = `Create a brief, personalized summary of this conversation for each participant.

Instructions:
1. Keep the summary under 3 sentences
2. Write from the perspective of each person (use "you" and the other person's name)
3. Focus on what was discussed, not analysis
4. Be conversational and friendly
5. Don't add business formatting or bullet points

Provide a short, natural summary of what happened in the call.`

// AnthropicSummarizer writes the call summary with the Messages API.
type AnthropicSummarizer struct {
	APIKey       string
	Model        string
	URL          string
	SystemPrompt string
	Client       *http.Client
}

func NewAnthropicSummarizer(cfg Config) *AnthropicSummarizer {
	s := &AnthropicSummarizer{
		APIKey:       cfg.AnthropicAPIKey,
		Model:        cfg.AnthropicModel,
		URL:          cfg.AnthropicURL,
		SystemPrompt: cfg.SummaryPrompt,
		Client:       httpClient(cfg.Timeout),
	}
	if s.Model == "" {
		s.Model = DefaultAnthropicModel
	}
	if s.URL == "" {
		s.URL = DefaultAnthropicURL
	}
	if s.SystemPrompt == "" {
		s.SystemPrompt = DefaultSummaryPrompt
	}
	return s
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, transcripts []domain.Transcript) (string, error) {
	if s.APIKey == "" {
		return "", errors.New("anthropic API key not set: set RECAP_AI_ANTHROPIC_API_KEY or add ai.anthropic_api_key to config")
	}

	reqBody := anthropicRequest{
		Model:     s.Model,
		MaxTokens: 1024,
		System:    s.SystemPrompt,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: "TRANSCRIPTIONS:\n" + CombineTranscripts(transcripts),
		}},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Anthropic API: %w", err)
	}
	respBody, err := readResponse(resp, "anthropic")
	if err != nil {
		return "", err
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing Anthropic response: %w", err)
	}
	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	summary := strings.TrimSpace(sb.String())
	if summary == "" {
		return "", errors.New("empty response from Anthropic API")
	}
	return summary, nil
}

// CombineTranscripts renders "name: text" blocks separated by blank lines.
func CombineTranscripts(ts []domain.Transcript) string {
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		parts = append(parts, t.User+": "+t.Transcript)
	}
	return strings.Join(parts, "\n\n")
}
