package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// MistralTranscriber sends audio to the Voxtral transcription endpoint.
type MistralTranscriber struct {
	APIKey string
	Model  string
	URL    string
	Client *http.Client
}

func NewMistralTranscriber(cfg Config) *MistralTranscriber {
	t := &MistralTranscriber{
		APIKey: cfg.MistralAPIKey,
		Model:  cfg.MistralModel,
		URL:    cfg.MistralURL,
		Client: httpClient(cfg.Timeout),
	}
	if t.Model == "" {
		t.Model = DefaultMistralModel
	}
	if t.URL == "" {
		t.URL = DefaultMistralURL
	}
	return t
}

type transcriptionAPIResponse struct {
	Text string `json:"text"`
}

func (t *MistralTranscriber) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	if t.APIKey == "" {
		return "", errors.New("mistral API key not set: set RECAP_AI_MISTRAL_API_KEY or add ai.mistral_api_key to config")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("model", t.Model); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", fileName(name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("reading audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Mistral API: %w", err)
	}
	respBody, err := readResponse(resp, "mistral")
	if err != nil {
		return "", err
	}

	var apiResp transcriptionAPIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing Mistral response: %w", err)
	}
	return strings.TrimSpace(apiResp.Text), nil
}

func fileName(user string) string {
	s := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r == '/' || r < 0x20 {
			return '_'
		}
		return r
	}, user)
	if s == "" {
		s = "audio"
	}
	return s + ".webm"
}
