package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.vapi.ai"

type VapiConfig struct {
	BaseURL       string
	APIKey        string
	PhoneNumberID string

	ModelProvider string
	Model         string
	VoiceProvider string
	VoiceID       string

	// CallsPerSecond throttles outbound calls; <= 0 disables throttling.
	CallsPerSecond float64
	Timeout        time.Duration
}

// VapiClient places outbound assistant calls. It reports exactly one
// outcome per PlaceCall and never retries.
type VapiClient struct {
	cfg     VapiConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewVapiClient(cfg VapiConfig) *VapiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ModelProvider == "" {
		cfg.ModelProvider = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.VoiceProvider == "" {
		cfg.VoiceProvider = "11labs"
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = "paula"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &VapiClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.CallsPerSecond > 0 {
		burst := int(cfg.CallsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), burst)
	}
	return c
}

type callRequest struct {
	PhoneNumberID string    `json:"phoneNumberId"`
	Customer      customer  `json:"customer"`
	Assistant     assistant `json:"assistant"`
}

type customer struct {
	Number string `json:"number"`
}

type assistant struct {
	FirstMessage string         `json:"firstMessage"`
	Model        assistantModel `json:"model"`
	Voice        assistantVoice `json:"voice"`
}

type assistantModel struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type assistantVoice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type callResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *VapiClient) PlaceCall(ctx context.Context, phoneNumber, content string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for call slot: %w", err)
		}
	}

	reqBody, err := json.Marshal(callRequest{
		PhoneNumberID: c.cfg.PhoneNumberID,
		Customer:      customer{Number: phoneNumber},
		Assistant: assistant{
			FirstMessage: content,
			Model:        assistantModel{Provider: c.cfg.ModelProvider, Model: c.cfg.Model},
			Voice:        assistantVoice{Provider: c.cfg.VoiceProvider, VoiceID: c.cfg.VoiceID},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/call", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var cr callResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if cr.ID == "" {
		return "", fmt.Errorf("missing call id in response body=%q", string(body))
	}

	return cr.ID, nil
}
