package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	geminiDefaultModel = "gemini-2.0-flash"
	geminiHealthBase   = "https://generativelanguage.googleapis.com/v1beta"
	geminiHealthTO     = 10 * time.Second
)

// Gemini implements domain.Responder using Google's Gemini API via the
// official SDK. Each prompt is sent exactly once; no retries.
type Gemini struct {
	client *genai.Client
	model  string
	apiKey string
	logger *slog.Logger
}

type GeminiConfig struct {
	APIKey string
	Model  string
	Logger *slog.Logger
}

func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		logger: cfg.Logger,
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}

	g.logger.Debug("gemini response", "model", g.model, "prompt_len", len(prompt), "response_len", len(text))
	return text, nil
}

// Healthy probes the models listing endpoint without spending generation quota.
func (g *Gemini) Healthy(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models?pageSize=1&key=%s", geminiHealthBase, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: geminiHealthTO}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}
	return nil
}
