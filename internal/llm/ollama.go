package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/logging"
)

// OllamaClient talks to a local Ollama server over its HTTP API.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
	log     *logging.Logger
}

// NewOllamaClient creates a client for the configured Ollama server.
func NewOllamaClient(cfg config.LLMConfig, log *logging.Logger) *OllamaClient {
	if log == nil {
		log = logging.NopLogger()
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.OllamaBaseURL, "/"),
		model:   cfg.OllamaModel,
		client:  &http.Client{Timeout: 120 * time.Second},
		log:     log.WithComponent("ollama"),
	}
}

// Name implements Client.
func (o *OllamaClient) Name() string { return "ollama" }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Generate implements Client via POST /api/generate.
func (o *OllamaClient) Generate(ctx context.Context, prompt, system string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:   o.model,
		Prompt:  prompt,
		System:  system,
		Stream:  false,
		Options: map[string]any{"temperature": 0.3},
	})
	if err != nil {
		return "", wrapErr("ollama", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", wrapErr("ollama", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", wrapErr("ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", wrapErr("ollama", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", wrapErr("ollama", err)
	}

	o.log.Debug("ollama_generate", "model", o.model, "length", len(out.Response))
	return out.Response, nil
}
