package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace/categorizer/internal/config"
	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/proxy"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const anthropicVersion = "2023-06-01"

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	TopP        *float64           `json:"top_p,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Anthropic asks the messages API for a category. There is no JSON mode, so
// the instructions insist on a bare JSON object and the reply is parsed
// leniently.
type Anthropic struct {
	*httpProvider
	cfg          config.ProviderConfig
	systemPrompt string
}

func NewAnthropic(cfg config.ProviderConfig, systemPrompt string, timeout time.Duration, requestsPerSecond int, proxies proxy.Supplier) *Anthropic {
	a := &Anthropic{
		httpProvider: newHTTPProvider("Anthropic", cfg.BaseURL, timeout, requestsPerSecond, proxies),
		cfg:          cfg,
		systemPrompt: systemPrompt,
	}
	a.client.
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", anthropicVersion)
	return a
}

func (a *Anthropic) Name() string {
	return "anthropic"
}

func (a *Anthropic) ProposeCategory(ctx context.Context, req *Request) (*Proposal, error) {
	payload, err := json.MarshalNoEscape(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode oracle request: %w", err)
	}

	body := anthropicRequest{
		Model:  a.cfg.Model,
		System: a.systemPrompt,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{Type: "text", Text: anthropicInstructions(req.IncludeConfidence)},
				{Type: "text", Text: string(payload)},
			},
		}},
		Temperature: a.cfg.Temperature,
		TopP:        a.cfg.TopP,
		MaxTokens:   a.cfg.MaxTokens,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode Anthropic request: %w", err)
	}

	log.Debugf("[Anthropic] Proposing category: model=%s candidates=%d", a.cfg.Model, len(req.Candidates))

	raw, err := a.post(ctx, "/messages", nil, encoded)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode Anthropic response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("Anthropic API error: %s", resp.Error.Message)
	}

	var parts []string
	for _, c := range resp.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}

	p := ParseProposal(strings.TrimSpace(strings.Join(parts, "\n")), req.IncludeConfidence)
	p.Usage = domain.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return p, nil
}

func anthropicInstructions(includeConfidence bool) string {
	shape := `{"category_id": "...", "category_name": "..."}`
	if includeConfidence {
		shape = `{"category_id": "...", "category_name": "...", "confidence": 0.0}`
	}
	return "Return ONLY a JSON object with exactly:\n" + shape + "\nNo prose, no markdown."
}
