package oracle

import (
	"context"
	"fmt"
	"time"

	"marketplace/categorizer/internal/config"
	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/proxy"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	TopP           *float64        `json:"top_p,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAI asks the chat completions API for a category, in JSON mode.
type OpenAI struct {
	*httpProvider
	cfg          config.ProviderConfig
	systemPrompt string
}

func NewOpenAI(cfg config.ProviderConfig, systemPrompt string, timeout time.Duration, requestsPerSecond int, proxies proxy.Supplier) *OpenAI {
	o := &OpenAI{
		httpProvider: newHTTPProvider("OpenAI", cfg.BaseURL, timeout, requestsPerSecond, proxies),
		cfg:          cfg,
		systemPrompt: systemPrompt,
	}
	o.client.SetAuthToken(cfg.APIKey)
	return o
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) ProposeCategory(ctx context.Context, req *Request) (*Proposal, error) {
	payload, err := json.MarshalNoEscape(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode oracle request: %w", err)
	}

	body := openAIRequest{
		Model: o.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: o.systemPrompt},
			{Role: "user", Content: openAIInstructions(req.IncludeConfidence) + "\n\n" + string(payload)},
		},
		Temperature: o.cfg.Temperature,
		TopP:        o.cfg.TopP,
		MaxTokens:   o.cfg.MaxTokens,
	}
	body.ResponseFormat.Type = "json_object"

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OpenAI request: %w", err)
	}

	log.Debugf("[OpenAI] Proposing category: model=%s candidates=%d", o.cfg.Model, len(req.Candidates))

	raw, err := o.post(ctx, "/chat/completions", nil, encoded)
	if err != nil {
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode OpenAI response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	p := ParseProposal(resp.Choices[0].Message.Content, req.IncludeConfidence)
	p.Usage = domain.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return p, nil
}

func openAIInstructions(includeConfidence bool) string {
	keys := "  - \"category_id\": string\n  - \"category_name\": string\n"
	if includeConfidence {
		keys += "  - \"confidence\": number between 0 and 1\n"
	}
	return "You MUST return ONLY a single JSON object with exactly these keys:\n" +
		keys +
		"No markdown, no extra fields, no explanations.\n"
}
