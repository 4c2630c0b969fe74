package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/contract"
	"github.com/tmc/langchaingo/llms"
	unifiedgenai "google.golang.org/genai"
)

// ErrNotConfigured is returned when the backend needed for a call failed to initialize.
var ErrNotConfigured = errors.New("gemini client not configured")

// GenerateBalance sends the balancing prompt for equation and returns the raw JSON text.
// The result schema is attached to the request for the genai and legacy backends;
// the langchain backend only requests a JSON MIME type.
func (c *Client) GenerateBalance(ctx context.Context, equation string) (string, error) {
	prompt := contract.Prompt(equation)
	log.Debug().
		Str("backend", c.balanceBackend).
		Str("model", c.modelBalance).
		Str("equation", equation).
		Msg("Requesting balance")

	var (
		raw string
		err error
	)
	switch c.balanceBackend {
	case BackendLegacy:
		raw, err = c.balanceLegacy(ctx, prompt)
	case BackendLangChain:
		raw, err = c.balanceLangChain(ctx, prompt)
	default:
		raw, err = c.balanceUnified(ctx, prompt)
	}
	if err != nil {
		return "", err
	}
	logGeminiResponse("GenerateBalance", raw)
	return strings.TrimSpace(raw), nil
}

func (c *Client) balanceUnified(ctx context.Context, prompt string) (string, error) {
	if c.unifiedClient == nil {
		return "", ErrNotConfigured
	}
	config := &unifiedgenai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   contract.GeminiSchema(),
	}
	resp, err := c.unifiedClient.Models.GenerateContent(ctx, c.modelBalance, unifiedgenai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

func (c *Client) balanceLegacy(ctx context.Context, prompt string) (string, error) {
	if c.genaiClient == nil {
		return "", ErrNotConfigured
	}
	model := c.genaiClient.GenerativeModel(c.modelBalance)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = contract.LegacySchema()

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return extractTextFromGenaiResponse(resp), nil
}

func (c *Client) balanceLangChain(ctx context.Context, prompt string) (string, error) {
	if c.llmBalance == nil {
		return "", ErrNotConfigured
	}
	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: prompt}}},
	}
	resp, err := c.llmBalance.GenerateContent(ctx, messages,
		llms.WithResponseMIMEType("application/json"),
	)
	if err != nil {
		return "", fmt.Errorf("langchaingo generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Choices[0].Content, nil
}

func extractTextFromGenaiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
