package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"normative/pkg/domain"
)

const extractionSystemPrompt = `You extract verifiable regulatory facts from legal and tax-authority text.
Return strict JSON: {"extractions":[{"domain":string,"extracted_value":string,"exact_quote":string,"confidence":number}],"warnings":[string]}.
Rules: exact_quote must be copied verbatim from the input text, character for character.
Use short kebab-case domains (e.g. "vat-rate", "vat-threshold", "filing-deadline").
confidence is 0..1. Emit a warning instead of guessing when the text is ambiguous.`

// OpenAIExtractor calls a chat-completion model to propose candidate
// assertions. The model is untrusted: every quote it returns is verified
// against the evidence text before a pointer becomes citable.
type OpenAIExtractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIExtractor builds the LLM-backed extractor.
func NewOpenAIExtractor(apiKey, model string) (*OpenAIExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("extractor API key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIExtractor{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: 60 * time.Second,
	}, nil
}

func (e *OpenAIExtractor) Extract(ctx context.Context, evidenceID domain.EvidenceID, text string) (Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("extract %s: %w", evidenceID, err)
	}
	if len(resp.Choices) == 0 {
		return Extraction{}, fmt.Errorf("extract %s: empty completion", evidenceID)
	}

	payload := strings.TrimSpace(resp.Choices[0].Message.Content)
	var out Extraction
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return Extraction{}, fmt.Errorf("extract %s: malformed collaborator payload: %w", evidenceID, err)
	}
	return out, nil
}
