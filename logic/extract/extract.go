// Package extract adapts an LLM chat model into the engine's Extractor
// interface. Whatever the model returns is untrusted: candidates go into
// the provenance store as provisional values and stay there until a human
// approves them.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"contract-engine/types"
)

const extractPrompt = `You are a contract data-entry specialist. Extract key
structured fields from the contract text below.
Current date: {{.CurrentDate}} (use it to resolve relative periods such as
"valid for one year").

Rules:
1. Use snake_case field names. Prefer these standard names when they apply:
   party_a, party_b, contract_type, effective_date, termination_date,
   notice_period_days, total_amount, payment_terms, governing_law,
   auto_renewal.
2. Dates in YYYY-MM-DD. Amounts as plain numbers without currency symbols.
3. Report a confidence between 0 and 1 for every field. Be conservative:
   use low confidence when the text is ambiguous or the value is inferred.
4. Skip fields the text does not support at all.

Contract text:
{{.Content}}

Output JSON only, in the shape {"fields": [{"name": ..., "value": ..., "confidence": ...}]}:
`

// maxPromptChars bounds what we send the model; contracts front-load the
// commercial terms anyway.
const maxPromptChars = 10000

// LLMExtractor calls a chat model and parses its JSON reply into field
// tuples.
type LLMExtractor struct {
	chatModel model.ToolCallingChatModel
}

// NewOllamaExtractor wires the ollama backend.
func NewOllamaExtractor(ctx context.Context, baseURL, modelName string) (*LLMExtractor, error) {
	chatModel, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("create ollama chat model failed: %w", err)
	}
	return &LLMExtractor{chatModel: chatModel}, nil
}

// NewLLMExtractor wraps an already-built chat model.
func NewLLMExtractor(chatModel model.ToolCallingChatModel) *LLMExtractor {
	return &LLMExtractor{chatModel: chatModel}
}

type extractReply struct {
	Fields []types.ExtractedField `json:"fields"`
}

func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]types.ExtractedField, error) {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	prompt := strings.ReplaceAll(extractPrompt, "{{.Content}}", text)
	prompt = strings.ReplaceAll(prompt, "{{.CurrentDate}}", time.Now().Format("2006-01-02"))

	resp, err := e.chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return nil, err
	}

	jsonStr := strings.TrimSpace(resp.Content)
	jsonStr = strings.TrimPrefix(jsonStr, "```json")
	jsonStr = strings.TrimPrefix(jsonStr, "```")
	jsonStr = strings.TrimSuffix(jsonStr, "```")

	var reply extractReply
	if err := json.Unmarshal([]byte(jsonStr), &reply); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w, raw: %s", err, jsonStr)
	}

	fields := make([]types.ExtractedField, 0, len(reply.Fields))
	for _, f := range reply.Fields {
		if f.Name == "" {
			continue
		}
		if f.Confidence < 0 {
			f.Confidence = 0
		}
		if f.Confidence > 1 {
			f.Confidence = 1
		}
		fields = append(fields, f)
	}
	return fields, nil
}
