package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-3-flash-preview"

// GeminiProvider implements the Provider interface against Google's
// Gemini API, alongside AnthropicProvider and OllamaProvider.
type GeminiProvider struct {
	client  *genai.Client
	models  []string
	timeout time.Duration
}

// NewGeminiProvider creates a new Gemini provider. It returns nil if
// the client cannot be constructed (missing or rejected API key),
// matching index.NewLLMClient's "absent means unconfigured" contract.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil
	}

	return &GeminiProvider{
		client:  client,
		timeout: 5 * time.Minute,
		models: []string{
			"gemini-3-flash-preview",
			"gemini-3-pro-preview",
			"gemini-2.0-flash",
		},
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string { return "gemini" }

// Models returns available model identifiers.
func (p *GeminiProvider) Models() []string { return p.models }

// Complete generates a completion, including function-call round
// trips for tool-using requests.
func (p *GeminiProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = geminiDefaultModel
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("convert messages: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: toGeminiSystemInstruction(req.System),
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 && req.ToolChoice != "none" {
		cfg.Tools = []*genai.Tool{toGeminiTool(req.Tools)}
	}

	result, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Code: "request_failed", Message: err.Error(), Err: err}
	}
	if result == nil || len(result.Candidates) == 0 {
		return nil, &ProviderError{Provider: "gemini", Code: "empty_response", Message: "no candidates returned"}
	}

	return fromGeminiResponse(model, result), nil
}

// Stream is unsupported: the genai Go client's streaming iterator
// shape doesn't map cleanly onto StreamChunk without a partial-JSON
// tool-call accumulator, and nothing in this codebase calls Stream on
// the Gemini provider yet.
func (p *GeminiProvider) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error) {
	return nil, &ProviderError{Provider: "gemini", Code: "unsupported", Message: "streaming not implemented for gemini provider"}
}

// CountTokens estimates token count. The genai client exposes a real
// CountTokens RPC, but it requires a model round trip; callers on the
// hot budget-accounting path need a cheap local estimate instead.
func (p *GeminiProvider) CountTokens(content string) (int, error) {
	return EstimateTokens(content), nil
}

func toGeminiSystemInstruction(system string) *genai.Content {
	if system == "" {
		return nil
	}
	return genai.NewContentFromText(system, genai.RoleUser)
}

func toGeminiContents(messages []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			continue
		case "tool":
			var response map[string]any
			if err := json.Unmarshal([]byte(msg.ToolResult), &response); err != nil {
				response = map[string]any{"result": msg.ToolResult}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{
					genai.NewPartFromFunctionResponse(msg.ToolCallID, response),
				},
			})
		default:
			role := genai.RoleUser
			if msg.Role == "assistant" {
				role = genai.RoleModel
			}
			parts := make([]*genai.Part, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}
	return contents, nil
}

func toGeminiTool(tools []Tool) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(t.Parameters),
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func toGeminiSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	var schema genai.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	return &schema
}

func fromGeminiResponse(model string, result *genai.GenerateContentResponse) *CompletionResponse {
	resp := &CompletionResponse{Model: model, FinishReason: "stop"}

	cand := result.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				resp.Content += part.Text
			}
			if part.FunctionCall != nil {
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				resp.ToolCalls = append(resp.ToolCalls, ToolCall{
					ID:        part.FunctionCall.Name,
					Name:      part.FunctionCall.Name,
					Arguments: string(argsJSON),
				})
			}
		}
	}
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = "tool_use"
	}

	if result.UsageMetadata != nil {
		resp.Usage = TokenUsage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}

	return resp
}
