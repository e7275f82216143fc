package orchestra

import (
	"context"

	"github.com/loopwright/koru/pkg/llm"
	"github.com/loopwright/koru/pkg/sdk"
)

// sdkProviderBridge lets an Orchestrator, which speaks llm.Provider,
// run against an Engine's sdk.LLMRouter collaborator instead of a
// standalone provider constructed from scratch — one underlying
// router, shared between the reason-act loop and any delegated
// sub-workflow it spawns.
type sdkProviderBridge struct {
	router sdk.LLMRouter
}

func (b sdkProviderBridge) Name() string { return "sdk-bridge" }

func (b sdkProviderBridge) Models() []string { return nil }

func (b sdkProviderBridge) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := b.router.Complete(toSDKRequest(req))
	if err != nil {
		return nil, err
	}
	return fromSDKResponse(resp), nil
}

func (b sdkProviderBridge) Stream(ctx context.Context, req *llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	sdkCh, err := b.router.Stream(toSDKRequest(req))
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for chunk := range sdkCh {
			out := llm.StreamChunk{Content: chunk.Content, Done: chunk.Done, Error: chunk.Error}
			if chunk.ToolCall != nil {
				out.ToolCall = &llm.ToolCall{ID: chunk.ToolCall.ID, Name: chunk.ToolCall.Name, Arguments: chunk.ToolCall.Arguments}
			}
			ch <- out
		}
	}()
	return ch, nil
}

func (b sdkProviderBridge) CountTokens(content string) (int, error) {
	return b.router.CountTokens(content)
}

func toSDKRequest(req *llm.CompletionRequest) sdk.CompletionRequest {
	out := sdk.CompletionRequest{
		Model:     req.Model,
		System:    req.System,
		MaxTokens: req.MaxTokens,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, sdk.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func fromSDKResponse(resp *sdk.CompletionResponse) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		Content:      resp.Content,
		FinishReason: resp.FinishReason,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

// NewOrchestratorFromSDK builds an orchestra.Orchestrator that runs
// against an already-configured sdk.LLMRouter instead of constructing
// its own llm.Router from a raw API key. The Architect/Worker/
// Validator agents lose per-tier model routing in the bridge (the
// router's default-tier Complete is used for all three), which is an
// acceptable trade for sharing one collaborator with the Engine.
func NewOrchestratorFromSDK(router sdk.LLMRouter, cfg OrchestratorConfig) (*DefaultOrchestrator, error) {
	return NewOrchestrator(llm.NewRouter(sdkProviderBridge{router: router}), cfg)
}
