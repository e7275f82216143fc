package orchestra

import (
	"context"
	"fmt"

	"github.com/loopwright/koru/pkg/sdk"
	"github.com/loopwright/koru/pkg/toolkit"
)

// NewDelegationPack builds the toolkit pack exposing the Architect /
// Worker / Validator adversarial workflow as a single "delegate" tool
// under the delegation capability. A run that recognizes a sub-task
// bigger than one reason-act iteration can hand it to this tool
// instead of driving every implementation step through its own
// tool-call loop.
func NewDelegationPack(router sdk.LLMRouter, workDir string) *toolkit.Pack {
	pack := toolkit.NewPack("orchestra", "", toolkit.PolicyError, 0)
	pack.AddTool(toolkit.Tool{
		Name:       "delegate",
		Capability: toolkit.CapDelegation,
		Schema: toolkit.Schema{
			Properties: map[string]toolkit.Property{
				"description": {Kind: toolkit.KindString, Description: "the sub-task to delegate to the architect/worker/validator workflow"},
				"files": {Kind: toolkit.KindArray, Description: "files relevant to the sub-task", Items: &toolkit.Property{Kind: toolkit.KindString}},
			},
			Required: []string{"description"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			description, _ := input["description"].(string)
			if description == "" {
				return nil, fmt.Errorf("delegate: description is required")
			}

			var files []string
			if raw, ok := input["files"].([]any); ok {
				for _, f := range raw {
					if s, ok := f.(string); ok {
						files = append(files, s)
					}
				}
			}

			orch, err := NewOrchestratorFromSDK(router, OrchestratorConfig{WorkDir: workDir})
			if err != nil {
				return nil, fmt.Errorf("delegate: construct orchestrator: %w", err)
			}

			result, err := orch.ExecuteWorkflow(ctx, &Task{Description: description, Files: files})
			if err != nil {
				return nil, fmt.Errorf("delegate: %w", err)
			}

			return map[string]any{
				"build_passed":  result.FinalVerdict.BuildPassed,
				"tests_passed":  result.FinalVerdict.TestsPassed,
				"steps":         len(result.Steps),
				"summary_path":  result.SummaryPath,
				"workdir_path":  result.WorkdirPath,
			}, nil
		},
	})
	return pack
}
