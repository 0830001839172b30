package flow

import (
	"fmt"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/model"
)

// InstructionsProcessor resolves the agent instruction.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	req.Instructions = instructions

	return nil
}

// ContentsProcessor assembles the model contents from the session.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest fills req.Contents: prior turns (unless the agent opts out),
// the current user content, then the agent's own calls and tool responses in
// this run.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	var (
		prior []core.Content
		own   []core.Content
	)

	for _, ev := range runCtx.GetSessionHistory() {
		if ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}

		if ev.InvocationID == runCtx.RunID {
			if ev.Author == agent.GetName() {
				own = append(own, *ev.Content)
			}
			continue
		}

		if agent.IncludeContents() == IncludeNone {
			continue
		}

		// Only the conversational surface of earlier turns.
		if ev.Author == "user" || ev.IsFinalResponse() {
			prior = append(prior, *ev.Content)
		}
	}

	if limit := agent.MaxHistoryMessages(); limit > 0 && len(prior) > limit {
		prior = prior[len(prior)-limit:]
	}

	contents := make([]core.Content, 0, len(prior)+len(own)+1)
	contents = append(contents, prior...)

	if len(runCtx.UserContent.Parts) > 0 {
		user := runCtx.UserContent
		if user.Role == "" {
			user.Role = "user"
		}
		contents = append(contents, user)
	}

	contents = append(contents, own...)

	req.Contents = contents

	return nil
}
