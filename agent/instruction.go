package agent

import (
	"fmt"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts an ordinary function to Provider.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either a static template string or a dynamic provider.
// Static text is a text/template rendered against the run state. Provider
// text is used verbatim, so state values it embeds are never parsed as
// template actions.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }


// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction is a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text: the rendered template, or the
// provider's text.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}

	rendered, err := util.RenderTemplate(i.text, rc.StateSnapshot())
	if err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}

	return rendered, nil
}
