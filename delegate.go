package legalmesh

import (
	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/tool"
)

// DelegateAgentName names the agent behind the A2A remote delegate.
const DelegateAgentName = "legal_delegate"

const delegateInstruction = `You are an internal legal assistant with access to company documents and legal utilities.
Use the tools whenever they can answer part of the request:
- answer_from_document for questions about a PDF contract or policy,
- add_days for deadline arithmetic,
- check_jurisdiction to validate a jurisdiction,
- compare_clause to compare a company clause with a statutory clause,
- format_as_document when the user asks for a Word document.
Answer concisely from the tool results. If a tool reports an error, say so instead of guessing.`

// NewDelegateAgent creates the tool-calling agent served by the remote
// delegate. tools usually come from a toolserver.Toolset or a
// legaltools.Provider.
func NewDelegateAgent(llm model.Model, tools []tool.Tool) *agent.ModelAgent {
	return agent.NewModelAgent(DelegateAgentName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Answers legal questions with document, date, jurisdiction and formatting tools."
		o.Instruction = agent.NewInstructionFromText(delegateInstruction)
		o.Tools = tools
	})
}
