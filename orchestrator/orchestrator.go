package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/legalmesh/a2a"
	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/flow"
	"github.com/hupe1980/legalmesh/legal"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/search"
)

// Agent names.
const (
	OrchestratorName   = "orchestrator"
	PlannerName        = "planner"
	RemoteDelegateName = "remote_delegate"
)

// ErrAllDelegatesFailed is returned when no selected delegate succeeded.
var ErrAllDelegatesFailed = errors.New("orchestrator: every delegate failed")

const plannerInstruction = `You are the planner of a legal advisor workflow. You never answer the question yourself.

Two delegates are available:
- "remote": an internal legal delegate that answers from company documents (RAG over PDFs), calculates dates, checks jurisdictions and formats text into Word documents.
- "sdk": a research workflow that searches the web, summarizes legal material, drafts clauses, runs compliance checks and provides citations.

Choose one or both for the request below.

Request: {{.user_query}}

Reply with JSON only:
{"legal_issue": "<one sentence>", "delegates": ["remote", "sdk"], "adjusted_goals": ["<goal>", ...], "plan": "<how the delegates will be used>"}`

// NewPlanner creates the planner agent. Its reply is decoded into PlanSlot.
func NewPlanner(llm model.Model) *agent.ModelAgent {
	return agent.NewModelAgent(PlannerName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Chooses delegates and writes the plan of a turn."
		o.Instruction = agent.NewInstructionFromText(plannerInstruction)
		o.JSONResponse = true
		o.IncludeContents = flow.IncludeNone
		o.OutputKey = PlanSlot.Name()
		o.OutputDecoder = func(text string) (any, error) { return ParsePlan(text) }
		o.ExposeSubAgents = false
	})
}

// Orchestrator plans a turn, runs the selected delegates in order and
// renders the merged report.
type Orchestrator struct {
	agent.BaseAgent
	remoteName  string
	sdkName     string
	onDelegate  func(delegate string, err error)
	recallLimit int
}

// NewOrchestrator creates the orchestrator. remoteName may be empty when no
// remote delegate is attached. onDelegate is called after every delegate
// run and may be nil.
func NewOrchestrator(remoteName string, onDelegate func(delegate string, err error)) *Orchestrator {
	o := &Orchestrator{
		BaseAgent:  agent.NewBaseAgent(OrchestratorName),
		remoteName: remoteName,
		sdkName:    legal.CoordinatorName,
		onDelegate: onDelegate,
	}
	o.SetDescription("Coordinates the remote legal delegate and the legal research workflow and returns a JSON report.")

	return o
}

// Run implements core.Agent.
func (o *Orchestrator) Run(runCtx *core.RunContext) error {
	query := legal.UserQuery.Value(runCtx)
	if strings.TrimSpace(query) == "" {
		query = runCtx.UserContent.Text()
	}

	if o.recallLimit > 0 {
		o.recall(runCtx, query)
	}

	plan := o.plan(runCtx, query)

	in := MergeInput{Query: query, Plan: plan}

	for _, d := range plan.Delegates {
		switch d {
		case DelegateRemote:
			in.Remote = o.runRemote(runCtx)
		case DelegateSDK:
			in.SDK = o.runSDK(runCtx)
		}
	}

	if !in.SDK.Used && (in.Remote.Err != nil || len(in.Remote.Documents) == 0) {
		runCtx.LogInfo("orchestrator.fallback.sdk", "reason", "remote returned no documents")
		in.SDK = o.runSDK(runCtx)
	}

	if (!in.Remote.Used || in.Remote.Err != nil) && (!in.SDK.Used || in.SDK.Err != nil) {
		return fmt.Errorf("%w: %w", ErrAllDelegatesFailed, errors.Join(in.Remote.Err, in.SDK.Err))
	}

	text, err := Merge(in).Render()
	if err != nil {
		return fmt.Errorf("orchestrator: render report: %w", err)
	}

	FinalReport.Set(runCtx, text)

	runCtx.LogInfo("orchestrator.report.rendered",
		"delegates", strings.Join(plan.Delegates, ","),
		"remote_ok", in.Remote.Used && in.Remote.Err == nil,
		"sdk_ok", in.SDK.Used && in.SDK.Err == nil,
	)

	if o.recallLimit > 0 {
		content := fmt.Sprintf("Question: %s\nAnswer: %s", query, text)
		if err := runCtx.StoreMemory(content, map[string]any{"run_id": runCtx.RunID}); err != nil && !errors.Is(err, core.ErrStoreNotConfigured) {
			runCtx.LogWarn("orchestrator.memory.store_failed", "error", err.Error())
		}
	}

	return runCtx.EmitEvent(core.NewMessageEvent(runCtx.RunID, o.Name(), text))
}

// recall fills an empty context slot with the remembered turns of the
// session most similar to query. Failures only cost context.
func (o *Orchestrator) recall(runCtx *core.RunContext, query string) {
	if strings.TrimSpace(legal.Context.Value(runCtx)) != "" {
		return
	}

	hits, err := runCtx.SearchMemory(query, o.recallLimit)
	if err != nil {
		runCtx.LogWarn("orchestrator.memory.search_failed", "error", err.Error())
		return
	}

	if len(hits) == 0 {
		return
	}

	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Content)
	}

	legal.Context.Set(runCtx, strings.Join(parts, "\n\n"))

	runCtx.LogDebug("orchestrator.memory.recalled", "hits", len(hits))
}

// plan runs the planner and drops delegates that are not attached.
func (o *Orchestrator) plan(runCtx *core.RunContext, query string) Plan {
	plan, err := o.runPlanner(runCtx)
	if err != nil {
		runCtx.LogWarn("orchestrator.plan.failed", "error", err.Error())
		plan = FallbackPlan(query)
	}

	available := plan.Delegates[:0:0]
	for _, d := range plan.Delegates {
		if o.child(o.delegateName(d)) != nil {
			available = append(available, d)
		}
	}

	if len(available) == 0 {
		available = []string{DelegateSDK}
	}

	plan.Delegates = available

	runCtx.LogInfo("orchestrator.plan.selected", "delegates", strings.Join(plan.Delegates, ","), "legal_issue", plan.LegalIssue)

	return plan
}

func (o *Orchestrator) runPlanner(runCtx *core.RunContext) (Plan, error) {
	planner := o.child(PlannerName)
	if planner == nil {
		return Plan{}, errors.New("planner is not attached")
	}

	if err := planner.Run(runCtx); err != nil {
		return Plan{}, err
	}

	plan, ok, err := PlanSlot.Get(runCtx)
	if err != nil {
		return Plan{}, err
	}

	if !ok {
		return Plan{}, errors.New("planner wrote no plan")
	}

	plan.Delegates = NormalizeDelegates(plan.Delegates)

	return plan, nil
}

func (o *Orchestrator) runRemote(runCtx *core.RunContext) RemoteOutcome {
	out := RemoteOutcome{Used: true}

	if out.Err = o.runDelegate(runCtx, o.remoteName); out.Err != nil {
		return out
	}

	out.Answer = a2a.RemoteAnswer.Value(runCtx)
	out.Documents = a2a.RemoteDocuments.Value(runCtx)

	return out
}

func (o *Orchestrator) runSDK(runCtx *core.RunContext) SDKOutcome {
	out := SDKOutcome{Used: true}

	if out.Err = o.runDelegate(runCtx, o.sdkName); out.Err != nil {
		return out
	}

	out.FinalAnswer = legal.FinalAnswer.Value(runCtx)
	out.Sources = search.Sources.Value(runCtx)
	out.Risk = legal.ComplianceRisk.Value(runCtx)

	return out
}

func (o *Orchestrator) runDelegate(runCtx *core.RunContext, name string) error {
	if err := runCtx.Err(); err != nil {
		return err
	}

	delegate := o.child(name)
	if delegate == nil {
		return fmt.Errorf("orchestrator: delegate %q is not attached", name)
	}

	runCtx.LogDebug("orchestrator.delegate.start", "delegate", name)

	err := delegate.Run(runCtx)
	if err != nil {
		runCtx.LogError("orchestrator.delegate.error", "delegate", name, "error", err.Error())
		err = fmt.Errorf("orchestrator: %s: %w", name, err)
	}

	if o.onDelegate != nil {
		o.onDelegate(name, err)
	}

	return err
}

func (o *Orchestrator) delegateName(selector string) string {
	if selector == DelegateRemote {
		return o.remoteName
	}

	return o.sdkName
}

func (o *Orchestrator) child(name string) core.Agent {
	if name == "" {
		return nil
	}

	for _, c := range o.SubAgents() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}
