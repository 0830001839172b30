package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/tool"
)

// FunctionExecutor runs a batch of function calls and emits one function
// response event per call through emit. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Recover tool panics and report them as errors on the response
//   - Attach the ToolContext's accumulated actions to each response event
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, registry map[string]tool.Tool, calls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // <1 means len(calls)
	PreserveOrder  bool // buffer results and emit in call order
	LogStartEvents bool
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs the default executor.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	registry map[string]tool.Tool,
	calls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(calls)
	if n == 0 {
		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	if maxPar == 1 {
		for _, fc := range calls {
			if runCtx.Err() != nil {
				return
			}
			if err := emit(e.call(runCtx, agent, registry, fc)); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fc.Name, "error", err.Error())
				return
			}
		}
		return
	}

	var (
		results = make([]core.Event, n)
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, maxPar)
		start   = time.Now()
	)

	for i, fc := range calls {
		if runCtx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Err() != nil {
				return
			}

			ev := e.call(runCtx, agent, registry, fc)

			mu.Lock()
			defer mu.Unlock()

			if e.cfg.PreserveOrder {
				results[idx] = ev
				return
			}

			if err := emit(ev); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fc.Name, "error", err.Error())
			}
		}(i, fc)
	}

	wg.Wait()

	if e.cfg.PreserveOrder {
		for i, ev := range results {
			if ev.ID == "" {
				continue
			}
			if err := emit(ev); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", calls[i].Name, "error", err.Error())
				return
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// call executes one function call and builds its response event.
func (e *parallelFunctionExecutor) call(runCtx *core.RunContext, agent FlowAgent, registry map[string]tool.Tool, fc core.FunctionCall) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r)
			}
		}()
		result, err = executeTool(registry, toolCtx, fc.Name, fc.Arguments)
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewFunctionResponseEvent(runCtx.RunID, agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&ev)

	return ev
}

func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

func executeTool(registry map[string]tool.Tool, toolCtx *core.ToolContext, name, args string) (any, error) {
	impl, ok := registry[name]
	if !ok {
		return nil, tool.NewToolError(name, "tool not found", tool.CodeNotFound)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, tool.NewToolError(name, fmt.Sprintf("invalid arguments: %v", err), tool.CodeValidation)
		}
	}

	return impl.Call(toolCtx, argMap)
}
