package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/agent"
	"github.com/hupe1980/legalmesh/core"
)

type testNode struct{ agent.BaseAgent }

func (n *testNode) Run(*core.RunContext) error { return nil }

func newNode(name string) *testNode { return &testNode{BaseAgent: agent.NewBaseAgent(name)} }

func legalBuilder(t *testing.T) *Builder {
	t.Helper()

	b := NewBuilder("user_query", "context")

	decls := []Descriptor{
		{Name: "coordinator", Reads: []string{"user_query"}, Delegates: []string{"classifier", "summarizer", "formatter"}},
		{Name: "classifier", Reads: []string{"user_query", "context"}, Writes: []string{"task_label_json"}},
		{Name: "summarizer", Reads: []string{"user_query", "search_results"}, Writes: []string{"summary"}, Delegates: []string{"search"}},
		{Name: "search", Reads: []string{"user_query"}, Writes: []string{"search_results"}},
		{Name: "formatter", Reads: []string{"task_label_json", "summary"}, Writes: []string{"final_answer"}},
	}

	for _, d := range decls {
		require.NoError(t, b.Declare(d, newNode(d.Name)))
	}

	return b
}

func TestBuild_WiresDAG(t *testing.T) {
	g, err := legalBuilder(t).Build("coordinator")
	require.NoError(t, err)

	assert.Equal(t, "coordinator", g.Root().Name())
	assert.Equal(t, "coordinator", g.Order()[0])
	assert.Len(t, g.Order(), 5)

	pos := map[string]int{}
	for i, n := range g.Order() {
		pos[n] = i
	}
	assert.Less(t, pos["summarizer"], pos["search"])

	children := g.Agent("coordinator").SubAgents()
	require.Len(t, children, 3)
	assert.Equal(t, "classifier", children[0].Name())
	assert.Equal(t, "coordinator", g.Agent("summarizer").Parent().Name())
	assert.Equal(t, "search", g.Agent("summarizer").SubAgents()[0].Name())

	w, ok := g.Writer("final_answer")
	assert.True(t, ok)
	assert.Equal(t, "formatter", w)

	d, ok := g.Descriptor("search")
	require.True(t, ok)
	assert.Equal(t, []string{"search_results"}, d.Writes)
}

func TestBuild_SharedDelegateIsAllowed(t *testing.T) {
	b := legalBuilder(t)
	require.NoError(t, b.Declare(Descriptor{
		Name:      "compliance",
		Reads:     []string{"search_results"},
		Writes:    []string{"compliance_checked"},
		Delegates: []string{"search"},
	}, newNode("compliance")))
	require.NoError(t, b.Declare(Descriptor{Name: "root", Delegates: []string{"coordinator", "compliance"}}, newNode("root")))

	g, err := b.Build("root")
	require.NoError(t, err)
	assert.Len(t, g.Order(), 7)
}

func TestBuild_RejectsCycle(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Declare(Descriptor{Name: "a", Delegates: []string{"b"}}, newNode("a")))
	require.NoError(t, b.Declare(Descriptor{Name: "b", Delegates: []string{"c"}}, newNode("b")))
	require.NoError(t, b.Declare(Descriptor{Name: "c", Delegates: []string{"a"}}, newNode("c")))

	_, err := b.Build("a")
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestBuild_RejectsUnknownDelegate(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Declare(Descriptor{Name: "a", Delegates: []string{"ghost"}}, newNode("a")))

	_, err := b.Build("a")
	assert.ErrorIs(t, err, ErrUnknownDelegate)
}

func TestBuild_RejectsDuplicateWriter(t *testing.T) {
	b := legalBuilder(t)
	require.NoError(t, b.Declare(Descriptor{Name: "rogue", Writes: []string{"summary"}}, newNode("rogue")))

	_, err := b.Build("coordinator")
	assert.ErrorIs(t, err, ErrDuplicateWriter)
}

func TestBuild_RejectsUnwrittenSlot(t *testing.T) {
	b := NewBuilder("user_query")
	require.NoError(t, b.Declare(Descriptor{Name: "formatter", Reads: []string{"summary"}, Writes: []string{"final_answer"}}, newNode("formatter")))

	_, err := b.Build("formatter")
	assert.ErrorIs(t, err, ErrUnwrittenSlot)

	// A writer that exists but is unreachable does not count.
	require.NoError(t, b.Declare(Descriptor{Name: "summarizer", Writes: []string{"summary"}}, newNode("summarizer")))
	_, err = b.Build("formatter")
	assert.ErrorIs(t, err, ErrUnwrittenSlot)
}

func TestBuild_RejectsReadBeforeWriter(t *testing.T) {
	b := NewBuilder("user_query")
	decls := []Descriptor{
		{Name: "coordinator", Delegates: []string{"auditor", "formatter"}},
		{Name: "auditor", Reads: []string{"final_answer"}},
		{Name: "formatter", Reads: []string{"user_query"}, Writes: []string{"final_answer"}},
	}
	for _, d := range decls {
		require.NoError(t, b.Declare(d, newNode(d.Name)))
	}

	_, err := b.Build("coordinator")
	require.ErrorIs(t, err, ErrUnwrittenSlot)
	assert.Contains(t, err.Error(), "auditor reads final_answer before its writer formatter runs")
}

func TestBuild_ReaderMayDelegateToItsWriter(t *testing.T) {
	b := NewBuilder("user_query")
	require.NoError(t, b.Declare(Descriptor{Name: "summarizer", Reads: []string{"search_results"}, Delegates: []string{"search"}}, newNode("summarizer")))
	require.NoError(t, b.Declare(Descriptor{Name: "search", Reads: []string{"user_query"}, Writes: []string{"search_results"}}, newNode("search")))

	_, err := b.Build("summarizer")
	assert.NoError(t, err)
}

func TestBuild_FailedBuildDoesNotWire(t *testing.T) {
	b := NewBuilder()
	a := newNode("a")
	require.NoError(t, b.Declare(Descriptor{Name: "a", Delegates: []string{"b"}}, a))
	require.NoError(t, b.Declare(Descriptor{Name: "b", Delegates: []string{"a"}}, newNode("b")))

	_, err := b.Build("a")
	require.Error(t, err)
	assert.Empty(t, a.SubAgents())
}

func TestDeclare_Errors(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Declare(Descriptor{}, newNode("a")))
	assert.ErrorIs(t, b.Declare(Descriptor{}, newNode("a")), ErrDuplicateAgent)
	assert.Error(t, b.Declare(Descriptor{Name: "x"}, newNode("y")))

	_, err := b.Build("missing")
	assert.ErrorIs(t, err, ErrUnknownRoot)
}
