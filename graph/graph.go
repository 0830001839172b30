// Package graph assembles agents into a delegation graph in two phases.
//
// Phase one declares every agent with a Descriptor that names the slots it
// reads and writes and the delegates it may call, without touching any other
// agent. Phase two, Build, resolves delegate names, validates the graph and
// only then attaches children with SetSubAgents:
//
//	b := graph.NewBuilder("user_query", "context")
//	_ = b.Declare(graph.Descriptor{Name: "search", Writes: []string{"search_results"}}, search)
//	_ = b.Declare(graph.Descriptor{Name: "summarizer", Reads: []string{"search_results"}, Delegates: []string{"search"}}, summarizer)
//	g, err := b.Build("summarizer")
//
// Build rejects unknown delegates, cycles reachable from the root, slots
// with two writers and reads of slots nobody upstream writes. A writer is
// upstream of a reader when it runs first (agents run before their
// delegates, delegates in declared order) or when the reader delegates to it.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/legalmesh/core"
)

var (
	// ErrCycle is returned when delegation loops back to an agent on the current path.
	ErrCycle = errors.New("graph: delegation cycle")
	// ErrUnknownDelegate is returned for a delegate name that was never declared.
	ErrUnknownDelegate = errors.New("graph: unknown delegate")
	// ErrDuplicateWriter is returned when two agents declare the same output slot.
	ErrDuplicateWriter = errors.New("graph: slot has more than one writer")
	// ErrUnwrittenSlot is returned when an agent reads a slot that no agent running before it writes.
	ErrUnwrittenSlot = errors.New("graph: slot is read but never written")
	// ErrDuplicateAgent is returned when a name is declared twice.
	ErrDuplicateAgent = errors.New("graph: agent declared twice")
	// ErrUnknownRoot is returned when Build is called with an undeclared root.
	ErrUnknownRoot = errors.New("graph: unknown root")
)

// Descriptor is the static contract of one agent.
type Descriptor struct {
	Name        string
	Description string
	Reads       []string
	Writes      []string
	Delegates   []string
}

type node struct {
	desc  Descriptor
	agent core.Agent
}

// Builder collects declarations. It is not safe for concurrent use.
type Builder struct {
	seeds map[string]struct{}
	nodes map[string]*node
	names []string
}

// NewBuilder creates a builder. Seed slots are written by the caller before
// the turn starts and satisfy any reader.
func NewBuilder(seedSlots ...string) *Builder {
	seeds := make(map[string]struct{}, len(seedSlots))
	for _, s := range seedSlots {
		seeds[s] = struct{}{}
	}

	return &Builder{seeds: seeds, nodes: make(map[string]*node)}
}

// Declare registers an agent. The descriptor name defaults to the agent name
// and must match it when both are set.
func (b *Builder) Declare(desc Descriptor, agent core.Agent) error {
	if agent == nil {
		return fmt.Errorf("graph: nil agent for %q", desc.Name)
	}

	if desc.Name == "" {
		desc.Name = agent.Name()
	}

	if desc.Name != agent.Name() {
		return fmt.Errorf("graph: descriptor %q does not match agent %q", desc.Name, agent.Name())
	}

	if _, ok := b.nodes[desc.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, desc.Name)
	}

	if desc.Description == "" {
		desc.Description = agent.Description()
	}

	b.nodes[desc.Name] = &node{desc: desc, agent: agent}
	b.names = append(b.names, desc.Name)

	return nil
}

// Build validates the graph rooted at root and wires sub-agents. Nothing is
// attached when validation fails.
func (b *Builder) Build(root string) (*Graph, error) {
	if _, ok := b.nodes[root]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}

	for _, name := range b.names {
		for _, d := range b.nodes[name].desc.Delegates {
			if _, ok := b.nodes[d]; !ok {
				return nil, fmt.Errorf("%w: %s delegates to %s", ErrUnknownDelegate, name, d)
			}
		}
	}

	order, err := b.topoOrder(root)
	if err != nil {
		return nil, err
	}

	writers := map[string]string{}
	for _, name := range b.names {
		for _, slot := range b.nodes[name].desc.Writes {
			if prev, ok := writers[slot]; ok {
				return nil, fmt.Errorf("%w: %s written by %s and %s", ErrDuplicateWriter, slot, prev, name)
			}
			writers[slot] = name
		}
	}

	pos := map[string]int{}
	for i, name := range b.runOrder(root) {
		pos[name] = i
	}

	for _, name := range order {
		for _, slot := range b.nodes[name].desc.Reads {
			if _, ok := b.seeds[slot]; ok {
				continue
			}
			w, ok := writers[slot]
			if !ok {
				return nil, fmt.Errorf("%w: %s reads %s", ErrUnwrittenSlot, name, slot)
			}
			wp, ok := pos[w]
			if !ok {
				return nil, fmt.Errorf("%w: %s reads %s, whose writer %s is not reachable from %s", ErrUnwrittenSlot, name, slot, w, root)
			}
			if wp >= pos[name] && !b.calls(name, w) {
				return nil, fmt.Errorf("%w: %s reads %s before its writer %s runs", ErrUnwrittenSlot, name, slot, w)
			}
		}
	}

	for _, name := range b.names {
		n := b.nodes[name]
		if len(n.desc.Delegates) == 0 {
			continue
		}

		children := make([]core.Agent, len(n.desc.Delegates))
		for i, d := range n.desc.Delegates {
			children[i] = b.nodes[d].agent
		}

		if err := n.agent.SetSubAgents(children...); err != nil {
			return nil, fmt.Errorf("graph: wire %s: %w", name, err)
		}
	}

	nodes := make(map[string]*node, len(b.nodes))
	for k, v := range b.nodes {
		nodes[k] = v
	}

	return &Graph{root: root, nodes: nodes, order: order}, nil
}

// topoOrder walks the graph from root depth-first and returns reachable
// agents in topological order, root first.
func (b *Builder) topoOrder(root string) ([]string, error) {
	const (
		unvisited = iota
		onPath
		done
	)

	state := map[string]int{}

	var (
		post []string
		path []string
	)

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case onPath:
			start := slices.Index(path, name)
			cycle := append(append([]string{}, path[start:]...), name)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		case done:
			return nil
		}

		state[name] = onPath
		path = append(path, name)

		for _, d := range b.nodes[name].desc.Delegates {
			if err := visit(d); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[name] = done
		post = append(post, name)

		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}

	slices.Reverse(post)

	return post, nil
}

// runOrder returns the agents reachable from root in the order they first
// run: every agent before its delegates, delegates in declared order.
func (b *Builder) runOrder(root string) []string {
	seen := map[string]bool{}

	var out []string

	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}

		seen[name] = true
		out = append(out, name)

		for _, d := range b.nodes[name].desc.Delegates {
			visit(d)
		}
	}

	visit(root)

	return out
}

// calls reports whether from reaches to through its delegates. The graph
// must be acyclic.
func (b *Builder) calls(from, to string) bool {
	for _, d := range b.nodes[from].desc.Delegates {
		if d == to || b.calls(d, to) {
			return true
		}
	}
	return false
}

// Graph is a validated, wired delegation graph. It is read-only.
type Graph struct {
	root  string
	nodes map[string]*node
	order []string
}

// Root returns the root agent.
func (g *Graph) Root() core.Agent { return g.nodes[g.root].agent }

// Agent returns a declared agent by name or nil.
func (g *Graph) Agent(name string) core.Agent {
	if n, ok := g.nodes[name]; ok {
		return n.agent
	}
	return nil
}

// Descriptor returns the descriptor of a declared agent.
func (g *Graph) Descriptor(name string) (Descriptor, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return Descriptor{}, false
	}
	return n.desc, true
}

// Order returns the agents reachable from the root in topological order.
func (g *Graph) Order() []string { return slices.Clone(g.order) }

// Writer returns the name of the agent that writes slot.
func (g *Graph) Writer(slot string) (string, bool) {
	for _, name := range g.order {
		if slices.Contains(g.nodes[name].desc.Writes, slot) {
			return name, true
		}
	}
	return "", false
}
