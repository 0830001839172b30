package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh"
	"github.com/hupe1980/legalmesh/a2a"
	"github.com/hupe1980/legalmesh/legaltools"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/runner"
	"github.com/hupe1980/legalmesh/search"
)

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string) ([]search.Result, error) { return nil, nil }

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.Subset(t, names, []string{"serve", "delegate", "tools", "all", "ask", "probe"})
	assert.NotNil(t, delegateCmd.Flags().Lookup("port"))
	assert.NotNil(t, probeCmd.Flags().Lookup("stream"))
}

func TestChat_ExitAndErrors(t *testing.T) {
	mesh, err := legalmesh.New(model.NewScriptedModel("test"), func(o *legalmesh.Options) { o.Searcher = stubSearcher{} })
	require.NoError(t, err)

	var out bytes.Buffer
	err = chat(context.Background(), mesh, "s1", strings.NewReader("\nWhat is due?\nEXIT\nnot reached\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "error:")
	assert.Equal(t, 3, strings.Count(out.String(), "> "))
}

func TestProbe(t *testing.T) {
	llm := model.NewScriptedModel("test",
		model.CallReply("call-1", legaltools.AddDaysName, `{"start_date":"2025-08-01","day_count":"45"}`),
		model.TextReply("The deadline is 2025-09-15."),
	)

	exec := a2a.NewRunnerExecutor(runner.New(legalmesh.NewDelegateAgent(llm, legaltools.New(nil).Tools())), func(o *a2a.ExecutorOptions) {
		o.Documents = legaltools.DocumentsUsed
	})

	ts := httptest.NewServer(a2a.NewServer(a2a.LegalAssistantCard("localhost", 10001), exec))
	t.Cleanup(ts.Close)

	t.Setenv("LEGALMESH_DELEGATE_CARD_URL", ts.URL+a2a.WellKnownCardPath)
	configPath = ""

	var out bytes.Buffer
	probeCmd.SetOut(&out)
	probeCmd.SetContext(context.Background())

	require.NoError(t, probeCmd.RunE(probeCmd, []string{"Add 45 days to 2025-08-01"}))

	assert.Contains(t, out.String(), `"name": "Legal Assistant Agent"`)
	assert.Contains(t, out.String(), "The deadline is 2025-09-15.")
	assert.Equal(t, 0, llm.Remaining())
}
