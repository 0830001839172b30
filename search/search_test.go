package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/legalmesh/blackboard"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/testutil"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "general", r.URL.Query().Get("categories"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"` + r.URL.Query().Get("q") + `","results":[
			{"url":"https://www.dir.ca.gov/dlse/paid_sick_leave.htm","title":"California Paid Sick Leave","content":"Employers must provide 40 hours."},
			{"url":"https://leginfo.legislature.ca.gov/246","title":"Labor Code 246","content":""},
			{"url":"https://example.com/3","title":"Third","content":"x"}
		]}`))
	}))
}

func TestClient_Search(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c := NewClient(func(o *Options) {
		o.BaseURL = srv.URL + "/"
		o.MaxResults = 2
	})

	hits, err := c.Search(context.Background(), "sick leave")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "California Paid Sick Leave", hits[0].Title)
}

func TestClient_SearchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(func(o *Options) { o.BaseURL = srv.URL }).Search(context.Background(), "q")
	assert.Error(t, err)
}

func TestTool_WritesSources(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	webSearch := NewTool(NewClient(func(o *Options) { o.BaseURL = srv.URL }))
	rc, _ := testutil.NewRunContext(context.Background(), "sick leave", nil)

	for i := 0; i < 2; i++ {
		out, err := webSearch.Call(core.NewToolContext(rc, "fc"), map[string]any{"query": "sick leave"})
		require.NoError(t, err)
		assert.Contains(t, out.(core.Result).Text, "1. California Paid Sick Leave (https://www.dir.ca.gov/dlse/paid_sick_leave.htm)")
	}

	sources := Sources.Value(rc)
	require.Len(t, sources, 3)
	assert.Equal(t, Source{Title: "Labor Code 246", URL: "https://leginfo.legislature.ca.gov/246"}, sources[1])
}

func TestTool_BackendFailureIsInBand(t *testing.T) {
	webSearch := NewTool(NewClient(func(o *Options) { o.BaseURL = "http://127.0.0.1:1" }))
	rc, _ := testutil.NewRunContext(context.Background(), "q", nil)

	out, err := webSearch.Call(core.NewToolContext(rc, "fc"), map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.Equal(t, "error", out.(core.Result).Field("status"))
}

func TestAddSources_Dedup(t *testing.T) {
	m := blackboard.Map{}
	AddSources(m, Result{Title: "A", URL: "u1"}, Result{Title: "A again", URL: "u1"}, Result{Title: "no url"})
	assert.Equal(t, []Source{{Title: "A", URL: "u1"}}, Sources.Value(m))
	assert.Equal(t, "No results found.", Format(nil))
}
