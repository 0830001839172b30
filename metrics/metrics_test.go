package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()

	c.ObserveTurn(2*time.Second, nil)
	c.ObserveTurn(time.Second, errors.New("boom"))
	c.ObserveRoute("SUMMARIZE")
	c.ObserveRoute("SUMMARIZE")
	c.ObserveToolCall("add_days", "success")
	c.ObserveToolCall("web_search", "")
	c.ObserveDelegate("remote_delegate", nil)
	c.ObserveHTTP("/run", 429)

	assert.InDelta(t, 1, testutil.ToFloat64(c.turnsTotal.WithLabelValues(StatusOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.turnsTotal.WithLabelValues(StatusError)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.routeTotal.WithLabelValues("SUMMARIZE")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.toolCalls.WithLabelValues("web_search", StatusOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.delegateCalls.WithLabelValues("remote_delegate", StatusOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.httpRequests.WithLabelValues("/run", "429")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.turnDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ObserveRoute("DRAFT_CLAUSE")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `legalmesh_route_total{label="DRAFT_CLAUSE"} 1`)
}

func TestCollector_NilIsNoOp(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.ObserveTurn(time.Second, nil)
		c.ObserveRoute("SUMMARIZE")
		c.ObserveToolCall("add_days", "success")
		c.ObserveDelegate("sdk", nil)
		c.ObserveHTTP("/run", 200)
	})
	assert.Nil(t, c.Registry())
}
