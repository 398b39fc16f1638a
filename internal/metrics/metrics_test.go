package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveMutation("createPost", OutcomeSuccess)
		m.ObserveLikeToggle(OutcomeFailure)
		m.ObserveRollback()
		m.ObserveViewRead("FEED", "hit")
		m.ObserveInvalidation("FEED")
		m.ObserveMediaBytes(10)
		m.ObserveHTTP("/", http.StatusOK, time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveMutation("createPost", OutcomeSuccess)
	m.ObserveMutation("createPost", OutcomeSuccess)
	m.ObserveMutation("deletePost", OutcomeFailure)
	m.ObserveRollback()
	m.ObserveHTTP("/xrpc/moxie.feed.get", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("createPost", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("deletePost", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/xrpc/moxie.feed.get", "4xx")))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusCreated))
	assert.Equal(t, "3xx", statusClass(http.StatusFound))
	assert.Equal(t, "4xx", statusClass(http.StatusRequestEntityTooLarge))
	assert.Equal(t, "5xx", statusClass(http.StatusBadGateway))
}
