package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheLookup("clients", true)
	m.RemoteFetch("clientes", time.Second, nil)
	m.RemoteRetry()
	m.SharedFetch()
	m.DiscardedMerge()
	m.PersistFailure()
	m.ExpansionRun()
	m.SnapshotSize("clientes", 3)
	assert.Nil(t, m.Registry())
}

func TestCountersAndHandler(t *testing.T) {
	m := New()

	m.CacheLookup("subjects", true)
	m.CacheLookup("subjects", false)
	m.CacheLookup("subjects", false)
	m.RemoteFetch("asuntos", 20*time.Millisecond, errors.New("boom"))
	m.SnapshotSize("clientes", 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("subjects", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteFetches.WithLabelValues("asuntos", "error")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.snapshotRecords.WithLabelValues("clientes")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "docfiler_cache_lookups_total"))
}
