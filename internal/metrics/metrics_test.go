package metrics

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New("tagquery")

	m.ObserveCompile(time.Now(), ResultOK, 3)
	m.ObserveCompile(time.Now(), ResultOK, 7)
	m.ObserveCompile(time.Now(), ResultUserError, 0)
	m.ObserveRefresh(12, nil)
	m.ObserveRefresh(0, errors.New("connection refused"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.Compiles.WithLabelValues(ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Compiles.WithLabelValues(ResultUserError)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AliasRefreshes.WithLabelValues(ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AliasRefreshes.WithLabelValues(ResultError)))
	require.Equal(t, 12.0, testutil.ToFloat64(m.AliasEntries))
	require.Equal(t, 1, testutil.CollectAndCount(m.CompileDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveCompile(time.Now(), ResultOK, 1)
	m.ObserveRefresh(1, nil)
}

func TestRegister(t *testing.T) {
	r := prometheus.NewRegistry()
	m := New("tagquery")

	require.NoError(t, m.Register(r))
	require.NoError(t, m.Register(r), "registering twice is not an error")

	m.ObserveCompile(time.Now(), ResultOK, 1)
	families, err := r.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["tagquery_compiler_compiles_total"])
	require.True(t, names["tagquery_compiler_compile_duration_seconds"])
}
