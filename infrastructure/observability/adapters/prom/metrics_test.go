package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer("blobstore", reg)

	m.IncrementCounter("fs.put.attempts", nil)
	m.IncrementCounter("fs.put.attempts", nil)
	m.IncrementCounter("fs.put.errors", map[string]string{"error": "lock_timeout"})

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["blobstore_fs_put_attempts"])
	assert.True(t, names["blobstore_fs_put_errors"])

	vec := m.reg.counters["fs.put.attempts"]
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.With(nil)))
}

func TestWithTagsSharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer("blobstore", reg)
	tagged := m.WithTags(map[string]string{"storage": "fs"})

	tagged.IncrementCounter("get.attempts", nil)
	tagged.IncrementCounter("get.attempts", nil)

	vec := m.reg.counters["get.attempts"]
	require.NotNil(t, vec, "tagged instance registers on the shared registry")
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.With(map[string]string{"storage": "fs"})))
}

func TestHistogramAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer("blobstore", reg)

	m.RecordHistogram("fs.put.bytes", 2048, nil)
	m.RecordGauge("fs.objects", 42, nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.reg.gauges["fs.objects"].With(nil)))
}

func TestPromNameNormalization(t *testing.T) {
	r := &registry{serviceName: "svc"}
	assert.Equal(t, "svc_fs_put_bytes", r.promName("fs.put.bytes"))
	assert.Equal(t, "svc_network_errors", r.promName("network-errors"))

	bare := &registry{}
	assert.Equal(t, "plain", bare.promName("plain"))
}
