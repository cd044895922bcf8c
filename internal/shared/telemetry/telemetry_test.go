package telemetry

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_ServesMetricsFromOwnRegistry(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, Config{
		ServiceName: "chreosis-test",
		Environment: "test",
		MetricsPort: "0",
		SampleRatio: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	counter, err := p.Meters.Meter("chreosis/test").Int64Counter("chreosis.test.pushes")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	_, port, err := net.SplitHostPort(p.MetricsAddr)
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "chreosis_test_pushes_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestSetup_WithoutListenerOrExporter(t *testing.T) {
	p, err := Setup(context.Background(), Config{ServiceName: "chreosis-test"})
	require.NoError(t, err)

	assert.Empty(t, p.MetricsAddr)
	assert.NotNil(t, p.Tracers)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{name: "Everything", ratio: 1, want: "AlwaysOnSampler"},
		{name: "Above One", ratio: 3, want: "AlwaysOnSampler"},
		{name: "Nothing", ratio: 0, want: "AlwaysOffSampler"},
		{name: "Quarter", ratio: 0.25, want: "TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := sampler(tt.ratio).Description()
			assert.True(t, strings.HasPrefix(desc, "ParentBased{"), desc)
			assert.Contains(t, desc, "root:"+tt.want)
		})
	}
}
