package fleetmetrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/wisunmeter/internal/config"
	devicerepo "github.com/smallbiznis/wisunmeter/internal/device/repository"
	noderepo "github.com/smallbiznis/wisunmeter/internal/node/repository"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/telemetrytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCollector(t *testing.T, h *telemetrytest.Harness, pusher Pusher) *Collector {
	t.Helper()
	return NewCollector(Params{
		DB:      h.DB,
		Log:     zap.NewNop(),
		Devices: devicerepo.Provide(),
		Nodes:   noderepo.Provide(),
		Records: h.Records,
		Config:  config.NewStaticTelemetryConfigHolder(config.DefaultTelemetryConfig()),
		Clock:   h.Clock,
		Pusher:  pusher,
	})
}

func TestSampleReflectsFleet(t *testing.T) {
	h := telemetrytest.New(t)
	h.Seed(t)
	ctx := context.Background()

	_, err := h.Telemetry.Ingest(ctx, []byte(`{"deviceId":"D1","nodeId":"N1","current":1,"voltage":230,"powerFactor":1,"apparentPower":230}`), domain.SourceHTTP)
	require.NoError(t, err)
	h.Clock.Advance(5 * time.Minute)

	c := newCollector(t, h, nil)
	require.NoError(t, c.Sample(ctx))

	assert.Equal(t, float64(2), testutil.ToFloat64(c.devicesG))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.nodesG))
	// N2 never reported
	assert.Equal(t, float64(1), testutil.ToFloat64(c.staleG))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.recordsG))

	h.Clock.Advance(time.Hour)
	require.NoError(t, c.Sample(ctx))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.staleG))
}

func TestRemoteWritePusherSendsSnappyProtobuf(t *testing.T) {
	var got prompb.WriteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, got.Unmarshal(raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "wisunmeter_fleet_devices", Help: "x"})
	reg.MustRegister(g)
	g.Set(3)

	require.NoError(t, NewRemoteWritePusher(srv.URL, "secret").Push(context.Background(), reg))
	require.Len(t, got.Timeseries, 1)
	assert.Equal(t, "__name__", got.Timeseries[0].Labels[0].Name)
	assert.Equal(t, "wisunmeter_fleet_devices", got.Timeseries[0].Labels[0].Value)
	assert.Equal(t, float64(3), got.Timeseries[0].Samples[0].Value)
}

func TestRemoteWritePusherReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "x_total", Help: "x"})
	reg.MustRegister(c)
	c.Inc()

	assert.Error(t, NewRemoteWritePusher(srv.URL, "").Push(context.Background(), reg))
}

func TestNewPusher(t *testing.T) {
	log := zap.NewNop()
	tests := []struct {
		name  string
		fleet config.FleetMetricsConfig
		want  any
	}{
		{name: "disabled", fleet: config.FleetMetricsConfig{}, want: nil},
		{name: "missing exporter", fleet: config.FleetMetricsConfig{Enabled: true, Endpoint: "http://x"}, want: nil},
		{name: "missing endpoint", fleet: config.FleetMetricsConfig{Enabled: true, Exporter: ExporterRemoteWrite}, want: nil},
		{name: "unknown exporter", fleet: config.FleetMetricsConfig{Enabled: true, Exporter: "statsd", Endpoint: "http://x"}, want: nil},
		{name: "remote write", fleet: config.FleetMetricsConfig{Enabled: true, Exporter: ExporterRemoteWrite, Endpoint: "http://x/api/v1/write"}, want: &RemoteWritePusher{}},
		{name: "pushgateway", fleet: config.FleetMetricsConfig{Enabled: true, Exporter: ExporterPushgateway, Endpoint: "http://x"}, want: &PushgatewayPusher{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPusher(config.Config{AppName: "wisunmeter", FleetMetrics: tc.fleet}, log)
			if tc.want == nil {
				assert.Nil(t, p)
				return
			}
			assert.IsType(t, tc.want, p)
		})
	}
}
