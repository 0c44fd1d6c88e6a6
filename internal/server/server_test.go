package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/wisunmeter/internal/config"
	"github.com/smallbiznis/wisunmeter/internal/observability"
	obsmetrics "github.com/smallbiznis/wisunmeter/internal/observability/metrics"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/liveevents"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/telemetrytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const meterPayload = `{"deviceId":"D1","nodeId":"N1","current":5,"voltage":230,"powerFactor":0.95,"apparentPower":1.1}`

func newTestServer(t *testing.T, h *telemetrytest.Harness) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := NewEngine(observability.Config{}, obsmetrics.NewHTTPMetricsWith(prometheus.NewRegistry()), []string{"*"})
	return NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{AppName: "wisunmeter", AppVersion: "1.0.0"},
		Log:        zap.NewNop(),
		Clock:      h.Clock,
		Devices:    h.Devices,
		Nodes:      h.Nodes,
		Telemetry:  h.Telemetry,
		LiveEvents: h.Hub,
	})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Engine().ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func errorType(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, resp)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, resp.Body.String())
	return errObj["type"].(string)
}

func TestIngestStoresAndBroadcastsRegisteredPair(t *testing.T) {
	h := telemetrytest.New(t)
	s := newTestServer(t, h)

	resp := doRequest(t, s, http.MethodPost, "/api/devices/register", `{"deviceId":"D1","deviceName":"Meter 1"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	resp = doRequest(t, s, http.MethodPost, "/api/nodes/register", `{"nodeId":"N1","nodeName":"Node 1","deviceId":"D1"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	sub, err := h.Hub.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	resp = doRequest(t, s, http.MethodPost, "/api/meter/data", meterPayload)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, "D1", data["deviceId"])
	assert.Equal(t, "N1", data["nodeId"])
	assert.Equal(t, 5.0, data["current"])
	assert.Equal(t, 230.0, data["voltage"])
	assert.Equal(t, 0.95, data["powerFactor"])
	assert.Equal(t, 1.1, data["apparentPower"])
	assert.NotEmpty(t, data["timestamp"])

	select {
	case ev := <-sub.Events():
		assert.Equal(t, liveevents.EventMeterData, ev.Name)
		assert.Equal(t, 5.0, ev.Record.Current)
		assert.Equal(t, 230.0, ev.Record.Voltage)
		assert.Equal(t, 0.95, ev.Record.PowerFactor)
		assert.Equal(t, 1.1, ev.Record.ApparentPower)
		assert.True(t, telemetrytest.Epoch.Equal(ev.Record.Timestamp))
		assert.Equal(t, domain.SourceHTTP, ev.Record.Source)
	case <-time.After(time.Second):
		t.Fatal("expected a meterData event")
	}

	// no idempotence: the same payload creates a second record
	resp = doRequest(t, s, http.MethodPost, "/api/meter/data", meterPayload)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, int64(2), h.RecordCount(t))
}

func TestIngestRejectsUnregisteredDevice(t *testing.T) {
	h := telemetrytest.New(t)
	s := newTestServer(t, h)

	sub, err := h.Hub.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	resp := doRequest(t, s, http.MethodPost, "/api/meter/data", meterPayload)
	require.Equal(t, http.StatusNotFound, resp.Code)
	errObj := decode(t, resp)["error"].(map[string]any)
	assert.Equal(t, "not_found", errObj["type"])
	assert.Equal(t, "Device not found. Please register the device first.", errObj["message"])
	assert.Equal(t, int64(0), h.RecordCount(t))

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestIngestAcceptsLegacyFieldNames(t *testing.T) {
	h := telemetrytest.New(t)
	h.Seed(t)
	s := newTestServer(t, h)

	resp := doRequest(t, s, http.MethodPost, "/api/meter/data", `{"device":"D1","parent":"N1","current":5,"voltage":230,"powerFactor":0.95,"apparentPower":1.1}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, int64(1), h.RecordCount(t))
}

func TestIngestListsMissingField(t *testing.T) {
	h := telemetrytest.New(t)
	h.Seed(t)
	s := newTestServer(t, h)

	resp := doRequest(t, s, http.MethodPost, "/api/meter/data", `{"deviceId":"D1","nodeId":"N1","current":5,"powerFactor":0.95,"apparentPower":1.1}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	errObj := decode(t, resp)["error"].(map[string]any)
	assert.Equal(t, "validation_error", errObj["type"])
	fields := errObj["errors"].([]any)
	require.Len(t, fields, 1)
	assert.Equal(t, "voltage", fields[0].(map[string]any)["field"])
	assert.Equal(t, "missing_field", fields[0].(map[string]any)["code"])
	assert.Equal(t, int64(0), h.RecordCount(t))
}

func TestIngestRejectsNodeOfAnotherDevice(t *testing.T) {
	h := telemetrytest.New(t)
	h.Seed(t)
	s := newTestServer(t, h)

	resp := doRequest(t, s, http.MethodPost, "/api/meter/data", `{"deviceId":"D1","nodeId":"N2","current":5,"voltage":230,"powerFactor":1,"apparentPower":1}`)
	require.Equal(t, http.StatusNotFound, resp.Code)
	errObj := decode(t, resp)["error"].(map[string]any)
	assert.Equal(t, "Node not found or does not belong to this device.", errObj["message"])
}

type fixedLimiter struct {
	decision domain.RateDecision
}

func (l fixedLimiter) Allow(context.Context, string) (domain.RateDecision, error) {
	return l.decision, nil
}

func TestIngestRateLimitedSetsRetryAfter(t *testing.T) {
	h := telemetrytest.New(t, telemetrytest.WithLimiter(fixedLimiter{
		decision: domain.RateDecision{RetryAfter: 1500 * time.Millisecond},
	}))
	h.Seed(t)
	s := newTestServer(t, h)

	resp := doRequest(t, s, http.MethodPost, "/api/meter/data", meterPayload)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "rate_limited", errorType(t, resp))
	assert.Equal(t, "2", resp.Header().Get("Retry-After"))
	assert.Equal(t, int64(0), h.RecordCount(t))
}

func TestIngestRejections(t *testing.T) {
	h := telemetrytest.New(t)
	h.Seed(t)
	s := newTestServer(t, h)

	tests := []struct {
		name    string
		body    string
		status  int
		errType string
	}{
		{name: "malformed json", body: `{"deviceId":`, status: http.StatusBadRequest, errType: "validation_error"},
		{name: "array body", body: `[1,2]`, status: http.StatusBadRequest, errType: "validation_error"},
		{name: "non numeric voltage", body: `{"deviceId":"D1","nodeId":"N1","current":5,"voltage":"high","powerFactor":1,"apparentPower":1}`, status: http.StatusBadRequest, errType: "validation_error"},
		{name: "node of another device", body: `{"deviceId":"D1","nodeId":"N2","current":5,"voltage":230,"powerFactor":1,"apparentPower":1}`, status: http.StatusNotFound, errType: "not_found"},
		{name: "unknown node", body: `{"deviceId":"D1","nodeId":"N9","current":5,"voltage":230,"powerFactor":1,"apparentPower":1}`, status: http.StatusNotFound, errType: "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, s, http.MethodPost, "/api/meter/data", tc.body)
			assert.Equal(t, tc.status, resp.Code, resp.Body.String())
			assert.Equal(t, tc.errType, errorType(t, resp))
		})
	}
	assert.Equal(t, int64(0), h.RecordCount(t))
}

func TestDeviceAndNodeRoutes(t *testing.T) {
	h := telemetrytest.New(t)
	s := newTestServer(t, h)

	resp := doRequest(t, s, http.MethodPost, "/api/devices/register", `{"deviceId":"D1","deviceName":"Meter 1","location":"Lab"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, s, http.MethodPost, "/api/devices/register", `{"deviceId":"D1","deviceName":"Again"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "already_exists", errorType(t, resp))

	resp = doRequest(t, s, http.MethodPost, "/api/devices/register", `{"deviceName":"No id"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(t, s, http.MethodGet, "/api/devices/D1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Lab", decode(t, resp)["data"].(map[string]any)["location"])

	resp = doRequest(t, s, http.MethodGet, "/api/devices/D9", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = doRequest(t, s, http.MethodPatch, "/api/devices/D1/status", `{"status":"maintenance"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(t, s, http.MethodPatch, "/api/devices/D1/status", `{"status":"inactive"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "inactive", decode(t, resp)["data"].(map[string]any)["status"])

	resp = doRequest(t, s, http.MethodPatch, "/api/devices/D1", `{"deviceName":"Renamed"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Renamed", decode(t, resp)["data"].(map[string]any)["deviceName"])

	resp = doRequest(t, s, http.MethodPost, "/api/nodes/register", `{"nodeId":"N1","nodeName":"n","deviceId":"D9"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = doRequest(t, s, http.MethodPost, "/api/nodes/register", `{"nodeId":"N1","nodeName":"n","deviceId":"D1"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(t, s, http.MethodGet, "/api/nodes/device/D1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1.0, decode(t, resp)["count"])

	resp = doRequest(t, s, http.MethodGet, "/api/nodes/N1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, s, http.MethodPatch, "/api/nodes/N1", `{"location":"Roof"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Roof", decode(t, resp)["data"].(map[string]any)["location"])

	resp = doRequest(t, s, http.MethodDelete, "/api/devices/D1", "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = doRequest(t, s, http.MethodGet, "/api/nodes/N1", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = doRequest(t, s, http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0.0, decode(t, resp)["count"])
}

func TestQueryRoutes(t *testing.T) {
	h := telemetrytest.New(t)
	h.Seed(t)
	s := newTestServer(t, h)

	resp := doRequest(t, s, http.MethodGet, "/api/meter/latest/D1/N1", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, doRequest(t, s, http.MethodPost, "/api/meter/data", meterPayload).Code)
		h.Clock.Advance(time.Minute)
	}

	resp = doRequest(t, s, http.MethodGet, "/api/meter/latest/D1/N1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, s, http.MethodGet, "/api/meter/history/D1/N1?limit=2", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2.0, decode(t, resp)["count"])

	resp = doRequest(t, s, http.MethodGet, "/api/meter/history/D1/N1?startDate=2024-06-01&endDate=2024-06-01", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 3.0, decode(t, resp)["count"])

	resp = doRequest(t, s, http.MethodGet, "/api/meter/history/D1/N1?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(t, s, http.MethodGet, "/api/meter/history/D1/N1?startDate=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(t, s, http.MethodGet, "/api/meter/device/D1/latest", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1.0, decode(t, resp)["count"])

	resp = doRequest(t, s, http.MethodGet, "/api/meter/device/D2/latest", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0.0, decode(t, resp)["count"])
}

func TestExportRoute(t *testing.T) {
	h := telemetrytest.New(t)
	h.Seed(t)
	s := newTestServer(t, h)
	require.Equal(t, http.StatusCreated, doRequest(t, s, http.MethodPost, "/api/meter/data", meterPayload).Code)

	resp := doRequest(t, s, http.MethodGet, "/api/meter/history/D1/N1/export?format=xlsx", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "D1_N1_")
	assert.Contains(t, resp.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, resp.Body.Bytes())

	resp = doRequest(t, s, http.MethodGet, "/api/meter/history/D1/N1/export?format=csv", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHealthAndIndex(t *testing.T) {
	h := telemetrytest.New(t)
	s := newTestServer(t, h)

	sub, err := h.Hub.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	resp := doRequest(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1.0, body["connections"])

	resp = doRequest(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1.0.0", decode(t, resp)["version"])
}

func TestStreamDeliversMeterDataEvents(t *testing.T) {
	h := telemetrytest.New(t)
	h.Seed(t)
	s := newTestServer(t, h)

	ts := httptest.NewServer(s.Engine())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/meter/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return h.Hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	post, err := ts.Client().Post(ts.URL+"/api/meter/data", "application/json", strings.NewReader(meterPayload))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusCreated, post.StatusCode)

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	assert.Equal(t, liveevents.EventMeterData, eventLine)

	var record domain.Record
	require.NoError(t, json.Unmarshal([]byte(dataLine), &record))
	assert.Equal(t, "D1", record.DeviceID)
	assert.Equal(t, 230.0, record.Voltage)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{name: "rate limited", err: domain.ErrRateLimited, status: http.StatusTooManyRequests, typ: "rate_limited"},
		{name: "rate limited with wait", err: &domain.RateLimitedError{DeviceID: "D1", RetryAfter: time.Second}, status: http.StatusTooManyRequests, typ: "rate_limited"},
		{name: "device not found", err: domain.ErrDeviceNotFound, status: http.StatusNotFound, typ: "not_found"},
		{name: "node not found", err: domain.ErrNodeNotFound, status: http.StatusNotFound, typ: "not_found"},
		{name: "persistence", err: &domain.PersistenceError{Err: assert.AnError}, status: http.StatusInternalServerError, typ: "internal_error"},
		{name: "record not found", err: domain.ErrRecordNotFound, status: http.StatusNotFound, typ: "not_found"},
		{name: "hub unavailable", err: liveevents.ErrHubUnavailable, status: http.StatusServiceUnavailable, typ: "service_unavailable"},
		{name: "invalid limit", err: domain.ErrInvalidLimit, status: http.StatusBadRequest, typ: "validation_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}

	typ, code := classifyErrorForLog(domain.ErrDeviceNotFound)
	assert.Equal(t, "not_found", typ)
	assert.Equal(t, "device_not_found", code)
}
