package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWith(reg)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/devices/:deviceId", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/devices/D1", nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/api/devices/:deviceId", http.MethodGet, "404"))
	assert.Equal(t, float64(2), got)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inflight))
}

func TestDatagramMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDatagramMetricsWith(reg)

	m.Received(120)
	m.Received(0)
	m.Dropped("validation")
	m.Dropped("")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.received))
	assert.Equal(t, float64(120), testutil.ToFloat64(m.bytes))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dropped.WithLabelValues("validation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dropped.WithLabelValues("unknown")))

	var nilMetrics *DatagramMetrics
	assert.NotPanics(t, func() { nilMetrics.Received(1) })
}
