package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// IngestSpanName is the root span of one meter payload on the UDP path
	// and the child of the HTTP span on the HTTP path.
	IngestSpanName = "telemetry.ingest"
	// IngestRoute is the HTTP route meters post to.
	IngestRoute = "/api/meter/data"
)

// HTTPSpanName names the server span for a matched gin route.
func HTTPSpanName(method, route string) string {
	if route == "" {
		route = "unknown"
	}
	return "HTTP " + method + " " + route
}

// ingestSampler samples meter ingest roots at their own ratio so the steady
// stream of readings does not crowd out registry and query traces.
type ingestSampler struct {
	ingest  sdktrace.Sampler
	other   sdktrace.Sampler
	ingestN string
	httpN   string
}

// NewIngestSampler applies ingestRatio to ingest root spans and ratio to
// everything else. Ratios outside (0,1] sample everything.
func NewIngestSampler(ratio, ingestRatio float64) sdktrace.Sampler {
	return &ingestSampler{
		ingest:  sdktrace.TraceIDRatioBased(clampRatio(ingestRatio)),
		other:   sdktrace.TraceIDRatioBased(clampRatio(ratio)),
		ingestN: IngestSpanName,
		httpN:   HTTPSpanName("POST", IngestRoute),
	}
}

func (s *ingestSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if p.Name == s.ingestN || p.Name == s.httpN {
		return s.ingest.ShouldSample(p)
	}
	return s.other.ShouldSample(p)
}

func (s *ingestSampler) Description() string {
	return fmt.Sprintf("IngestSampler{ingest=%s,other=%s}", s.ingest.Description(), s.other.Description())
}

func clampRatio(r float64) float64 {
	if r <= 0 || r > 1 {
		return 1
	}
	return r
}
