// Package observe provides application-wide observability primitives for
// aibridge: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// for Prometheus by [InitProvider]. Tests should build their own [Metrics]
// with [NewMetrics] on a manual reader instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all aibridge metrics.
const meterName = "github.com/MrWong99/aibridge"

// Operation kinds used as the "kind" attribute on provider metrics.
const (
	KindChat        = "chat"
	KindEmbeddings  = "embeddings"
	KindVision      = "vision"
	KindVectorStore = "vectorstore"
)

// Outcome attribute values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the gateway's instruments. The zero value is not usable;
// build one with [NewMetrics].
type Metrics struct {
	// ProviderDuration is the latency of one provider call, streaming
	// included. Attributes: provider, kind, outcome.
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts provider calls. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// Tokens counts tokens reported by providers. Attributes: provider,
	// direction ("prompt" or "completion").
	Tokens metric.Int64Counter

	// EmbeddedTexts counts texts sent for embedding. Attribute: provider.
	EmbeddedTexts metric.Int64Counter

	// VectorStoreDuration is the latency of store operations. Attributes:
	// op, outcome.
	VectorStoreDuration metric.Float64Histogram

	// ActiveStreams is the number of open streaming completions.
	ActiveStreams metric.Int64UpDownCounter

	// HTTPRequestDuration is the gateway request latency. Attributes:
	// method, path (the route pattern), status.
	HTTPRequestDuration metric.Float64Histogram
}

// Bucket boundaries in seconds. Model calls range from milliseconds for a
// local embedding to a minute for a long completion; store operations are
// usually sub-second.
var (
	providerBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	storeBuckets    = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
)

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.ProviderDuration, err = m.Float64Histogram("aibridge.provider.duration",
		metric.WithDescription("Latency of provider calls by provider, kind and outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(providerBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("aibridge.provider.requests",
		metric.WithDescription("Provider calls by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("aibridge.provider.errors",
		metric.WithDescription("Failed provider calls by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Tokens, err = m.Int64Counter("aibridge.provider.tokens",
		metric.WithDescription("Tokens reported by providers, split by direction."),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}
	if met.EmbeddedTexts, err = m.Int64Counter("aibridge.embeddings.texts",
		metric.WithDescription("Texts sent for embedding."),
	); err != nil {
		return nil, err
	}
	if met.VectorStoreDuration, err = m.Float64Histogram("aibridge.vectorstore.duration",
		metric.WithDescription("Latency of vector store operations by op and outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(storeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("aibridge.active_streams",
		metric.WithDescription("Open streaming completions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("aibridge.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] on the global meter
// provider. It panics if the instruments cannot be created.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// RecordCall records one provider call of kind that began at start.
func (m *Metrics) RecordCall(ctx context.Context, provider, kind string, start time.Time, err error) {
	out := outcome(err)
	m.ProviderDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		Attr("provider", provider), Attr("kind", kind), Attr("outcome", out),
	))
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider), Attr("kind", kind), Attr("status", out),
	))
	if err != nil {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
	}
}

// RecordTokens adds the usage a provider reported. Non-positive counts are
// skipped since many providers omit usage.
func (m *Metrics) RecordTokens(ctx context.Context, provider string, prompt, completion int) {
	if prompt > 0 {
		m.Tokens.Add(ctx, int64(prompt), metric.WithAttributes(Attr("provider", provider), Attr("direction", "prompt")))
	}
	if completion > 0 {
		m.Tokens.Add(ctx, int64(completion), metric.WithAttributes(Attr("provider", provider), Attr("direction", "completion")))
	}
}

// RecordEmbedded counts n texts sent to provider for embedding.
func (m *Metrics) RecordEmbedded(ctx context.Context, provider string, n int) {
	m.EmbeddedTexts.Add(ctx, int64(n), metric.WithAttributes(Attr("provider", provider)))
}

// TrackStream marks a streaming completion as open. Call the returned
// function exactly once when the stream ends.
func (m *Metrics) TrackStream(ctx context.Context) (done func()) {
	m.ActiveStreams.Add(ctx, 1)
	var once sync.Once
	return func() {
		once.Do(func() { m.ActiveStreams.Add(context.WithoutCancel(ctx), -1) })
	}
}

// TimeVectorStoreOp starts timing op. The returned function records the
// latency with the outcome of err.
func (m *Metrics) TimeVectorStoreOp(ctx context.Context, op string) func(err error) {
	start := time.Now()
	return func(err error) {
		m.VectorStoreDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			Attr("op", op), Attr("outcome", outcome(err)),
		))
	}
}
