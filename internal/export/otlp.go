package export

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials"

	"sysotel-agent/internal/model"
)

// OTLPOptions configures the gRPC connection to the collector endpoint.
type OTLPOptions struct {
	Endpoint string
	Insecure bool
	Headers  map[string]string
	TLS      *tls.Config
	Timeout  time.Duration
}

// resourceKeys are label keys promoted off the data points because they are
// already carried by the client's resource.
var resourceKeys = map[string]bool{
	"host.name":           true,
	"service.instance.id": true,
	"container.id":        true,
}

// OTLPClient converts samples into OTLP metric data and pushes them over
// gRPC. Gauges map to OTLP gauges; counters map to cumulative monotonic
// sums with the process start as their start time.
type OTLPClient struct {
	exporter  *otlpmetricgrpc.Exporter
	res       *resource.Resource
	scope     instrumentation.Scope
	startTime time.Time
}

func NewOTLPClient(ctx context.Context, opts OTLPOptions, res *resource.Resource, scope instrumentation.Scope) (*OTLPClient, error) {
	grpcOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
	} else if opts.TLS != nil {
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(opts.TLS)))
	}
	if len(opts.Headers) > 0 {
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithHeaders(opts.Headers))
	}
	if opts.Timeout > 0 {
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithTimeout(opts.Timeout))
	}

	exporter, err := otlpmetricgrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	return &OTLPClient{
		exporter:  exporter,
		res:       res,
		scope:     scope,
		startTime: time.Now(),
	}, nil
}

func (c *OTLPClient) Export(ctx context.Context, samples []model.MetricSample) error {
	rm := &metricdata.ResourceMetrics{
		Resource: c.res,
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Scope:   c.scope,
			Metrics: c.buildMetrics(samples),
		}},
	}
	if err := c.exporter.Export(ctx, rm); err != nil {
		return fmt.Errorf("otlp export: %w", err)
	}
	return nil
}

func (c *OTLPClient) Shutdown(ctx context.Context) error {
	return c.exporter.Shutdown(ctx)
}

// buildMetrics groups samples by name; each group becomes one metric whose
// data points carry the per-sample label sets.
func (c *OTLPClient) buildMetrics(samples []model.MetricSample) []metricdata.Metrics {
	type group struct {
		first  model.MetricSample
		points []metricdata.DataPoint[float64]
	}
	groups := map[string]*group{}
	var order []string
	for _, s := range samples {
		g, ok := groups[s.Name]
		if !ok {
			g = &group{first: s}
			groups[s.Name] = g
			order = append(order, s.Name)
		}
		g.points = append(g.points, c.dataPoint(s))
	}
	sort.Strings(order)

	metrics := make([]metricdata.Metrics, 0, len(order))
	for _, name := range order {
		g := groups[name]
		m := metricdata.Metrics{
			Name:        name,
			Description: g.first.Help,
			Unit:        g.first.Unit,
		}
		if g.first.Kind == model.KindCounter {
			m.Data = metricdata.Sum[float64]{
				DataPoints:  g.points,
				Temporality: metricdata.CumulativeTemporality,
				IsMonotonic: true,
			}
		} else {
			m.Data = metricdata.Gauge[float64]{DataPoints: g.points}
		}
		metrics = append(metrics, m)
	}
	return metrics
}

func (c *OTLPClient) dataPoint(s model.MetricSample) metricdata.DataPoint[float64] {
	kvs := make([]attribute.KeyValue, 0, len(s.Labels))
	for k, v := range s.Labels {
		if resourceKeys[k] {
			continue
		}
		kvs = append(kvs, attribute.String(k, v))
	}
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return metricdata.DataPoint[float64]{
		Attributes: attribute.NewSet(kvs...),
		StartTime:  c.startTime,
		Time:       ts,
		Value:      s.Value,
	}
}
