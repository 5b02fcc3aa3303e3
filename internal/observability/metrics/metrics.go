package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments for the ledgers.
type Metrics struct {
	agentRegistrations metric.Int64Counter
	submissions        metric.Int64Counter
	rejections         metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tributary"
	}
	meter := provider.Meter(name)

	agentRegistrations, err := meter.Int64Counter("tributary_agent_registrations_total")
	if err != nil {
		return nil, err
	}
	submissions, err := meter.Int64Counter("tributary_submissions_total")
	if err != nil {
		return nil, err
	}
	rejections, err := meter.Int64Counter("tributary_submission_rejections_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		agentRegistrations: agentRegistrations,
		submissions:        submissions,
		rejections:         rejections,
	}, nil
}

// RecordAgentRegistration increments the agent registration count.
func (m *Metrics) RecordAgentRegistration(ctx context.Context) {
	if m == nil {
		return
	}
	m.agentRegistrations.Add(ctx, 1)
}

// RecordSubmission counts committed entities per ledger.
func (m *Metrics) RecordSubmission(ctx context.Context, ledger string, count int64) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, count, metric.WithAttributes(
		attribute.String("ledger", ledger),
	))
}

// RecordRejection counts rejected submissions by error kind.
func (m *Metrics) RecordRejection(ctx context.Context, ledger, reason string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ledger", ledger),
		attribute.String("reason", reason),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
