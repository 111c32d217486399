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

// Metrics exposes application-level instruments.
type Metrics struct {
	ledgerEntries        metric.Int64Counter
	approvalCascades     metric.Int64Counter
	contributionRecords  metric.Int64Counter
	concurrencyConflicts metric.Int64Counter
	scopeViolations      metric.Int64Counter
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
		name = "poolfund"
	}
	meter := provider.Meter(name)

	ledgerEntries, err := meter.Int64Counter("poolfund_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	approvalCascades, err := meter.Int64Counter("poolfund_approval_cascades_total")
	if err != nil {
		return nil, err
	}
	contributionRecords, err := meter.Int64Counter("poolfund_contribution_records_total")
	if err != nil {
		return nil, err
	}
	concurrencyConflicts, err := meter.Int64Counter("poolfund_concurrency_conflicts_total")
	if err != nil {
		return nil, err
	}
	scopeViolations, err := meter.Int64Counter("poolfund_scope_violations_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerEntries:        ledgerEntries,
		approvalCascades:     approvalCascades,
		contributionRecords:  contributionRecords,
		concurrencyConflicts: concurrencyConflicts,
		scopeViolations:      scopeViolations,
	}, nil
}

// RecordLedgerEntry increments appended ledger entry counts.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("entry_kind", strings.TrimSpace(kind)))
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordApprovalCascade increments approval cascade counts by outcome.
func (m *Metrics) RecordApprovalCascade(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.approvalCascades.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordContributionRecord increments created contribution record counts.
func (m *Metrics) RecordContributionRecord(ctx context.Context, month string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("month", strings.TrimSpace(month)))
	m.contributionRecords.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConcurrencyConflict increments rejected running-total writes.
func (m *Metrics) RecordConcurrencyConflict(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.concurrencyConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordScopeViolation increments rejected cross-tenant reads.
func (m *Metrics) RecordScopeViolation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.scopeViolations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":      {},
	"endpoint":    {},
	"status_code": {},
	"entry_kind":  {},
	"outcome":     {},
	"operation":   {},
	"month":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
