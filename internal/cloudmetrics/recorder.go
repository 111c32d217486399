package cloudmetrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder accumulates the anonymized usage counters a hosted install
// reports home. Services call the package-level functions; a noop
// recorder absorbs them until cloud reporting is registered.
type Recorder interface {
	RecordLedgerEntry(orgID string)
	RecordContribution(orgID string)
	RecordApprovalCascade(orgID string)
	SetOrganizationsTotal(count int64)
	SetMemoryUsage(bytes uint64)
}

type metrics struct {
	ledgerEntries    *prometheus.CounterVec
	contributions    *prometheus.CounterVec
	approvalCascades *prometheus.CounterVec
	organizations    prometheus.Gauge
	memoryBytes      prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolfund_cloud_ledger_entries_total",
			Help: "Ledger entries appended, by organization.",
		}, []string{"org"}),
		contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolfund_cloud_contributions_total",
			Help: "Monthly contribution records created, by organization.",
		}, []string{"org"}),
		approvalCascades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolfund_cloud_approval_cascades_total",
			Help: "Approval cascades processed, by organization.",
		}, []string{"org"}),
		organizations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poolfund_cloud_organizations",
			Help: "Organizations present in this install.",
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poolfund_cloud_memory_bytes",
			Help: "Memory obtained from the OS.",
		}),
	}
	registry.MustRegister(m.ledgerEntries, m.contributions, m.approvalCascades, m.organizations, m.memoryBytes)
	return m
}

type recorder struct {
	metrics      *metrics
	defaultOrgID string
}

func (r *recorder) RecordLedgerEntry(orgID string) {
	r.metrics.ledgerEntries.WithLabelValues(r.org(orgID)).Inc()
}

func (r *recorder) RecordContribution(orgID string) {
	r.metrics.contributions.WithLabelValues(r.org(orgID)).Inc()
}

func (r *recorder) RecordApprovalCascade(orgID string) {
	r.metrics.approvalCascades.WithLabelValues(r.org(orgID)).Inc()
}

func (r *recorder) SetOrganizationsTotal(count int64) {
	r.metrics.organizations.Set(float64(count))
}

func (r *recorder) SetMemoryUsage(bytes uint64) {
	r.metrics.memoryBytes.Set(float64(bytes))
}

func (r *recorder) org(orgID string) string {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return strings.TrimSpace(r.defaultOrgID)
	}
	return orgID
}

type noopRecorder struct{}

func (noopRecorder) RecordLedgerEntry(string)     {}
func (noopRecorder) RecordContribution(string)    {}
func (noopRecorder) RecordApprovalCascade(string) {}
func (noopRecorder) SetOrganizationsTotal(int64)  {}
func (noopRecorder) SetMemoryUsage(uint64)        {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func current() Recorder {
	recorderMu.RLock()
	defer recorderMu.RUnlock()
	return activeRecorder
}

func RecordLedgerEntry(orgID string) { current().RecordLedgerEntry(orgID) }

func RecordContribution(orgID string) { current().RecordContribution(orgID) }

func RecordApprovalCascade(orgID string) { current().RecordApprovalCascade(orgID) }
