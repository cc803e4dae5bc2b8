package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CertificatesMinted      prometheus.Counter
	CertificatesTransferred prometheus.Counter
	CertificatesBurned      prometheus.Counter
	ScanSessionsStarted     prometheus.Counter
	ScanSessionsConsumed    prometheus.Counter
	ScanRejections          prometheus.Counter
	LedgerCallDuration      *prometheus.HistogramVec
	TransferConflicts       prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CertificatesMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_certificates_minted_total",
			Help: "Total number of certificates minted",
		}),
		CertificatesTransferred: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_certificates_transferred_total",
			Help: "Total number of successful ownership transfers",
		}),
		CertificatesBurned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_certificates_burned_total",
			Help: "Total number of certificates burned",
		}),
		ScanSessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_scan_sessions_started_total",
			Help: "Total number of verification sessions opened by a passing product scan",
		}),
		ScanSessionsConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_scan_sessions_consumed_total",
			Help: "Total number of verification sessions consumed by the certificate phase",
		}),
		ScanRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_scan_rejections_total",
			Help: "Total number of scans rejected below the acceptance threshold",
		}),
		LedgerCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veritag_ledger_call_duration_seconds",
			Help:    "Latency of ledger collaborator calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		TransferConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_transfer_conflicts_total",
			Help: "Total number of transfers rejected because the certificate lock was held",
		}),
	}
}
