// Package metrics records pipeline run metrics on a private Prometheus
// registry and exports them to a node-exporter textfile or a Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const namespace = "salesflow"

// Silver row outcomes.
const (
	OutcomeGood = "good"
	OutcomeBad  = "bad"
)

// Recorder holds the run metrics.
type Recorder struct {
	registry      *prometheus.Registry
	silverRows    *prometheus.CounterVec
	quarantine    *prometheus.CounterVec
	goldRows      prometheus.Gauge
	checkStatus   *prometheus.GaugeVec
	stageDuration *prometheus.GaugeVec
}

// New creates a Recorder with its metrics registered on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		silverRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "silver_rows_total",
			Help:      "Raw rows classified by the silver stage, by outcome.",
		}, []string{"outcome"}),
		quarantine: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quarantine_reasons_total",
			Help:      "Quarantined rows by violated rule.",
		}, []string{"reason"}),
		goldRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gold_rows",
			Help:      "Rows in the gold fact table after the merge.",
		}),
		checkStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_check_status",
			Help:      "Audit check outcome: 0 pass, 1 warn, 2 fail.",
		}, []string{"check"}),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last run of each pipeline stage.",
		}, []string{"stage"}),
	}

	r.registry.MustRegister(r.silverRows, r.quarantine, r.goldRows, r.checkStatus, r.stageDuration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSilver adds silver outcome and quarantine reason counts.
func (r *Recorder) ObserveSilver(good, bad int, reasons map[string]int) {
	r.silverRows.WithLabelValues(OutcomeGood).Add(float64(good))
	r.silverRows.WithLabelValues(OutcomeBad).Add(float64(bad))
	for reason, n := range reasons {
		r.quarantine.WithLabelValues(reason).Add(float64(n))
	}
}

// SetGoldRows records the fact table size.
func (r *Recorder) SetGoldRows(n int) {
	r.goldRows.Set(float64(n))
}

// SetCheckStatus records one audit check outcome.
func (r *Recorder) SetCheckStatus(check string, status int) {
	r.checkStatus.WithLabelValues(check).Set(float64(status))
}

// ObserveStage records the duration of a stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// Export writes the textfile and pushes to the gateway, each only when
// configured.
func (r *Recorder) Export(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	logger = logger.With(zap.String("system", "metrics"))

	if cfg.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Textfile, r.registry); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
		logger.Debug("metrics textfile written", zap.String("path", cfg.Textfile))
	}

	if cfg.PushgatewayURL != "" {
		pusher := push.New(cfg.PushgatewayURL, cfg.Job).Gatherer(r.registry)
		if err := pusher.PushContext(ctx); err != nil {
			return fmt.Errorf("push metrics: %w", err)
		}
		logger.Debug("metrics pushed", zap.String("url", cfg.PushgatewayURL), zap.String("job", cfg.Job))
	}
	return nil
}
