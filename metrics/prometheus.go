package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"foammonitor/functionobject"
	"foammonitor/solver"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PrometheusExporter publishes run metrics on its own registry. Every
// observation is also forwarded to the wrapped collector when one is set.
type PrometheusExporter struct {
	registry *prometheus.Registry
	next     MetricsCollector

	functionValue *prometheus.GaugeVec
	executions    *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	stepDuration  prometheus.Histogram
	simTime       prometheus.Gauge
	timeIndex     prometheus.Gauge
}

var (
	_ functionobject.Observer = (*PrometheusExporter)(nil)
	_ solver.StepObserver     = (*PrometheusExporter)(nil)
	_ solver.SampleSink       = (*PrometheusExporter)(nil)
)

// NewPrometheusExporter registers the foammonitor series. next may be nil.
func NewPrometheusExporter(next MetricsCollector) *PrometheusExporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusExporter{
		registry: reg,
		next:     next,
		functionValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "foammonitor_function_value",
				Help: "Latest result of a function object",
			},
			[]string{"object", "result"},
		),
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foammonitor_function_executions_total",
				Help: "Function object phases by object, phase and status",
			},
			[]string{"object", "phase", "status"},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foammonitor_function_phase_duration_seconds",
				Help:    "Function object phase duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"object", "phase"},
		),
		stepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "foammonitor_step_duration_seconds",
				Help:    "Wall-clock duration of one time step in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		simTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "foammonitor_simulation_time",
				Help: "Simulation time of the last completed step",
			},
		),
		timeIndex: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "foammonitor_time_index",
				Help: "Index of the last completed step",
			},
		),
	}
}

// Registry returns the registry holding the foammonitor series.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

// ObservePhase counts a function object phase.
func (e *PrometheusExporter) ObservePhase(object, phase string, simTime float64, d time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	e.executions.WithLabelValues(object, phase, status).Inc()
	e.phaseDuration.WithLabelValues(object, phase).Observe(d.Seconds())
	if e.next != nil {
		e.next.ObservePhase(object, phase, simTime, d, err)
	}
}

// ObserveStep records the step duration and position.
func (e *PrometheusExporter) ObserveStep(index int, simTime float64, d time.Duration, err error) {
	e.stepDuration.Observe(d.Seconds())
	if err == nil {
		e.simTime.Set(simTime)
		e.timeIndex.Set(float64(index))
	}
	if e.next != nil {
		e.next.ObserveStep(index, simTime, d, err)
	}
}

// RecordSample publishes the latest function object results. Keys are
// "object/result".
func (e *PrometheusExporter) RecordSample(_ context.Context, s solver.Sample) error {
	for key, v := range s.Values {
		object, result, _ := strings.Cut(key, "/")
		e.functionValue.WithLabelValues(object, result).Set(v)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is done.
func (e *PrometheusExporter) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics endpoint listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Metrics endpoint stopped")
		return nil
	}
}
