package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_stage_duration_seconds",
			Help:    "Duration of recommendation pipeline stages in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"}, // intent, catalog, trend, match, present, store
	)

	StageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_stage_retries_total",
			Help: "Total number of retried stage attempts",
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_stage_failures_total",
			Help: "Total number of stages that failed after exhausting retries",
		},
		[]string{"stage"},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_recommendations_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"}, // success, invalid, insufficient, failed
	)

	RecommendationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reel_recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
	)

	OverBudget = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_over_budget_total",
			Help: "Total number of recommendations that exceeded the soft time budget",
		},
	)

	CandidatesEvaluated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reel_candidates_evaluated",
			Help:    "Number of candidates scored per recommendation",
			Buckets: []float64{0, 5, 10, 20, 30, 50, 100},
		},
	)

	// Trend metrics
	TrendCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_trend_cache_total",
			Help: "Trend boost cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	TrendFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_trend_fetch_errors_total",
			Help: "Total number of trend source fetch failures",
		},
		[]string{"source"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reel_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_circuit_breaker_requests_total",
			Help: "Requests passed through a circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	// Feedback metrics
	Feedback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_feedback_total",
			Help: "Total number of recorded feedback events by interaction type",
		},
		[]string{"interaction"},
	)

	TrajectoryStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_trajectory_store_errors_total",
			Help: "Total number of trajectories the store failed to persist",
		},
	)
)

// ObserveStage records the duration of a pipeline stage.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
