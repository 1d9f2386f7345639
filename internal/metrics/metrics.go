package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route pattern and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OptimizationStages counts pipeline transitions by stage
	OptimizationStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_optimization_stages_total", Help: "Optimization run transitions by stage."},
		[]string{"stage"},
	)
	// OptimizationRuns counts finished runs by result, "ok" or a failure kind
	OptimizationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_optimization_runs_total", Help: "Finished optimization runs by result."},
		[]string{"result"},
	)
	// SolverDuration records solver call latency in seconds
	SolverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "route_solver_duration_seconds", Help: "Route solver call duration in seconds.", Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60}},
		[]string{"result"},
	)
)

var regOnce sync.Once

// RegisterDefault registers the collectors on Registry once
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OptimizationStages)
		Registry.MustRegister(OptimizationRuns)
		Registry.MustRegister(SolverDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by chi route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{"method": r.Method, "path": path, "status": strconv.Itoa(status)}
		HTTPRequests.With(labels).Inc()
		HTTPDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

// StageObserver counts optimization transitions and terminal results
type StageObserver struct{}

// StageChanged implements routing.StageObserver
func (StageObserver) StageChanged(_ context.Context, ev routing.StageEvent) {
	OptimizationStages.WithLabelValues(string(ev.Stage)).Inc()
	switch ev.Stage {
	case routing.StageSolverFailed:
		OptimizationRuns.WithLabelValues(string(ev.Failure)).Inc()
	case routing.StageRoutesReconstructed:
		OptimizationRuns.WithLabelValues("ok").Inc()
	}
}

// InstrumentSolver times every call to s
func InstrumentSolver(s routing.Solver) routing.Solver {
	return instrumentedSolver{next: s}
}

type instrumentedSolver struct {
	next routing.Solver
}

func (i instrumentedSolver) Optimize(ctx context.Context, m *routing.Model) (*routing.Solution, error) {
	start := time.Now()
	sol, err := i.next.Optimize(ctx, m)
	result := "ok"
	if err != nil {
		result = string(routing.FailureKindOf(err))
		if result == "" {
			result = "error"
		}
	}
	SolverDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return sol, err
}
