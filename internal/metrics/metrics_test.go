package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

type stubSolver struct{ err error }

func (s stubSolver) Optimize(context.Context, *routing.Model) (*routing.Solution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &routing.Solution{}, nil
}

func TestStageObserverCountsResults(t *testing.T) {
	ok := testutil.ToFloat64(OptimizationRuns.WithLabelValues("ok"))
	failed := testutil.ToFloat64(OptimizationRuns.WithLabelValues(string(routing.FailureSolverRequest)))
	built := testutil.ToFloat64(OptimizationStages.WithLabelValues(string(routing.StageModelBuilt)))

	var obs StageObserver
	ctx := context.Background()
	obs.StageChanged(ctx, routing.StageEvent{Stage: routing.StageModelBuilt})
	obs.StageChanged(ctx, routing.StageEvent{Stage: routing.StageRoutesReconstructed})
	obs.StageChanged(ctx, routing.StageEvent{Stage: routing.StageSolverFailed, Failure: routing.FailureSolverRequest})

	assert.Equal(t, ok+1, testutil.ToFloat64(OptimizationRuns.WithLabelValues("ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(OptimizationRuns.WithLabelValues(string(routing.FailureSolverRequest))))
	assert.Equal(t, built+1, testutil.ToFloat64(OptimizationStages.WithLabelValues(string(routing.StageModelBuilt))))
}

func TestInstrumentSolver(t *testing.T) {
	before := testutil.CollectAndCount(SolverDuration)

	_, err := InstrumentSolver(stubSolver{}).Optimize(context.Background(), &routing.Model{})
	require.NoError(t, err)

	authErr := routing.NewAuthenticationError(errors.New("expired"))
	_, err = InstrumentSolver(stubSolver{err: authErr}).Optimize(context.Background(), &routing.Model{})
	assert.ErrorIs(t, err, routing.ErrAuthentication)

	_, err = InstrumentSolver(stubSolver{err: errors.New("plain")}).Optimize(context.Background(), &routing.Model{})
	assert.Error(t, err)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(SolverDuration), before)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(SolverDuration), 3)
}

func TestMiddlewareAndHandler(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", Handler())

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/items/{id}", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/items/{id}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}
