package routing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage is a step of an optimization run
type Stage string

const (
	StageIdle                Stage = "idle"
	StageDemandLoaded        Stage = "demand_loaded"
	StageModelBuilt          Stage = "model_built"
	StageSolverCalled        Stage = "solver_called"
	StageRoutesReconstructed Stage = "routes_reconstructed"
	StageSolverFailed        Stage = "solver_failed"
)

// Terminal reports whether no further stage follows
func (s Stage) Terminal() bool {
	return s == StageRoutesReconstructed || s == StageSolverFailed
}

// StageEvent describes one transition of a run
type StageEvent struct {
	RunID   string      `json:"run_id"`
	Date    string      `json:"date"`
	Stage   Stage       `json:"stage"`
	Message string      `json:"message,omitempty"`
	Failure FailureKind `json:"failure,omitempty"`
	At      time.Time   `json:"at"`
}

// StageObserver receives run transitions. Implementations must not block.
type StageObserver interface {
	StageChanged(ctx context.Context, ev StageEvent)
}

// DemandPreview is the demand for a date without a solver call
type DemandPreview struct {
	Date       string     `json:"date"`
	TimeSlot   string     `json:"time_slot,omitempty"`
	Deliveries []Delivery `json:"deliveries"`
	Warnings   []Warning  `json:"warnings"`
	TotalItems int        `json:"total_items"`
	Capacity   Capacity   `json:"capacity"`
}

// Optimizer drives the assignment pipeline. It holds no per-run state, so one
// instance serves concurrent runs.
type Optimizer struct {
	store     DataStore
	solver    Solver
	settings  Settings
	logger    *zap.Logger
	observers []StageObserver

	// NewRand seeds the per-run jitter source. Tests replace it for determinism.
	NewRand func() *rand.Rand
	now     func() time.Time
}

// NewOptimizer wires the pipeline together
func NewOptimizer(store DataStore, solver Solver, settings Settings, logger *zap.Logger, observers ...StageObserver) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Optimizer{
		store:     store,
		solver:    solver,
		settings:  settings,
		logger:    logger,
		observers: observers,
		NewRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		now: time.Now,
	}
}

// Settings returns the optimizer's configuration
func (o *Optimizer) Settings() Settings {
	return o.settings
}

func (o *Optimizer) geo() *GeoResolver {
	return NewGeoResolver(o.settings.Zones, o.settings.Restaurant, o.NewRand())
}

func (o *Optimizer) aggregator() *DemandAggregator {
	return NewDemandAggregator(o.store, o.settings.PerItemPrice, o.logger)
}

// Preview loads and geocodes the demand for a date and sizes the capacity
// plan for drivers, without calling the solver.
func (o *Optimizer) Preview(ctx context.Context, p Params) (*DemandPreview, error) {
	p = p.Clamp(o.settings.Bounds)
	date, err := ParseDate(p.Date, o.settings.Location)
	if err != nil {
		return nil, err
	}
	demand := o.aggregator().Aggregate(ctx, date, p.TimeSlot, o.geo())
	total := demand.TotalItems()
	return &DemandPreview{
		Date:       p.Date,
		TimeSlot:   p.TimeSlot,
		Deliveries: demand.Deliveries,
		Warnings:   nonNilWarnings(demand.Warnings),
		TotalItems: total,
		Capacity:   PlanCapacity(total, p.Drivers, p.CapacityBuffer),
	}, nil
}

// Run executes one optimization. A run with no deliveries returns an empty
// outcome without calling the solver. Solver failures return an
// *OptimizationError and no outcome.
func (o *Optimizer) Run(ctx context.Context, p Params) (*Outcome, error) {
	p = p.Clamp(o.settings.Bounds)
	date, err := ParseDate(p.Date, o.settings.Location)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID), zap.String("date", p.Date))
	emit := func(stage Stage, msg string, kind FailureKind) {
		log.Info("optimization stage", zap.String("stage", string(stage)), zap.String("detail", msg))
		ev := StageEvent{RunID: runID, Date: p.Date, Stage: stage, Message: msg, Failure: kind, At: o.now()}
		for _, obs := range o.observers {
			obs.StageChanged(ctx, ev)
		}
	}
	emit(StageIdle, fmt.Sprintf("%d drivers requested", p.Drivers), "")

	demand := o.aggregator().Aggregate(ctx, date, p.TimeSlot, o.geo())
	outcome := &Outcome{
		RunID:      runID,
		Date:       p.Date,
		TimeSlot:   p.TimeSlot,
		Routes:     []Route{},
		Unassigned: []Delivery{},
		Warnings:   nonNilWarnings(demand.Warnings),
	}
	emit(StageDemandLoaded, fmt.Sprintf("%d deliveries, %d items", len(demand.Deliveries), demand.TotalItems()), "")

	if len(demand.Deliveries) == 0 {
		outcome.Summary = Summarize(nil, nil, nil, p.Drivers)
		emit(StageRoutesReconstructed, "no deliveries", "")
		return outcome, nil
	}

	var limit *Capacity
	if p.ForceEqualDistribution {
		c := PlanCapacity(demand.TotalItems(), p.Drivers, p.CapacityBuffer)
		limit = &c
		outcome.Capacity = &c
	}

	model := BuildModel(demand.Deliveries, date, p, limit, o.settings)
	emit(StageModelBuilt, fmt.Sprintf("%d shipments, %d vehicles", len(model.Shipments), len(model.Vehicles)), "")

	solveCtx, cancel := context.WithTimeout(ctx, o.settings.SolverTimeout)
	defer cancel()

	emit(StageSolverCalled, "", "")
	sol, err := o.solver.Optimize(solveCtx, model)
	if err != nil {
		oerr := asOptimizationError(err)
		log.Warn("solver failed", zap.String("failure", string(oerr.Kind)), zap.Error(err))
		emit(StageSolverFailed, oerr.Error(), oerr.Kind)
		return nil, oerr
	}

	rec, err := Reconstruct(demand.Deliveries, sol, len(model.Vehicles), limit, o.settings.Restaurant)
	if err != nil {
		oerr := asOptimizationError(err)
		log.Warn("solver response rejected", zap.Error(err))
		emit(StageSolverFailed, oerr.Error(), oerr.Kind)
		return nil, oerr
	}

	outcome.Routes = rec.Routes
	outcome.Unassigned = rec.Unassigned
	outcome.Warnings = append(outcome.Warnings, rec.Warnings...)
	outcome.Summary = Summarize(demand.Deliveries, rec.Routes, rec.Unassigned, p.Drivers)

	emit(StageRoutesReconstructed, fmt.Sprintf("%d routes, %d unassigned", len(rec.Routes), len(rec.Unassigned)), "")
	return outcome, nil
}

// asOptimizationError classifies a solver error. Errors that are not already
// typed, including timeouts, count as request failures.
func asOptimizationError(err error) *OptimizationError {
	var oerr *OptimizationError
	if errors.As(err, &oerr) {
		return oerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewSolverRequestError(0, fmt.Errorf("solver timed out: %w", err))
	}
	return NewSolverRequestError(0, err)
}

func nonNilWarnings(w []Warning) []Warning {
	if w == nil {
		return []Warning{}
	}
	return w
}
