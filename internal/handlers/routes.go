package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
	"github.com/werawoot/Krua-Thai1-sub006/pkg/utils"
)

// OptimizeRequest is the body of POST /api/manager/routes/optimize. Omitted
// fields keep the configured defaults.
type OptimizeRequest struct {
	routing.Params
	NotifyDrivers bool `json:"notify_drivers"`
}

// PreviewDemand returns the deliveries and capacity plan for a date without
// calling the solver
func PreviewDemand(opt *routing.Optimizer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p := opt.Settings().Defaults
		p.Date = q.Get("date")
		p.TimeSlot = q.Get("time_slot")

		if v := q.Get("drivers"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				utils.RespondFailure(w, http.StatusBadRequest, "invalid_params", "drivers must be an integer")
				return
			}
			p.Drivers = n
		}
		if v := q.Get("capacity_buffer"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				utils.RespondFailure(w, http.StatusBadRequest, "invalid_params", "capacity_buffer must be an integer")
				return
			}
			p.CapacityBuffer = n
		}

		preview, err := opt.Preview(r.Context(), p)
		if err != nil {
			respondOptimizationError(w, err, logger)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, preview)
	}
}

// OptimizeRoutes runs the assignment pipeline for a date. Terminal solver
// failures return 502 with the failure kind in "category"; an outcome with
// unassigned deliveries is still a success.
func OptimizeRoutes(opt *routing.Optimizer, notifier RoutesReadyNotifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := OptimizeRequest{Params: opt.Settings().Defaults}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondFailure(w, http.StatusBadRequest, "invalid_params", "Invalid request body")
			return
		}

		outcome, err := opt.Run(r.Context(), req.Params)
		if err != nil {
			respondOptimizationError(w, err, logger)
			return
		}

		if req.NotifyDrivers && len(outcome.Routes) > 0 {
			notifyDrivers(r, notifier, outcome, logger)
		}

		utils.RespondSuccess(w, http.StatusOK, outcome)
	}
}

// notifyDrivers is best effort; failures are recorded on the outcome
func notifyDrivers(r *http.Request, notifier RoutesReadyNotifier, outcome *routing.Outcome, logger *zap.Logger) {
	if notifier == nil {
		outcome.Warnings = append(outcome.Warnings, routing.Warning{
			Code:    routing.WarningNotificationFailed,
			Message: "push notifications are not configured",
		})
		return
	}
	if err := notifier.NotifyRoutesReady(r.Context(), outcome); err != nil {
		logger.Warn("routes ready notification failed", zap.String("run_id", outcome.RunID), zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, routing.Warning{
			Code:    routing.WarningNotificationFailed,
			Message: fmt.Sprintf("could not notify drivers: %v", err),
		})
	}
}

func respondOptimizationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var oerr *routing.OptimizationError
	switch {
	case errors.Is(err, routing.ErrInvalidParams):
		utils.RespondFailure(w, http.StatusBadRequest, "invalid_params", err.Error())
	case errors.As(err, &oerr):
		utils.RespondFailure(w, http.StatusBadGateway, string(oerr.Kind), oerr.Error())
	default:
		logger.Error("route optimization failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Route optimization failed")
	}
}
