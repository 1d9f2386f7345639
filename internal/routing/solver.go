package routing

import (
	"context"
	"time"
)

// Solver sends a model to a route-optimization provider. Implementations
// return an *OptimizationError for authentication, transport and parse
// failures so callers can tell them apart.
type Solver interface {
	Optimize(ctx context.Context, m *Model) (*Solution, error)
}

// TimeWindow bounds when a visit may start
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// VisitRequest is one side of a shipment
type VisitRequest struct {
	Location LatLng
	Dwell    time.Duration
	Window   *TimeWindow
}

// Shipment pairs a restaurant pickup with a customer drop. Shipment i of a
// model always corresponds to delivery i of the run.
type Shipment struct {
	Label      string
	Pickup     VisitRequest
	Delivery   VisitRequest
	LoadDemand int
}

// Vehicle is one driver slot. MaxLoad is nil when load is unconstrained.
type Vehicle struct {
	Label            string
	Start            LatLng
	End              LatLng
	MaxLoad          *int
	CostPerKilometer float64
	CostPerHour      float64
	FixedCost        float64
}

// Model is the solver-agnostic optimization request
type Model struct {
	Shipments   []Shipment
	Vehicles    []Vehicle
	GlobalStart time.Time
	GlobalEnd   time.Time
	LoadType    string
	Timeout     time.Duration
}

// Visit is a stop reported by the solver. HasShipmentIndex is false when the
// provider only echoed the label.
type Visit struct {
	ShipmentIndex    int
	HasShipmentIndex bool
	ShipmentLabel    string
	IsPickup         bool
	StartTime        time.Time
}

// RouteMetrics are the solver's own aggregates for a vehicle
type RouteMetrics struct {
	PerformedShipmentCount int
	TravelDistanceMeters   float64
	TotalDuration          time.Duration
	TravelDuration         time.Duration
	VisitDuration          time.Duration
}

// VehicleRoute is the visit sequence for one vehicle
type VehicleRoute struct {
	VehicleIndex int
	VehicleLabel string
	Visits       []Visit
	Metrics      RouteMetrics
}

// Solution is the solver's answer
type Solution struct {
	Routes           []VehicleRoute
	SkippedShipments []int
}
