package routing

import "time"

// LatLng is a geographic coordinate in decimal degrees
type LatLng struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Delivery is one customer drop for the requested date, built fresh per run
type Delivery struct {
	ID               string   `json:"id"`
	CustomerName     string   `json:"customer_name"`
	Address          string   `json:"address"`
	PostalCode       string   `json:"postal_code"`
	Phone            string   `json:"phone,omitempty"`
	ItemCount        int      `json:"item_count"`
	Amount           float64  `json:"amount"`
	TimeSlot         *string  `json:"time_slot,omitempty"`
	AssignedDriverID *string  `json:"assigned_driver_id,omitempty"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	GeocodeFallback  bool     `json:"geocode_fallback"`
}

// Location returns the resolved coordinates. ok is false until the delivery is geocoded.
func (d Delivery) Location() (LatLng, bool) {
	if d.Latitude == nil || d.Longitude == nil {
		return LatLng{}, false
	}
	return LatLng{Latitude: *d.Latitude, Longitude: *d.Longitude}, true
}

// Stop is a delivery placed on a route
type Stop struct {
	Sequence                  int        `json:"sequence"`
	Delivery                  Delivery   `json:"delivery"`
	DistanceFromPreviousMiles float64    `json:"distance_from_previous_miles"`
	ArrivalTime               *time.Time `json:"arrival_time,omitempty"`
}

// Route is the ordered stop list for one driver
type Route struct {
	VehicleIndex        int     `json:"vehicle_index"`
	DriverLabel         string  `json:"driver_label"`
	Stops               []Stop  `json:"stops"`
	StopCount           int     `json:"stop_count"`
	ItemCount           int     `json:"item_count"`
	DistanceMiles       float64 `json:"distance_miles"`
	SolverDistanceMiles float64 `json:"solver_distance_miles"`
	DurationSeconds     int64   `json:"duration_seconds"`
	TravelSeconds       int64   `json:"travel_seconds"`
	VisitSeconds        int64   `json:"visit_seconds"`
	MaxLoad             *int    `json:"max_load,omitempty"`
}

// Outcome is the result of one optimization run
type Outcome struct {
	RunID      string     `json:"run_id"`
	Date       string     `json:"date"`
	TimeSlot   string     `json:"time_slot,omitempty"`
	Routes     []Route    `json:"routes"`
	Unassigned []Delivery `json:"unassigned"`
	Warnings   []Warning  `json:"warnings"`
	Capacity   *Capacity  `json:"capacity,omitempty"`
	Summary    Summary    `json:"summary"`
}
