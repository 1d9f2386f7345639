package routing

// Summary holds run-level totals
type Summary struct {
	TotalDeliveries      int     `json:"total_deliveries"`
	TotalItems           int     `json:"total_items"`
	TotalRevenue         float64 `json:"total_revenue"`
	AssignedCount        int     `json:"assigned_count"`
	AssignedItems        int     `json:"assigned_items"`
	UnassignedCount      int     `json:"unassigned_count"`
	UnassignedItems      int     `json:"unassigned_items"`
	ActiveDrivers        int     `json:"active_drivers"`
	RequestedDrivers     int     `json:"requested_drivers"`
	TotalDistanceMiles   float64 `json:"total_distance_miles"`
	TotalDurationSeconds int64   `json:"total_duration_seconds"`
	AverageStopsPerRoute float64 `json:"average_stops_per_route"`
}

// Summarize aggregates route statistics for an outcome
func Summarize(deliveries []Delivery, routes []Route, unassigned []Delivery, requestedDrivers int) Summary {
	s := Summary{
		TotalDeliveries:  len(deliveries),
		UnassignedCount:  len(unassigned),
		RequestedDrivers: requestedDrivers,
	}
	for _, d := range deliveries {
		s.TotalItems += d.ItemCount
		s.TotalRevenue += d.Amount
	}
	for _, d := range unassigned {
		s.UnassignedItems += d.ItemCount
	}

	drivers := make(map[int]struct{}, len(routes))
	for _, r := range routes {
		s.AssignedCount += len(r.Stops)
		s.AssignedItems += r.ItemCount
		s.TotalDistanceMiles += r.DistanceMiles
		s.TotalDurationSeconds += r.DurationSeconds
		drivers[r.VehicleIndex] = struct{}{}
	}
	s.ActiveDrivers = len(drivers)
	s.TotalRevenue = round2(s.TotalRevenue)
	s.TotalDistanceMiles = round2(s.TotalDistanceMiles)
	if len(routes) > 0 {
		s.AverageStopsPerRoute = round2(float64(s.AssignedCount) / float64(len(routes)))
	}
	return s
}
