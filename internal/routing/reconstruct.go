package routing

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const metersPerMile = 1609.344

type placement uint8

const (
	unplaced placement = iota
	routed
	overflowed
)

// Reconstruction is the solver solution mapped back onto deliveries
type Reconstruction struct {
	Routes     []Route
	Unassigned []Delivery
	Warnings   []Warning
}

// Reconstruct maps solver visits back to deliveries. Visits resolve by
// shipment index first and by customer-name label otherwise. When capacity is
// non-nil, a stop that would push its route over the ceiling is moved to the
// unassigned list. Routes with no stops are dropped. A shipment reported
// both skipped and routed makes the solution malformed; a route whose
// performed count disagrees with its visits only earns a warning.
func Reconstruct(deliveries []Delivery, sol *Solution, vehicles int, capacity *Capacity, origin LatLng) (*Reconstruction, error) {
	if sol == nil {
		return nil, NewMalformedResponseError(errors.New("empty solution"))
	}

	state := make([]placement, len(deliveries))
	byLabel := make(map[string][]int)
	for i, d := range deliveries {
		byLabel[d.CustomerName] = append(byLabel[d.CustomerName], i)
	}

	resolve := func(v Visit) (int, error) {
		if v.HasShipmentIndex {
			if v.ShipmentIndex < 0 || v.ShipmentIndex >= len(deliveries) {
				return 0, fmt.Errorf("shipment index %d out of range [0,%d)", v.ShipmentIndex, len(deliveries))
			}
			return v.ShipmentIndex, nil
		}
		for _, i := range byLabel[v.ShipmentLabel] {
			if state[i] == unplaced {
				return i, nil
			}
		}
		return 0, fmt.Errorf("no unassigned delivery labelled %q", v.ShipmentLabel)
	}

	rec := &Reconstruction{Routes: []Route{}, Unassigned: []Delivery{}}
	seenVehicle := make(map[int]bool, len(sol.Routes))

	for _, vr := range sol.Routes {
		if vr.VehicleIndex < 0 || vr.VehicleIndex >= vehicles {
			return nil, NewMalformedResponseError(fmt.Errorf("vehicle index %d out of range [0,%d)", vr.VehicleIndex, vehicles))
		}
		if seenVehicle[vr.VehicleIndex] {
			return nil, NewMalformedResponseError(fmt.Errorf("vehicle %d has more than one route", vr.VehicleIndex))
		}
		seenVehicle[vr.VehicleIndex] = true

		route := Route{
			VehicleIndex:        vr.VehicleIndex,
			DriverLabel:         vr.VehicleLabel,
			Stops:               []Stop{},
			SolverDistanceMiles: round2(vr.Metrics.TravelDistanceMeters / metersPerMile),
			DurationSeconds:     int64(vr.Metrics.TotalDuration.Seconds()),
			TravelSeconds:       int64(vr.Metrics.TravelDuration.Seconds()),
			VisitSeconds:        int64(vr.Metrics.VisitDuration.Seconds()),
		}
		if route.DriverLabel == "" {
			route.DriverLabel = fmt.Sprintf("Driver %d", vr.VehicleIndex+1)
		}
		if capacity != nil {
			limit := capacity.Ceiling
			route.MaxLoad = &limit
		}

		prev := origin
		performed := 0
		for _, v := range vr.Visits {
			if v.IsPickup {
				continue
			}
			idx, err := resolve(v)
			if err != nil {
				return nil, NewMalformedResponseError(err)
			}
			if state[idx] != unplaced {
				return nil, NewMalformedResponseError(fmt.Errorf("delivery %s visited more than once", deliveries[idx].ID))
			}
			performed++

			d := deliveries[idx]
			if capacity != nil && route.ItemCount+d.ItemCount > capacity.Ceiling {
				state[idx] = overflowed
				rec.Warnings = append(rec.Warnings, Warning{
					Code:       WarningCapacityOverflow,
					DeliveryID: d.ID,
					Message: fmt.Sprintf("%s would carry %d items, over the %d item ceiling",
						route.DriverLabel, route.ItemCount+d.ItemCount, capacity.Ceiling),
				})
				continue
			}
			state[idx] = routed

			here, ok := d.Location()
			if !ok {
				here = origin
			}
			leg := HaversineMiles(prev, here)
			prev = here

			stop := Stop{
				Sequence:                  len(route.Stops) + 1,
				Delivery:                  d,
				DistanceFromPreviousMiles: round2(leg),
			}
			if !v.StartTime.IsZero() {
				t := v.StartTime
				stop.ArrivalTime = &t
			}
			route.Stops = append(route.Stops, stop)
			route.ItemCount += d.ItemCount
			route.DistanceMiles += leg
		}

		if n := vr.Metrics.PerformedShipmentCount; n != 0 && n != performed {
			rec.Warnings = append(rec.Warnings, Warning{
				Code:    WarningSolverMetricsMismatch,
				Message: fmt.Sprintf("%s reports %d performed shipments but visits %d",
					route.DriverLabel, n, performed),
			})
		}

		if len(route.Stops) == 0 {
			continue
		}
		route.StopCount = len(route.Stops)
		route.DistanceMiles = round2(route.DistanceMiles)
		rec.Routes = append(rec.Routes, route)
	}

	for _, i := range sol.SkippedShipments {
		if i < 0 || i >= len(deliveries) {
			return nil, NewMalformedResponseError(fmt.Errorf("skipped shipment index %d out of range [0,%d)", i, len(deliveries)))
		}
		if state[i] != unplaced {
			return nil, NewMalformedResponseError(fmt.Errorf("delivery %s is both skipped and routed", deliveries[i].ID))
		}
	}

	sort.SliceStable(rec.Routes, func(i, j int) bool {
		return rec.Routes[i].VehicleIndex < rec.Routes[j].VehicleIndex
	})

	for i, d := range deliveries {
		if state[i] != routed {
			rec.Unassigned = append(rec.Unassigned, d)
		}
	}

	return rec, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
