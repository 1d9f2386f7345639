package routing

import (
	"fmt"
	"strings"
	"time"
)

// LoadTypeItems is the single load dimension the kitchen tracks
const LoadTypeItems = "items"

// Restaurant is the kitchen every route starts and ends at
var Restaurant = LatLng{Latitude: 33.8886, Longitude: -117.8942}

// Settings is the operator configuration shared by every run. It is read-only
// once the server starts.
type Settings struct {
	Restaurant        LatLng
	Location          *time.Location
	Zones             map[string]LatLng
	PerItemPrice      float64
	PickupDwell       time.Duration
	DeliveryDwell     time.Duration
	DispatchStartHour int
	DispatchEndHour   int
	LoadType          string
	SolverTimeout     time.Duration
	Bounds            Bounds
	Defaults          Params
}

// DefaultSettings returns the stock configuration
func DefaultSettings() Settings {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.UTC
	}
	return Settings{
		Restaurant:        Restaurant,
		Location:          loc,
		Zones:             DefaultZones,
		PerItemPrice:      15,
		PickupDwell:       2 * time.Minute,
		DeliveryDwell:     5 * time.Minute,
		DispatchStartHour: 9,
		DispatchEndHour:   20,
		LoadType:          LoadTypeItems,
		SolverTimeout:     30 * time.Second,
		Bounds:            DefaultBounds(),
		Defaults:          DefaultParams(),
	}
}

// Window returns the dispatch window for a delivery date
func (s Settings) Window(date time.Time) TimeWindow {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.In(loc).Date()
	return TimeWindow{
		Start: time.Date(y, m, d, s.DispatchStartHour, 0, 0, 0, loc),
		End:   time.Date(y, m, d, s.DispatchEndHour, 0, 0, 0, loc),
	}
}

// BuildModel converts the run's deliveries into a solver request: one
// shipment per delivery, in order, and exactly p.Drivers vehicles. capacity is
// nil when vehicles carry no load limit.
func BuildModel(deliveries []Delivery, date time.Time, p Params, capacity *Capacity, s Settings) *Model {
	window := s.Window(date)
	loadType := s.LoadType
	if loadType == "" {
		loadType = LoadTypeItems
	}

	m := &Model{
		Shipments:   make([]Shipment, 0, len(deliveries)),
		Vehicles:    make([]Vehicle, 0, p.Drivers),
		GlobalStart: window.Start,
		GlobalEnd:   window.End,
		LoadType:    loadType,
		Timeout:     s.SolverTimeout,
	}

	for _, d := range deliveries {
		loc, ok := d.Location()
		if !ok {
			loc = s.Restaurant
		}
		sh := Shipment{
			Label:      d.CustomerName,
			Pickup:     VisitRequest{Location: s.Restaurant, Dwell: s.PickupDwell},
			Delivery:   VisitRequest{Location: loc, Dwell: s.DeliveryDwell},
			LoadDemand: d.ItemCount,
		}
		if d.TimeSlot != nil {
			sh.Delivery.Window = slotWindow(*d.TimeSlot, window)
		}
		m.Shipments = append(m.Shipments, sh)
	}

	for i := 0; i < p.Drivers; i++ {
		v := Vehicle{
			Label:            fmt.Sprintf("Driver %d", i+1),
			Start:            s.Restaurant,
			End:              s.Restaurant,
			CostPerKilometer: p.CostPerKilometer,
			CostPerHour:      p.CostPerHour,
			FixedCost:        p.FixedCostOthers,
		}
		if i == 0 {
			v.FixedCost = p.FixedCostFirst
		}
		if capacity != nil {
			limit := capacity.Ceiling
			v.MaxLoad = &limit
		}
		m.Vehicles = append(m.Vehicles, v)
	}

	return m
}

// slotWindow turns a "HH:MM-HH:MM" preferred slot into a visit window on the
// dispatch day, clipped to the dispatch window. Other slot formats yield nil.
func slotWindow(slot string, day TimeWindow) *TimeWindow {
	from, to, ok := strings.Cut(slot, "-")
	if !ok {
		return nil
	}
	start, err := time.Parse("15:04", strings.TrimSpace(from))
	if err != nil {
		return nil
	}
	end, err := time.Parse("15:04", strings.TrimSpace(to))
	if err != nil {
		return nil
	}

	y, m, d := day.Start.Date()
	loc := day.Start.Location()
	w := TimeWindow{
		Start: time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, loc),
		End:   time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, loc),
	}
	if w.Start.Before(day.Start) {
		w.Start = day.Start
	}
	if w.End.After(day.End) {
		w.End = day.End
	}
	if !w.End.After(w.Start) {
		return nil
	}
	return &w
}
