package routing

import (
	"fmt"
	"strings"
	"time"
)

// Params are the operator inputs for one optimization run
type Params struct {
	Date                   string  `json:"date" yaml:"-"`
	TimeSlot               string  `json:"time_slot,omitempty" yaml:"-"`
	Drivers                int     `json:"drivers" yaml:"drivers"`
	CapacityBuffer         int     `json:"capacity_buffer" yaml:"capacity_buffer"`
	CostPerKilometer       float64 `json:"cost_per_km" yaml:"cost_per_km"`
	CostPerHour            float64 `json:"cost_per_hour" yaml:"cost_per_hour"`
	FixedCostFirst         float64 `json:"fixed_cost_first" yaml:"fixed_cost_first"`
	FixedCostOthers        float64 `json:"fixed_cost_others" yaml:"fixed_cost_others"`
	ForceEqualDistribution bool    `json:"force_equal_distribution" yaml:"force_equal_distribution"`
}

// IntRange is an inclusive integer bound
type IntRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r IntRange) clamp(v int) int {
	return min(max(v, r.Min), r.Max)
}

// FloatRange is an inclusive float bound
type FloatRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r FloatRange) clamp(v float64) float64 {
	return min(max(v, r.Min), r.Max)
}

// Bounds limits every numeric parameter server-side
type Bounds struct {
	Drivers          IntRange   `json:"drivers" yaml:"drivers"`
	CapacityBuffer   IntRange   `json:"capacity_buffer" yaml:"capacity_buffer"`
	CostPerKilometer FloatRange `json:"cost_per_km" yaml:"cost_per_km"`
	CostPerHour      FloatRange `json:"cost_per_hour" yaml:"cost_per_hour"`
	FixedCostFirst   FloatRange `json:"fixed_cost_first" yaml:"fixed_cost_first"`
	FixedCostOthers  FloatRange `json:"fixed_cost_others" yaml:"fixed_cost_others"`
}

// DefaultBounds returns the stock parameter limits
func DefaultBounds() Bounds {
	return Bounds{
		Drivers:          IntRange{Min: 1, Max: 10},
		CapacityBuffer:   IntRange{Min: 0, Max: 10},
		CostPerKilometer: FloatRange{Min: 0.1, Max: 50},
		CostPerHour:      FloatRange{Min: 1, Max: 500},
		FixedCostFirst:   FloatRange{Min: 0, Max: 10000},
		FixedCostOthers:  FloatRange{Min: 0, Max: 10000},
	}
}

// Validate reports an inverted range
func (b Bounds) Validate() error {
	ints := map[string]IntRange{
		"drivers":         b.Drivers,
		"capacity_buffer": b.CapacityBuffer,
	}
	for name, r := range ints {
		if r.Min > r.Max {
			return fmt.Errorf("bounds %s: min %d > max %d", name, r.Min, r.Max)
		}
	}
	floats := map[string]FloatRange{
		"cost_per_km":       b.CostPerKilometer,
		"cost_per_hour":     b.CostPerHour,
		"fixed_cost_first":  b.FixedCostFirst,
		"fixed_cost_others": b.FixedCostOthers,
	}
	for name, r := range floats {
		if r.Min > r.Max {
			return fmt.Errorf("bounds %s: min %g > max %g", name, r.Min, r.Max)
		}
	}
	if b.Drivers.Min < 1 {
		return fmt.Errorf("bounds drivers: min must be at least 1")
	}
	return nil
}

// DefaultParams returns the stock tuning. The first vehicle is cheaper to
// use than the rest so the solver consolidates unless capacity forces a spread.
func DefaultParams() Params {
	return Params{
		Drivers:                2,
		CapacityBuffer:         2,
		CostPerKilometer:       1.0,
		CostPerHour:            20,
		FixedCostFirst:         50,
		FixedCostOthers:        100,
		ForceEqualDistribution: true,
	}
}

// Clamp returns a copy with every numeric field forced into bounds
func (p Params) Clamp(b Bounds) Params {
	p.Date = strings.TrimSpace(p.Date)
	p.TimeSlot = strings.TrimSpace(p.TimeSlot)
	p.Drivers = b.Drivers.clamp(p.Drivers)
	p.CapacityBuffer = b.CapacityBuffer.clamp(p.CapacityBuffer)
	p.CostPerKilometer = b.CostPerKilometer.clamp(p.CostPerKilometer)
	p.CostPerHour = b.CostPerHour.clamp(p.CostPerHour)
	p.FixedCostFirst = b.FixedCostFirst.clamp(p.FixedCostFirst)
	p.FixedCostOthers = b.FixedCostOthers.clamp(p.FixedCostOthers)
	return p
}

// ParseDate parses an ISO delivery date in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidParams, s)
	}
	return d, nil
}
