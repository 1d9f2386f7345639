package routing

// Capacity is the per-driver item ceiling for a run
type Capacity struct {
	Base    int `json:"base"`
	Buffer  int `json:"buffer"`
	Ceiling int `json:"ceiling"`
}

// PlanCapacity splits totalItems evenly over drivers and adds buffer slack.
// Base is ceil(totalItems / drivers).
func PlanCapacity(totalItems, drivers, buffer int) Capacity {
	if drivers < 1 {
		drivers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if totalItems < 0 {
		totalItems = 0
	}
	base := (totalItems + drivers - 1) / drivers
	return Capacity{Base: base, Buffer: buffer, Ceiling: base + buffer}
}
