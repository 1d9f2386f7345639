package routing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	records []models.SubscriptionRecord
	err     error
	queries []SubscriptionQuery
}

func (f *fakeStore) ActiveSubscriptions(_ context.Context, q SubscriptionQuery) ([]models.SubscriptionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type solverFunc func(ctx context.Context, m *Model) (*Solution, error)

func (f solverFunc) Optimize(ctx context.Context, m *Model) (*Solution, error) {
	return f(ctx, m)
}

// allOnFirst puts every shipment on vehicle 0 in model order
func allOnFirst(_ context.Context, m *Model) (*Solution, error) {
	route := VehicleRoute{VehicleIndex: 0, VehicleLabel: m.Vehicles[0].Label}
	for i := range m.Shipments {
		route.Visits = append(route.Visits,
			Visit{ShipmentIndex: i, HasShipmentIndex: true, IsPickup: true, ShipmentLabel: m.Shipments[i].Label},
			Visit{ShipmentIndex: i, HasShipmentIndex: true, ShipmentLabel: m.Shipments[i].Label, StartTime: m.GlobalStart})
	}
	sol := &Solution{Routes: []VehicleRoute{route}}
	for v := 1; v < len(m.Vehicles); v++ {
		sol.Routes = append(sol.Routes, VehicleRoute{VehicleIndex: v, VehicleLabel: m.Vehicles[v].Label})
	}
	return sol, nil
}

// roundRobin deals shipments across vehicles, respecting MaxLoad
func roundRobin(_ context.Context, m *Model) (*Solution, error) {
	sol := &Solution{}
	loads := make([]int, len(m.Vehicles))
	for v := range m.Vehicles {
		sol.Routes = append(sol.Routes, VehicleRoute{VehicleIndex: v, VehicleLabel: m.Vehicles[v].Label})
	}
	for i, sh := range m.Shipments {
		placed := false
		for k := 0; k < len(m.Vehicles); k++ {
			v := (i + k) % len(m.Vehicles)
			if limit := m.Vehicles[v].MaxLoad; limit != nil && loads[v]+sh.LoadDemand > *limit {
				continue
			}
			loads[v] += sh.LoadDemand
			sol.Routes[v].Visits = append(sol.Routes[v].Visits,
				Visit{ShipmentIndex: i, HasShipmentIndex: true, ShipmentLabel: sh.Label})
			placed = true
			break
		}
		if !placed {
			sol.SkippedShipments = append(sol.SkippedShipments, i)
		}
	}
	return sol, nil
}

func seededRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func strPtr(s string) *string { return &s }

func record(id, first, zip string, amount float64) models.SubscriptionRecord {
	return models.SubscriptionRecord{
		ID:              id,
		UserID:          "user-" + id,
		TotalAmount:     amount,
		DeliveryDays:    "Monday, Wednesday",
		FirstName:       first,
		LastName:        "Customer",
		Phone:           strPtr("714-555-0100"),
		DeliveryAddress: fmt.Sprintf("%s Main St", id),
		City:            strPtr("Fullerton"),
		ZipCode:         zip,
	}
}

func deliveriesAt(n int, items int) []Delivery {
	out := make([]Delivery, n)
	for i := range out {
		lat := 33.88 + float64(i)*0.001
		lng := -117.90 - float64(i)*0.001
		out[i] = Delivery{
			ID:           fmt.Sprintf("d%d", i),
			CustomerName: fmt.Sprintf("Customer %d", i),
			ItemCount:    items,
			Amount:       float64(items) * 15,
			Latitude:     &lat,
			Longitude:    &lng,
		}
	}
	return out
}
