package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanCapacity(t *testing.T) {
	tests := []struct {
		name                   string
		total, drivers, buffer int
		want                   Capacity
	}{
		{"even split", 20, 2, 2, Capacity{Base: 10, Buffer: 2, Ceiling: 12}},
		{"rounds up", 7, 2, 0, Capacity{Base: 4, Buffer: 0, Ceiling: 4}},
		{"single driver", 5, 1, 1, Capacity{Base: 5, Buffer: 1, Ceiling: 6}},
		{"no demand", 0, 3, 2, Capacity{Base: 0, Buffer: 2, Ceiling: 2}},
		{"zero drivers treated as one", 9, 0, 0, Capacity{Base: 9, Buffer: 0, Ceiling: 9}},
		{"negative buffer ignored", 10, 5, -3, Capacity{Base: 2, Buffer: 0, Ceiling: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanCapacity(tt.total, tt.drivers, tt.buffer))
		})
	}
}
