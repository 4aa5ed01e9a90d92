package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name            string
		v, low, high, w float64
	}{
		{"inside", 0.5, 0, 1, 0.5},
		{"below", -2, 0, 1, 0},
		{"above", 3, 0, 1, 1},
		{"edge", 1, 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.w, Clamp(tt.v, tt.low, tt.high))
		})
	}

	// swapchain image count against surface limits
	assert.Equal(t, uint32(3), Clamp[uint32](4, 2, 3))
}
