package model

import "testing"

func TestClassifyCapacity(t *testing.T) {
	tests := []struct {
		occupancy int
		capacity  int
		expected  string
	}{
		{0, 100, CapacityNormal},
		{79, 100, CapacityNormal},
		{80, 100, CapacityNearFull},
		{90, 100, CapacityNearFull},
		{99, 100, CapacityNearFull},
		{100, 100, CapacityOver},
		{105, 100, CapacityOver},
		{4, 5, CapacityNearFull},
		{5, 5, CapacityOver},
		// Zero capacity never divides, never alarms.
		{0, 0, CapacityNormal},
		{50, 0, CapacityNormal},
		{99999, 0, CapacityNormal},
	}

	for _, tt := range tests {
		got := ClassifyCapacity(tt.occupancy, tt.capacity)
		if got != tt.expected {
			t.Errorf("ClassifyCapacity(%d, %d) = %q, want %q", tt.occupancy, tt.capacity, got, tt.expected)
		}
	}
}

func TestClassifyCapacityIsPure(t *testing.T) {
	for i := 0; i < 5; i++ {
		if got := ClassifyCapacity(90, 100); got != CapacityNearFull {
			t.Fatalf("call %d: got %q, want %q", i, got, CapacityNearFull)
		}
	}
}
