package money

import "testing"

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{2.499, 2.5},
		{2.494, 2.49},
		{0.125, 0.13},
		{10, 10},
		{1.005, 1.01},
		{-1.005, -1.01},
		{2.675, 2.68},
		{1.015, 1.02},
		{9999999999.995, 10000000000},
	}
	for _, tt := range tests {
		if got := Round(tt.in); got != tt.want {
			t.Errorf("Round(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSum(t *testing.T) {
	if got := Sum(0.1, 0.2); got != 0.3 {
		t.Errorf("Sum(0.1, 0.2) = %v, want 0.3", got)
	}
	if got := Sum(); got != 0 {
		t.Errorf("Sum() = %v, want 0", got)
	}
}
