package util

import (
	"testing"
	"unsafe"
)

func TestPaddedAtomicUint64_Size(t *testing.T) {
	t.Parallel()

	if got := unsafe.Sizeof(PaddedAtomicUint64{}); got != CacheLineSize {
		t.Fatalf("PaddedAtomicUint64 size = %d, want %d", got, CacheLineSize)
	}
}

func TestRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		num, den uint64
		want     float64
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 4, 0},
		{3, 1, 0.75},
	}
	for _, tt := range tests {
		if got := Ratio(tt.num, tt.den); got != tt.want {
			t.Errorf("Ratio(%d, %d) = %v, want %v", tt.num, tt.den, got, tt.want)
		}
	}
}
