// Package util contains internal helpers shared by the orchestration packages.
//
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// CacheLinePad separates hot fields into distinct cache lines.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicUint64 is an atomic counter padded to exactly one cache line.
// The cache keeps its hit and miss counters in these so that readers
// updating one do not invalidate the line holding the other.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// Ratio returns num/(num+den), or 0 when both are zero.
func Ratio(num, den uint64) float64 {
	total := num + den
	if total == 0 {
		return 0
	}
	return float64(num) / float64(total)
}

var _ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
