package util

import (
	"math"
	"runtime"
)

// GetHeapAllocMB returns the live heap in MB, rounded to two decimals for
// status output.
func GetHeapAllocMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return math.Round(float64(m.HeapAlloc)/(1<<20)*100) / 100
}
