package common

import (
	"fmt"
	"runtime"
)

// MemoryStats is a snapshot of the process heap, taken after batch
// runs to judge memory pressure.
type MemoryStats struct {
	HeapAllocKB   uint64
	HeapInuseKB   uint64
	SysKB         uint64
	TotalAllocKB  uint64
	NumGC         uint32
	GCCPUFraction float64
}

// ReadMemoryStats snapshots the runtime memory statistics.
func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		HeapAllocKB:   m.HeapAlloc / 1024,
		HeapInuseKB:   m.HeapInuse / 1024,
		SysKB:         m.Sys / 1024,
		TotalAllocKB:  m.TotalAlloc / 1024,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// String returns a formatted string representation of the snapshot.
func (m MemoryStats) String() string {
	return fmt.Sprintf("heap: %d KB in use, %d KB allocated, sys: %d KB, GC: %d (%.2f%% CPU)",
		m.HeapInuseKB, m.HeapAllocKB, m.SysKB, m.NumGC, m.GCCPUFraction*100)
}
