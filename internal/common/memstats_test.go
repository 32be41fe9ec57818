package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadMemoryStats(t *testing.T) {
	stats := ReadMemoryStats()

	// A running test binary always has live heap.
	assert.Positive(t, stats.HeapAllocKB)
	assert.Positive(t, stats.HeapInuseKB)
	assert.Positive(t, stats.SysKB)
	assert.GreaterOrEqual(t, stats.TotalAllocKB, stats.HeapAllocKB)
}

func TestMemoryStatsString(t *testing.T) {
	stats := MemoryStats{
		HeapAllocKB:   2048,
		HeapInuseKB:   4096,
		SysKB:         8192,
		NumGC:         3,
		GCCPUFraction: 0.015,
	}

	s := stats.String()
	assert.True(t, strings.HasPrefix(s, "heap: 4096 KB in use"), s)
	assert.Contains(t, s, "2048 KB allocated")
	assert.Contains(t, s, "GC: 3")
}
