package security

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessLog_RingBufferBound(t *testing.T) {
	al := NewAccessLog(5)

	for i := 0; i < 12; i++ {
		al.Record(OpRead, fmt.Sprintf("file%d.txt", i), Result{Allowed: true})
	}

	recent := al.Recent(0)
	assert.Len(t, recent, 5, "ring must never exceed its capacity")

	// Newest first, and only the last five survive.
	assert.Equal(t, "file11.txt", recent[0].Path)
	assert.Equal(t, "file7.txt", recent[4].Path)

	// Counters still cover the full history.
	assert.Equal(t, 12, al.Stats().Total)
}

func TestAccessLog_RecentBeforeFull(t *testing.T) {
	al := NewAccessLog(10)

	al.Record(OpRead, "a.txt", Result{Allowed: true})
	al.Record(OpWrite, "b.txt", Result{Allowed: false, Denial: DenialPathTraversal})

	recent := al.Recent(5)
	assert.Len(t, recent, 2)
	assert.Equal(t, "b.txt", recent[0].Path)
	assert.False(t, recent[0].Allowed)
}

func TestAccessLog_Stats(t *testing.T) {
	al := NewAccessLog(10)

	al.Record(OpRead, "a", Result{Allowed: true})
	al.Record(OpRead, "b", Result{Allowed: false, Denial: DenialPathTraversal})
	al.Record(OpRead, "c", Result{Allowed: false, Denial: DenialPathTraversal})
	al.Record(OpWrite, "d", Result{Allowed: false, Denial: DenialBlockedPath})

	stats := al.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Blocked)
	assert.InDelta(t, 0.75, stats.BlockRate, 0.001)
	assert.Equal(t, DenialPathTraversal, stats.TopDenial)
	assert.Equal(t, 2, stats.Denials[DenialPathTraversal])
}

func TestAccessLog_EmptyStats(t *testing.T) {
	al := NewAccessLog(3)
	stats := al.Stats()
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.BlockRate)
	assert.Empty(t, stats.TopDenial)
}
