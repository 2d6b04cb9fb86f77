package console

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telearc/archive-console/internal/logger"
)

func TestMemoryNotifier_RingEvictsOldest(t *testing.T) {
	n := NewMemoryNotifier(3)

	for i := 0; i < 5; i++ {
		n.Notify(SeverityInfo, fmt.Sprintf("note %d", i))
	}

	active := n.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "note 2", active[0].Message)
	assert.Equal(t, "note 4", active[2].Message)
}

func TestMemoryNotifier_Dismiss(t *testing.T) {
	n := NewMemoryNotifier(10)
	n.Notify(SeverityWarning, "first")
	n.Notify(SeverityError, "second")

	active := n.Active()
	require.Len(t, active, 2)

	assert.True(t, n.Dismiss(active[0].ID))
	assert.False(t, n.Dismiss(active[0].ID), "already gone")

	remaining := n.Active()
	require.Len(t, remaining, 1)
	assert.Equal(t, "second", remaining[0].Message)

	n.DismissAll()
	assert.Empty(t, n.Active())
}

func TestMemoryNotifier_UniqueIDs(t *testing.T) {
	n := NewMemoryNotifier(10)
	n.Notify(SeverityInfo, "same text")
	n.Notify(SeverityInfo, "same text")

	active := n.Active()
	require.Len(t, active, 2)
	assert.NotEqual(t, active[0].ID, active[1].ID)
}

func TestCombine_FansOut(t *testing.T) {
	a := NewMemoryNotifier(5)
	b := NewMemoryNotifier(5)

	combined := Combine(a, b, NewLogNotifier(logger.Nop()))
	combined.Notify(SeverityCritical, "session expired")

	require.Len(t, a.Active(), 1)
	require.Len(t, b.Active(), 1)
	assert.Equal(t, SeverityCritical, a.Active()[0].Severity)
}
