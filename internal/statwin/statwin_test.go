package statwin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExponentialSmoothRecurrence(t *testing.T) {
	e := NewExponentialSmooth(0.5)
	e.Add(10)
	require.InDelta(t, 5.0, e.Val(), 1e-9)
	e.Add(10)
	require.InDelta(t, 7.5, e.Val(), 1e-9)
}

func TestWindowPanicsOnNonPositiveCapacity(t *testing.T) {
	require.Panics(t, func() { NewWindow(0, 0) })
}

func TestWindowMinMeanOverRing(t *testing.T) {
	w := NewWindow(100, 3)
	require.Equal(t, 100.0, w.Min())
	require.Equal(t, 100.0, w.Mean())

	w.Add(10)
	require.Equal(t, 10.0, w.Min())

	w.Add(50)
	w.Add(20)
	require.Equal(t, 10.0, w.Min())
	require.InDelta(t, (10.0+50.0+20.0)/3.0, w.Mean(), 1e-9)

	// wraps: the 4th Add overwrites the oldest sample (10).
	w.Add(5)
	require.Equal(t, 5.0, w.Min())
}
