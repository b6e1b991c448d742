package cothread_test

import (
	"testing"

	"github.com/joeycumines/go-cothread"
	"github.com/stretchr/testify/require"
)

// TestStackGuardCorruptionMarksThreadDead simulates a corrupted stack guard
// (there's no real stack to overflow -- goroutines grow their own -- so
// CorruptStackGuardForTest pokes the guard word directly) on a thread that
// is still alive, and confirms the scheduler's dispatch-time check kills it
// the next time it returns to the scheduler, rather than letting it run to
// completion.
func TestStackGuardCorruptionMarksThreadDead(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	var reachedEnd bool
	err = rt.Run(func(rt *cothread.Runtime) {
		started, err := rt.PortCreate("")
		require.NoError(t, err)

		id, err := rt.Spawn(func(arg any) {
			rt.Put(started, nil)
			for i := 0; i < 3; i++ {
				rt.Yield()
			}
			reachedEnd = true
		}, nil, nil)
		require.NoError(t, err)

		rt.Get(started)
		cothread.CorruptStackGuardForTest(id)

		for i := 0; i < 3; i++ {
			rt.Yield()
		}

		attr := cothread.AttrOf(id)
		state, err := attr.State()
		require.NoError(t, err)
		require.Equal(t, cothread.StateDead, state)
	})
	require.NoError(t, err)
	require.False(t, reachedEnd)
}
