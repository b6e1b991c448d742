package cothread_test

import (
	"testing"
	"time"

	"github.com/joeycumines/go-cothread"
	"github.com/stretchr/testify/require"
)

// Spawned-thread bodies run on their own goroutine, not the test's, so
// they must not call require/t.Fatal directly (testify documents those as
// unsafe off the test goroutine). They panic on unexpected errors instead.
// Spawn recovers such a panic and ends the thread with ErrInvalid as its
// join error, so it shows up only where the test joins that thread or
// waits for something the thread no longer delivers; the test goroutine itself
// (inside Run's entry callback, which shares the caller's goroutine) uses
// require normally.

func TestSpawnJoinReturnsResult(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		id, err := rt.Spawn(func(arg any) {
			rt.Exit(arg.(int) * 2)
		}, 21, nil)
		require.NoError(t, err)

		rt.Yield()
		result, err := rt.Join(id)
		require.NoError(t, err)
		require.Equal(t, 42, result)
	})
	require.NoError(t, err)
}

func TestNestedSpawnMultiplicativeJoin(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	var product int
	err = rt.Run(func(rt *cothread.Runtime) {
		var spawnChain func(n int) int
		spawnChain = func(n int) int {
			if n == 1 {
				return 1
			}
			id, err := rt.Spawn(func(arg any) {
				rt.Exit(n * spawnChain(n-1))
			}, nil, nil)
			if err != nil {
				panic(err)
			}
			v, err := rt.Join(id)
			if err != nil {
				panic(err)
			}
			return v.(int)
		}
		product = spawnChain(9)
	})
	require.NoError(t, err)
	require.Equal(t, 362880, product)
}

func TestYieldRoundRobin(t *testing.T) {
	rt, err := cothread.New(cothread.WithFavourNew(false))
	require.NoError(t, err)

	var order []string
	err = rt.Run(func(rt *cothread.Runtime) {
		done, err := rt.PortCreate("")
		require.NoError(t, err)

		spawnLeg := func(label string) {
			_, err := rt.Spawn(func(arg any) {
				order = append(order, label+"1")
				rt.Yield()
				order = append(order, label+"2")
				rt.Put(done, nil)
			}, nil, nil)
			if err != nil {
				panic(err)
			}
		}
		spawnLeg("a")
		spawnLeg("b")

		rt.Get(done)
		rt.Get(done)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "b1", "a2", "b2"}, order)
}

func TestNapWaitsAtLeastTheRequestedDuration(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	var elapsed time.Duration
	err = rt.Run(func(rt *cothread.Runtime) {
		start := time.Now()
		require.NoError(t, rt.Nap(50*time.Millisecond))
		elapsed = time.Since(start)
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
}

func TestCancelWakesAWaitingThread(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		started, err := rt.PortCreate("")
		require.NoError(t, err)

		id, err := rt.Spawn(func(arg any) {
			rt.Put(started, nil)
			if err := rt.Nap(time.Hour); err != cothread.Canceled {
				panic("expected cancellation, got: " + errString(err))
			}
		}, nil, nil)
		require.NoError(t, err)

		rt.Get(started)
		require.NoError(t, rt.Cancel(id))
		_, err = rt.Join(id)
		require.ErrorIs(t, err, cothread.Canceled)
	})
	require.NoError(t, err)
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

func TestNonJoinableThreadCannotBeJoined(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		attr := cothread.NewAttr()
		attr.SetJoinable(false)
		id, err := rt.Spawn(func(arg any) {}, nil, attr)
		require.NoError(t, err)
		// id is still NEW here. Once a non-joinable thread has exited it is
		// forgotten, main is left alone, and Join reports ErrDeadlock first.
		_, err = rt.Join(id)
		require.ErrorIs(t, err, cothread.ErrNotPermitted)
	})
	require.NoError(t, err)
}

func TestJoinSelfDeadlocks(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		_, err := rt.Join(rt.Self())
		require.ErrorIs(t, err, cothread.ErrDeadlock)
	})
	require.NoError(t, err)
}

func TestJoinAloneDeadlocks(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		id, err := rt.Spawn(func(arg any) {}, nil, nil)
		require.NoError(t, err)
		_, err = rt.Join(id)
		require.NoError(t, err)

		// id has now been fully reaped: main is the only thread left, so a
		// second join attempt (even targeting the same, now-stale id) must
		// deadlock rather than report "not permitted".
		_, err = rt.Join(id)
		require.ErrorIs(t, err, cothread.ErrDeadlock)
	})
	require.NoError(t, err)
}

func TestJoinRemovesThreadFromDeadCount(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		first, err := rt.Spawn(func(arg any) {}, nil, nil)
		require.NoError(t, err)
		second, err := rt.Spawn(func(arg any) {}, nil, nil)
		require.NoError(t, err)

		rt.Yield()
		rt.Yield()

		_, err = rt.Join(first)
		require.NoError(t, err)
		_, err = rt.Join(second)
		require.NoError(t, err)

		// Spawning a third thread and letting it run to completion forces a
		// fresh snapshot publish; Dead must reflect only the still-unreaped
		// third thread, not the two already joined above.
		third, err := rt.Spawn(func(arg any) {}, nil, nil)
		require.NoError(t, err)
		rt.Yield()

		result, err := rt.Ctrl(cothread.CtrlQuery{})
		require.NoError(t, err)
		require.Equal(t, 1, result.Dead)

		_, err = rt.Join(third)
		require.NoError(t, err)
	})
	require.NoError(t, err)
}

func TestYieldToRunsTargetNext(t *testing.T) {
	rt, err := cothread.New(cothread.WithFavourNew(false))
	require.NoError(t, err)

	var order []string
	err = rt.Run(func(rt *cothread.Runtime) {
		done, err := rt.PortCreate("")
		require.NoError(t, err)

		_, err = rt.Spawn(func(arg any) {
			order = append(order, "a")
			rt.Put(done, nil)
		}, nil, nil)
		require.NoError(t, err)

		target, err := rt.Spawn(func(arg any) {
			order = append(order, "b")
			rt.Put(done, nil)
		}, nil, nil)
		require.NoError(t, err)

		require.NoError(t, rt.YieldTo(target))

		rt.Get(done)
		rt.Get(done)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, order)
}

func TestYieldToRejectsNonReadyTarget(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		id, err := rt.Spawn(func(arg any) {
			rt.Nap(time.Hour)
		}, nil, nil)
		require.NoError(t, err)

		rt.Yield() // let id reach its Nap and park in WAITING.

		err = rt.YieldTo(id)
		require.ErrorIs(t, err, cothread.ErrInvalid)

		require.NoError(t, rt.Cancel(id))
		_, err = rt.Join(id)
		require.ErrorIs(t, err, cothread.Canceled)
	})
	require.NoError(t, err)
}
