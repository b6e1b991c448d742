package cothread_test

import (
	"testing"

	"github.com/joeycumines/go-cothread"
	"github.com/stretchr/testify/require"
)

func TestMutexIsRecursive(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		m := cothread.NewMutex()
		require.NoError(t, rt.Lock(m))
		require.NoError(t, rt.Lock(m)) // same thread, recursive acquire: bumps the count, doesn't block

		// Two levels deep: the first Unlock should not yet release m.
		require.NoError(t, rt.Unlock(m))
		require.NoError(t, rt.TryLock(m)) // still owned by us, so this just bumps again
		require.NoError(t, rt.Unlock(m))
		require.NoError(t, rt.Unlock(m))
		require.ErrorIs(t, rt.Unlock(m), cothread.ErrDeadlock) // fully released already
	})
	require.NoError(t, err)
}

func TestMutexExcludesOtherThreads(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	var order []string
	err = rt.Run(func(rt *cothread.Runtime) {
		m := cothread.NewMutex()
		require.NoError(t, rt.Lock(m))

		done, err := rt.PortCreate("")
		require.NoError(t, err)

		_, err = rt.Spawn(func(arg any) {
			order = append(order, "waiter-start")
			if err := rt.Lock(m); err != nil {
				panic(err)
			}
			order = append(order, "waiter-acquired")
			rt.Unlock(m)
			rt.Put(done, nil)
		}, nil, nil)
		require.NoError(t, err)

		rt.Yield() // let the waiter record "waiter-start" and block on m
		order = append(order, "holder-still-running")
		require.NoError(t, rt.Unlock(m))

		rt.Get(done)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"waiter-start", "holder-still-running", "waiter-acquired"}, order)
}

func TestMutexTryLockReportsBusy(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	err = rt.Run(func(rt *cothread.Runtime) {
		m := cothread.NewMutex()
		done, err := rt.PortCreate("")
		require.NoError(t, err)

		_, err = rt.Spawn(func(arg any) {
			if err := rt.Lock(m); err != nil {
				panic(err)
			}
			rt.Put(done, nil)
			if err := rt.Nap(0); err != nil {
				panic(err)
			}
			rt.Unlock(m)
		}, nil, nil)
		require.NoError(t, err)

		rt.Get(done)
		require.ErrorIs(t, rt.TryLock(m), cothread.ErrBusy)
	})
	require.NoError(t, err)
}

func TestRWLockAllowsConcurrentReadersButExclusiveWriter(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	var order []string
	err = rt.Run(func(rt *cothread.Runtime) {
		l := cothread.NewRWLock()
		done, err := rt.PortCreate("")
		require.NoError(t, err)

		readerBody := func(label string) func(any) {
			return func(any) {
				if err := rt.RLock(l); err != nil {
					panic(err)
				}
				order = append(order, label+"-in")
				rt.Yield()
				order = append(order, label+"-out")
				rt.RUnlock(l)
				rt.Put(done, nil)
			}
		}
		_, err = rt.Spawn(readerBody("r1"), nil, nil)
		require.NoError(t, err)
		_, err = rt.Spawn(readerBody("r2"), nil, nil)
		require.NoError(t, err)

		rt.Get(done)
		rt.Get(done)

		require.NoError(t, rt.WLock(l))
		order = append(order, "writer")
		require.NoError(t, rt.WUnlock(l))
	})
	require.NoError(t, err)

	require.Equal(t, "r1-in", order[0])
	require.Equal(t, "r2-in", order[1])
	require.Equal(t, "writer", order[len(order)-1])
}

func TestCondSignalWakesOneWaiter(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	var woke, wokeAfterOneSignal int
	err = rt.Run(func(rt *cothread.Runtime) {
		m := cothread.NewMutex()
		c := cothread.NewCond()
		ready, err := rt.PortCreate("")
		require.NoError(t, err)
		done, err := rt.PortCreate("")
		require.NoError(t, err)

		waiter := func(any) {
			if err := rt.Lock(m); err != nil {
				panic(err)
			}
			rt.Put(ready, nil)
			if err := rt.CondWait(c, m); err != nil {
				panic(err)
			}
			woke++
			rt.Unlock(m)
			rt.Put(done, nil)
		}
		_, err = rt.Spawn(waiter, nil, nil)
		require.NoError(t, err)
		_, err = rt.Spawn(waiter, nil, nil)
		require.NoError(t, err)

		rt.Get(ready)
		rt.Get(ready)

		require.NoError(t, rt.Lock(m))
		rt.CondSignal(c)
		require.NoError(t, rt.Unlock(m))

		rt.Get(done)
		wokeAfterOneSignal = woke

		// Release the second waiter as well: Run only returns once every
		// spawned thread has finished.
		require.NoError(t, rt.Lock(m))
		rt.CondSignal(c)
		require.NoError(t, rt.Unlock(m))
		rt.Get(done)
	})
	require.NoError(t, err)
	require.Equal(t, 1, wokeAfterOneSignal)
}

func TestBarrierReleasesAllParticipants(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	const n = 3
	results := make([]int, 0, n)
	err = rt.Run(func(rt *cothread.Runtime) {
		b, err := cothread.NewBarrier(n)
		require.NoError(t, err)
		done, err := rt.PortCreate("")
		require.NoError(t, err)

		for i := 0; i < n-1; i++ {
			_, err := rt.Spawn(func(arg any) {
				role, err := rt.BarrierWait(b)
				if err != nil {
					panic(err)
				}
				rt.Put(done, role)
			}, nil, nil)
			require.NoError(t, err)
		}

		role, err := rt.BarrierWait(b)
		require.NoError(t, err)
		results = append(results, role)
		for i := 0; i < n-1; i++ {
			v, err := rt.Get(done)
			require.NoError(t, err)
			results = append(results, v.(int))
		}
	})
	require.NoError(t, err)

	headlights := 0
	taillights := 0
	for _, r := range results {
		switch r {
		case cothread.BarrierHeadlight:
			headlights++
		case cothread.BarrierTaillight:
			taillights++
		}
	}
	require.Equal(t, 1, headlights)
	require.Equal(t, n-1, taillights)
}
