package cothread_test

import (
	"errors"
	"testing"

	"github.com/joeycumines/go-cothread"
	"github.com/stretchr/testify/require"
)

func TestHandOutGetBackRoundTrip(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	var got any
	err = rt.Run(func(rt *cothread.Runtime) {
		h, err := rt.HandOut(func() (any, error) {
			return 7 * 6, nil
		})
		require.NoError(t, err)

		got, err = rt.GetBack(h)
		require.NoError(t, err)
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestHandOutGetBackPropagatesTaskError(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	boom := errors.New("boom")
	err = rt.Run(func(rt *cothread.Runtime) {
		h, err := rt.HandOut(func() (any, error) {
			return nil, boom
		})
		require.NoError(t, err)

		_, err = rt.GetBack(h)
		require.ErrorIs(t, err, boom)
	})
	require.NoError(t, err)
}

// TestOtherThreadsRunWhileATaskIsOutstanding pins the single worker on a
// task it fully controls, confirming that a green thread spawned while that
// task is outstanding still gets to run (HandOut returns without waiting
// for the task, so the scheduler keeps dispatching green threads).
func TestOtherThreadsRunWhileATaskIsOutstanding(t *testing.T) {
	rt, err := cothread.New(cothread.WithWorkerPool(1, 1))
	require.NoError(t, err)

	release := make(chan struct{})
	var observerRan bool

	err = rt.Run(func(rt *cothread.Runtime) {
		h, err := rt.HandOut(func() (any, error) {
			<-release
			return "first", nil
		})
		require.NoError(t, err)

		_, err = rt.Spawn(func(arg any) {
			observerRan = true
		}, nil, nil)
		require.NoError(t, err)

		// The default favourNew scheduling makes the freshly spawned
		// thread the new head, so one Yield is enough for it to run to
		// completion before control returns here.
		rt.Yield()
		require.True(t, observerRan)

		close(release)
		v, err := rt.GetBack(h)
		require.NoError(t, err)
		require.Equal(t, "first", v)
	})
	require.NoError(t, err)
}

// TestHandOutRespectsBoundedQueueAcrossSequentialTasks exercises a
// single-worker, single-slot pool across several tasks submitted and
// collected one at a time, confirming the bounded queue configuration
// doesn't itself get in the way of repeated use.
func TestHandOutRespectsBoundedQueueAcrossSequentialTasks(t *testing.T) {
	rt, err := cothread.New(cothread.WithWorkerPool(1, 1))
	require.NoError(t, err)

	var results []int
	err = rt.Run(func(rt *cothread.Runtime) {
		for i := 1; i <= 3; i++ {
			i := i
			h, err := rt.HandOut(func() (any, error) {
				return i * i, nil
			})
			require.NoError(t, err)
			v, err := rt.GetBack(h)
			require.NoError(t, err)
			results = append(results, v.(int))
		}
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 9}, results)
}
