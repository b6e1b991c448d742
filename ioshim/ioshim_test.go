package ioshim_test

import (
	"testing"

	"github.com/joeycumines/go-cothread"
	"github.com/joeycumines/go-cothread/ioshim"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func mustNonBlockingPipe(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK))
	return p[0], p[1]
}

func TestReadBlocksUntilDataArrives(t *testing.T) {
	r, w := mustNonBlockingPipe(t)
	defer unix.Close(r)
	defer unix.Close(w)

	rt, err := cothread.New()
	require.NoError(t, err)

	var got string
	err = rt.Run(func(rt *cothread.Runtime) {
		done, derr := rt.PortCreate("")
		require.NoError(t, derr)

		_, serr := rt.Spawn(func(arg any) {
			n, err := unix.Write(w, []byte("hello"))
			if err != nil || n != 5 {
				panic("write failed")
			}
			rt.Put(done, nil)
		}, nil, nil)
		require.NoError(t, serr)

		buf := make([]byte, 16)
		n, err := ioshim.Read(rt, r, buf)
		require.NoError(t, err)
		got = string(buf[:n])

		rt.Get(done)
	})
	require.NoError(t, err)
	require.Equal(t, "hello", got)
}

func TestWriteDeliversFullBuffer(t *testing.T) {
	r, w := mustNonBlockingPipe(t)
	defer unix.Close(r)
	defer unix.Close(w)

	rt, err := cothread.New()
	require.NoError(t, err)

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}

	var readBack []byte
	err = rt.Run(func(rt *cothread.Runtime) {
		done, derr := rt.PortCreate("")
		require.NoError(t, derr)

		_, serr := rt.Spawn(func(arg any) {
			buf := make([]byte, len(payload))
			total := 0
			for total < len(buf) {
				n, err := ioshim.Read(rt, r, buf[total:])
				if err != nil {
					panic(err)
				}
				total += n
			}
			readBack = buf
			rt.Put(done, nil)
		}, nil, nil)
		require.NoError(t, serr)

		n, err := ioshim.Write(rt, w, payload)
		require.NoError(t, err)
		require.Equal(t, len(payload), n)

		rt.Get(done)
	})
	require.NoError(t, err)
	require.Equal(t, payload, readBack)
}

func TestSleepNapsTheCallingThreadOnly(t *testing.T) {
	rt, err := cothread.New()
	require.NoError(t, err)

	var order []string
	err = rt.Run(func(rt *cothread.Runtime) {
		done, derr := rt.PortCreate("")
		require.NoError(t, derr)

		_, serr := rt.Spawn(func(arg any) {
			order = append(order, "fast")
			rt.Put(done, nil)
		}, nil, nil)
		require.NoError(t, serr)

		order = append(order, "slow-start")
		require.NoError(t, ioshim.Sleep(rt, 0))
		order = append(order, "slow-end")

		rt.Get(done)
	})
	require.NoError(t, err)
	require.Contains(t, order, "fast")
	require.Contains(t, order, "slow-end")
}
