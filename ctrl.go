package cothread

// CtrlQuery selects what Ctrl reports. Reserved for future expansion;
// currently Ctrl always returns the full snapshot regardless of query.
type CtrlQuery struct{}

// CtrlResult is a point-in-time snapshot of scheduler occupancy and load,
// safe to read concurrently with a running Runtime: it is published via an
// atomic pointer swap (by New, whenever a thread is spawned or terminates,
// and on each load-average tick) rather than protected by a lock shared
// with the hot path.
type CtrlResult struct {
	New       int
	Ready     int
	Waiting   int
	Suspended int
	Dead      int
	Load      float64
}

// Ctrl returns the most recently published scheduler snapshot. It is safe
// to call from any goroutine, including concurrently with a running
// Runtime: it reads a lock-free atomic snapshot rather than the live
// queues, which are only ever touched by the scheduler goroutine.
func (rt *Runtime) Ctrl(query CtrlQuery) (CtrlResult, error) {
	snap := rt.snapshot.Load()
	if snap == nil {
		return CtrlResult{}, nil
	}
	return *snap, nil
}
