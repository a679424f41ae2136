package paxos

import "sync"

// applier sequentially applies chosen-but-not-yet-applied log entries to
// an externally owned data structure via codec: it never reorders,
// never skips, and enforces exactly-once application with its own
// per-origin high-water mark, independent of the engine's in-flight
// dedup in originSeqs.
type applier struct {
	e     *Engine
	codec OperationCodec
	data  any

	mu         sync.Mutex
	cond       *sync.Cond
	woken      bool
	stopping   bool
	highWater  map[uint32]uint64       // origin -> highest seq already applied
	lastResult map[uint32]applyOutcome // origin -> outcome of that highest seq
}

func newApplier(e *Engine, codec OperationCodec, initial any) *applier {
	a := &applier{
		e:          e,
		codec:      codec,
		data:       initial,
		highWater:  make(map[uint32]uint64),
		lastResult: make(map[uint32]applyOutcome),
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// notify wakes the applier if it is sleeping, to re-scan the log. It is
// always safe to call, and never blocks.
func (a *applier) notify() {
	a.mu.Lock()
	a.woken = true
	a.mu.Unlock()
	a.cond.Broadcast()
}

// stop asks the applier's run loop to return; the caller must still
// e.wg.Wait() to know it has actually exited.
func (a *applier) stop() {
	a.mu.Lock()
	a.stopping = true
	a.mu.Unlock()
	a.cond.Broadcast()
}

// run is the applier's whole lifetime: wait for notify (or a spurious
// wakeup, it always re-scans regardless), apply every chosen entry it
// finds starting at the lowest not-yet-applied index, and deliver each
// one's result to whatever pendingEntry is waiting on that slot, if any.
func (a *applier) run() {
	defer a.e.wg.Done()

	next := uint64(0)
	for {
		a.mu.Lock()
		for !a.woken && !a.stopping {
			a.cond.Wait()
		}
		a.woken = false
		stopping := a.stopping
		a.mu.Unlock()

		if stopping {
			return
		}

		for {
			a.e.mu.Lock()
			if next >= a.e.log.len() {
				a.e.mu.Unlock()
				break
			}
			slot := a.e.log.get(next)
			if !slot.Chosen || slot.Applied {
				if !slot.Chosen {
					a.e.mu.Unlock()
					break
				}
				// Already applied (e.g. replayed from a prior term);
				// skip without re-invoking codec.Apply.
				a.e.mu.Unlock()
				next++
				continue
			}
			entry := slot.AcceptedValue
			a.e.mu.Unlock()

			a.applyOne(next, entry)
			next++
		}
	}
}

// applyOne applies a single chosen entry exactly once, skipping
// codec.Apply (but still delivering the cached result to any waiter) if
// this origin/seq was already applied at an earlier index, which can
// happen if a value was proposed more than once before the first
// proposal's result was observed, including a retry that landed on a
// second slot after a leader failover (the new leader's own in-flight
// dedup has no record of a request the old leader already applied).
func (a *applier) applyOne(idx uint64, entry Entry) {
	a.mu.Lock()
	hw, seen := a.highWater[entry.Origin]
	duplicate := seen && entry.Seq <= hw
	var cached applyOutcome
	if duplicate && entry.Seq == hw {
		cached = a.lastResult[entry.Origin]
	}
	a.mu.Unlock()

	var outcome applyOutcome
	if duplicate {
		outcome = cached
	} else {
		result, next, err := a.codec.Apply(a.data, entry.Op)
		if err == nil {
			a.data = next
		}
		outcome = applyOutcome{result: result, err: err}

		a.mu.Lock()
		if !seen || entry.Seq > hw {
			a.highWater[entry.Origin] = entry.Seq
			a.lastResult[entry.Origin] = outcome
		}
		a.mu.Unlock()
	}

	// Holding e.mu across the Applied write and the pending-map lookup
	// (acquiring pendingMu in the same order registerPending does) is
	// what makes the two functions mutually exclusive: whichever runs
	// first, the other sees a consistent view and never leaves a
	// pendingEntry that nothing will ever close. See registerPending.
	a.e.mu.Lock()
	slot := a.e.log.get(idx)
	slot.Applied = true
	slot.Result = outcome.result
	slot.ResultErr = outcome.err

	a.e.pendingMu.Lock()
	pe, ok := a.e.pending[idx]
	if ok {
		delete(a.e.pending, idx)
	}
	a.e.pendingMu.Unlock()
	a.e.mu.Unlock()

	if ok {
		pe.outcome = outcome
		close(pe.done)
	}
}
