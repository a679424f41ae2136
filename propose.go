package paxos

import (
	"context"
)

// proposeLocally drives one operation through Accept/Success under this
// node's current term. Callers (Request and handleRequestRPC) only call
// it while the engine believes itself to be leading, and proposeLocally
// checks again under e.mu, in the same critical section that allocates
// the slot, returning a NotLeaderError if this node is no longer leading.
//
// If (origin, seq) already has a slot, because this is a retry of a
// request still in flight, or one that has already completed, this
// joins the existing wait instead of allocating a second slot. That's
// one half of exactly-once handling; the other half lives in the
// Applier's per-origin high-water mark.
func (e *Engine) proposeLocally(ctx context.Context, origin uint32, seq uint64, op []byte) ([]byte, error) {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if !e.leading {
		e.mu.Unlock()
		return nil, &NotLeaderError{HasLeader: e.hasLeader, Leader: e.leader}
	}
	term := e.term

	var idx uint64
	if existing, ok := e.seqs.lookup(origin, seq); ok {
		idx = existing
	} else {
		idx = e.nextFreeSlot
		e.nextFreeSlot++
		e.seqs.record(origin, seq, idx)
	}
	e.mu.Unlock()

	pe := e.registerPending(idx)

	e.mu.Lock()
	alreadyChosen := e.log.get(idx).Chosen
	e.mu.Unlock()

	if !alreadyChosen {
		entry := Entry{Origin: origin, Seq: seq, Op: op}
		if err := e.acceptAndChoose(term, idx, entry); err != nil {
			return nil, err
		}
	}

	select {
	case <-pe.done:
		return pe.outcome.result, pe.outcome.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// acceptAndChoose runs the Accept phase for one slot/value across every
// peer (including this node, via a direct handler call rather than a
// loopback dial) and, on majority, marks it chosen and disseminates
// Success. It returns ErrLeadershipLost when fewer than a majority
// accept, after folding in any higher term a peer reported.
func (e *Engine) acceptAndChoose(term ProposalID, idx uint64, entry Entry) error {
	value := encodeEntry(entry)
	req := acceptReq{Term: term, Slot: idx, Value: value}

	type result struct {
		ok    bool
		term  ProposalID
	}
	n := e.cfg.N()
	results := make(chan result, n)

	for i := 0; i < n; i++ {
		i := i
		if i == e.cfg.Self {
			resp := e.handleAccept(req)
			results <- result{ok: resp.Ok, term: resp.Term}
			continue
		}
		go func() {
			resp, contacted := e.callAccept(e.cfg.Peers[i], req)
			if !contacted {
				results <- result{ok: false}
				return
			}
			results <- result{ok: resp.Ok, term: resp.Term}
		}()
	}

	accepted := 0
	highest := term
	for i := 0; i < n; i++ {
		r := <-results
		if r.ok {
			accepted++
		} else if term.Less(r.term) {
			highest = maxProposal(highest, r.term)
		}
	}

	if !e.cfg.Quorum(accepted) {
		e.noteLeaderActivity(highest)
		return ErrLeadershipLost
	}

	e.mu.Lock()
	slot := e.log.get(idx)
	slot.Chosen = true
	slot.HasAcceptedValue = true
	slot.AcceptedProposal = term
	slot.AcceptedValue = entry
	e.mu.Unlock()

	e.app.notify()
	e.broadcastSuccess(term, idx, value)
	return nil
}

// broadcastSuccess disseminates a chosen value to every peer. It is
// fire-and-forget: safety was already established by the Accept
// majority. A peer that misses this Success learns the value only if a
// later leader's recovery phase (Prepare from its first non-chosen slot)
// re-drives this slot; heartbeat Successes carry no value.
func (e *Engine) broadcastSuccess(term ProposalID, idx uint64, value []byte) {
	req := successReq{Term: term, Slot: idx, Value: value}
	for i := 0; i < e.cfg.N(); i++ {
		if i == e.cfg.Self {
			continue
		}
		addr := e.cfg.Peers[i]
		go func() { e.callSuccess(addr, req) }()
	}
}

// registerPending returns the shared wait point for idx, creating it if
// this is the first caller (original submission or a retry) to take an
// interest in that slot's outcome. Multiple goroutines may hold the same
// *pendingEntry; all of them observe the same close of done.
//
// If the Applier has already applied idx by the time this is called,
// because this is a retry that arrived after the original request's
// result was already delivered and the pendingEntry removed, a new
// pendingEntry would never be closed by anything. registerPending
// avoids that by checking Applied and the engine's pending map in one
// critical section that acquires e.mu before pendingMu, the same order
// applyOne uses when it marks a slot Applied and delivers to pending,
// so the two can never interleave into a missed delivery.
func (e *Engine) registerPending(idx uint64) *pendingEntry {
	e.mu.Lock()
	slot := e.log.get(idx)
	if slot.Applied {
		e.mu.Unlock()
		pe := &pendingEntry{done: make(chan struct{}), outcome: applyOutcome{result: slot.Result, err: slot.ResultErr}}
		close(pe.done)
		return pe
	}

	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	defer e.mu.Unlock()
	if pe, ok := e.pending[idx]; ok {
		return pe
	}
	pe := &pendingEntry{done: make(chan struct{})}
	e.pending[idx] = pe
	return pe
}
