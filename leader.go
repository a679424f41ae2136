package paxos

import "time"

// leaderLoop runs for as long as this node believes itself to be
// leading the term it just won. It first recovers any slot a previous
// leader may have left half-chosen (the Prepare phase), then settles
// into sending periodic heartbeats until it steps down, because the
// engine observed a higher term, Teardown was called, or a heartbeat
// round discovers it has been deposed.
func (e *Engine) leaderLoop() {
	e.mu.Lock()
	term := e.term
	e.mu.Unlock()

	if !e.recoverLocked(term) {
		return
	}

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		if !e.stillLeading(term) {
			return
		}
		<-ticker.C
		if !e.stillLeading(term) {
			return
		}
		if !e.sendHeartbeats(term) {
			return
		}
	}
}

// recoverLocked runs the classic Paxos Phase 1 (Prepare) against every
// slot from the log's first non-chosen index up to wherever a majority
// confirms nothing further is accepted. Any slot a majority reports as
// accepted (but not yet chosen) is re-driven through Accept under this
// node's own term before recovery is considered complete, which is what
// lets this leader safely fall back to Accept-only steady state
// afterward.
func (e *Engine) recoverLocked(term ProposalID) bool {
	e.mu.Lock()
	idx := e.log.firstNonChosen()
	e.mu.Unlock()

	for {
		if !e.stillLeading(term) {
			return false
		}

		resp, maxNext, ok := e.preparePeers(term, idx)
		if !ok {
			return false
		}

		if resp.hasValue {
			entry, decoded := decodeEntry(resp.value)
			if decoded {
				if err := e.acceptAndChoose(term, idx, entry); err != nil {
					return false
				}
			}
			idx++
			continue
		}

		e.mu.Lock()
		e.nextFreeSlot = maxNext
		e.mu.Unlock()
		return true
	}
}

type recoveredValue struct {
	hasValue bool
	value    []byte
}

// preparePeers runs one round of Prepare for idx against every peer
// (including a direct local call) and folds the replies into: the
// highest-term accepted value any acceptor reported for idx, if any, and
// the furthest "next unfilled" hint seen, which becomes this node's
// nextFreeSlot once recovery completes.
func (e *Engine) preparePeers(term ProposalID, idx uint64) (recoveredValue, uint64, bool) {
	req := prepareReq{Term: term, Slot: idx}
	n := e.cfg.N()

	type reply struct {
		resp      prepareResp
		contacted bool
	}
	results := make(chan reply, n)
	for i := 0; i < n; i++ {
		i := i
		if i == e.cfg.Self {
			results <- reply{resp: e.handlePrepare(req), contacted: true}
			continue
		}
		go func() {
			resp, ok := e.callPrepare(e.cfg.Peers[i], req)
			results <- reply{resp: resp, contacted: ok}
		}()
	}

	ok := 0
	higherSeen := false
	var higher ProposalID
	highest := ProposalID{}
	hasHighest := false
	var best prepareResp
	maxNext := idx
	for i := 0; i < n; i++ {
		r := <-results
		if !r.contacted {
			continue
		}
		if r.resp.Term.Less(term) {
			continue // stale peer view, ignore
		}
		if term.Less(r.resp.Term) {
			// This acceptor has already promised a higher term than ours;
			// it has fenced us out, so this isn't a promise we can count.
			if !higherSeen || higher.Less(r.resp.Term) {
				higher = r.resp.Term
			}
			higherSeen = true
			continue
		}
		ok++
		if r.resp.HasAccepted && (!hasHighest || highest.Less(r.resp.AcceptedTerm)) {
			highest = r.resp.AcceptedTerm
			hasHighest = true
			best = r.resp
		}
		if r.resp.HasNextUnfilled && r.resp.NextUnfilled > maxNext {
			maxNext = r.resp.NextUnfilled
		}
	}

	if higherSeen {
		e.noteLeaderActivity(higher)
		return recoveredValue{}, 0, false
	}
	if !e.cfg.Quorum(ok) {
		return recoveredValue{}, 0, false
	}
	if hasHighest {
		return recoveredValue{hasValue: true, value: best.Value}, maxNext, true
	}
	return recoveredValue{}, maxNext, true
}

// stillLeading reports whether this node is still leading under term,
// and hasn't been asked to close.
func (e *Engine) stillLeading(term ProposalID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closing && e.leading && e.term == term
}

// sendHeartbeats disseminates a heartbeat-only Success to every peer at
// the log's current length, and steps this node down if any peer reveals
// a higher term.
func (e *Engine) sendHeartbeats(term ProposalID) bool {
	e.mu.Lock()
	slot := e.log.len()
	e.mu.Unlock()

	req := successReq{Term: term, Slot: slot, Heartbeat: true}
	n := e.cfg.N()
	results := make(chan ProposalID, n-1)
	for i := 0; i < n; i++ {
		if i == e.cfg.Self {
			continue
		}
		addr := e.cfg.Peers[i]
		go func() {
			resp, ok := e.callSuccess(addr, req)
			if ok {
				results <- resp.Term
			} else {
				results <- term
			}
		}()
	}

	highest := term
	for i := 0; i < n-1; i++ {
		highest = maxProposal(highest, <-results)
	}
	if term.Less(highest) {
		e.noteLeaderActivity(highest)
		return false
	}
	return true
}
