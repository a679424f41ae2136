package paxos

import "time"

// handleVote replies with the term as it stood before any update, then,
// only if the candidate's term is a strict improvement, adopts it and
// wakes anything waiting on the heartbeat condition. Granting a vote
// also counts as leader activity: it defers this node's own election
// timer the same way a heartbeat would, so a follower that just agreed
// to back a candidate doesn't immediately time out and start contesting
// against the very candidate it voted for.
func (e *Engine) handleVote(req voteReq) voteResp {
	e.mu.Lock()
	defer e.mu.Unlock()

	reply := e.term
	if e.term.Less(req.Term) {
		// TODO(durability): term must be fsynced before this reply is
		// sent, or a crash-restart can forget a vote already granted
		// and grant a conflicting one.
		e.term = req.Term
		e.hasLeader = false
		e.leading = false
		e.lastLeaderSeen = time.Now()
		e.heartbeat.Broadcast()
	}
	return voteResp{Term: reply}
}

// handlePrepare is the acceptor side of Paxos Phase 1: promise not to
// accept anything below req.Term for this slot, and return whatever this
// acceptor already has for it, plus the first slot at or beyond
// req.Slot with no accepted value (the hint that lets the leader skip
// straight to Accept-only steady state).
func (e *Engine) handlePrepare(req prepareReq) prepareResp {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.log.get(req.Slot)
	var resp prepareResp
	if req.Term.Less(slot.HighestSeen) {
		resp.Term = slot.HighestSeen
	} else {
		// TODO(durability): the promise implied by raising HighestSeen
		// must be fsynced before this reply is sent.
		slot.HighestSeen = req.Term
		resp.Term = req.Term
		if slot.HasAcceptedValue {
			resp.HasAccepted = true
			resp.AcceptedTerm = slot.AcceptedProposal
			resp.Value = encodeEntry(slot.AcceptedValue)
		}
	}
	resp.HasNextUnfilled = true
	resp.NextUnfilled = e.log.firstUnacceptedFrom(req.Slot)

	e.noteLeaderActivityLocked(req.Term)
	return resp
}

// handleAccept is the acceptor side of Paxos Phase 2: accept the value
// if req.Term is not stale for this slot.
func (e *Engine) handleAccept(req acceptReq) acceptResp {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.log.get(req.Slot)
	if req.Term.Less(slot.HighestSeen) {
		return acceptResp{Term: slot.HighestSeen, Ok: false}
	}
	entry, ok := decodeEntry(req.Value)
	if !ok {
		return acceptResp{Term: slot.HighestSeen, Ok: false}
	}

	// TODO(durability): accepted_proposal/accepted_value must be
	// fsynced before this reply is sent; this is the exact write a
	// crash must not lose for Paxos safety to survive a restart.
	slot.HighestSeen = req.Term
	slot.HasAcceptedValue = true
	slot.AcceptedProposal = req.Term
	slot.AcceptedValue = entry

	e.noteLeaderActivityLocked(req.Term)
	return acceptResp{Term: req.Term, Ok: true}
}

// handleSuccess both disseminates a chosen value and, when Heartbeat is
// set, carries no payload at all and serves only to reset the
// follower's election timer. The leader's steady-state heartbeat
// piggybacks on the same RPC that disseminates real values.
func (e *Engine) handleSuccess(req successReq) successResp {
	e.mu.Lock()
	if !req.Heartbeat {
		slot := e.log.get(req.Slot)
		if !slot.Chosen {
			if entry, ok := decodeEntry(req.Value); ok {
				slot.HasAcceptedValue = true
				slot.AcceptedProposal = req.Term
				slot.AcceptedValue = entry
				slot.Chosen = true
			}
		}
	}
	e.noteLeaderActivityLocked(req.Term)
	term := e.term
	e.mu.Unlock()

	if !req.Heartbeat {
		e.app.notify()
	}
	return successResp{Term: term, Ack: true}
}

// handleRequestRPC is the follower-to-leader Request RPC: a node that
// does not currently believe itself to be leading tells the caller so
// (and who it believes is, if anyone) so the caller can redirect;
// retrying is the caller's responsibility.
func (e *Engine) handleRequestRPC(req requestReq) requestResp {
	e.mu.Lock()
	leading := e.leading
	leader := e.leader
	hasLeader := e.hasLeader
	e.mu.Unlock()

	if !leading {
		return requestResp{Leading: false, HasLeader: hasLeader, LeaderHint: leader}
	}

	ctx, cancel := contextWithTimeout(RequestTimeout)
	defer cancel()
	result, err := e.proposeLocally(ctx, req.Origin, req.Seq, req.Op)
	if err != nil {
		// Most likely this node stepped down mid-proposal; tell the
		// caller to retry rather than surface an opaque error over an
		// RPC response that has no error channel.
		return requestResp{Leading: false}
	}
	return requestResp{Leading: true, HasResults: true, Results: result}
}

// noteLeaderActivity is noteLeaderActivityLocked for callers, such as
// acceptAndChoose, that are not already holding e.mu.
func (e *Engine) noteLeaderActivity(term ProposalID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.noteLeaderActivityLocked(term)
}

// noteLeaderActivityLocked folds in a term observed from an RPC that
// only a current (or contending) leader sends. Only an RPC whose term
// is at least as high as ours counts as leader activity; a stale
// heartbeat from a node that has since been deposed must not suppress
// this node's own election timer.
func (e *Engine) noteLeaderActivityLocked(term ProposalID) {
	if e.term.Less(term) {
		e.term = term
	}
	if term.Less(e.term) {
		return
	}
	e.leader = term.Node
	e.hasLeader = true
	if term.Node != uint32(e.cfg.Self) {
		e.leading = false
	}
	e.lastLeaderSeen = time.Now()
	e.heartbeat.Broadcast()
}
