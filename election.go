package paxos

import "time"

// electionLoop is the outer loop every node runs for its whole lifetime:
// wait for either a heartbeat or a freshly drawn, randomized timeout: if
// the timeout fires first, contest an election; otherwise loop back and
// wait again. Winning an election hands control to leaderLoop, which
// runs until this node steps down or observes a higher term.
func (e *Engine) electionLoop() {
	defer e.wg.Done()

	for {
		timeout := randomElectionTimeout()

		e.mu.Lock()
		if e.closing {
			e.mu.Unlock()
			return
		}
		deadline := deadlineFor(timeout)
		fired := e.waitForHeartbeatOrDeadlineLocked(deadline)
		closing := e.closing
		e.mu.Unlock()

		if closing {
			return
		}
		if !fired {
			// A heartbeat (or another node's Vote) arrived before the
			// timeout; this iteration resamples and waits again. The
			// timeout is only ever resampled here, at the top of the
			// outer loop, never on a spurious wakeup.
			continue
		}

		if e.runElection() {
			e.leaderLoop()
		}
	}
}

// waitForHeartbeatOrDeadlineLocked blocks on e.heartbeat until either
// lastLeaderSeen advances past when this call started, the engine is
// closing, or deadline passes. It must be called with e.mu held, and
// returns with e.mu held. It reports true if the deadline elapsed
// without any qualifying activity.
func (e *Engine) waitForHeartbeatOrDeadlineLocked(deadline time.Time) bool {
	started := time.Now()
	for {
		if e.closing {
			return false
		}
		if e.lastLeaderSeen.After(started) {
			return false
		}
		remaining := deadline.Sub(time.Now())
		if remaining <= 0 {
			return true
		}

		timer := time.AfterFunc(remaining, func() {
			e.mu.Lock()
			e.heartbeat.Broadcast()
			e.mu.Unlock()
		})
		e.heartbeat.Wait()
		timer.Stop()
	}
}

// runElection bumps this node's term, fans out Vote to every peer, and
// reports whether a majority (including itself) came back agreeing this
// is now the highest term known, i.e. nobody objected with something
// higher. On a split vote, where no contender sees a majority, the
// randomized timeout that brought each contender here is what eventually
// breaks the symmetry on a later round.
func (e *Engine) runElection() bool {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return false
	}
	candidate := e.term.Bump(uint32(e.cfg.Self))
	e.term = candidate
	e.leading = false
	e.hasLeader = false
	e.mu.Unlock()

	n := e.cfg.N()
	type result struct {
		term      ProposalID
		contacted bool
	}
	results := make(chan result, n-1)
	for i := 0; i < n; i++ {
		if i == e.cfg.Self {
			continue
		}
		addr := e.cfg.Peers[i]
		go func() {
			resp, ok := e.callVote(addr, voteReq{Term: candidate})
			results <- result{term: resp.Term, contacted: ok}
		}()
	}

	agree := 1 // votes for itself
	highest := candidate
	for i := 0; i < n-1; i++ {
		r := <-results
		if !r.contacted {
			continue
		}
		if r.term.Less(candidate) || r.term == candidate {
			agree++
		} else {
			highest = maxProposal(highest, r.term)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closing || e.term != candidate {
		return false
	}
	if candidate.Less(highest) {
		e.term = highest
		return false
	}
	if !e.cfg.Quorum(agree) {
		return false
	}
	e.leading = true
	e.leader = uint32(e.cfg.Self)
	e.hasLeader = true
	e.lastLeaderSeen = time.Now()
	return true
}
