package paxos

import "context"

// forwardRequest relays a client's operation to the peer this node
// currently believes is leading, via the Request RPC. If the peer
// disagrees (it has since stepped down, or never was leader), the error
// it returns is retryable so Request's outer loop picks up whatever
// leader hint came back, if any.
func (e *Engine) forwardRequest(ctx context.Context, leader uint32, origin uint32, seq uint64, op []byte) ([]byte, error) {
	addr := e.cfg.Peers[leader]
	resp, ok := e.callRequest(addr, requestReq{Origin: origin, Seq: seq, Op: op})
	if !ok {
		return nil, ErrLeadershipLost
	}
	if !resp.Leading {
		e.mu.Lock()
		if resp.HasLeader {
			e.leader = resp.LeaderHint
			e.hasLeader = true
		} else {
			e.hasLeader = false
		}
		e.mu.Unlock()
		return nil, &NotLeaderError{HasLeader: resp.HasLeader, Leader: resp.LeaderHint}
	}
	if !resp.HasResults {
		return nil, ErrLeadershipLost
	}
	return resp.Results, nil
}
