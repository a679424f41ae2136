package paxos

import (
	"errors"
	"fmt"
)

// ErrShuttingDown is returned by any operation invoked during or after
// Teardown; no engine state changes as a result.
var ErrShuttingDown = errors.New("paxos: node is shutting down")

// ErrRequestTimeout is returned by Request when a proposal is not
// accepted before its deadline. The caller may retry.
var ErrRequestTimeout = errors.New("paxos: request timed out")

// ErrLeadershipLost is returned by Request when the node believed it
// was leader but stepped down, or the believed leader changed, while a
// request was in flight. Retryable against the new leader.
var ErrLeadershipLost = errors.New("paxos: leadership changed mid-request")

// NotLeaderError is returned when Request is asked to originate on a
// node that is not (and does not know) the leader, or when a Request RPC
// reply says the remote is not leading. Leader carries the node id the
// responder currently believes holds leadership, if any.
type NotLeaderError struct {
	Leader    uint32
	HasLeader bool
}

func (e *NotLeaderError) Error() string {
	if e.HasLeader {
		return fmt.Sprintf("paxos: not leader, believed leader is node %d", e.Leader)
	}
	return "paxos: not leader, no known leader"
}

// ErrBadConfig is wrapped and returned by New when the supplied Config
// is invalid. It is the only fatal-at-construction path this package
// has.
var ErrBadConfig = errors.New("paxos: invalid configuration")
