package paxos

import (
	"bufio"
	"net"
)

// demux is the Terminal Pool's demultiplexer: it reads one RPC frame off
// conn, dispatches it to the matching handler, and writes the reply. It
// returns true to keep the connection open for the next RPC, false to
// have the Terminal Pool close it. It returns false on a truncated or
// unrecognized frame, which is treated as a protocol error (close the
// connection, no state change), and also when the reply cannot be
// written.
func (e *Engine) demux(conn net.Conn) bool {
	r := bufio.NewReader(conn)
	t, ok := readTag(r)
	if !ok {
		return false
	}
	switch t {
	case tagVote:
		req, ok := decodeVoteReq(r)
		if !ok {
			return false
		}
		resp := e.handleVote(req)
		return resp.encode(conn)
	case tagPrepare:
		req, ok := decodePrepareReq(r)
		if !ok {
			return false
		}
		resp := e.handlePrepare(req)
		return resp.encode(conn)
	case tagAccept:
		req, ok := decodeAcceptReq(r)
		if !ok {
			return false
		}
		resp := e.handleAccept(req)
		return resp.encode(conn)
	case tagSuccess:
		req, ok := decodeSuccessReq(r)
		if !ok {
			return false
		}
		resp := e.handleSuccess(req)
		return resp.encode(conn)
	case tagRequest:
		req, ok := decodeRequestReq(r)
		if !ok {
			return false
		}
		resp := e.handleRequestRPC(req)
		return resp.encode(conn)
	default:
		return false
	}
}

// callVote sends a Vote RPC to addr. contacted reports whether the peer
// replied at all; callers treat "not contacted" as an absent/negative
// vote.
func (e *Engine) callVote(addr string, req voteReq) (resp voteResp, contacted bool) {
	e.outbound.Perform(addr, func(conn net.Conn) bool {
		conn.SetDeadline(deadlineFor(RPCTimeout))
		if !req.encode(conn) {
			return false
		}
		r, ok := decodeVoteResp(bufio.NewReader(conn))
		if !ok {
			return false
		}
		resp, contacted = r, true
		return true
	})
	return resp, contacted
}

func (e *Engine) callPrepare(addr string, req prepareReq) (resp prepareResp, contacted bool) {
	e.outbound.Perform(addr, func(conn net.Conn) bool {
		conn.SetDeadline(deadlineFor(RPCTimeout))
		if !req.encode(conn) {
			return false
		}
		r, ok := decodePrepareResp(bufio.NewReader(conn))
		if !ok {
			return false
		}
		resp, contacted = r, true
		return true
	})
	return resp, contacted
}

func (e *Engine) callAccept(addr string, req acceptReq) (resp acceptResp, contacted bool) {
	e.outbound.Perform(addr, func(conn net.Conn) bool {
		conn.SetDeadline(deadlineFor(RPCTimeout))
		if !req.encode(conn) {
			return false
		}
		r, ok := decodeAcceptResp(bufio.NewReader(conn))
		if !ok {
			return false
		}
		resp, contacted = r, true
		return true
	})
	return resp, contacted
}

func (e *Engine) callSuccess(addr string, req successReq) (resp successResp, contacted bool) {
	e.outbound.Perform(addr, func(conn net.Conn) bool {
		conn.SetDeadline(deadlineFor(RPCTimeout))
		if !req.encode(conn) {
			return false
		}
		r, ok := decodeSuccessResp(bufio.NewReader(conn))
		if !ok {
			return false
		}
		resp, contacted = r, true
		return true
	})
	return resp, contacted
}

func (e *Engine) callRequest(addr string, req requestReq) (resp requestResp, contacted bool) {
	e.outbound.Perform(addr, func(conn net.Conn) bool {
		conn.SetDeadline(deadlineFor(RequestTimeout))
		if !req.encode(conn) {
			return false
		}
		r, ok := decodeRequestResp(bufio.NewReader(conn))
		if !ok {
			return false
		}
		resp, contacted = r, true
		return true
	})
	return resp, contacted
}
