package paxos

import (
	"io"

	"github.com/basaltdb/paxos/internal/wire"
)

// tag is the one-byte discriminator that opens every RPC frame.
type tag uint8

const (
	tagVote tag = iota
	tagPrepare
	tagAccept
	tagSuccess
	tagRequest
)

// voteReq/voteResp implement the Vote RPC: a candidate asks a peer to
// learn its term, and the peer replies with whatever term it holds
// (which lets the candidate detect it is already behind).
type voteReq struct {
	Term ProposalID
}

type voteResp struct {
	Term ProposalID
}

// prepareReq/prepareResp implement Prepare.
type prepareReq struct {
	Term ProposalID
	Slot uint64
}

type prepareResp struct {
	Term           ProposalID
	HasAccepted    bool
	AcceptedTerm   ProposalID
	Value          []byte
	HasNextUnfilled bool
	NextUnfilled   uint64
}

// acceptReq/acceptResp implement Accept.
type acceptReq struct {
	Term  ProposalID
	Slot  uint64
	Value []byte
}

type acceptResp struct {
	Term ProposalID // highest term this acceptor has seen
	Ok   bool
}

// successReq/successResp implement Success (also doubles as the
// leader's heartbeat when Heartbeat is set and Value is empty).
type successReq struct {
	Term      ProposalID
	Slot      uint64
	Heartbeat bool
	Value     []byte
}

type successResp struct {
	Term ProposalID
	Ack  bool
}

// requestReq/requestResp implement the follower-to-leader Request RPC.
type requestReq struct {
	Origin uint32
	Seq    uint64
	Op     []byte
}

type requestResp struct {
	Leading    bool
	HasLeader  bool
	LeaderHint uint32
	HasResults bool
	Results    []byte
}

func writeTag(w io.Writer, t tag) bool {
	return wire.Send(w, t)
}

func readTag(r io.Reader) (tag, bool) {
	var t tag
	if !wire.Recv(r, &t) {
		return 0, false
	}
	return t, true
}

func (m voteReq) encode(w io.Writer) bool {
	return writeTag(w, tagVote) && wire.Send(w, m.Term)
}

func decodeVoteReq(r io.Reader) (voteReq, bool) {
	var m voteReq
	return m, wire.Recv(r, &m.Term)
}

func (m voteResp) encode(w io.Writer) bool {
	return wire.Send(w, m.Term)
}

func decodeVoteResp(r io.Reader) (voteResp, bool) {
	var m voteResp
	return m, wire.Recv(r, &m.Term)
}

func (m prepareReq) encode(w io.Writer) bool {
	return writeTag(w, tagPrepare) && wire.Send(w, m.Term) && wire.Send(w, m.Slot)
}

func decodePrepareReq(r io.Reader) (prepareReq, bool) {
	var m prepareReq
	if !wire.Recv(r, &m.Term) || !wire.Recv(r, &m.Slot) {
		return m, false
	}
	return m, true
}

func (m prepareResp) encode(w io.Writer) bool {
	if !wire.Send(w, m.Term) || !wire.Send(w, m.HasAccepted) {
		return false
	}
	if m.HasAccepted {
		if !wire.Send(w, m.AcceptedTerm) || !wire.SendBytes(w, m.Value) {
			return false
		}
	}
	if !wire.Send(w, m.HasNextUnfilled) {
		return false
	}
	if m.HasNextUnfilled {
		if !wire.Send(w, m.NextUnfilled) {
			return false
		}
	}
	return true
}

func decodePrepareResp(r io.Reader) (prepareResp, bool) {
	var m prepareResp
	if !wire.Recv(r, &m.Term) || !wire.Recv(r, &m.HasAccepted) {
		return m, false
	}
	if m.HasAccepted {
		var ok bool
		if !wire.Recv(r, &m.AcceptedTerm) {
			return m, false
		}
		m.Value, ok = wire.RecvBytes(r)
		if !ok {
			return m, false
		}
	}
	if !wire.Recv(r, &m.HasNextUnfilled) {
		return m, false
	}
	if m.HasNextUnfilled {
		if !wire.Recv(r, &m.NextUnfilled) {
			return m, false
		}
	}
	return m, true
}

func (m acceptReq) encode(w io.Writer) bool {
	return writeTag(w, tagAccept) && wire.Send(w, m.Term) && wire.Send(w, m.Slot) && wire.SendBytes(w, m.Value)
}

func decodeAcceptReq(r io.Reader) (acceptReq, bool) {
	var m acceptReq
	var ok bool
	if !wire.Recv(r, &m.Term) || !wire.Recv(r, &m.Slot) {
		return m, false
	}
	m.Value, ok = wire.RecvBytes(r)
	return m, ok
}

func (m acceptResp) encode(w io.Writer) bool {
	return wire.Send(w, m.Term) && wire.Send(w, m.Ok)
}

func decodeAcceptResp(r io.Reader) (acceptResp, bool) {
	var m acceptResp
	if !wire.Recv(r, &m.Term) || !wire.Recv(r, &m.Ok) {
		return m, false
	}
	return m, true
}

func (m successReq) encode(w io.Writer) bool {
	return writeTag(w, tagSuccess) && wire.Send(w, m.Term) && wire.Send(w, m.Slot) &&
		wire.Send(w, m.Heartbeat) && wire.SendBytes(w, m.Value)
}

func decodeSuccessReq(r io.Reader) (successReq, bool) {
	var m successReq
	var ok bool
	if !wire.Recv(r, &m.Term) || !wire.Recv(r, &m.Slot) || !wire.Recv(r, &m.Heartbeat) {
		return m, false
	}
	m.Value, ok = wire.RecvBytes(r)
	return m, ok
}

func (m successResp) encode(w io.Writer) bool {
	return wire.Send(w, m.Term) && wire.Send(w, m.Ack)
}

func decodeSuccessResp(r io.Reader) (successResp, bool) {
	var m successResp
	if !wire.Recv(r, &m.Term) || !wire.Recv(r, &m.Ack) {
		return m, false
	}
	return m, true
}

func (m requestReq) encode(w io.Writer) bool {
	return writeTag(w, tagRequest) && wire.Send(w, m.Origin) && wire.Send(w, m.Seq) && wire.SendBytes(w, m.Op)
}

func decodeRequestReq(r io.Reader) (requestReq, bool) {
	var m requestReq
	var ok bool
	if !wire.Recv(r, &m.Origin) || !wire.Recv(r, &m.Seq) {
		return m, false
	}
	m.Op, ok = wire.RecvBytes(r)
	return m, ok
}

func (m requestResp) encode(w io.Writer) bool {
	if !wire.Send(w, m.Leading) || !wire.Send(w, m.HasLeader) || !wire.Send(w, m.LeaderHint) || !wire.Send(w, m.HasResults) {
		return false
	}
	if m.HasResults {
		return wire.SendBytes(w, m.Results)
	}
	return true
}

func decodeRequestResp(r io.Reader) (requestResp, bool) {
	var m requestResp
	if !wire.Recv(r, &m.Leading) || !wire.Recv(r, &m.HasLeader) || !wire.Recv(r, &m.LeaderHint) || !wire.Recv(r, &m.HasResults) {
		return m, false
	}
	if m.HasResults {
		var ok bool
		m.Results, ok = wire.RecvBytes(r)
		if !ok {
			return m, false
		}
	}
	return m, true
}
