package clientconn

import (
	"io"

	"github.com/basaltdb/paxos/internal/wire"
)

// tagRequest must match the root package's rpc.go tag ordering: Vote,
// Prepare, Accept, Success, Request. A client only ever sends the last
// one.
const tagRequest = 4

type response struct {
	leading    bool
	hasLeader  bool
	leaderHint uint32
	hasResults bool
	results    []byte
}

func writeRequest(w io.Writer, origin uint32, seq uint64, op []byte) bool {
	var tag uint8 = tagRequest
	return wire.Send(w, tag) && wire.Send(w, origin) && wire.Send(w, seq) && wire.SendBytes(w, op)
}

func readResponse(r io.Reader) (response, bool) {
	var resp response
	if !wire.Recv(r, &resp.leading) || !wire.Recv(r, &resp.hasLeader) ||
		!wire.Recv(r, &resp.leaderHint) || !wire.Recv(r, &resp.hasResults) {
		return resp, false
	}
	if resp.hasResults {
		var ok bool
		resp.results, ok = wire.RecvBytes(r)
		if !ok {
			return resp, false
		}
	}
	return resp, true
}
