package paxos

import (
	"bytes"
	"sync"

	"github.com/basaltdb/paxos/internal/wire"
)

// Entry is the opaque payload carried in an accepted log slot. The core
// never looks inside Op; origin/seq is purely for the Applier's
// exactly-once bookkeeping.
type Entry struct {
	Origin uint32
	Seq    uint64
	Op     []byte
}

// encodeEntry serializes an Entry for the Accept/Success/Prepare-reply
// value field. It is a small, self-contained composite frame (plain
// field concatenation) rather than a top-level wire.Send target, since
// Entry itself is variable length.
func encodeEntry(e Entry) []byte {
	var buf bytes.Buffer
	wire.Send(&buf, e.Origin)
	wire.Send(&buf, e.Seq)
	wire.SendBytes(&buf, e.Op)
	return buf.Bytes()
}

func decodeEntry(b []byte) (Entry, bool) {
	r := bytes.NewReader(b)
	var e Entry
	if !wire.Recv(r, &e.Origin) || !wire.Recv(r, &e.Seq) {
		return e, false
	}
	op, ok := wire.RecvBytes(r)
	if !ok {
		return e, false
	}
	e.Op = op
	return e, true
}

// LogSlot is a single position in the replicated log. Once Chosen is
// true, AcceptedValue never changes again.
type LogSlot struct {
	Index uint64

	// HighestSeen is the highest proposal number this acceptor has
	// promised to or accepted for this slot, in either phase. It fences
	// off stale Prepare/Accept RPCs from superseded proposers.
	HighestSeen ProposalID

	HasAcceptedValue bool
	AcceptedProposal ProposalID
	AcceptedValue    Entry

	Chosen  bool
	Applied bool

	// Result/ResultErr cache the outcome of codec.Apply for this slot
	// once Applied is true, so a request that joins after the Applier
	// has already moved past this slot (a retry of a request that was
	// actually applied before the retry arrived) can be answered
	// directly instead of waiting on a pendingEntry nothing will ever
	// close again.
	Result    []byte
	ResultErr error
}

// replicatedLog is the engine-owned replicated log. It grows on demand and is
// always guarded by the engine's mutex; there is no independent lock
// here, and the engine lock is always acquired before either connection
// pool's lock, never the reverse.
type replicatedLog struct {
	slots []LogSlot
}

func newReplicatedLog() *replicatedLog {
	return &replicatedLog{slots: make([]LogSlot, 0, 64)}
}

// ensure grows the log, if needed, so that index i is addressable. The
// ((entry+1)*3)/2 growth factor amortizes reallocation across bursts of
// out-of-order slot fills.
func (l *replicatedLog) ensure(i uint64) {
	if i < uint64(len(l.slots)) {
		return
	}
	newLen := ((i + 1) * 3) / 2
	for uint64(len(l.slots)) < newLen {
		idx := uint64(len(l.slots))
		l.slots = append(l.slots, LogSlot{Index: idx})
	}
}

func (l *replicatedLog) get(i uint64) *LogSlot {
	l.ensure(i)
	return &l.slots[i]
}

// firstNonChosen returns the lowest index that is not yet chosen, the
// leader's starting point for a new round of Prepare/Accept.
func (l *replicatedLog) firstNonChosen() uint64 {
	for i := range l.slots {
		if !l.slots[i].Chosen {
			return uint64(i)
		}
	}
	return uint64(len(l.slots))
}

// firstUnacceptedFrom returns the lowest index >= from that has no
// accepted value, which is the hint a Prepare response carries so a
// leader can learn when it is safe to stop Preparing and Accept new
// values directly.
func (l *replicatedLog) firstUnacceptedFrom(from uint64) uint64 {
	l.ensure(from)
	i := from
	for i < uint64(len(l.slots)) && l.slots[i].HasAcceptedValue {
		i++
	}
	return i
}

func (l *replicatedLog) len() uint64 {
	return uint64(len(l.slots))
}

// originSeqs tracks, per origin node, the request sequence numbers this
// engine has already allocated a slot for, so a retried Request RPC
// from the same origin+seq is not proposed twice while it is still
// in-flight. This is distinct from (and in addition to) the Applier's
// high-water mark, which dedups at apply time regardless of how the
// entry got into the log.
type originSeqs struct {
	mu   sync.Mutex
	seen map[uint32]map[uint64]uint64 // origin -> seq -> slot index
}

func newOriginSeqs() *originSeqs {
	return &originSeqs{seen: make(map[uint32]map[uint64]uint64)}
}

func (o *originSeqs) lookup(origin uint32, seq uint64) (uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.seen[origin]
	if !ok {
		return 0, false
	}
	idx, ok := m[seq]
	return idx, ok
}

func (o *originSeqs) record(origin uint32, seq uint64, slot uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.seen[origin]
	if !ok {
		m = make(map[uint64]uint64)
		o.seen[origin] = m
	}
	m[seq] = slot
}
