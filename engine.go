package paxos

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/basaltdb/paxos/internal/connpool"
	"github.com/basaltdb/paxos/internal/termpool"
)

// Tunables. Exported as variables, not constants, so tests can shrink
// them.
var (
	ElectionTimeoutMin = 150 * time.Millisecond
	ElectionTimeoutMax = 300 * time.Millisecond
	HeartbeatInterval  = 50 * time.Millisecond
	RPCTimeout         = 300 * time.Millisecond
	RequestTimeout     = 2 * time.Second

	connIdleThreshold = 30 * time.Second
	connCullInterval  = 5 * time.Second
	maxConcurrentConn = 64
)

// Engine is one node's consensus core: term, leadership, and the
// replicated log, guarded by a single mutex, plus the outbound and
// inbound socket substrates that carry its RPCs.
type Engine struct {
	cfg   Config
	codec OperationCodec

	mu        sync.Mutex
	heartbeat *sync.Cond
	term      ProposalID
	leading   bool
	leader    uint32
	hasLeader bool
	log       *replicatedLog
	// nextFreeSlot is the next slot index this node will allocate to a
	// freshly submitted operation while leading. It only ever moves
	// forward, and only while holding mu.
	nextFreeSlot uint64

	// lastLeaderSeen is bumped whenever an RPC arrives carrying a term
	// at least as high as ours and originating from who we believe is
	// the leader (or is about to become it). The election loop compares
	// against this to decide whether a heartbeat "arrived".
	lastLeaderSeen time.Time

	seqs *originSeqs
	// localSeq is this node's own per-origin counter, used when it is
	// the origin of a request (i.e. a caller invoked Request on it
	// directly, rather than us relaying someone else's RPC).
	localSeqMu sync.Mutex
	localSeq   uint64

	pendingMu sync.Mutex
	pending   map[uint64]*pendingEntry

	outbound *connpool.Pool
	inbound  *termpool.Pool

	app *applier

	closing   bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type applyOutcome struct {
	result []byte
	err    error
}

// pendingEntry is the wait point a proposer and every retry that joins
// the same slot block on. The Applier sets outcome once, then closes
// done; any number of waiters can safely observe the close and read
// outcome afterward, which a size-1 buffered channel cannot support.
type pendingEntry struct {
	done    chan struct{}
	outcome applyOutcome
}

// New constructs and starts a node: its election/leader loop, its
// applier, and its inbound/outbound socket substrates. initial is the
// starting value handed to codec.Apply as data on the first applied
// entry.
func New(cfg Config, codec OperationCodec, initial any, listenPort int) (*Engine, error) {
	if cfg.Self < 0 || cfg.Self >= cfg.N() {
		return nil, fmt.Errorf("%w: self index %d out of range for %d peers", ErrBadConfig, cfg.Self, cfg.N())
	}
	e := &Engine{
		cfg:     cfg,
		codec:   codec,
		term:    zeroProposal(uint32(cfg.Self)),
		log:     newReplicatedLog(),
		seqs:    newOriginSeqs(),
		pending: make(map[uint64]*pendingEntry),
	}
	e.heartbeat = sync.NewCond(&e.mu)

	e.outbound = connpool.New(connIdleThreshold, connCullInterval)

	inbound, err := termpool.New(listenPort, maxConcurrentConn, RPCTimeout*4, e.demux)
	if err != nil {
		e.outbound.Close()
		return nil, err
	}
	e.inbound = inbound

	e.app = newApplier(e, codec, initial)

	e.wg.Add(1)
	go e.electionLoop()

	e.wg.Add(1)
	go e.app.run()

	return e, nil
}

// Request submits op for replication. If this node is (or can reach)
// the leader, it blocks until op is chosen, applied, and its result is
// available, or ctx is done / RequestTimeout elapses.
func (e *Engine) Request(ctx context.Context, op []byte) ([]byte, error) {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return nil, ErrShuttingDown
	}
	e.mu.Unlock()

	origin := uint32(e.cfg.Self)
	e.localSeqMu.Lock()
	seq := e.localSeq
	e.localSeq++
	e.localSeqMu.Unlock()

	deadline := time.Now().Add(RequestTimeout)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		e.mu.Lock()
		leading := e.leading
		leaderNode := e.leader
		hasLeader := e.hasLeader
		e.mu.Unlock()

		var result []byte
		var err error
		if leading {
			result, err = e.proposeLocally(ctx, origin, seq, op)
		} else if hasLeader && int(leaderNode) != e.cfg.Self {
			result, err = e.forwardRequest(ctx, leaderNode, origin, seq, op)
		} else {
			err = &NotLeaderError{HasLeader: hasLeader, Leader: leaderNode}
		}

		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrRequestTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*NotLeaderError); ok {
		return true
	}
	return err == ErrLeadershipLost
}

// Teardown is idempotent: it stops the election/applier loops, closes
// the inbound and outbound socket substrates, and waits for every
// goroutine this Engine started to exit.
func (e *Engine) Teardown() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closing = true
		e.mu.Unlock()
		e.heartbeat.Broadcast()

		e.app.stop()
		e.inbound.Close()
		e.outbound.Close()

		e.wg.Wait()

		e.pendingMu.Lock()
		for slot, pe := range e.pending {
			pe.outcome = applyOutcome{err: ErrShuttingDown}
			close(pe.done)
			delete(e.pending, slot)
		}
		e.pendingMu.Unlock()
	})
	return nil
}

func (e *Engine) isClosing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closing
}

func (e *Engine) logf(format string, args ...any) {
	log.Printf("paxos[%d]: "+format, append([]any{e.cfg.Self}, args...)...)
}
