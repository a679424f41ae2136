// Package connpool recycles outbound TCP connections so the election
// and leader loops do not pay a handshake on every RPC, and reclaims
// connections that have sat idle too long.
package connpool

import (
	"net"
	"sync"
	"time"
)

// entry is one pooled connection together with the time it was last
// handed back by a caller.
type entry struct {
	conn     net.Conn
	lastUsed time.Time
}

// Pool hands out connections LIFO (most recently used first) but keeps
// each destination's queue ordered by lastUsed ascending, so the culler
// can scan from the front and stop at the first entry still within the
// idle threshold.
type Pool struct {
	mu   sync.Mutex
	dest map[string][]entry

	closing  bool
	closedCh chan struct{}
	dialer   net.Dialer

	idleThreshold time.Duration
	cullInterval  time.Duration

	wg sync.WaitGroup
}

// New starts a Pool and its background culler. idleThreshold is how long
// a pooled connection may sit unused before the culler closes it;
// cullInterval is how often the culler scans.
func New(idleThreshold, cullInterval time.Duration) *Pool {
	p := &Pool{
		dest:          make(map[string][]entry),
		closedCh:      make(chan struct{}),
		idleThreshold: idleThreshold,
		cullInterval:  cullInterval,
	}
	p.wg.Add(1)
	go p.cull()
	return p
}

// Perform atomically acquires (or dials) a connection to addr, invokes
// fn on it, then either returns the connection to the pool (fn
// returned true) or closes it (fn returned false, or Perform could not
// get a connection at all). It reports fn's result, or false if no
// connection could be obtained.
func (p *Pool) Perform(addr string, fn func(net.Conn) bool) bool {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return false
	}
	conn := p.popLocked(addr)
	p.mu.Unlock()

	if conn == nil {
		var err error
		conn, err = p.dialer.Dial("tcp", addr)
		if err != nil {
			return false
		}
	}

	ok := fn(conn)
	if !ok {
		conn.Close()
		return false
	}
	p.pushBack(addr, conn)
	return true
}

// popLocked removes and returns the newest (most recently used) pooled
// connection for addr, or nil if none is pooled. Taking from the back
// means a connection that was just culled from the front is never handed
// out mid-cull.
func (p *Pool) popLocked(addr string) net.Conn {
	q := p.dest[addr]
	if len(q) == 0 {
		return nil
	}
	last := q[len(q)-1]
	p.dest[addr] = q[:len(q)-1]
	return last.conn
}

func (p *Pool) pushBack(addr string, conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing {
		conn.Close()
		return
	}
	p.dest[addr] = append(p.dest[addr], entry{conn: conn, lastUsed: time.Now()})
}

// cull runs every cullInterval, closing any pooled connection whose idle
// age has reached idleThreshold. Each destination's queue is ordered by
// lastUsed ascending, so scanning stops at the first entry still within
// the threshold.
func (p *Pool) cull() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cullInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.closedCh:
			return
		case <-ticker.C:
			p.cullOnce()
		}
	}
}

func (p *Pool) cullOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for addr, q := range p.dest {
		i := 0
		for i < len(q) && now.Sub(q[i].lastUsed) >= p.idleThreshold {
			q[i].conn.Close()
			i++
		}
		if i > 0 {
			p.dest[addr] = q[i:]
		}
	}
}

// Close is idempotent. It stops the culler and closes every pooled
// connection. After Close returns, Perform always returns false.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return nil
	}
	p.closing = true
	for addr, q := range p.dest {
		for _, e := range q {
			e.conn.Close()
		}
		delete(p.dest, addr)
	}
	p.mu.Unlock()

	close(p.closedCh)
	p.wg.Wait()
	return nil
}
