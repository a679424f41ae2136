// Package clientconn is the client-facing half of the wire protocol: it
// dials into the cluster, sends a Request RPC, and follows whatever
// leader redirects come back, retrying connection failures with
// exponential backoff, on behalf of a caller that has no log of its own,
// only a server list and a sequence counter.
package clientconn

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// Backoff tunables for retrying after a connection-level failure: the
// wait starts at StartBackoff and is multiplied by BackoffMult after each
// failure, up to MaxBackoff.
var (
	StartBackoff = 50 * time.Millisecond
	MaxBackoff   = 2 * time.Second
	BackoffMult  = 2
)

// ErrNoServers is the failure tryOnce reports when the client has no
// server addresses at all. Request treats it like any other connection
// failure and keeps retrying with backoff until ctx is done.
var ErrNoServers = errors.New("clientconn: no servers reachable")

// Client is a single logical requester: every operation it submits
// carries the same Origin id and a sequence number that increases once
// per call, which is what lets the cluster's exactly-once handling
// recognize a retried Request as the same request rather than a new one.
type Client struct {
	mu      sync.Mutex
	servers []string
	current int
	origin  uint32
	seq     uint64
}

// New returns a Client that will address the given servers, trying them
// in order until one accepts a connection. origin must be unique across
// every concurrently active Client talking to the same cluster.
func New(origin uint32, servers []string) *Client {
	cp := make([]string, len(servers))
	copy(cp, servers)
	return &Client{servers: cp, origin: origin}
}

// Request submits op and blocks until it is applied, following leader
// redirects and retrying on a dial failure with exponential backoff,
// until ctx is done.
func (c *Client) Request(ctx context.Context, op []byte) ([]byte, error) {
	c.mu.Lock()
	seq := c.seq
	c.seq++
	c.mu.Unlock()

	backoff := StartBackoff
	for {
		result, redirect, err := c.tryOnce(seq, op)
		if err == nil {
			return result, nil
		}
		if redirect {
			continue // advanceLeader already pointed current at the hint
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= time.Duration(BackoffMult)
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
	}
}

// tryOnce dials whichever server current points at, sends one Request
// RPC, and either returns a result, asks the caller to retry against a
// freshly redirected server (redirect=true, err!=nil), or reports a
// connection-level failure, after rotating to the next server, so
// Request can back off.
func (c *Client) tryOnce(seq uint64, op []byte) (result []byte, redirect bool, err error) {
	c.mu.Lock()
	if len(c.servers) == 0 {
		c.mu.Unlock()
		return nil, false, ErrNoServers
	}
	addr := c.servers[c.current]
	origin := c.origin
	c.mu.Unlock()

	conn, dialErr := net.DialTimeout("tcp", addr, 2*time.Second)
	if dialErr != nil {
		c.rotate(addr)
		return nil, false, dialErr
	}
	defer conn.Close()

	if !writeRequest(conn, origin, seq, op) {
		c.rotate(addr)
		return nil, false, errors.New("clientconn: failed to send request")
	}
	resp, ok := readResponse(bufio.NewReader(conn))
	if !ok {
		c.rotate(addr)
		return nil, false, errors.New("clientconn: failed to read response")
	}

	if !resp.leading {
		if resp.hasLeader {
			c.setCurrentToAddr(resp.leaderHint)
		} else {
			c.rotate(addr)
		}
		return nil, true, errors.New("clientconn: redirected")
	}
	if !resp.hasResults {
		return nil, true, errors.New("clientconn: no leader result, retrying")
	}
	return resp.results, false, nil
}

// rotate advances current to the next server in the list, wrapping
// around, so a caller that keeps retrying eventually tries every known
// address.
func (c *Client) rotate(failed string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.servers) == 0 {
		return
	}
	c.current = (c.current + 1) % len(c.servers)
}

// setCurrentToAddr points current at the server list index whose
// position matches hint. Servers are expected to be listed in the same
// node-id order as the cluster's Config.Peers.
func (c *Client) setCurrentToAddr(hint uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(hint) < len(c.servers) {
		c.current = int(hint)
	}
}

// AddServer appends a newly learned address to the server list, for a
// caller that discovers cluster members out of band.
func (c *Client) AddServer(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers = append(c.servers, addr)
}
