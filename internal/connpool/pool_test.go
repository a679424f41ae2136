package connpool

import (
	"net"
	"testing"
	"time"
)

// listenEcho starts a tiny accept-and-hold listener so Perform has
// something real to dial and pool.
func listenEcho(t *testing.T) net.Listener {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				buf := make([]byte, 1)
				for {
					if _, err := conn.Read(buf); err != nil {
						return
					}
				}
			}()
		}
	}()
	return ln
}

func TestPerformReusesConnection(t *testing.T) {
	ln := listenEcho(t)
	defer ln.Close()

	p := New(time.Minute, time.Hour)
	defer p.Close()

	var first net.Conn
	ok := p.Perform(ln.Addr().String(), func(c net.Conn) bool {
		first = c
		return true
	})
	if !ok {
		t.Fatal("first Perform failed")
	}

	var second net.Conn
	ok = p.Perform(ln.Addr().String(), func(c net.Conn) bool {
		second = c
		return true
	})
	if !ok {
		t.Fatal("second Perform failed")
	}
	if first != second {
		t.Error("expected the second Perform to reuse the pooled connection")
	}
}

func TestPerformDiscardsOnFailure(t *testing.T) {
	ln := listenEcho(t)
	defer ln.Close()

	p := New(time.Minute, time.Hour)
	defer p.Close()

	var first net.Conn
	p.Perform(ln.Addr().String(), func(c net.Conn) bool {
		first = c
		return false
	})

	var second net.Conn
	p.Perform(ln.Addr().String(), func(c net.Conn) bool {
		second = c
		return true
	})
	if first == second {
		t.Error("expected a fresh connection after the prior one was rejected")
	}
}

func TestCullerReclaimsIdleConnections(t *testing.T) {
	ln := listenEcho(t)
	defer ln.Close()

	p := New(20*time.Millisecond, 10*time.Millisecond)
	defer p.Close()

	p.Perform(ln.Addr().String(), func(c net.Conn) bool { return true })

	p.mu.Lock()
	before := len(p.dest[ln.Addr().String()])
	p.mu.Unlock()
	if before != 1 {
		t.Fatalf("expected 1 pooled connection before the cull, got %d", before)
	}

	time.Sleep(100 * time.Millisecond)

	p.mu.Lock()
	after := len(p.dest[ln.Addr().String()])
	p.mu.Unlock()
	if after != 0 {
		t.Errorf("expected the idle connection to be culled, still have %d", after)
	}
}

func TestCloseRejectsFurtherPerform(t *testing.T) {
	ln := listenEcho(t)
	defer ln.Close()

	p := New(time.Minute, time.Hour)
	p.Close()

	ok := p.Perform(ln.Addr().String(), func(c net.Conn) bool { return true })
	if ok {
		t.Error("expected Perform to fail after Close")
	}
}
