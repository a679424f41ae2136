package paxos_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/basaltdb/paxos"
)

// echoCodec just returns whatever bytes it is given, so these tests can
// assert on Request's result directly without a real embedded store.
func echoCodec(data any, op []byte) ([]byte, any, error) {
	return op, data, nil
}

func shrinkTimeouts(t *testing.T) {
	origMin, origMax := paxos.ElectionTimeoutMin, paxos.ElectionTimeoutMax
	origHB, origRPC, origReq := paxos.HeartbeatInterval, paxos.RPCTimeout, paxos.RequestTimeout
	paxos.ElectionTimeoutMin = 30 * time.Millisecond
	paxos.ElectionTimeoutMax = 60 * time.Millisecond
	paxos.HeartbeatInterval = 10 * time.Millisecond
	paxos.RPCTimeout = 100 * time.Millisecond
	paxos.RequestTimeout = 3 * time.Second
	t.Cleanup(func() {
		paxos.ElectionTimeoutMin, paxos.ElectionTimeoutMax = origMin, origMax
		paxos.HeartbeatInterval, paxos.RPCTimeout, paxos.RequestTimeout = origHB, origRPC, origReq
	})
}

func startCluster(t *testing.T, basePort int, n int) []*paxos.Engine {
	shrinkTimeouts(t)
	peers := make([]string, n)
	for i := 0; i < n; i++ {
		peers[i] = fmt.Sprintf("127.0.0.1:%d", basePort+i)
	}
	engines := make([]*paxos.Engine, n)
	for i := 0; i < n; i++ {
		cfg, err := paxos.NewConfig(peers, i)
		if err != nil {
			t.Fatal(err)
		}
		e, err := paxos.New(cfg, paxos.OperationCodecFunc(echoCodec), nil, basePort+i)
		if err != nil {
			t.Fatalf("starting node %d: %v", i, err)
		}
		engines[i] = e
	}
	t.Cleanup(func() {
		for _, e := range engines {
			e.Teardown()
		}
	})
	return engines
}

// requestFromAny submits op against every node in turn until one
// accepts it, mirroring how a real client's redirect loop eventually
// lands on the leader.
func requestFromAny(t *testing.T, engines []*paxos.Engine, op []byte) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		for _, e := range engines {
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			result, err := e.Request(ctx, op)
			cancel()
			if err == nil {
				return result
			}
			lastErr = err
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no node accepted the request before the deadline, last error: %v", lastErr)
	return nil
}

func TestSingleNodeElectsItselfAndServes(t *testing.T) {
	engines := startCluster(t, 47100, 1)
	result := requestFromAny(t, engines, []byte("hello"))
	if string(result) != "hello" {
		t.Errorf("got %q, want %q", result, "hello")
	}
}

func TestThreeNodeHappyPath(t *testing.T) {
	engines := startCluster(t, 47110, 3)

	result := requestFromAny(t, engines, []byte("request 1"))
	if string(result) != "request 1" {
		t.Errorf("got %q, want %q", result, "request 1")
	}

	result = requestFromAny(t, engines, []byte("request 2"))
	if string(result) != "request 2" {
		t.Errorf("got %q, want %q", result, "request 2")
	}
}

func TestLeaderFailureTriggersReelection(t *testing.T) {
	engines := startCluster(t, 47120, 3)

	requestFromAny(t, engines, []byte("before failure"))

	leaderIdx := -1
	for i, e := range engines {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		_, err := e.Request(ctx, []byte("probe"))
		cancel()
		if err == nil {
			leaderIdx = i
			break
		}
	}
	if leaderIdx == -1 {
		t.Fatal("could not identify a leader before failing it")
	}
	engines[leaderIdx].Teardown()

	var survivors []*paxos.Engine
	for i, e := range engines {
		if i != leaderIdx {
			survivors = append(survivors, e)
		}
	}
	result := requestFromAny(t, survivors, []byte("after failure"))
	if string(result) != "after failure" {
		t.Errorf("got %q, want %q", result, "after failure")
	}
}

func TestSequentialRequestsGetIndependentResults(t *testing.T) {
	engines := startCluster(t, 47130, 3)

	r1 := requestFromAny(t, engines, []byte("alpha"))
	r2 := requestFromAny(t, engines, []byte("beta"))
	if string(r1) != "alpha" || string(r2) != "beta" {
		t.Errorf("got %q, %q, want %q, %q", r1, r2, "alpha", "beta")
	}
}
