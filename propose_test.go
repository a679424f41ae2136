package paxos

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, port int) *Engine {
	t.Helper()
	cfg, err := NewConfig([]string{"127.0.0.1:" + strconv.Itoa(port)}, 0)
	if err != nil {
		t.Fatal(err)
	}
	var applied int32
	codec := OperationCodecFunc(func(data any, op []byte) ([]byte, any, error) {
		atomic.AddInt32(&applied, 1)
		return op, data, nil
	})
	e, err := New(cfg, codec, nil, port)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Teardown() })
	return e
}

// waitUntilLeading polls until e believes itself to be the leader, which
// a single-node cluster reaches almost immediately once its election
// timeout fires once.
func waitUntilLeading(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		leading := e.leading
		e.mu.Unlock()
		if leading {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("node never became leader")
}

func TestProposeLocallyJoinsExistingSlotForSameOriginSeq(t *testing.T) {
	orig := ElectionTimeoutMin
	origMax := ElectionTimeoutMax
	ElectionTimeoutMin, ElectionTimeoutMax = 20*time.Millisecond, 40*time.Millisecond
	defer func() { ElectionTimeoutMin, ElectionTimeoutMax = orig, origMax }()

	e := newTestEngine(t, 47200)
	waitUntilLeading(t, e)

	var wg sync.WaitGroup
	results := make([][]byte, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			results[i], errs[i] = e.proposeLocally(ctx, 99, 5, []byte("same op"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if string(results[0]) != "same op" || string(results[1]) != "same op" {
		t.Errorf("got %q and %q, want both %q", results[0], results[1], "same op")
	}
}
