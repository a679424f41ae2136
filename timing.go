package paxos

import (
	"context"
	"math/rand"
	"time"
)

func deadlineFor(d time.Duration) time.Time {
	return time.Now().Add(d)
}

func contextWithTimeout(d time.Duration) (context.Context, func()) {
	return context.WithTimeout(context.Background(), d)
}

// randomElectionTimeout draws a fresh, independent timeout uniformly
// from [ElectionTimeoutMin, ElectionTimeoutMax]. It is resampled once
// per outer election-loop iteration, never on a spurious condition-
// variable wakeup, so the randomization actually breaks split-vote
// symmetry instead of having every contender retry in lockstep.
func randomElectionTimeout() time.Duration {
	span := ElectionTimeoutMax - ElectionTimeoutMin
	if span <= 0 {
		return ElectionTimeoutMin
	}
	return ElectionTimeoutMin + time.Duration(rand.Int63n(int64(span)+1))
}
