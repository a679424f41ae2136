// Package paxos implements Multi-Paxos replication for an arbitrary,
// caller-supplied mutable data structure.
//
// It is multi-paxos with collapsed roles: every node is simultaneously a
// Proposer, Acceptor, and Learner of the replicated log, but a stable
// leader is elected so that in steady state only one node proposes.
// Clients submit operations through Request; the node that holds
// leadership drives them through Paxos and every node applies the
// resulting log in the same order.
//
// The engine owns three supporting substrates: internal/wire for fixed-
// width RPC framing, internal/connpool for recycled outbound TCP
// connections, and internal/termpool for bounded-concurrency inbound
// connection handling. None of the three know anything about Paxos; the
// engine wires them together.
//
// Durability of term and the log is not implemented. A crash loses both,
// which is unsafe for a real deployment; see the TODO(durability)
// comments in the Vote, Prepare and Accept handlers for exactly what
// would need to be persisted first.
//
// References:
//
// - Paxos Made Simple - Lamport
//
// - Paxos Made Live - Chandra, Griesemer, Redstone
package paxos
