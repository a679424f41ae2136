package paxos

import "fmt"

// ProposalID identifies a leader's attempt at a term. Comparison is
// lexicographic on Round first, then Node, which is what makes term
// bumps from distinct nodes never collide.
type ProposalID struct {
	Round uint32
	Node  uint32
}

// zeroProposal is the initial proposal a node holds before it has ever seen a
// vote: round 0 under its own node id.
func zeroProposal(node uint32) ProposalID {
	return ProposalID{Round: 0, Node: node}
}

// Less reports whether p sorts strictly before other.
func (p ProposalID) Less(other ProposalID) bool {
	if p.Round != other.Round {
		return p.Round < other.Round
	}
	return p.Node < other.Node
}

// Bump returns the next proposal this node should use to contest
// leadership: the current round plus one, stamped with node.
func (p ProposalID) Bump(node uint32) ProposalID {
	return ProposalID{Round: p.Round + 1, Node: node}
}

func (p ProposalID) String() string {
	return fmt.Sprintf("(%d,%d)", p.Round, p.Node)
}

// maxProposal returns whichever of a, b sorts later.
func maxProposal(a, b ProposalID) ProposalID {
	if a.Less(b) {
		return b
	}
	return a
}
