package paxos

import "testing"

func TestProposalIDLess(t *testing.T) {
	a := ProposalID{Round: 1, Node: 2}
	b := ProposalID{Round: 1, Node: 3}
	c := ProposalID{Round: 2, Node: 0}

	if !a.Less(b) {
		t.Error("expected (1,2) < (1,3)")
	}
	if !b.Less(c) {
		t.Error("expected (1,3) < (2,0)")
	}
	if a.Less(a) {
		t.Error("a should not be less than itself")
	}
}

func TestProposalIDBump(t *testing.T) {
	p := zeroProposal(3)
	b := p.Bump(3)
	if b.Round != 1 || b.Node != 3 {
		t.Errorf("Bump: got %v, want round 1 node 3", b)
	}
	if !p.Less(b) {
		t.Error("a bumped proposal must sort after the original")
	}
}

func TestMaxProposal(t *testing.T) {
	a := ProposalID{Round: 5, Node: 1}
	b := ProposalID{Round: 5, Node: 2}
	if got := maxProposal(a, b); got != b {
		t.Errorf("maxProposal(%v, %v) = %v, want %v", a, b, got, b)
	}
	if got := maxProposal(b, a); got != b {
		t.Errorf("maxProposal(%v, %v) = %v, want %v", b, a, got, b)
	}
}
