package paxos

import "testing"

func TestNewConfigRejectsBadSelf(t *testing.T) {
	if _, err := NewConfig([]string{"a:1", "b:2"}, 2); err == nil {
		t.Error("expected an error for an out-of-range self index")
	}
	if _, err := NewConfig([]string{"a:1", "b:2"}, -1); err == nil {
		t.Error("expected an error for a negative self index")
	}
}

func TestConfigQuorum(t *testing.T) {
	cfg, err := NewConfig([]string{"a:1", "b:2", "c:3"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Quorum(1) {
		t.Error("1 of 3 should not be a quorum")
	}
	if !cfg.Quorum(2) {
		t.Error("2 of 3 should be a quorum")
	}

	two, err := NewConfig([]string{"a:1", "b:2"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if two.Quorum(1) {
		t.Error("1 of 2 should not be a quorum")
	}
	if !two.Quorum(2) {
		t.Error("2 of 2 should be a quorum")
	}
}

func TestConfigSelfAddr(t *testing.T) {
	cfg, err := NewConfig([]string{"a:1", "b:2"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SelfAddr() != "b:2" {
		t.Errorf("SelfAddr() = %q, want %q", cfg.SelfAddr(), "b:2")
	}
}
