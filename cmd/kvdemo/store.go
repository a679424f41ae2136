// Command kvdemo embeds the consensus engine behind a tiny replicated
// key/value store: a small Op type with GET/PUT, JSON-encoded, applied
// against an in-memory map.
package main

import (
	"encoding/json"
	"fmt"
)

type opType int

const (
	opGet opType = iota
	opPut
)

func (t opType) String() string {
	switch t {
	case opGet:
		return "GET"
	case opPut:
		return "PUT"
	default:
		return "UNKNOWN"
	}
}

// op is the wire representation of one client operation.
type op struct {
	Type  opType
	Key   string
	Value string
}

func encodeOp(o op) ([]byte, error) {
	return json.Marshal(o)
}

func decodeOp(b []byte) (op, error) {
	var o op
	err := json.Unmarshal(b, &o)
	return o, err
}

// store is the externally owned data structure the engine replicates
// operations against. It is never touched directly by callers, only
// through codec.Apply, so every replica's copy stays in lockstep.
type store struct {
	data map[string]string
}

func newStore() *store {
	return &store{data: make(map[string]string)}
}

// codec adapts store to paxos.OperationCodec. data flows through as
// `any` the same way the engine hands it to the Applier: this function
// either returns the same *store back unchanged (a GET) or mutates it in
// place and returns it again (a PUT); it is never replaced wholesale,
// unlike a codec for an immutable value type would.
func applyOp(data any, raw []byte) ([]byte, any, error) {
	s, ok := data.(*store)
	if !ok {
		return nil, data, fmt.Errorf("kvdemo: unexpected data type %T", data)
	}
	o, err := decodeOp(raw)
	if err != nil {
		return nil, data, err
	}
	switch o.Type {
	case opPut:
		s.data[o.Key] = o.Value
		return []byte(o.Value), s, nil
	case opGet:
		return []byte(s.data[o.Key]), s, nil
	default:
		return nil, data, fmt.Errorf("kvdemo: unknown op type %v", o.Type)
	}
}
