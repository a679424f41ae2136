// Package wire implements fixed-width framing for the small typed values
// that make up a Paxos RPC, plus a length-prefixed slab for the
// variable-length fields some RPCs carry: opaque operation bytes and
// encoded log entries.
//
// There is no endianness negotiation. One byte order is picked
// (BigEndian) and used everywhere a wire value crosses encoding/binary,
// since every node in a cluster is expected to run on the same
// architecture family and there is no cross-endian interop to support.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// order is the single byte order used for every fixed-width value this
// package encodes. Never vary it per-connection or per-message.
var order = binary.BigEndian

// MaxValueSize bounds a single length-prefixed payload. It exists so a
// corrupt or hostile length prefix cannot make a receiver allocate an
// unbounded buffer; it has nothing to do with Paxos correctness.
const MaxValueSize = 64 << 20 // 64 MiB

// Send writes the fixed-width binary representation of v. It reports
// true iff the full encoding was written without error; callers treat
// false as a dropped RPC, not a panic-worthy condition.
func Send(w io.Writer, v any) bool {
	if err := binary.Write(w, order, v); err != nil {
		return false
	}
	return true
}

// Recv reads the fixed-width binary representation of v, which must be a
// pointer to a fixed-size value. It reports true iff exactly the
// expected number of bytes were read.
func Recv(r io.Reader, v any) bool {
	if err := binary.Read(r, order, v); err != nil {
		return false
	}
	return true
}

// SendBytes writes a variable-length slab as a uint32 length prefix
// followed by the bytes themselves. It is how opaque operation payloads
// and accepted values cross the wire.
func SendBytes(w io.Writer, b []byte) bool {
	if len(b) > MaxValueSize {
		return false
	}
	var n uint32 = uint32(len(b))
	if !Send(w, n) {
		return false
	}
	if n == 0 {
		return true
	}
	written, err := w.Write(b)
	return err == nil && written == int(n)
}

// RecvBytes reads a slab written by SendBytes. A length prefix above
// MaxValueSize is treated as a protocol error and returns false without
// attempting to allocate or read further.
func RecvBytes(r io.Reader) ([]byte, bool) {
	var n uint32
	if !Recv(r, &n) {
		return nil, false
	}
	if n > MaxValueSize {
		return nil, false
	}
	if n == 0 {
		return []byte{}, true
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, false
	}
	return buf, true
}

// ErrTruncated is returned by higher layers (not by this package, which
// reports failures as plain booleans) when they want to surface a
// wire-level decode failure as an error value, e.g. for logging.
var ErrTruncated = fmt.Errorf("wire: truncated or malformed frame")
