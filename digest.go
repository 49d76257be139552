package asx

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// rollingDigest folds canonical Events into a single sha256 state, one
// big-endian field at a time, so the result is byte-order independent of
// the host and depends only on the logical event sequence (§4.9). The
// "sha256:<64 hex>" literal format is part of the external fixture
// contract (§6), which is why this uses crypto/sha256 from the standard
// library rather than a third-party hash — the algorithm name itself is
// pinned by the contract, not a free implementation choice (see
// DESIGN.md).
type rollingDigest struct {
	h [sha256.Size]byte
}

func newRollingDigest() *rollingDigest {
	return &rollingDigest{h: sha256.Sum256(nil)}
}

// fold mixes ev into the digest: canonicalize its fields into a
// fixed-width big-endian byte buffer, then re-hash the current digest
// (as chaining state, written first) followed by that buffer.
func (d *rollingDigest) fold(ev Event) {
	var buf [8 * 9]byte
	binary.BigEndian.PutUint64(buf[0:8], ev.Seq)
	binary.BigEndian.PutUint64(buf[8:16], uint64(ev.Tick))
	binary.BigEndian.PutUint64(buf[16:24], uint64(ev.Kind))
	binary.BigEndian.PutUint64(buf[24:32], uint64(ev.Region))
	binary.BigEndian.PutUint64(buf[32:40], uint64(ev.Task))
	binary.BigEndian.PutUint64(buf[40:48], uint64(ev.Obligation))
	binary.BigEndian.PutUint64(buf[48:56], uint64(ev.Timer))
	binary.BigEndian.PutUint64(buf[56:64], uint64(ev.Channel))
	binary.BigEndian.PutUint64(buf[64:72], uint64(ev.To)<<32|ev.Extra&0xFFFFFFFF)

	h := sha256.New()
	h.Write(d.h[:])
	h.Write(buf[:])
	copy(d.h[:], h.Sum(nil))
}

// String returns the canonical "sha256:<64 hex>" representation.
func (d *rollingDigest) String() string {
	return "sha256:" + hex.EncodeToString(d.h[:])
}

// Bytes returns the raw 32-byte digest.
func (d *rollingDigest) Bytes() [sha256.Size]byte { return d.h }
