package compiler

import "adv2.dev/adv2/internal/isa"

// Segment is a growable byte buffer backing one of the image's three
// segments. Offsets into it are stable once written (append-only), which
// is what lets forward references be patched after the fact.
type Segment struct {
	buf []byte
}

// Offset is the current write position — the offset a subsequent Put* call
// will land at.
func (s *Segment) Offset() int32 { return int32(len(s.buf)) }

// Bytes returns the segment's contents.
func (s *Segment) Bytes() []byte { return s.buf }

// Reserve appends n zero bytes and returns the offset they start at.
func (s *Segment) Reserve(n int) int32 {
	off := s.Offset()
	s.buf = append(s.buf, make([]byte, n)...)
	return off
}

// PutByte appends one byte.
func (s *Segment) PutByte(b byte) int32 {
	off := s.Offset()
	s.buf = append(s.buf, b)
	return off
}

// PutBytes appends raw bytes verbatim.
func (s *Segment) PutBytes(b []byte) int32 {
	off := s.Offset()
	s.buf = append(s.buf, b...)
	return off
}

// PutLong appends a 32-bit value, big-endian.
func (s *Segment) PutLong(v int32) int32 {
	off := s.Offset()
	var tmp [4]byte
	isa.PutLit32(tmp[:], v)
	s.buf = append(s.buf, tmp[:]...)
	return off
}

// PatchLong overwrites the 32-bit value at off.
func (s *Segment) PatchLong(off int32, v int32) {
	isa.PutLit32(s.buf[off:off+4], v)
}

// PatchByte overwrites the byte at off.
func (s *Segment) PatchByte(off int32, v byte) {
	s.buf[off] = v
}

// PatchBranch16 overwrites the signed 16-bit branch offset at off.
func (s *Segment) PatchBranch16(off int32, v int16) {
	isa.PutBranch16(s.buf[off:off+2], v)
}

// LongAt reads a 32-bit value previously written with PutLong/PatchLong.
func (s *Segment) LongAt(off int32) int32 {
	return isa.Lit32(s.buf[off : off+4])
}

// Branch16At reads back a 16-bit value previously written with
// PatchBranch16 — used to walk a branch chain's thread of links before it
// is resolved to real PC-relative offsets.
func (s *Segment) Branch16At(off int32) int16 {
	return isa.Branch16(s.buf[off : off+2])
}
