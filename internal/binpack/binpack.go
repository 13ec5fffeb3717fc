// Package binpack implements the Propeller binary-header packaging scheme
// invoked by the compiler's `-t TEMPLATE` flag: append a compiled image to a
// Spin binary template and relocate the header fields that describe where
// variable space starts, the way the original distribution's standalone
// `propbinary` tool does. Propeller's binary object format itself is out of
// scope (spec.md §5's Non-goals) — this package implements only the narrow
// slice `propbinary.c` exercises: one template, one appended image, one
// relocated header.
package binpack

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the on-disk size of a Spin binary's fixed header.
const HeaderSize = 16

// targetChecksum is the byte sum every valid Spin binary must reduce to,
// modulo 256, once its own checksum byte is included (propbinary.c's
// SPIN_TARGET_CHECKSUM).
const targetChecksum = 0x14

// Header is the Spin binary header's fixed fields, little-endian (the
// Propeller is a little-endian target) per propbinary.c's SpinHdr.
type Header struct {
	ClkFreq uint32
	ClkMode byte
	Chksum  byte
	PBase   uint16
	VBase   uint16
	DBase   uint16
	PCurr   uint16
	DCurr   uint16
}

// DecodeHeader parses a Header from the front of buf.
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("binpack: template shorter than a Spin header (%d bytes)", len(buf))
	}
	h.ClkFreq = binary.LittleEndian.Uint32(buf[0:])
	h.ClkMode = buf[4]
	h.Chksum = buf[5]
	h.PBase = binary.LittleEndian.Uint16(buf[6:])
	h.VBase = binary.LittleEndian.Uint16(buf[8:])
	h.DBase = binary.LittleEndian.Uint16(buf[10:])
	h.PCurr = binary.LittleEndian.Uint16(buf[12:])
	h.DCurr = binary.LittleEndian.Uint16(buf[14:])
	return h, nil
}

// Encode writes h back out in its on-disk layout.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.ClkFreq)
	buf[4] = h.ClkMode
	buf[5] = h.Chksum
	binary.LittleEndian.PutUint16(buf[6:], h.PBase)
	binary.LittleEndian.PutUint16(buf[8:], h.VBase)
	binary.LittleEndian.PutUint16(buf[10:], h.DBase)
	binary.LittleEndian.PutUint16(buf[12:], h.PCurr)
	binary.LittleEndian.PutUint16(buf[14:], h.DCurr)
	return buf
}

// Pack appends image to template, padded to a 32-bit boundary, and relocates
// vbase/dbase/dcurr by the padded image size so the interpreter's variable
// space starts after the appended image — exactly propbinary.c's
// `hdr->vbase/dbase/dcurr += paddedImageSize` relocation, minus the
// template's own Spin object/DAT-header imagebase patch (this package has no
// Spin object layout to walk; a caller embedding a real Spin template must
// patch that field itself before calling Pack).
func Pack(template, image []byte) ([]byte, error) {
	hdr, err := DecodeHeader(template)
	if err != nil {
		return nil, err
	}
	padded := (len(image) + 3) &^ 3

	out := make([]byte, 0, len(template)+padded)
	out = append(out, template...)
	out = append(out, image...)
	for len(out) < len(template)+padded {
		out = append(out, 0)
	}

	hdr.VBase += uint16(padded)
	hdr.DBase += uint16(padded)
	hdr.DCurr += uint16(padded)
	copy(out, hdr.Encode())

	updateChecksum(out)
	return out, nil
}

// updateChecksum recomputes byte 5 so the whole binary's byte sum, modulo
// 256, equals targetChecksum (propbinary.c's UpdateChecksum).
func updateChecksum(buf []byte) {
	buf[5] = 0
	var sum byte
	for _, b := range buf {
		sum += b
	}
	buf[5] = targetChecksum - sum
}
