package isa

import "encoding/binary"

// HeaderSize is the on-disk size in bytes of ImageHdr.
const HeaderSize = 28

// ImageHdr is the fixed image header described in spec.md §6. Segment
// offsets are relative to the start of the image (i.e. the start of the
// header itself), and the three segments follow the header in the order
// data, string, code.
type ImageHdr struct {
	DataOffset   int32
	DataSize     int32
	StringOffset int32
	StringSize   int32
	CodeOffset   int32
	CodeSize     int32
	MainFunction int32
}

// Encode writes the header in the field order spec.md §6 pins, big-endian
// (the reference implementation's in-code immediates are assembled
// most-significant-byte-first; this module keeps the whole image
// consistently big-endian so a single decoder suffices for both header and
// code-segment literals).
func (h ImageHdr) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:], uint32(h.DataOffset))
	binary.BigEndian.PutUint32(buf[4:], uint32(h.DataSize))
	binary.BigEndian.PutUint32(buf[8:], uint32(h.StringOffset))
	binary.BigEndian.PutUint32(buf[12:], uint32(h.StringSize))
	binary.BigEndian.PutUint32(buf[16:], uint32(h.CodeOffset))
	binary.BigEndian.PutUint32(buf[20:], uint32(h.CodeSize))
	binary.BigEndian.PutUint32(buf[24:], uint32(h.MainFunction))
	return buf
}

// DecodeImageHdr parses a header from the front of buf.
func DecodeImageHdr(buf []byte) (ImageHdr, error) {
	var h ImageHdr
	if len(buf) < HeaderSize {
		return h, errShortHeader
	}
	h.DataOffset = int32(binary.BigEndian.Uint32(buf[0:]))
	h.DataSize = int32(binary.BigEndian.Uint32(buf[4:]))
	h.StringOffset = int32(binary.BigEndian.Uint32(buf[8:]))
	h.StringSize = int32(binary.BigEndian.Uint32(buf[12:]))
	h.CodeOffset = int32(binary.BigEndian.Uint32(buf[16:]))
	h.CodeSize = int32(binary.BigEndian.Uint32(buf[20:]))
	h.MainFunction = int32(binary.BigEndian.Uint32(buf[24:]))
	return h, nil
}

type imageError string

func (e imageError) Error() string { return string(e) }

const errShortHeader = imageError("isa: image shorter than header")

// Image is a fully assembled, loadable program: the header plus the three
// concatenated segments, exactly as emitted to or read from a file.
type Image struct {
	Hdr    ImageHdr
	Data   []byte // data segment (objects, globals, and interned strings)
	String []byte // string segment; always empty — strings live in Data
	Code   []byte // code segment
}

// Bytes concatenates the header and segments into a single on-disk image.
func (img Image) Bytes() []byte {
	out := make([]byte, 0, HeaderSize+len(img.Data)+len(img.String)+len(img.Code))
	out = append(out, img.Hdr.Encode()...)
	out = append(out, img.Data...)
	out = append(out, img.String...)
	out = append(out, img.Code...)
	return out
}

// DecodeImage parses a complete image previously produced by Bytes.
func DecodeImage(buf []byte) (Image, error) {
	hdr, err := DecodeImageHdr(buf)
	if err != nil {
		return Image{}, err
	}
	var img Image
	img.Hdr = hdr
	img.Data = sliceAt(buf, hdr.DataOffset, hdr.DataSize)
	img.String = sliceAt(buf, hdr.StringOffset, hdr.StringSize)
	img.Code = sliceAt(buf, hdr.CodeOffset, hdr.CodeSize)
	return img, nil
}

func sliceAt(buf []byte, off, size int32) []byte {
	if size <= 0 {
		return nil
	}
	end := int(off) + int(size)
	if end > len(buf) {
		end = len(buf)
	}
	if int(off) > len(buf) {
		return nil
	}
	out := make([]byte, end-int(off))
	copy(out, buf[off:end])
	return out
}

// PutBranch16 writes a signed 16-bit big-endian branch offset at buf[0:2].
func PutBranch16(buf []byte, offset int16) {
	binary.BigEndian.PutUint16(buf, uint16(offset))
}

// Branch16 reads a signed 16-bit big-endian branch offset from buf[0:2].
func Branch16(buf []byte) int16 {
	return int16(binary.BigEndian.Uint16(buf))
}

// PutLit32 writes a signed 32-bit big-endian immediate at buf[0:4].
func PutLit32(buf []byte, v int32) {
	binary.BigEndian.PutUint32(buf, uint32(v))
}

// Lit32 reads a signed 32-bit big-endian immediate from buf[0:4].
func Lit32(buf []byte) int32 {
	return int32(binary.BigEndian.Uint32(buf))
}
