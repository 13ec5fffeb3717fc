package vm

import (
	"testing"

	"adv2.dev/adv2/internal/isa"
)

// asm is a tiny in-test bytecode assembler: each entry is either an isa.Op
// (appended as its single opcode byte) or an int operand (appended as the
// raw bytes Width(op) expects, using the encoding helpers the compiler
// itself relies on). It exists to build hand-rolled images for opcode-level
// tests without going through the full compiler pipeline.
type asm struct {
	buf []byte
}

func (a *asm) op(op isa.Op) *asm {
	a.buf = append(a.buf, byte(op))
	return a
}

func (a *asm) u8(v int) *asm {
	a.buf = append(a.buf, byte(v))
	return a
}

func (a *asm) i8(v int) *asm {
	a.buf = append(a.buf, byte(int8(v)))
	return a
}

func (a *asm) lit32(v int32) *asm {
	buf := make([]byte, 4)
	isa.PutLit32(buf, v)
	a.buf = append(a.buf, buf...)
	return a
}

func (a *asm) branch16(v int16) *asm {
	buf := make([]byte, 2)
	isa.PutBranch16(buf, v)
	a.buf = append(a.buf, buf...)
	return a
}

// buildImage wraps code with the leading [HALT, HALT] sentinel every real
// image carries (spec.md §3) and places mainFunction right after it, with
// an empty data segment beyond the reserved zero word.
func buildImage(code []byte) *isa.Image {
	data := make([]byte, 4) // offset 0 reserved
	full := append([]byte{byte(isa.HALT), byte(isa.HALT)}, code...)
	return &isa.Image{
		Hdr: isa.ImageHdr{
			DataOffset:   isa.HeaderSize,
			DataSize:     int32(len(data)),
			CodeOffset:   isa.HeaderSize + int32(len(data)),
			CodeSize:     int32(len(full)),
			MainFunction: 2,
		},
		Data: data,
		Code: full,
	}
}

func TestArithmeticAndPrint(t *testing.T) {
	var a asm
	a.op(isa.FRAME).u8(1).
		op(isa.LIT).lit32(2).
		op(isa.LIT).lit32(3).
		op(isa.ADD).
		op(isa.TRAP).u8(int(isa.TrapPrintInt)).
		op(isa.RETURNZ)

	img := buildImage(a.buf)
	host := newBufHost("")
	interp := New(img, DefaultStackSize, host)
	if err := interp.Run(img.Hdr.MainFunction); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := host.out.String(); got != "5" {
		t.Fatalf("output = %q, want %q", got, "5")
	}
}

func TestBranchOnFalseSkipsBody(t *testing.T) {
	var a asm
	a.op(isa.FRAME).u8(1).
		op(isa.LIT).lit32(0).
		op(isa.BRF)
	brOff := len(a.buf)
	a.branch16(0) // patched below
	a.op(isa.LIT).lit32(1).
		op(isa.TRAP).u8(int(isa.TrapPrintInt))
	target := len(a.buf)
	a.op(isa.RETURNZ)

	// BRF's offset is relative to the byte right after its 2-byte operand.
	isa.PutBranch16(a.buf[brOff:brOff+2], int16(target-(brOff+2)))

	img := buildImage(a.buf)
	host := newBufHost("")
	interp := New(img, DefaultStackSize, host)
	if err := interp.Run(img.Hdr.MainFunction); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := host.out.String(); got != "" {
		t.Fatalf("output = %q, want empty (branch should have skipped the print)", got)
	}
}

func TestDupAndAdd(t *testing.T) {
	var a asm
	a.op(isa.FRAME).u8(1).
		op(isa.LIT).lit32(7).
		op(isa.DUP). // 7 7
		op(isa.ADD). // 14
		op(isa.TRAP).u8(int(isa.TrapPrintInt)).
		op(isa.RETURNZ)

	img := buildImage(a.buf)
	host := newBufHost("")
	interp := New(img, DefaultStackSize, host)
	if err := interp.Run(img.Hdr.MainFunction); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := host.out.String(); got != "14" {
		t.Fatalf("output = %q, want %q", got, "14")
	}
}

func TestStackOverflowIsFatal(t *testing.T) {
	var a asm
	a.op(isa.FRAME).u8(1)
	for i := 0; i < 1000; i++ {
		a.op(isa.LIT).lit32(int32(i))
	}
	a.op(isa.RETURNZ)

	img := buildImage(a.buf)
	host := newBufHost("")
	// A stack far too small for 1000 pushes forces the overflow path.
	interp := New(img, 32, host)
	err := interp.Run(img.Hdr.MainFunction)
	if err == nil {
		t.Fatal("expected a stack overflow error")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("error type = %T, want *RuntimeError", err)
	}
}

func TestGetCharEOFReturnsMinusOne(t *testing.T) {
	var a asm
	a.op(isa.FRAME).u8(1).
		op(isa.TRAP).u8(int(isa.TrapGetChar)).
		op(isa.TRAP).u8(int(isa.TrapPrintInt)).
		op(isa.RETURNZ)

	img := buildImage(a.buf)
	host := newBufHost("") // no input queued: first read hits EOF
	interp := New(img, DefaultStackSize, host)
	if err := interp.Run(img.Hdr.MainFunction); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := host.out.String(); got != "-1" {
		t.Fatalf("output = %q, want %q", got, "-1")
	}
}

func TestPropertyLookup(t *testing.T) {
	// Object layout: {classOff=0(no class), nProperties=1}, {tag=5, value=42}.
	// PADDR should resolve to the value word at the matching tag, which
	// LOAD then reads back as 42.
	var code asm
	code.op(isa.FRAME).u8(1).
		op(isa.DADDR).lit32(4). // push obj address (data offset 4, see below)
		op(isa.LIT).lit32(5).   // tag 5
		op(isa.PADDR).
		op(isa.LOAD).
		op(isa.TRAP).u8(int(isa.TrapPrintInt)).
		op(isa.RETURNZ)

	full := append([]byte{byte(isa.HALT), byte(isa.HALT)}, code.buf...)

	// Object header at data offset 4: {classOff, nProperties}{tag, value}.
	data := make([]byte, 4+8+8)
	isa.PutLit32(data[4:8], 0)    // classOff
	isa.PutLit32(data[8:12], 1)   // nProperties
	isa.PutLit32(data[12:16], 5)  // tag
	isa.PutLit32(data[16:20], 42) // value

	img := &isa.Image{
		Hdr: isa.ImageHdr{
			DataOffset:   isa.HeaderSize,
			DataSize:     int32(len(data)),
			CodeOffset:   isa.HeaderSize + int32(len(data)),
			CodeSize:     int32(len(full)),
			MainFunction: 2,
		},
		Data: data,
		Code: full,
	}

	host := newBufHost("")
	interp := New(img, DefaultStackSize, host)
	if err := interp.Run(img.Hdr.MainFunction); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := host.out.String(); got != "42" {
		t.Fatalf("output = %q, want %q", got, "42")
	}
}
