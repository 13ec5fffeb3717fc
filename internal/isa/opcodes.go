// Package isa holds the wire-level contract shared by the compiler and the
// virtual machine: opcode numbering, operand widths, and trap numbers.
// Nothing in this package may change numeric value once assigned — old
// images must keep running on new VMs (spec.md §6).
package isa

// Op is a single bytecode instruction.
type Op byte

const (
	HALT    Op = 0x00 // halt
	BRT     Op = 0x01 // branch on true
	BRTSC   Op = 0x02 // branch on true (short-circuit, non-popping)
	BRF     Op = 0x03 // branch on false
	BRFSC   Op = 0x04 // branch on false (short-circuit, non-popping)
	BR      Op = 0x05 // branch unconditionally
	NOT     Op = 0x06 // logical negate top of stack
	NEG     Op = 0x07 // arithmetic negate
	ADD     Op = 0x08
	SUB     Op = 0x09
	MUL     Op = 0x0a
	DIV     Op = 0x0b
	REM     Op = 0x0c
	BNOT    Op = 0x0d // bitwise not
	BAND    Op = 0x0e
	BOR     Op = 0x0f
	BXOR    Op = 0x10
	SHL     Op = 0x11
	SHR     Op = 0x12
	LT      Op = 0x13
	LE      Op = 0x14
	EQ      Op = 0x15
	NE      Op = 0x16
	GE      Op = 0x17
	GT      Op = 0x18
	LIT     Op = 0x19 // signed 32-bit immediate
	SLIT    Op = 0x1a // signed 8-bit immediate
	LOAD    Op = 0x1b // 32-bit load from data-segment offset
	LOADB   Op = 0x1c // 8-bit load
	STORE   Op = 0x1d // 32-bit store
	STOREB  Op = 0x1e // 8-bit store
	LADDR   Op = 0x1f // address of local: signed 8-bit frame-relative index
	INDEX   Op = 0x20 // a[i] address, 32-bit elements
	CALL    Op = 0x21 // unsigned 8-bit argc
	FRAME   Op = 0x22 // unsigned 8-bit frame slot count
	RETURN  Op = 0x23
	RETURNZ Op = 0x24
	DROP    Op = 0x25
	DUP     Op = 0x26
	TUCK    Op = 0x27 // a b -> b a b
	SWAP    Op = 0x28
	TRAP    Op = 0x29 // unsigned 8-bit trap number
	SEND    Op = 0x2a // unsigned 8-bit argc+2
	DADDR   Op = 0x2b // signed 32-bit immediate data-segment offset
	PADDR   Op = 0x2c // property address lookup
	CLASS   Op = 0x2d // class of an object
	TRY     Op = 0x2e // signed 16-bit PC-relative handler offset
	TRYEXIT Op = 0x2f
	THROW   Op = 0x30

	// There is no BINDEX opcode, the byte-width dual of INDEX: byte array
	// element addresses are computed with ADD over the array's base
	// address, and the code generator tracks the element width itself
	// (see compileAddr in exprgen.go).
)

// OperandKind classifies how many operand bytes follow an opcode and how
// they should be interpreted.
type OperandKind int

const (
	OperandNone     OperandKind = iota
	OperandBranch16             // signed 16-bit PC-relative offset
	OperandLit32                // signed 32-bit immediate
	OperandLit8                 // signed 8-bit immediate
	OperandU8                   // unsigned 8-bit immediate
)

// Operand reports the operand shape for op per spec.md §4.3's table.
func Operand(op Op) OperandKind {
	switch op {
	case BRT, BRTSC, BRF, BRFSC, BR, TRY:
		return OperandBranch16
	case LIT, DADDR:
		return OperandLit32
	case SLIT, LADDR:
		return OperandLit8
	case FRAME, CALL, SEND, TRAP:
		return OperandU8
	default:
		return OperandNone
	}
}

// Width returns the number of operand bytes following op in the code
// segment (not counting the opcode byte itself).
func Width(op Op) int {
	switch Operand(op) {
	case OperandBranch16:
		return 2
	case OperandLit32:
		return 4
	case OperandLit8, OperandU8:
		return 1
	default:
		return 0
	}
}

// Trap is an I/O trap number, dispatched by TRAP.
type Trap byte

const (
	TrapGetChar    Trap = 0
	TrapPutChar    Trap = 1
	TrapPrintStr   Trap = 2
	TrapPrintInt   Trap = 3
	TrapPrintTab   Trap = 4
	TrapPrintNL    Trap = 5
	TrapPrintFlush Trap = 6
	TrapSetDevice  Trap = 7
)

// NIL is the universal null object/function/string reference: data-segment
// offset 0, which is reserved and never the start of a real object header.
const NIL int32 = 0

// PShared is ORed into a property tag's top bit to mark it inherited rather
// than copied by subclasses.
const PShared uint32 = 0x80000000

// Built-in property tags, allocated before parsing begins.
const (
	TagParent  uint32 = 0
	TagSibling uint32 = 1
	TagChild   uint32 = 2
)
