// Package vm implements the stack-based bytecode interpreter (spec.md
// §4.3). Memory is one flat byte buffer: the loaded data segment occupies
// the low addresses, and the evaluation stack/call frames grow above it —
// unlike the reference interpreter's separate downward-growing stack with a
// cached top-of-stack register, this implementation uses a single cursor
// (`sp`) into the same buffer DADDR/LADDR addresses already point into, and
// drops the `tos` cache entirely (a performance-only detail with no
// observable effect on any of spec.md's testable properties). See
// DESIGN.md for the full writeup.
package vm

import (
	"fmt"

	"adv2.dev/adv2/internal/isa"
)

// DefaultStackSize is how much space above the data segment is reserved for
// the evaluation stack and call frames when a caller doesn't specify one.
const DefaultStackSize = 1 << 16

// Host supplies the trap handlers' character I/O (spec.md §4.3's "traps
// block on the host's standard input/output").
type Host interface {
	ReadChar() (int32, error) // returns -1 at EOF
	WriteChar(c byte)
	WriteString(s string)
}

// RuntimeError is a fatal VM condition: stack overflow, an undefined
// opcode, or an uncaught throw (spec.md §7).
type RuntimeError struct {
	Message string
	PC      int32
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("adv2vm: %s (pc=%d)", e.Message, e.PC)
}

// Interpreter executes one loaded image to completion.
type Interpreter struct {
	code []byte
	mem  []byte // data segment at [0, dataLen), stack/frames above it

	dataLen int32

	pc  int32
	fp  int32
	sp  int32
	efp int32 // 0 means "no active handler" (0 is the reserved data offset)

	Host  Host
	Trace bool

	halted bool
	err    error // sticky fatal error, set by pushWord on overflow
}

// New builds an Interpreter over img, with stackSize bytes reserved above
// the data segment for the evaluation stack and call frames.
func New(img *isa.Image, stackSize int, host Host) *Interpreter {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	mem := make([]byte, len(img.Data)+stackSize)
	copy(mem, img.Data)
	return &Interpreter{
		code:    img.Code,
		mem:     mem,
		dataLen: int32(len(img.Data)),
		sp:      int32(len(img.Data)),
		fp:      0,
		efp:     0,
		Host:    host,
	}
}

// Run bootstraps a call into mainFunction (as if it had been CALLed with no
// arguments from the code segment's leading [HALT, HALT] sentinel, so that
// RETURNing from main lands on a HALT and ends the program normally) and
// executes until HALT, an uncaught throw, or a fatal error.
func (vm *Interpreter) Run(mainFunction int32) error {
	vm.pushWord(1) // return address: code[1], the sentinel's second HALT byte
	vm.pc = mainFunction
	if vm.err != nil {
		return vm.err
	}
	return vm.loop()
}

func (vm *Interpreter) fatal(format string, args ...any) error {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), PC: vm.pc}
}

// --- raw memory access ---------------------------------------------------

func (vm *Interpreter) readWord(addr int32) int32 {
	return isa.Lit32(vm.mem[addr : addr+4])
}

func (vm *Interpreter) writeWord(addr int32, v int32) {
	isa.PutLit32(vm.mem[addr:addr+4], v)
}

func (vm *Interpreter) readByte(addr int32) int32 {
	return int32(vm.mem[addr])
}

func (vm *Interpreter) writeByte(addr int32, v int32) {
	vm.mem[addr] = byte(v)
}

// pushWord checks for overflow before writing (spec.md §4.3: "stack-overflow
// is detected before each push"). On overflow it records a sticky fatal
// error rather than threading one through every opcode case — step() checks
// it once, after dispatch.
func (vm *Interpreter) pushWord(v int32) {
	if vm.err != nil {
		return
	}
	if int(vm.sp)+4 > len(vm.mem) {
		vm.err = vm.fatal("stack overflow")
		return
	}
	vm.writeWord(vm.sp, v)
	vm.sp += 4
}

func (vm *Interpreter) popWord() int32 {
	vm.sp -= 4
	return vm.readWord(vm.sp)
}

func (vm *Interpreter) peekWord(depthWords int32) int32 {
	return vm.readWord(vm.sp - 4 - 4*depthWords)
}

// --- code fetch ------------------------------------------------------------

func (vm *Interpreter) fetchByte() byte {
	b := vm.code[vm.pc]
	vm.pc++
	return b
}

func (vm *Interpreter) fetchI8() int32 {
	return int32(int8(vm.fetchByte()))
}

func (vm *Interpreter) fetchU8() int32 {
	return int32(vm.fetchByte())
}

func (vm *Interpreter) fetchLit32() int32 {
	v := isa.Lit32(vm.code[vm.pc : vm.pc+4])
	vm.pc += 4
	return v
}

func (vm *Interpreter) fetchBranch16() int32 {
	v := isa.Branch16(vm.code[vm.pc : vm.pc+2])
	vm.pc += 2
	return int32(v)
}

// --- the interpreter loop ----------------------------------------------

func (vm *Interpreter) loop() error {
	for !vm.halted {
		if err := vm.step(); err != nil {
			return err
		}
	}
	return nil
}

func (vm *Interpreter) step() error {
	opPC := vm.pc
	op := isa.Op(vm.fetchByte())

	if vm.Trace {
		fmt.Printf("%6d: %-8s sp=%d fp=%d\n", opPC, opName(op), vm.sp, vm.fp)
	}

	switch op {
	case isa.HALT:
		vm.halted = true

	case isa.BR:
		off := vm.fetchBranch16()
		vm.pc += off

	case isa.BRT, isa.BRF:
		off := vm.fetchBranch16()
		v := vm.popWord()
		taken := v != 0
		if op == isa.BRF {
			taken = !taken
		}
		if taken {
			vm.pc += off
		}

	case isa.BRTSC, isa.BRFSC:
		off := vm.fetchBranch16()
		v := vm.peekWord(0)
		taken := v != 0
		if op == isa.BRFSC {
			taken = !taken
		}
		if taken {
			vm.pc += off
		} else {
			vm.popWord()
		}

	case isa.NOT:
		v := vm.popWord()
		vm.pushWord(boolWord(v == 0))
	case isa.NEG:
		vm.pushWord(-vm.popWord())
	case isa.BNOT:
		vm.pushWord(^vm.popWord())

	case isa.ADD, isa.SUB, isa.MUL, isa.DIV, isa.REM,
		isa.BAND, isa.BOR, isa.BXOR, isa.SHL, isa.SHR,
		isa.LT, isa.LE, isa.EQ, isa.NE, isa.GE, isa.GT:
		b := vm.popWord()
		a := vm.popWord()
		vm.pushWord(binOp(op, a, b))

	case isa.LIT:
		vm.pushWord(vm.fetchLit32())
	case isa.SLIT:
		vm.pushWord(vm.fetchI8())

	case isa.LOAD:
		addr := vm.popWord()
		vm.pushWord(vm.readWord(addr))
	case isa.LOADB:
		addr := vm.popWord()
		vm.pushWord(vm.readByte(addr))
	case isa.STORE:
		v := vm.popWord()
		addr := vm.popWord()
		vm.writeWord(addr, v)
	case isa.STOREB:
		v := vm.popWord()
		addr := vm.popWord()
		vm.writeByte(addr, v)

	case isa.LADDR:
		off := vm.fetchI8()
		vm.pushWord(vm.fp + 4*off)
	case isa.DADDR:
		vm.pushWord(vm.fetchLit32())

	case isa.INDEX:
		idx := vm.popWord()
		base := vm.popWord()
		vm.pushWord(base + 4*idx)

	case isa.CALL:
		vm.fetchU8() // argc: read back from retAddr-1 at RETURN time, not used here
		target := vm.popWord()
		vm.pushWord(vm.pc)
		vm.pc = target

	case isa.FRAME:
		n := vm.fetchU8()
		regionBase := vm.sp
		vm.pushWord(vm.fp)
		vm.fp = vm.sp
		if int(vm.sp)+int(4*(n-1)) > len(vm.mem) {
			return vm.fatal("stack overflow")
		}
		vm.sp = regionBase + 4*n

	case isa.RETURN, isa.RETURNZ:
		var retVal int32
		if op == isa.RETURNZ {
			retVal = 0
		} else {
			retVal = vm.popWord()
		}
		savedFP := vm.readWord(vm.fp - 4)
		retAddr := vm.readWord(vm.fp - 8)
		argc := int32(vm.code[retAddr-1])
		vm.sp = vm.fp - 8 - 4*argc
		vm.fp = savedFP
		vm.pc = retAddr
		vm.pushWord(retVal)

	case isa.DROP:
		vm.popWord()
	case isa.DUP:
		v := vm.peekWord(0)
		vm.pushWord(v)
	case isa.TUCK:
		b := vm.popWord()
		a := vm.popWord()
		vm.pushWord(b)
		vm.pushWord(a)
		vm.pushWord(b)
	case isa.SWAP:
		b := vm.popWord()
		a := vm.popWord()
		vm.pushWord(b)
		vm.pushWord(a)

	case isa.TRAP:
		n := vm.fetchU8()
		if err := vm.trap(isa.Trap(n)); err != nil {
			return err
		}

	case isa.SEND:
		if err := vm.send(vm.fetchU8()); err != nil {
			return err
		}

	case isa.PADDR:
		tag := vm.popWord()
		obj := vm.popWord()
		addr, ok := vm.findPropertySlot(obj, uint32(tag))
		if !ok {
			return vm.throwValue(1)
		}
		vm.pushWord(addr)

	case isa.CLASS:
		obj := vm.popWord()
		vm.pushWord(vm.readWord(obj))

	case isa.TRY:
		off := vm.fetchBranch16()
		savedSP := vm.sp
		handlerBase := vm.sp
		vm.pushWord(savedSP)
		vm.pushWord(vm.pc + off)
		vm.pushWord(vm.fp)
		vm.pushWord(vm.efp)
		vm.efp = handlerBase

	case isa.TRYEXIT:
		outerEfp := vm.readWord(vm.efp + 12)
		vm.sp = vm.efp
		vm.efp = outerEfp

	case isa.THROW:
		v := vm.popWord()
		if err := vm.throwValue(v); err != nil {
			return err
		}

	default:
		return vm.fatal("undefined opcode 0x%02x", byte(op))
	}
	if vm.err != nil {
		return vm.err
	}
	return nil
}

// findPropertySlot walks the class chain starting at obj looking for tag
// (spec.md §3's object header: {class_offset, nProperties} followed by
// nProperties (tag, value) pairs). A stored tag's top bit marks it shared —
// masked off before comparing, since shared-ness only controls whether a
// class's copy was baked into a subclass at compile time, not whether it
// matches at lookup time. Returns the address of the matching value word.
func (vm *Interpreter) findPropertySlot(obj int32, tag uint32) (int32, bool) {
	for obj != isa.NIL {
		n := vm.readWord(obj + 4)
		base := obj + 8
		for i := int32(0); i < n; i++ {
			pair := base + 8*i
			t := uint32(vm.readWord(pair))
			if t&^isa.PShared == tag {
				return pair + 4, true
			}
		}
		obj = vm.readWord(obj)
	}
	return 0, false
}

// send dispatches `[ args… base receiver selector ]` (pushed in that order
// by compileSend, selector on top). Only the selector is popped for SEND's own bookkeeping;
// receiver and class-base stay on the stack as the callee's two implicit
// leading arguments (self, dummy), so the rest of the call proceeds exactly
// like CALL once the target address is known.
func (vm *Interpreter) send(argc int32) error {
	_ = argc // already baked into the code stream at code[retAddr-1], see RETURN
	selector := vm.popWord()
	receiver := vm.peekWord(0)
	classBase := vm.peekWord(1)
	searchStart := classBase
	if searchStart == isa.NIL {
		searchStart = receiver
	}
	addr, ok := vm.findPropertySlot(searchStart, uint32(selector))
	if !ok {
		return vm.throwValue(1)
	}
	target := vm.readWord(addr)
	vm.pushWord(vm.pc)
	if vm.err != nil {
		return vm.err
	}
	vm.pc = target
	return nil
}

// throwValue implements THROW (and PADDR/SEND's "no such property" fallback,
// both of which throw exception 1): unwind to the innermost active handler
// installed by TRY, per spec.md §4.3's {savedSP, handlerPC, savedFP,
// outerEfp} frame layout, or fail fatally if none is active (efp==0 is the
// reserved "no handler" sentinel — see the Interpreter.efp field comment).
func (vm *Interpreter) throwValue(v int32) error {
	if vm.efp == isa.NIL {
		return vm.fatal("uncaught throw: %d", v)
	}
	savedSP := vm.readWord(vm.efp + 0)
	handlerPC := vm.readWord(vm.efp + 4)
	savedFP := vm.readWord(vm.efp + 8)
	outerEfp := vm.readWord(vm.efp + 12)
	vm.sp = savedSP
	vm.fp = savedFP
	vm.efp = outerEfp
	vm.pc = handlerPC
	vm.pushWord(v)
	return vm.err
}

func boolWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func binOp(op isa.Op, a, b int32) int32 {
	switch op {
	case isa.ADD:
		return a + b
	case isa.SUB:
		return a - b
	case isa.MUL:
		return a * b
	case isa.DIV:
		if b == 0 {
			return 0
		}
		return a / b
	case isa.REM:
		if b == 0 {
			return 0
		}
		return a % b
	case isa.BAND:
		return a & b
	case isa.BOR:
		return a | b
	case isa.BXOR:
		return a ^ b
	case isa.SHL:
		return a << uint32(b&31)
	case isa.SHR:
		return a >> uint32(b&31)
	case isa.LT:
		return boolWord(a < b)
	case isa.LE:
		return boolWord(a <= b)
	case isa.EQ:
		return boolWord(a == b)
	case isa.NE:
		return boolWord(a != b)
	case isa.GE:
		return boolWord(a >= b)
	case isa.GT:
		return boolWord(a > b)
	}
	return 0
}

var opNames = map[isa.Op]string{
	isa.HALT: "halt", isa.BRT: "brt", isa.BRTSC: "brtsc", isa.BRF: "brf",
	isa.BRFSC: "brfsc", isa.BR: "br", isa.NOT: "not", isa.NEG: "neg",
	isa.ADD: "add", isa.SUB: "sub", isa.MUL: "mul", isa.DIV: "div",
	isa.REM: "rem", isa.BNOT: "bnot", isa.BAND: "band", isa.BOR: "bor",
	isa.BXOR: "bxor", isa.SHL: "shl", isa.SHR: "shr", isa.LT: "lt",
	isa.LE: "le", isa.EQ: "eq", isa.NE: "ne", isa.GE: "ge", isa.GT: "gt",
	isa.LIT: "lit", isa.SLIT: "slit", isa.LOAD: "load", isa.LOADB: "loadb",
	isa.STORE: "store", isa.STOREB: "storeb", isa.LADDR: "laddr",
	isa.INDEX: "index", isa.CALL: "call", isa.FRAME: "frame",
	isa.RETURN: "return", isa.RETURNZ: "returnz", isa.DROP: "drop",
	isa.DUP: "dup", isa.TUCK: "tuck", isa.SWAP: "swap", isa.TRAP: "trap",
	isa.SEND: "send", isa.DADDR: "daddr", isa.PADDR: "paddr",
	isa.CLASS: "class", isa.TRY: "try", isa.TRYEXIT: "tryexit",
	isa.THROW: "throw",
}

// opName names op for the -d trace listing; unrecognized bytes (never
// emitted by this compiler, but possible in a hand-assembled image) print
// as their hex value instead of panicking.
func opName(op isa.Op) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(op))
}

// OpName exposes opName for callers outside this package — cmd/adv2c's `-d`
// static disassembly listing shares it with the interpreter's own trace.
func OpName(op isa.Op) string { return opName(op) }
