package vm

import (
	"strconv"

	"adv2.dev/adv2/internal/isa"
)

// trap dispatches TRAP's eight I/O operations (spec.md §4.3) against the
// Interpreter's Host. print-flush and set-device have no observable effect
// in this implementation (there's no buffering to flush, and no second
// output device to switch to) but are still accepted rather than faulting,
// matching images built against the full trap table.
func (vm *Interpreter) trap(n isa.Trap) error {
	switch n {
	case isa.TrapGetChar:
		c, err := vm.Host.ReadChar()
		if err != nil {
			return vm.fatal("read error: %v", err)
		}
		vm.pushWord(c)
	case isa.TrapPutChar:
		v := vm.popWord()
		vm.Host.WriteChar(byte(v))
	case isa.TrapPrintStr:
		addr := vm.popWord()
		vm.Host.WriteString(vm.readCString(addr))
	case isa.TrapPrintInt:
		v := vm.popWord()
		vm.Host.WriteString(strconv.Itoa(int(v)))
	case isa.TrapPrintTab:
		vm.Host.WriteChar('\t')
	case isa.TrapPrintNL:
		vm.Host.WriteChar('\n')
	case isa.TrapPrintFlush:
		// no-op: Host.WriteString/WriteChar are unbuffered from the VM's view
	case isa.TrapSetDevice:
		vm.popWord() // device selector, discarded: a single Host has one output
	default:
		return vm.fatal("undefined trap %d", byte(n))
	}
	return vm.err
}

// readCString reads a NUL-terminated byte string out of vm.mem, the layout
// every string literal is interned as (spec.md §3).
func (vm *Interpreter) readCString(addr int32) string {
	end := addr
	for vm.mem[end] != 0 {
		end++
	}
	return string(vm.mem[addr:end])
}
