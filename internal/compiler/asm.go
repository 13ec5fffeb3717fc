package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// LineAssembler turns one line of inline-assembly source text into a single
// 32-bit code word (spec.md §1, §4.2: "the assembler for a single `asm`
// line is an external collaborator; this module only needs to call it").
// A host embedding this compiler for a different target replaces it
// wholesale by setting Compiler.Assemble before calling Compile.
type LineAssembler func(line string) (word int32, err error)

// defaultAssembler implements the minimal grammar the adventure language's
// own sample programs use an `asm` block for: a bare 32-bit literal, or
// "mnemonic literal" packed as (opcode<<24 | operand&0xFFFFFF). It exists so
// the compiler is usable standalone; any real target supplies its own.
func defaultAssembler(line string) (int32, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return 0, nil
	case 1:
		v, err := strconv.ParseInt(fields[0], 0, 64)
		if err != nil {
			return 0, fmt.Errorf("asm: %q is not a literal word: %w", line, err)
		}
		return int32(v), nil
	case 2:
		opWord, ok := asmMnemonics[fields[0]]
		if !ok {
			return 0, fmt.Errorf("asm: unknown mnemonic %q", fields[0])
		}
		operand, err := strconv.ParseInt(fields[1], 0, 64)
		if err != nil {
			return 0, fmt.Errorf("asm: %q is not a numeric operand: %w", fields[1], err)
		}
		return int32(opWord<<24 | (operand & 0x00FFFFFF)), nil
	default:
		return 0, fmt.Errorf("asm: cannot assemble %q", line)
	}
}

// asmMnemonics is deliberately tiny: just enough named opcodes for a host's
// asm blocks to reach the raw VM without spelling out numeric opcodes.
var asmMnemonics = map[string]int64{
	"nop":  0x01,
	"halt": 0x00,
	"brt":  0x01,
	"brf":  0x03,
}
