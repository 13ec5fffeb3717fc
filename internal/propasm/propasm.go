// Package propasm implements a minimal Propeller PASM one-line assembler —
// the external collaborator behind a single `asm { ... }` line (spec.md
// §1/§5's "external collaborator" pluggable seam). Grounded on
// adv2pasm.c's instruction layout and opcode table; only the handful of
// instructions an adventure-program's inline asm block realistically needs
// are implemented. A real Propeller toolchain target would swap this out
// wholesale via compiler.Compiler.Assemble, exactly as spec.md §1 intends.
package propasm

import (
	"fmt"
	"strconv"
	"strings"
)

// Propeller PASM instruction field shifts (adv2pasm.c).
const (
	opcodeShift = 26
	zShift      = 25
	cShift      = 24
	rShift      = 23
	iShift      = 22
	condShift   = 18
	dstShift    = 9
	srcShift    = 0
)

const condAlways = 0xf

// operandShape says which operand slots an instruction's mnemonic expects.
type operandShape int

const (
	operandsNone operandShape = iota
	operandsBoth              // dst, src
	operandsSrc               // src only (written into the src field, R=0)
	operandsDst               // dst only
)

type opDef struct {
	shape    operandShape
	template uint32 // opcode/R/I/cond bits pre-shifted; dst/src ORed in by Assemble
}

// opcodes is a representative subset of adv2pasm.c's opcodeDefs table — the
// instructions most likely to appear in a hand-written inline asm block.
var opcodes = map[string]opDef{
	"nop":    {operandsNone, 0x00 << opcodeShift},
	"wrlong": {operandsBoth, (0x02 << opcodeShift) | (0 << rShift) | (0xf << condShift)},
	"rdlong": {operandsBoth, (0x02 << opcodeShift) | (1 << rShift) | (0xf << condShift)},
	"add":    {operandsBoth, (0x20 << opcodeShift) | (1 << rShift) | (0xf << condShift)},
	"cmp":    {operandsBoth, (0x21 << opcodeShift) | (0 << rShift) | (0xf << condShift)},
	"sub":    {operandsBoth, (0x21 << opcodeShift) | (1 << rShift) | (0xf << condShift)},
	"mov":    {operandsBoth, (0x28 << opcodeShift) | (1 << rShift) | (0xf << condShift)},
	"jmp":    {operandsSrc, (0x17 << opcodeShift) | (0 << rShift) | (0xf << condShift)},
	"ret":    {operandsNone, (0x17 << opcodeShift) | (0 << rShift) | (1 << iShift) | (0xf << condShift)},
}

// Assemble turns one line of inline-assembly source text into a single
// packed 32-bit instruction word (compiler.LineAssembler's contract). An
// operand written `#N` is an immediate (sets the I bit and carries N
// directly in the 9-bit source field); a bare register number is a cog
// register address.
func Assemble(line string) (int32, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, nil
	}
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) == 0 {
		return 0, nil
	}
	name := strings.ToLower(fields[0])
	def, ok := opcodes[name]
	if !ok {
		return 0, fmt.Errorf("propasm: unknown mnemonic %q", name)
	}
	operands := fields[1:]

	word := def.template
	switch def.shape {
	case operandsNone:
		if len(operands) != 0 {
			return 0, fmt.Errorf("propasm: %q takes no operands", name)
		}
	case operandsDst:
		if len(operands) != 1 {
			return 0, fmt.Errorf("propasm: %q takes one operand", name)
		}
		dst, _, err := parseOperand(operands[0])
		if err != nil {
			return 0, err
		}
		word |= dst << dstShift
	case operandsSrc:
		if len(operands) != 1 {
			return 0, fmt.Errorf("propasm: %q takes one operand", name)
		}
		src, imm, err := parseOperand(operands[0])
		if err != nil {
			return 0, err
		}
		word |= src << srcShift
		if imm {
			word |= 1 << iShift
		}
	case operandsBoth:
		if len(operands) != 2 {
			return 0, fmt.Errorf("propasm: %q takes two operands", name)
		}
		dst, _, err := parseOperand(operands[0])
		if err != nil {
			return 0, err
		}
		src, imm, err := parseOperand(operands[1])
		if err != nil {
			return 0, err
		}
		word |= dst << dstShift
		word |= src << srcShift
		if imm {
			word |= 1 << iShift
		}
	}
	return int32(word), nil
}

// parseOperand reads a 9-bit register address or `#` immediate, per
// adv2pasm.c's DST_MASK/SRC_MASK (9 bits each).
func parseOperand(tok string) (value uint32, immediate bool, err error) {
	if strings.HasPrefix(tok, "#") {
		immediate = true
		tok = tok[1:]
	}
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, false, fmt.Errorf("propasm: bad operand %q: %w", tok, err)
	}
	if v < 0 || v > 0x1ff {
		return 0, false, fmt.Errorf("propasm: operand %q out of 9-bit range", tok)
	}
	return uint32(v), immediate, nil
}
