package compiler

import "adv2.dev/adv2/internal/isa"

// chainEnd marks the tail of a branch chain (spec.md §4.2).
const chainEnd int32 = -1

// emitBranch appends op followed by a placeholder 16-bit operand and
// returns the slot it occupies, to be threaded into a chain or fixed up
// directly.
func (c *Compiler) emitBranch(op isa.Op) int32 {
	c.code.PutByte(byte(op))
	return c.code.Reserve(2)
}

// chainAdd links slot onto the front of chain (chain may be chainEnd) and
// returns the new chain head. The slot's operand temporarily stores the old
// head as its link value; fixupChain below resolves every link to a real
// PC-relative offset in one pass.
func chainAdd(c *Compiler, chain int32, slot int32) int32 {
	c.code.PatchBranch16(slot, int16(chain))
	return slot
}

// fixupChain walks chain, patching every slot with its real signed
// PC-relative offset to target (spec.md §4.2: "target - (chain_slot + 2)").
func fixupChain(c *Compiler, chain int32, target int32) {
	cur := chain
	for cur != chainEnd {
		next := int32(c.code.Branch16At(cur))
		c.code.PatchBranch16(cur, int16(target-(cur+2)))
		cur = next
	}
}

// loopFrame tracks one active loop's break/continue chains (spec.md §4.2).
// Both are fixup chains, patched once their targets are known — for
// do/while the continue target (the while-condition test) only exists
// after the loop body has been compiled.
type loopFrame struct {
	breakChain int32
	contChain  int32
}

func newLoopFrame() *loopFrame {
	return &loopFrame{breakChain: chainEnd, contChain: chainEnd}
}
