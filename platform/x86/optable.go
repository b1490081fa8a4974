package x86

import (
	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/ir"
)

// Ordinary front-end-supplied opcodes this table has entries for. ir
// itself never references these names; they
// exist only as keys into Table.
const (
	OpAdd     = ir.Opcode("Add")
	OpSub     = ir.Opcode("Sub")
	OpMul     = ir.Opcode("Mul") // tuple result: low/high halves
	OpDiv     = ir.Opcode("Div") // tuple result: quotient/remainder, pinned
	OpShl     = ir.Opcode("Shl") // shift count pinned to ecx
	OpShr     = ir.Opcode("Shr")
	OpCmp     = ir.Opcode("Cmp")
	OpLoad    = ir.Opcode("Load")
	OpStore   = ir.Opcode("Store")
	OpJump    = ir.Opcode("Jump")
	OpCondJmp = ir.Opcode("CondJump")
	OpMov     = ir.Opcode("Mov")

	// Float-class opcodes are distinct from their GP namesakes (addsd is a
	// different instruction from add, not the same opcode applied to a
	// different mode), so one merged Table can serve every class without
	// a node's Mode needing to disambiguate which entry applies.
	OpFAdd = ir.Opcode("FAdd")
	OpFSub = ir.Opcode("FSub")
)

func reqGP() architecture.RegRequirement {
	r := architecture.NoRequirement()
	r.Class = GP
	return r
}

func reqFloat() architecture.RegRequirement {
	r := architecture.NoRequirement()
	r.Class = Float
	return r
}

func limitedGP(regs ...*architecture.Register) architecture.RegRequirement {
	r := reqGP()
	r.HasLimit = true
	r.Limited = architecture.MaskOf(regs...)
	return r
}

// sameAsInput0 is the in_r0 idiom.
func sameAsInput0(base architecture.RegRequirement) architecture.RegRequirement {
	base.SameAsInput = 0
	return base
}

// Table is the per-opcode operand requirement table for this target,
// built once at package init and consumed by this core as a plain map
// value.
var Table = map[ir.Opcode]*architecture.OpSpec{
	OpAdd: {
		Name:       "add",
		InputReqs:  []architecture.RegRequirement{reqGP(), reqGP()},
		OutputReqs: []architecture.RegRequirement{sameAsInput0(reqGP())},
		Commutative: true,
		Latency:    1,
	},
	OpSub: {
		Name:       "sub",
		InputReqs:  []architecture.RegRequirement{reqGP(), reqGP()},
		OutputReqs: []architecture.RegRequirement{sameAsInput0(reqGP())},
		Latency:    1,
	},
	// Div is pinned: dividend in eax, divisor anywhere else in GP, and it
	// clobbers edx for the remainder -- a canonical example of a limited
	// register set the constraint handler must insert a Perm for.
	OpDiv: {
		Name: "div",
		InputReqs: []architecture.RegRequirement{
			limitedGP(eax),
			reqGP(),
		},
		OutputReqs: []architecture.RegRequirement{
			limitedGP(eax), // quotient
			limitedGP(edx), // remainder
		},
		ProjectionNames: []string{"quotient", "remainder"},
		Pinned:          true,
		Latency:         20,
	},
	OpMul: {
		Name: "mul",
		InputReqs: []architecture.RegRequirement{
			limitedGP(eax),
			reqGP(),
		},
		OutputReqs: []architecture.RegRequirement{
			limitedGP(eax), // low
			limitedGP(edx), // high
		},
		ProjectionNames: []string{"low", "high"},
		Pinned:          true,
		Latency:         5,
	},
	OpShl: {
		Name: "shl",
		InputReqs: []architecture.RegRequirement{
			reqGP(),
			limitedGP(ecx),
		},
		OutputReqs: []architecture.RegRequirement{sameAsInput0(reqGP())},
		Pinned:     true,
		Latency:    1,
	},
	OpShr: {
		Name: "shr",
		InputReqs: []architecture.RegRequirement{
			reqGP(),
			limitedGP(ecx),
		},
		OutputReqs: []architecture.RegRequirement{sameAsInput0(reqGP())},
		Pinned:     true,
		Latency:    1,
	},
	OpCmp: {
		Name:      "cmp",
		InputReqs: []architecture.RegRequirement{reqGP(), reqGP()},
		Latency:   1,
	},
	OpLoad: {
		Name:       "load",
		InputReqs:  []architecture.RegRequirement{reqGP()},
		OutputReqs: []architecture.RegRequirement{reqGP()},
		Latency:    3,
	},
	OpStore: {
		Name:      "store",
		InputReqs: []architecture.RegRequirement{reqGP(), reqGP()},
		Latency:   3,
	},
	OpMov: {
		Name:       "mov",
		InputReqs:  []architecture.RegRequirement{reqGP()},
		OutputReqs: []architecture.RegRequirement{reqGP()},
		Latency:    1,
	},
	OpJump: {
		Name:      "jmp",
		ControlOp: true,
	},
	OpCondJmp: {
		Name:      "jcc",
		InputReqs: []architecture.RegRequirement{reqGP(), reqGP()},
		ControlOp: true,
	},
}

func init() {
	Table[OpFAdd] = &architecture.OpSpec{
		Name:        "addsd",
		InputReqs:   []architecture.RegRequirement{reqFloat(), reqFloat()},
		OutputReqs:  []architecture.RegRequirement{sameAsInput0(reqFloat())},
		Commutative: true,
		Latency:     3,
	}
	Table[OpFSub] = &architecture.OpSpec{
		Name:       "subsd",
		InputReqs:  []architecture.RegRequirement{reqFloat(), reqFloat()},
		OutputReqs: []architecture.RegRequirement{sameAsInput0(reqFloat())},
		Latency:    3,
	}
}
