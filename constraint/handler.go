// Package constraint implements the constraint handler: for every
// instruction with register-pinned operands, it inserts a Perm node,
// pairs same-register input/output operands, and solves a bipartite
// matching to assign physical registers before the chordal colorer runs.
//
// A Perm's input set here is the instruction's own class-relevant
// operands (those the handler must pin or pair), not every value live
// across the instruction -- purely live-through values are left for the
// chordal colorer's ordinary greedy pass, which still honors every
// precoloring this package writes. This keeps the matching step's scope
// equal to what actually needs resolving.
package constraint

import (
	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/fault"
	"github.com/dbrgn/x86backend/ir"
)

// Handler runs the constraint pass for one register class.
type Handler struct {
	Class *architecture.RegisterClass
	Specs map[ir.Opcode]*architecture.OpSpec
}

func New(class *architecture.RegisterClass, specs map[ir.Opcode]*architecture.OpSpec) *Handler {
	return &Handler{Class: class, Specs: specs}
}

// slot is one left-hand node of the bipartite matching: either a single
// standalone operand carrier or a paired input+output sharing one
// register.
type slot struct {
	carriers   []*ir.Node // the Proj (or inst itself, for an output) sharing this register
	admissible architecture.RegMask
}

// Run walks every block's post-spill schedule, inserting Perm nodes and
// resolving register-pinned instructions.
func (h *Handler) Run(g *ir.Graph) {
	for _, b := range g.Blocks {
		h.runBlock(g, b)
	}
}

func (h *Handler) runBlock(g *ir.Graph, b *ir.Block) {
	for _, inst := range append([]*ir.Node(nil), b.ScheduleOrder()...) {
		spec, ok := h.Specs[inst.Op]
		if !ok {
			continue
		}
		if !spec.HasLimitedOperand() && !inst.IsPhi() {
			continue
		}
		h.handleInstruction(g, b, inst, spec)
	}
}

func (h *Handler) handleInstruction(
	g *ir.Graph, b *ir.Block, inst *ir.Node, spec *architecture.OpSpec,
) {
	// Gather the positions whose requirement belongs to this class,
	// capturing the original operand values before any rewiring touches
	// inst's input slice.
	type operand struct {
		idx int
		req architecture.RegRequirement
		val *ir.Node
	}
	var ops []operand
	inputs := inst.Inputs()
	for idx, req := range spec.InputReqs {
		if req.Class != h.Class || req.Ignore || idx >= len(inputs) {
			continue
		}
		ops = append(ops, operand{idx: idx, req: req, val: inputs[idx].Node})
	}
	if len(ops) == 0 {
		return
	}

	// Insert Perm: one input/projection per distinct value among the
	// selected operand positions.
	var permInputs []*ir.Node
	valueIdx := map[*ir.Node]int{}
	for _, op := range ops {
		if _, seen := valueIdx[op.val]; !seen {
			valueIdx[op.val] = len(permInputs)
			permInputs = append(permInputs, op.val)
		}
	}

	perm := g.NewNode(ir.OpPerm, ir.KindBackend, ir.ModeTuple, b)
	for _, v := range permInputs {
		perm.AddInput(v, ir.EdgeData)
	}
	b.InsertOrderBefore(inst, perm)

	projs := make([]*ir.Node, len(permInputs))
	for i := len(permInputs) - 1; i >= 0; i-- {
		p := g.NewNode(ir.OpProj, ir.KindBackend, permInputs[i].Mode, b)
		p.ProjOf = perm
		p.ProjIndex = i
		p.AddInput(perm, ir.EdgeData)
		b.InsertOrderAfter(perm, p)
		projs[i] = p
	}

	for _, op := range ops {
		inst.ReplaceInput(op.idx, projs[valueIdx[op.val]])
	}

	// An output of a tuple-producing instruction is carried by its Proj,
	// which is what the chordal colorer treats as the def; a single-result
	// instruction carries its own output.
	outputCarrier := func(outIdx int) *ir.Node {
		if !inst.IsTuple() {
			return inst
		}
		for _, succ := range inst.DataSuccessors() {
			if succ.IsProj() && succ.ProjIndex == outIdx {
				return succ
			}
		}
		return nil // result unused: no Proj was ever created for it
	}

	// One matching slot per distinct Perm projection: a value feeding two
	// constrained positions still occupies a single register, so its
	// admissible set is the intersection of every position's requirement.
	slots := make([]*slot, len(permInputs))
	for i := range permInputs {
		slots[i] = &slot{
			carriers:   []*ir.Node{projs[i]},
			admissible: h.Class.AllocatableMask,
		}
	}
	slotOfInput := map[int]int{} // input position -> slot index
	for _, op := range ops {
		vi := valueIdx[op.val]
		slots[vi].admissible &= op.req.Admissible()
		slotOfInput[op.idx] = vi
	}

	// Pair-up: each class-relevant output either binds to the
	// slot its SameAsInput requirement names, or to the unpaired input slot
	// with the smallest admissible set among those whose sets intersect.
	// Pairing an input with an output is always interference-free here:
	// every Perm projection's sole consumer is inst, so its live range ends
	// exactly where the output's begins.
	pairedSlot := map[int]bool{}
	var outSlots []*slot
	for outIdx, outReq := range spec.OutputReqs {
		if outReq.Class != h.Class {
			continue
		}
		carrier := outputCarrier(outIdx)
		if carrier == nil {
			continue
		}

		best := -1
		if vi, ok := slotOfInput[outReq.SameAsInput]; outReq.SameAsInput >= 0 && ok && !pairedSlot[vi] {
			best = vi
		} else {
			bestSize := -1
			for i, s := range slots {
				if pairedSlot[i] {
					continue
				}
				if (s.admissible & outReq.Admissible()).IsEmpty() {
					continue
				}
				size := s.admissible.Count()
				if best == -1 || size < bestSize {
					best, bestSize = i, size
				}
			}
		}

		if best >= 0 {
			pairedSlot[best] = true
			slots[best].carriers = append(slots[best].carriers, carrier)
			slots[best].admissible &= outReq.Admissible()
		} else {
			outSlots = append(outSlots, &slot{
				carriers:   []*ir.Node{carrier},
				admissible: outReq.Admissible(),
			})
		}
	}
	slots = append(slots, outSlots...)

	h.solveAndAssign(g, b, inst, slots)
}

// solveAndAssign builds the register-indexed bipartite graph, runs Kuhn's
// augmenting-path matcher, and
// writes the assignment back to BackendInfo.
func (h *Handler) solveAndAssign(g *ir.Graph, b *ir.Block, inst *ir.Node, slots []*slot) {
	regs := h.Class.Registers
	n := len(slots)
	adj := make([][]int, n)
	for i, s := range slots {
		for ri, r := range regs {
			if s.admissible.Has(r) {
				adj[i] = append(adj[i], ri)
			}
		}
	}

	matchReg := make([]int, len(regs))
	for i := range matchReg {
		matchReg[i] = -1
	}
	matchSlot := make([]int, n)
	for i := range matchSlot {
		matchSlot[i] = -1
	}

	var tryAugment func(i int, visited []bool) bool
	tryAugment = func(i int, visited []bool) bool {
		for _, ri := range adj[i] {
			if visited[ri] {
				continue
			}
			visited[ri] = true
			if matchReg[ri] == -1 || tryAugment(matchReg[ri], visited) {
				matchReg[ri] = i
				matchSlot[i] = ri
				return true
			}
		}
		return false
	}

	for i := 0; i < n; i++ {
		visited := make([]bool, len(regs))
		ok := tryAugment(i, visited)
		fault.Assertf(
			ok, fault.Constraint, int(inst.ID()), string(inst.Op), b.Label,
			"no perfect matching for constrained operand %d -- spiller failed "+
				"to ensure feasibility", i)
	}

	for i, s := range slots {
		reg := regs[matchSlot[i]]
		for _, carrier := range s.carriers {
			info := g.InfoFor(carrier)
			if info.AssignedRegisters == nil {
				info.AssignedRegisters = []*architecture.Register{reg}
			} else {
				info.AssignedRegisters[0] = reg
			}
		}
	}
}
