package chordal

import (
	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/fault"
	"github.com/dbrgn/x86backend/ir"
)

// ClassOf maps a value to the register class it occupies, or nil.
type ClassOf func(v *ir.Node) *architecture.RegisterClass

// neverClear marks a live entry that must not be evicted before the block
// ends, because the value is live-out.
const neverClear = -1

// Colorer assigns physical registers for one register class by walking
// the dominator tree and, within each block, a forward border list of
// def/use events.
type Colorer struct {
	Class   *architecture.RegisterClass
	ClassOf ClassOf

	// LiveIn/LiveOut come from a liveness.Oracle for this class; the driver
	// recomputes that oracle after spilling, so it sees the Spill/Reload
	// nodes the spiller inserted.
	// LiveIn must include values merely live-through (live across b with no
	// use inside it): their registers stay reserved for the whole block even
	// though no border event mentions them.
	LiveIn  func(b *ir.Block) []*ir.Node
	LiveOut func(b *ir.Block, v *ir.Node) bool
}

// Run colors every block of g in strict dominator-tree preorder,
// so a block's live-in values are always colored by the time it is
// visited.
func (c *Colorer) Run(g *ir.Graph, tree *Tree) {
	for _, b := range tree.Preorder() {
		c.colorBlock(g, b)
	}
}

func (c *Colorer) relevant(v *ir.Node) bool {
	return c.ClassOf(v) == c.Class
}

func (c *Colorer) colorBlock(g *ir.Graph, b *ir.Block) {
	counts := map[*ir.Node]int{}
	countUse := func(v *ir.Node) {
		if c.relevant(v) {
			counts[v]++
		}
	}
	for _, n := range b.ScheduleOrder() {
		for _, in := range n.Inputs() {
			if in.Kind == ir.EdgeData {
				countUse(in.Node)
			}
		}
	}

	var colors architecture.RegMask
	live := map[*ir.Node]int{}

	seedLive := func(v *ir.Node) {
		reg := c.registerOf(g, v)
		fault.Assertf(
			reg != nil, fault.Chordal, int(v.ID()), string(v.Op), b.Label,
			"live-in value has no assigned register from its dominator")
		colors |= architecture.MaskOf(reg)
		if c.LiveOut(b, v) {
			live[v] = neverClear
		} else {
			live[v] = counts[v]
		}
	}

	// Live-in values are already colored by their dominator.
	// LiveIn covers values merely live-through as well; the in-block scan is
	// a fallback for callers that wired no oracle (tests driving one block).
	seen := map[*ir.Node]bool{}
	if c.LiveIn != nil {
		for _, v := range c.LiveIn(b) {
			if c.relevant(v) && !seen[v] {
				seen[v] = true
				seedLive(v)
			}
		}
	} else {
		for _, n := range b.ScheduleOrder() {
			for _, in := range n.Inputs() {
				if in.Kind != ir.EdgeData || !c.relevant(in.Node) || seen[in.Node] {
					continue
				}
				if in.Node.Block != b {
					seen[in.Node] = true
					seedLive(in.Node)
				}
			}
		}
	}
	// Phi arguments coming from predecessors are likewise live-in carriers
	// via their predecessor's definition; the phi's own destination is a
	// fresh def at position zero, handled below.

	// assignDefs colors one instruction's simultaneous defs (a tuple's
	// projections, or the block's whole phi row): every def reserves its
	// register first, then the dead ones release theirs, so siblings never
	// collide but a result nobody reads doesn't poison the rest of the
	// block.
	assignDefs := func(vs []*ir.Node) {
		type colored struct {
			v   *ir.Node
			reg *architecture.Register
		}
		var done []colored
		for _, v := range vs {
			info := g.InfoFor(v)
			var reg *architecture.Register
			if len(info.AssignedRegisters) > 0 && info.AssignedRegisters[0] != nil {
				reg = info.AssignedRegisters[0]
				fault.Assertf(
					!colors.Has(reg), fault.Chordal, int(v.ID()), string(v.Op), b.Label,
					"precolored register %s already in use at def of #%d",
					reg.Name, v.ID())
			} else {
				free := c.Class.AllocatableMask &^ colors
				idx := free.Lowest()
				fault.Assertf(
					idx >= 0, fault.Chordal, int(v.ID()), string(v.Op), b.Label,
					"no free register in class %s to color #%d -- spiller failed "+
						"to reduce pressure to budget", c.Class.Name, v.ID())
				reg = c.Class.Register(idx)
				info.AssignedRegisters = []*architecture.Register{reg}
			}
			colors |= architecture.MaskOf(reg)
			done = append(done, colored{v: v, reg: reg})
		}
		for _, d := range done {
			if c.LiveOut(b, d.v) {
				live[d.v] = neverClear
			} else if n := counts[d.v]; n > 0 {
				live[d.v] = n
			} else {
				colors &^= architecture.MaskOf(d.reg)
			}
		}
	}

	var phiDefs []*ir.Node
	for _, phi := range b.Phis {
		if c.relevant(phi) {
			phiDefs = append(phiDefs, phi)
		}
	}
	assignDefs(phiDefs)

	for _, n := range b.ScheduleOrder() {
		if n.IsProj() {
			continue // colored at its producing tuple's position
		}
		for _, in := range n.Inputs() {
			if in.Kind != ir.EdgeData || !c.relevant(in.Node) {
				continue
			}
			v := in.Node
			cnt, ok := live[v]
			if !ok || cnt == neverClear {
				continue
			}
			cnt--
			if cnt <= 0 {
				reg := c.registerOf(g, v)
				if reg != nil {
					colors &^= architecture.MaskOf(reg)
				}
				delete(live, v)
			} else {
				live[v] = cnt
			}
		}

		if n.IsTuple() {
			var defs []*ir.Node
			for _, succ := range n.DataSuccessors() {
				if succ.IsProj() && c.relevant(succ) {
					defs = append(defs, succ)
				}
			}
			assignDefs(defs)
		} else if c.relevant(n) {
			assignDefs([]*ir.Node{n})
		}
	}
}

func (c *Colorer) registerOf(g *ir.Graph, v *ir.Node) *architecture.Register {
	info := g.InfoFor(v)
	if len(info.AssignedRegisters) == 0 {
		return nil
	}
	return info.AssignedRegisters[0]
}
