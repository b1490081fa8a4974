// Package spillenv accumulates spill/reload insertion requests during
// Belady spilling and materializes them into the IR: one stack slot per
// spill equivalence class, one Spill per distinct value, one Reload per
// request. Requests are kept in insertion order; Spills are deduplicated
// by value, and only the first Materialize call applies them.
package spillenv

import (
	"fmt"

	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/ir"
)

type reloadReq struct {
	value *ir.Node
	use   *ir.Node
	index int // operand position within use's Inputs
}

type edgeReq struct {
	value *ir.Node
	block *ir.Block
	pred  int
}

// Environment is the per-register-class spill/reload accumulator and
// materializer.
type Environment struct {
	class *architecture.RegisterClass

	reloads     []reloadReq
	edgeReloads []edgeReq
	phiSpills   map[*ir.Node]bool

	// uf is the union-find over values that must share one frame slot:
	// a phi spill merges its own class with every phi argument's class,
	// transitively.
	uf map[*ir.Node]*ir.Node

	materialized bool
}

func New(class *architecture.RegisterClass) *Environment {
	return &Environment{
		class:     class,
		phiSpills: map[*ir.Node]bool{},
		uf:        map[*ir.Node]*ir.Node{},
	}
}

// AddReload requests that v be reloaded before use u, rewiring the
// operand at index idx.
func (e *Environment) AddReload(v, u *ir.Node, idx int) {
	e.reloads = append(e.reloads, reloadReq{value: v, use: u, index: idx})
}

// AddReloadOnEdge requests a reload of V at the head of B, sourced from
// the pred-index'th predecessor edge.
func (e *Environment) AddReloadOnEdge(v *ir.Node, b *ir.Block, predIdx int) {
	e.edgeReloads = append(e.edgeReloads, edgeReq{value: v, block: b, pred: predIdx})
}

// SpillPhi requests that phi p be spilled: p's slot is unioned with every
// incoming argument's slot.
func (e *Environment) SpillPhi(p *ir.Node) {
	e.phiSpills[p] = true
	for _, in := range p.Inputs() {
		if in.Kind == ir.EdgeData {
			e.union(p, in.Node)
		}
	}
}

func (e *Environment) find(v *ir.Node) *ir.Node {
	root, ok := e.uf[v]
	if !ok {
		e.uf[v] = v
		return v
	}
	if root == v {
		return v
	}
	r := e.find(root)
	e.uf[v] = r
	return r
}

func (e *Environment) union(a, b *ir.Node) {
	ra, rb := e.find(a), e.find(b)
	if ra != rb {
		e.uf[ra] = rb
	}
}

// Materialize inserts Spill nodes after each distinct value's definition,
// Reload nodes before each requested use (or at the successor head for
// edge requests), rewires uses, marks Reloads rematerializable, and culls
// dead reloads whose rewired use no longer survives.
func (e *Environment) Materialize(g *ir.Graph, frame *architecture.StackFrame) {
	if e.materialized {
		// Every call after the first is a no-op; requests added after the
		// first call are not materialized.
		return
	}
	e.materialized = true

	slotFor := func(v *ir.Node) *architecture.FrameEntity {
		root := e.find(v)
		name := fmt.Sprintf("spill.%s.#%d", e.class.Name, root.ID())
		return frame.AllocateSlot(name, e.class, v.Mode.ByteSize())
	}

	spillOf := map[*ir.Node]*ir.Node{}
	ensureSpill := func(v *ir.Node) *ir.Node {
		if s, ok := spillOf[v]; ok {
			return s
		}
		entity := slotFor(v)
		// A Spill consumes the register value and produces a memory token;
		// it never occupies a register itself.
		s := g.NewNode(ir.OpSpill, ir.KindBackend, ir.ModeMemory, v.Block)
		s.AddInput(v, ir.EdgeData)
		g.InfoFor(s).FrameEntity = entity
		if v.Block != nil {
			v.Block.InsertOrderAfter(v, s)
		}
		spillOf[v] = s
		return s
	}

	var inserted []*ir.Node

	for _, r := range e.reloads {
		spill := ensureSpill(r.value)
		reload := g.NewNode(ir.OpReload, ir.KindBackend, r.value.Mode, r.use.Block)
		reload.AddInput(spill, ir.EdgeMemory)
		g.InfoFor(reload).FrameEntity = g.InfoFor(spill).FrameEntity
		g.InfoFor(reload).Rematerializable = true
		r.use.ReplaceInput(r.index, reload)
		if r.use.Block != nil {
			r.use.Block.InsertOrderBefore(r.use, reload)
		}
		inserted = append(inserted, reload)
	}

	for _, r := range e.edgeReloads {
		value := r.value
		if r.pred < len(r.block.Parents) {
			// If value is a phi of the block, substitute the corresponding
			// argument from this predecessor.
			for _, phi := range r.block.Phis {
				if phi == value {
					for idx, in := range phi.Inputs() {
						if idx == r.pred && in.Kind == ir.EdgeData {
							value = in.Node
						}
					}
				}
			}
		}
		if value == nil {
			continue // unknown-valued input: lives everywhere, skip
		}

		spill := ensureSpill(value)
		reload := g.NewNode(ir.OpReload, ir.KindBackend, value.Mode, r.block)
		reload.AddInput(spill, ir.EdgeMemory)
		g.InfoFor(reload).FrameEntity = g.InfoFor(spill).FrameEntity
		g.InfoFor(reload).Rematerializable = true
		if len(r.block.Order) > 0 {
			r.block.InsertOrderBefore(r.block.Order[0], reload)
		} else {
			r.block.Order = append(r.block.Order, reload)
		}

		// Local uses of the restored value read the reload instead; uses in
		// deeper blocks keep reading the original, which stays valid there
		// because the border pass repairs each edge independently. Edge
		// reloads are never culled: a value merely live-through the block has
		// no local use, yet the register-state repair must survive.
		for _, u := range append([]*ir.Node(nil), value.DataSuccessors()...) {
			if u.Block != r.block || u == reload || u.IsPhi() {
				continue
			}
			for idx, in := range u.Inputs() {
				if in.Kind == ir.EdgeData && in.Node == value {
					u.ReplaceInput(idx, reload)
				}
			}
		}
	}

	for phi := range e.phiSpills {
		ensureSpill(phi)
	}

	e.cullDeadReloads(inserted)
}

// cullDeadReloads removes a Reload node whose rewired use list is empty:
// no consumer survived downstream dead-code elimination.
func (e *Environment) cullDeadReloads(inserted []*ir.Node) {
	for _, n := range inserted {
		if len(n.DataSuccessors()) == 0 && n.Block != nil {
			n.Block.RemoveFromOrder(n)
		}
	}
}
