// Package liveness computes per-block live-in/out sets and answers
// next-use-distance queries via classic backward data-flow propagation,
// parameterized over a pluggable per-register-class relevance filter so
// one oracle type serves every class the driver processes.
package liveness

import (
	"github.com/dbrgn/x86backend/ir"
)

// Infinite represents "no next use".
const Infinite = 1 << 30

// Relevant reports whether a value participates in the register class
// this Oracle was built for.
type Relevant func(v *ir.Node) bool

// info records, for each live value, the nearest next-use distance
// reachable from this program point; merges across successor paths keep
// the nearer one.
type info map[*ir.Node]int

// mergeFrom folds a child's live-in distances (offset by parentLen) into
// this live-out info, keeping the nearer (smaller) distance per value.
func (i info) mergeFrom(parentLen int, child info) bool {
	changed := false
	for v, d := range child {
		nd := d + parentLen
		if old, ok := i[v]; !ok || nd < old {
			i[v] = nd
			changed = true
		}
	}
	return changed
}

// Oracle answers live-in/out and next-use queries for one register class
// over one function.
type Oracle struct {
	relevant   Relevant
	doNotSpill func(v *ir.Node) bool

	liveIn  map[*ir.Block]info
	liveOut map[*ir.Block]info

	// localUses is the per-block use-distance table the spiller's
	// displace() queries: every in-block use, whether the used value was
	// defined inside the block or flows in from elsewhere.
	localUses map[*ir.Block]map[*ir.Node][]int
}

// Compute runs the backward data-flow fixpoint over graph for values
// satisfying relevant, seeded at terminal blocks (no children).
// doNotSpill values always report distance 0 regardless of where they're
// queried, ensuring the spiller never evicts them.
func Compute(graph *ir.Graph, relevant Relevant, doNotSpill func(*ir.Node) bool) *Oracle {
	o := &Oracle{
		relevant:   relevant,
		doNotSpill: doNotSpill,
		liveIn:     map[*ir.Block]info{},
		liveOut:    map[*ir.Block]info{},
		localUses:  map[*ir.Block]map[*ir.Node][]int{},
	}

	var worklist []*ir.Block
	inWork := map[*ir.Block]bool{}
	push := func(b *ir.Block) {
		if !inWork[b] {
			inWork[b] = true
			worklist = append(worklist, b)
		}
	}

	for _, b := range graph.Blocks {
		o.liveOut[b] = info{}
		o.localUses[b] = o.computeLocalUses(b)
		if len(b.Children) == 0 {
			push(b)
		}
	}

	// A phi argument is consumed on its incoming edge: the value flowing in
	// from predecessor i must be live at that predecessor's exit even if
	// nothing inside the predecessor reads it. Seed those uses directly into
	// the predecessors' live-out before running the fixpoint.
	for _, b := range graph.Blocks {
		for _, phi := range b.Phis {
			dataIdx := 0
			for _, in := range phi.Inputs() {
				if in.Kind != ir.EdgeData {
					continue
				}
				if dataIdx < len(b.Parents) && o.relevant(in.Node) {
					pred := b.Parents[dataIdx]
					dist := len(pred.Order) + 1
					if old, ok := o.liveOut[pred][in.Node]; !ok || dist < old {
						o.liveOut[pred][in.Node] = dist
						push(pred)
					}
				}
				dataIdx++
			}
		}
	}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		inWork[b] = false

		if o.updateLiveIn(b) {
			for _, parent := range b.Parents {
				if o.updateParentLiveOut(parent, b) {
					push(parent)
				}
			}
		}
	}

	return o
}

// computeLocalUses walks b's preliminary order, recording every
// class-relevant value's in-block use distances -- regardless of whether
// the value was defined inside or outside b. The instruction at Order
// index i records its operands at distance i+1, keeping distance 0 free
// for the phi row at the block head. The spiller's NextUse queries need
// same-block distances for values it just defined, not only for values
// live-in from elsewhere; updateLiveIn is where locally-defined values
// get excluded from propagating upward, not here.
func (o *Oracle) computeLocalUses(b *ir.Block) map[*ir.Node][]int {
	uses := map[*ir.Node][]int{}
	record := func(v *ir.Node, dist int) {
		if !o.relevant(v) {
			return
		}
		uses[v] = append(uses[v], dist)
	}

	for dist, n := range b.Order {
		for _, in := range n.DataInputs() {
			record(in, dist+1)
		}
	}
	return uses
}

func (o *Oracle) updateLiveIn(b *ir.Block) bool {
	in := info{}
	for v, dists := range o.localUses[b] {
		if definedIn(v, b) {
			continue // used locally, but not live coming into the block
		}
		best := dists[0]
		for _, d := range dists[1:] {
			if d < best {
				best = d
			}
		}
		in[v] = best
	}
	for v, d := range o.liveOut[b] {
		if definedIn(v, b) {
			continue
		}
		if _, ok := in[v]; !ok {
			in[v] = d
		}
	}

	old, ok := o.liveIn[b]
	if ok && sameInfo(old, in) {
		return false
	}
	o.liveIn[b] = in
	return true
}

func (o *Oracle) updateParentLiveOut(parent, child *ir.Block) bool {
	parentLen := len(parent.Order) + 1 // +1 for parent's own phis
	return o.liveOut[parent].mergeFrom(parentLen, o.liveIn[child])
}

func definedIn(v *ir.Node, b *ir.Block) bool { return v.Block == b }

func sameInfo(a, b info) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// LiveIn returns the set of values live at block's entry.
func (o *Oracle) LiveIn(b *ir.Block) []*ir.Node {
	var out []*ir.Node
	for v := range o.liveIn[b] {
		out = append(out, v)
	}
	return out
}

// LiveOut returns the set of values live at block's exit.
func (o *Oracle) LiveOut(b *ir.Block) []*ir.Node {
	var out []*ir.Node
	for v := range o.liveOut[b] {
		out = append(out, v)
	}
	return out
}

// IsLiveOut reports whether v is live at block's exit, the query the
// chordal colorer uses to decide whether a def's register reservation
// must survive to the block boundary.
func (o *Oracle) IsLiveOut(b *ir.Block, v *ir.Node) bool {
	_, ok := o.liveOut[b][v]
	return ok
}

// NextUse answers "distance of V's next use at program point P within
// block", where P is the Order index of the instruction currently being
// processed (0 = the block's first instruction; uses at Order index i
// were recorded at distance i+1, so uses strictly before P are behind
// the cursor and never count). If skipAtP is true, a use at the current
// instruction itself is also ignored. DoNotSpill values always report 0.
func (o *Oracle) NextUse(b *ir.Block, point int, v *ir.Node, skipAtP bool) int {
	if v.DoNotSpill || (o.doNotSpill != nil && o.doNotSpill(v)) {
		return 0
	}

	best := Infinite
	for _, d := range o.localUses[b][v] {
		if d <= point {
			continue
		}
		if skipAtP && d == point+1 {
			continue
		}
		if d < best {
			best = d
		}
	}
	if d, ok := o.liveOut[b][v]; ok {
		tail := d - point
		if tail < 0 {
			tail = 0
		}
		if tail < best {
			best = tail
		}
	}
	return best
}
