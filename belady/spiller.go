// Package belady implements the Belady spill/reload inserter: for
// one register class, it simulates a register set of size k using
// next-use distances and inserts spill/reload requests into a
// spillenv.Environment so that no more than k class-relevant live values
// are simultaneously resident at any program point.
package belady

import (
	"sort"

	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/fault"
	"github.com/dbrgn/x86backend/ir"
	"github.com/dbrgn/x86backend/liveness"
	"github.com/dbrgn/x86backend/spillenv"
)

// ClassOf maps a value to the register class it would occupy, or nil if
// the value never lives in a register (memory/control tokens).
type ClassOf func(v *ir.Node) *architecture.RegisterClass

// blockWS is the block-info side-table entry this stage owns: the
// start/end working sets, kept off Block itself.
type blockWS struct {
	start []*ir.Node
	end   []*ir.Node
	done  bool
}

// Spiller runs the Belady heuristic for one register class over a whole
// graph; the driver constructs a fresh Spiller per class.
type Spiller struct {
	Class   *architecture.RegisterClass
	K       int
	ClassOf ClassOf
	Oracle  *liveness.Oracle
	Env     *spillenv.Environment

	// MaxRecursionDepth bounds the single-predecessor recursive descent;
	// 0 means "len(graph.Blocks)+1", set by Run.
	MaxRecursionDepth int

	info     map[*ir.Block]*blockWS
	visiting map[*ir.Block]bool
	depth    int
}

func New(
	class *architecture.RegisterClass,
	classOf ClassOf,
	oracle *liveness.Oracle,
	env *spillenv.Environment,
) *Spiller {
	return &Spiller{
		Class:    class,
		K:        class.AllocatableMask.Count(),
		ClassOf:  classOf,
		Oracle:   oracle,
		Env:      env,
		info:     map[*ir.Block]*blockWS{},
		visiting: map[*ir.Block]bool{},
	}
}

func (s *Spiller) relevant(v *ir.Node) bool {
	if v == nil {
		return false
	}
	c := s.ClassOf(v)
	return c == s.Class
}

// Run processes every block of g, lazily descending into an unprocessed
// single predecessor on demand, then runs the border reconciliation pass
// once all blocks have start/end working sets.
func (s *Spiller) Run(g *ir.Graph) {
	if s.MaxRecursionDepth == 0 {
		s.MaxRecursionDepth = len(g.Blocks) + 1
	}
	for _, b := range g.Blocks {
		s.visitBlock(b)
	}
	s.reconcileBorders(g)
}

func (s *Spiller) visitBlock(b *ir.Block) {
	if ws, ok := s.info[b]; ok && ws.done {
		return
	}

	fault.Assertf(
		!s.visiting[b], fault.Spill, 0, "", b.Label,
		"cycle detected descending into single-predecessor chain at block %s",
		b.Label)
	fault.Assertf(
		s.depth < s.MaxRecursionDepth, fault.Spill, 0, "", b.Label,
		"single-predecessor recursion exceeded max depth %d at block %s",
		s.MaxRecursionDepth, b.Label)

	s.visiting[b] = true
	s.depth++
	defer func() { s.depth--; s.visiting[b] = false }()

	ws := &blockWS{}
	s.info[b] = ws

	ws.start = s.startWorkingSet(b)
	ws.end = s.walkBlock(b, ws)
	ws.done = true
}

// startWorkingSet picks the values assumed register-resident at b's
// entry: a single predecessor's end set is cloned outright; otherwise the
// k nearest-next-use candidates among live-in values and b's own phis
// win, and every losing phi is submitted as a phi spill.
func (s *Spiller) startWorkingSet(b *ir.Block) []*ir.Node {
	if len(b.Parents) == 1 {
		pred := b.Parents[0]
		s.visitBlock(pred)
		if predWS, ok := s.info[pred]; ok && predWS.end != nil {
			return append([]*ir.Node(nil), predWS.end...)
		}
	}

	type cand struct {
		v    *ir.Node
		dist int
		phi  bool
	}
	var cands []cand
	seen := map[*ir.Node]bool{}

	for _, v := range s.Oracle.LiveIn(b) {
		if !s.relevant(v) || seen[v] {
			continue
		}
		seen[v] = true
		cands = append(cands, cand{v: v, dist: s.Oracle.NextUse(b, 0, v, false)})
	}
	for _, phi := range b.Phis {
		if !s.relevant(phi) || seen[phi] {
			continue
		}
		seen[phi] = true
		cands = append(cands, cand{
			v:    phi,
			dist: s.Oracle.NextUse(b, 0, phi, false),
			phi:  true,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	var start []*ir.Node
	for i, c := range cands {
		if i < s.K {
			start = append(start, c.v)
		} else if c.phi {
			s.Env.SpillPhi(c.v)
		}
	}
	return start
}

// walkBlock simulates register residency across b's instructions and
// returns the end working set.
// Evictions of never-used live-in values shrink bi.start in place, so the
// border reconciliation pass only requests reloads for values the block
// genuinely needed live-in.
func (s *Spiller) walkBlock(b *ir.Block, bi *blockWS) []*ir.Node {
	ws := append([]*ir.Node(nil), bi.start...)
	used := map[*ir.Node]bool{}
	wsStartSet := map[*ir.Node]bool{}
	for _, v := range bi.start {
		wsStartSet[v] = true
	}

	evictFromStart := func(v *ir.Node) {
		if !wsStartSet[v] {
			return
		}
		for i, x := range bi.start {
			if x == v {
				bi.start = append(bi.start[:i], bi.start[i+1:]...)
				break
			}
		}
		delete(wsStartSet, v)
	}

	for instrNr, inst := range b.Order {
		if inst.IsPhi() || inst.IsProj() {
			continue
		}

		var uses []*ir.Node
		useIdx := map[*ir.Node]int{}
		for idx, in := range inst.Inputs() {
			if in.Kind == ir.EdgeData && s.relevant(in.Node) {
				uses = append(uses, in.Node)
				useIdx[in.Node] = idx
			}
		}
		for _, v := range uses {
			used[v] = true
		}
		ws = s.displace(b, ws, uses, instrNr, true, used, evictFromStart, func(v *ir.Node) {
			s.Env.AddReload(v, inst, useIdx[v])
		})

		var defs []*ir.Node
		if inst.IsTuple() {
			for _, succ := range inst.DataSuccessors() {
				if succ.IsProj() && s.relevant(succ) {
					defs = append(defs, succ)
				}
			}
		} else if s.relevant(inst) {
			defs = append(defs, inst)
		}
		ws = s.displace(b, ws, defs, instrNr, false, used, evictFromStart, nil)
	}

	return append([]*ir.Node(nil), ws...)
}

// displace is the Belady heuristic: it folds newVals into ws,
// evicting the farthest-next-use resident(s) if demand would overflow k.
func (s *Spiller) displace(
	b *ir.Block,
	ws []*ir.Node,
	newVals []*ir.Node,
	instrNr int,
	isUsage bool,
	used map[*ir.Node]bool,
	evictFromStart func(*ir.Node),
	onReload func(*ir.Node),
) []*ir.Node {
	present := map[*ir.Node]bool{}
	for _, v := range ws {
		present[v] = true
	}

	var toInsert []*ir.Node
	for _, v := range newVals {
		if present[v] {
			continue
		}
		present[v] = true
		toInsert = append(toInsert, v)
		if isUsage && onReload != nil {
			onReload(v)
		}
	}

	demand := len(toInsert)
	if len(ws)+demand > s.K {
		type resident struct {
			v    *ir.Node
			dist int
		}
		residents := make([]resident, len(ws))
		for i, v := range ws {
			residents[i] = resident{v: v, dist: s.Oracle.NextUse(b, instrNr, v, !isUsage)}
		}
		sort.SliceStable(residents, func(i, j int) bool {
			return residents[i].dist < residents[j].dist
		})

		numEvict := len(ws) + demand - s.K
		fault.Assertf(
			numEvict <= len(residents), fault.Spill, 0, "", b.Label,
			"working set overflow: cannot evict %d from %d residents", numEvict, len(residents))

		evicted := residents[len(residents)-numEvict:]
		residents = residents[:len(residents)-numEvict]

		ws = ws[:0]
		for _, r := range residents {
			ws = append(ws, r.v)
		}
		for _, r := range evicted {
			if !used[r.v] {
				evictFromStart(r.v)
			}
			for _, phi := range b.Phis {
				if phi == r.v {
					s.Env.SpillPhi(phi)
				}
			}
		}
	}

	ws = append(ws, toInsert...)
	fault.Assertf(
		len(ws) <= s.K, fault.Spill, 0, "", b.Label,
		"working set size %d exceeds budget %d", len(ws), s.K)
	return ws
}

// phiArgument returns the predIdx-th data input of phi, or nil if the phi
// has fewer data inputs than its block has predecessors.
func phiArgument(phi *ir.Node, predIdx int) *ir.Node {
	dataIdx := 0
	for _, in := range phi.Inputs() {
		if in.Kind != ir.EdgeData {
			continue
		}
		if dataIdx == predIdx {
			return in.Node
		}
		dataIdx++
	}
	return nil
}

// reconcileBorders repairs the per-block locality: for every block B and
// predecessor P, any value in B's start working set absent from P's end
// working set is requested as a reload on that edge.
func (s *Spiller) reconcileBorders(g *ir.Graph) {
	for _, b := range g.Blocks {
		bws, ok := s.info[b]
		if !ok {
			continue
		}
		for predIdx, pred := range b.Parents {
			pws, ok := s.info[pred]
			if !ok {
				continue
			}
			predEnd := map[*ir.Node]bool{}
			for _, v := range pws.end {
				predEnd[v] = true
			}
			for _, v := range bws.start {
				if v == nil {
					continue
				}
				// A phi of B occupies a register along this edge through its
				// pred-side argument, so membership is checked on the argument.
				cand := v
				if v.Block == b && v.IsPhi() {
					cand = phiArgument(v, predIdx)
					if cand == nil {
						continue // unknown-valued input: lives everywhere
					}
				}
				if predEnd[cand] {
					continue
				}
				s.Env.AddReloadOnEdge(cand, b, predIdx)
			}
		}
	}
}
