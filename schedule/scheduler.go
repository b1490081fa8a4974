// Package schedule implements the list scheduler: given a block with
// data/memory/dependency edges computed, it produces a total order of
// the block's schedulable nodes, delegating the one genuine choice
// point -- which ready node to pick next -- to a pluggable Selector.
package schedule

import (
	"github.com/dbrgn/x86backend/fault"
	"github.com/dbrgn/x86backend/ir"
)

// Selector is the pluggable scheduling strategy.
type Selector interface {
	InitGraph(g *ir.Graph)
	InitBlock(b *ir.Block)
	NodeReady(env *BlockEnv, n *ir.Node)
	Select(env *BlockEnv, ready []*ir.Node, live map[*ir.Node]int) *ir.Node
	NodeSelected(env *BlockEnv, n *ir.Node)
	FinishBlock(b *ir.Block)
	FinishGraph(g *ir.Graph)
}

// BlockEnv is the per-block scheduling state passed to the selector: the
// live set (values currently in use beyond the cursor, with their
// remaining-consumer counts) and bookkeeping the scheduler itself owns.
type BlockEnv struct {
	Block *ir.Block

	// Live maps a scheduled-or-external value with outstanding in-block
	// consumers to its remaining consumer count.
	Live map[*ir.Node]int

	ready    []*ir.Node
	readySet map[*ir.Node]bool
}

// Run schedules every block of g in graph-block-walk order, writing
// each block's total order to Block.Schedule.
func Run(g *ir.Graph, sel Selector) {
	sel.InitGraph(g)
	for _, b := range g.Blocks {
		scheduleBlock(b, sel)
	}
	sel.FinishGraph(g)
}

func scheduleBlock(b *ir.Block, sel Selector) {
	sel.InitBlock(b)

	env := &BlockEnv{
		Block:    b,
		Live:     map[*ir.Node]int{},
		readySet: map[*ir.Node]bool{},
	}

	nodes := append([]*ir.Node(nil), b.Order...)
	inBlock := map[*ir.Node]bool{}
	for _, n := range nodes {
		inBlock[n] = true
	}

	// Phis and the implicit block-start marker occupy position zero and are
	// never part of the ordinary ready-set competition. Readiness therefore only
	// considers inputs that compete for a schedule slot themselves, i.e.
	// those present in the block's Order -- a phi input counts as already
	// placed.
	var schedule []*ir.Node
	scheduled := map[*ir.Node]bool{}

	markReady := func(n *ir.Node) {
		if env.readySet[n] || scheduled[n] {
			return
		}
		for _, in := range n.Inputs() {
			if inBlock[in.Node] && !scheduled[in.Node] {
				return
			}
		}
		env.readySet[n] = true
		env.ready = append(env.ready, n)
		sel.NodeReady(env, n)
	}

	var place func(n *ir.Node)
	place = func(n *ir.Node) {
		delete(env.readySet, n)
		env.ready = removeNode(env.ready, n)
		scheduled[n] = true

		schedule = append(schedule, n)
		appendLiveness(env, n, inBlock)
		sel.NodeSelected(env, n)

		succs := append(append(
			append([]*ir.Node(nil), n.DataSuccessors()...),
			n.MemSuccessors()...), n.DepSuccessors()...)
		for _, succ := range succs {
			if succ.Block != b || succ.IsEnd() {
				continue
			}
			markReady(succ)
		}

		// A tuple's projections follow it immediately in the schedule: they
		// are not real machine instructions, just names for the tuple's
		// result registers, so nothing may come between them and their
		// producer.
		if n.IsTuple() {
			for _, succ := range n.DataSuccessors() {
				if succ.IsProj() && succ.Block == b && env.readySet[succ] {
					place(succ)
				}
			}
		}
	}

	for _, n := range nodes {
		markReady(n)
	}

	for len(env.ready) > 0 {
		var chosen *ir.Node
		for _, n := range env.ready {
			if n.IsKeep() {
				chosen = n
				break
			}
		}
		if chosen == nil {
			chosen = sel.Select(env, env.ready, env.Live)
			fault.Assertf(chosen != nil, fault.Schedule, 0, "", b.Label,
				"selector returned nil from a non-empty ready set")
		}
		place(chosen)
	}

	fault.Assertf(
		len(schedule) == len(nodes), fault.Schedule, 0, "", b.Label,
		"ready set starved before all %d nodes scheduled (%d done): data "+
			"dependency cycle in block", len(nodes), len(schedule))

	b.Schedule = schedule
	sel.FinishBlock(b)
}

func removeNode(list []*ir.Node, n *ir.Node) []*ir.Node {
	for i, x := range list {
		if x == n {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// logicalConsumerCount is num_not_sched_user's initial value: for a
// tuple-producing node, the sum of its projections' data users; otherwise
// its own direct data users.
func logicalConsumerCount(n *ir.Node, inBlock map[*ir.Node]bool) int {
	if !n.IsTuple() {
		return len(n.DataSuccessors())
	}
	total := 0
	for _, succ := range n.DataSuccessors() {
		if succ.IsProj() {
			total += len(succ.DataSuccessors())
		}
	}
	return total
}

// appendLiveness updates Live after n is appended: each input's
// underlying consumer count is decremented (removed from Live at 0), and
// n itself enters Live with its own consumer count if it has any users
// left to schedule.
func appendLiveness(env *BlockEnv, n *ir.Node, inBlock map[*ir.Node]bool) {
	for _, in := range n.Inputs() {
		if in.Kind != ir.EdgeData || !inBlock[in.Node] {
			continue
		}
		v := in.Node
		if v.IsProj() {
			v = v.ProjOf
		}
		if c, ok := env.Live[v]; ok {
			c--
			if c <= 0 {
				delete(env.Live, v)
			} else {
				env.Live[v] = c
			}
		}
	}

	count := logicalConsumerCount(n, inBlock)
	if count > 0 {
		env.Live[n] = count
	}
}
