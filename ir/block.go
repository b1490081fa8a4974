package ir

// Block is a maximal straight-line region terminated by a control-flow
// node. Per-stage state (working sets, border lists, colors) is never
// stored here -- it lives in the owning stage's own side-table keyed by
// *Block, consistent with Node's side-table discipline.
type Block struct {
	Label string

	Parents  []*Block
	Children []*Block

	// Phis live at the block head and are never part of the ordinary
	// schedule list.
	Phis []*Node

	// Order is the construction-order sequence of non-phi nodes as the
	// front end produced them -- a preliminary linearization the Belady
	// spiller walks, since the spiller runs before the list
	// scheduler produces the real order.
	Order []*Node

	// Schedule is the list scheduler's output: a total order of this
	// block's schedulable nodes, written once and read by the constraint
	// handler and chordal colorer. Nil until the scheduler has run.
	Schedule []*Node

	graph *Graph
}

// NewBlock creates an empty block. No BlockStart marker node is created
// for it, here or by Graph.AddBlock.
func NewBlock(label string) *Block {
	return &Block{Label: label}
}

// Graph returns the owning graph, set when the block is added via
// Graph.AddBlock.
func (b *Block) Graph() *Graph { return b.graph }

// AddPhi appends a phi to the block head.
func (b *Block) AddPhi(phi *Node) {
	phi.Block = b
	b.Phis = append(b.Phis, phi)
}

// AddChild records a CFG edge b -> child, keeping both sides' Parents/
// Children lists consistent.
func (b *Block) AddChild(child *Block) {
	b.Children = append(b.Children, child)
	child.Parents = append(child.Parents, b)
}

// InsertOrderAfter splices n into the current effective order immediately
// after the node after (or at the head if after is nil), used by the
// spill environment and constraint handler to insert Spill/Reload/Perm
// nodes at a precise program point. Before the list scheduler has run
// this targets Order; afterward it targets Schedule, since ScheduleOrder
// is what every later pass reads.
func (b *Block) InsertOrderAfter(after, n *Node) {
	if b.Schedule != nil {
		b.Schedule = insertAt(b.Schedule, indexOf(b.Schedule, after)+1, n)
		return
	}
	b.Order = insertAt(b.Order, indexOf(b.Order, after)+1, n)
}

// InsertOrderBefore splices n into the current effective order immediately
// before before.
func (b *Block) InsertOrderBefore(before, n *Node) {
	if b.Schedule != nil {
		idx := indexOf(b.Schedule, before)
		if idx < 0 {
			idx = len(b.Schedule)
		}
		b.Schedule = insertAt(b.Schedule, idx, n)
		return
	}
	idx := indexOf(b.Order, before)
	if idx < 0 {
		idx = len(b.Order)
	}
	b.Order = insertAt(b.Order, idx, n)
}

// RemoveFromOrder deletes n from the current effective order (used to
// cull dead reloads).
func (b *Block) RemoveFromOrder(n *Node) {
	if b.Schedule != nil {
		idx := indexOf(b.Schedule, n)
		if idx >= 0 {
			b.Schedule = append(b.Schedule[:idx], b.Schedule[idx+1:]...)
		}
		return
	}
	idx := indexOf(b.Order, n)
	if idx < 0 {
		return
	}
	b.Order = append(b.Order[:idx], b.Order[idx+1:]...)
}

func indexOf(nodes []*Node, n *Node) int {
	for i, x := range nodes {
		if x == n {
			return i
		}
	}
	return -1
}

func insertAt(nodes []*Node, idx int, n *Node) []*Node {
	if idx < 0 {
		idx = 0
	}
	if idx > len(nodes) {
		idx = len(nodes)
	}
	nodes = append(nodes, nil)
	copy(nodes[idx+1:], nodes[idx:])
	nodes[idx] = n
	return nodes
}

// ScheduleOrder returns the effective instruction order for passes that
// run after the list scheduler: Schedule if it has been computed,
// otherwise the construction Order (valid for the spiller, which runs
// first).
func (b *Block) ScheduleOrder() []*Node {
	if b.Schedule != nil {
		return b.Schedule
	}
	return b.Order
}
