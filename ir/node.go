package ir

import (
	"fmt"

	"github.com/dbrgn/x86backend/fault"
)

// EdgeKind classifies an input edge.
type EdgeKind int

const (
	EdgeData EdgeKind = iota
	EdgeMemory
	EdgeDep
)

// Input is one operand position of a Node.
type Input struct {
	Node *Node
	Kind EdgeKind
}

// NodeID is a stable identity assigned at creation, used as the key into
// every stage's side-tables (schedule position, backend info, color) so
// those tables never need a field embedded on Node itself.
type NodeID int

// Node is a value or operation in the sea-of-nodes IR.
//
// Node carries no stage-owned metadata directly: backend info, schedule
// position, and color all live in side-tables on Graph/Block, keyed by
// NodeID. Metadata a later stage adds must not require every earlier
// stage (or the front end) to know its shape.
type Node struct {
	id    NodeID
	Op    Opcode
	Kind  OpKind
	Mode  Mode
	Block *Block

	inputs []Input

	// Successor caches, kept exact by AddInput/ReplaceInput/RemoveInput.
	dataUsers []*Node
	memUsers  []*Node
	depUsers  []*Node

	// DoNotSpill forces the liveness oracle to always report a next-use
	// distance of 0 for this value, so the Belady spiller never
	// evicts it.
	DoNotSpill bool

	// ProjIndex/ProjOf identify a Proj node's position within a tuple-typed
	// producer's output list; nil/zero for non-Proj nodes. ProjName carries
	// the OpSpec projection label when the front end supplies one.
	ProjOf    *Node
	ProjIndex int
	ProjName  string
}

func (n *Node) ID() NodeID { return n.id }

func (n *Node) String() string {
	return fmt.Sprintf("#%d(%s)", n.id, n.Op)
}

func (n *Node) blockLabel() string {
	if n.Block == nil {
		return "<none>"
	}
	return n.Block.Label
}

// Inputs returns the node's operand list in order.
func (n *Node) Inputs() []Input {
	return n.inputs
}

// DataInputs returns only the data-typed operands, in order.
func (n *Node) DataInputs() []*Node {
	var out []*Node
	for _, in := range n.inputs {
		if in.Kind == EdgeData {
			out = append(out, in.Node)
		}
	}
	return out
}

// DataSuccessors returns every node that reads this node as a data input.
// The slice is exact: it reflects every AddInput/ReplaceInput call made so
// far, with no stale or missing entries.
func (n *Node) DataSuccessors() []*Node {
	return n.dataUsers
}

// MemSuccessors returns every node reading this node through the memory
// chain.
func (n *Node) MemSuccessors() []*Node {
	return n.memUsers
}

// DepSuccessors returns every node depending on this node via a
// dependency-only (ordering) edge.
func (n *Node) DepSuccessors() []*Node {
	return n.depUsers
}

// IsPhi reports whether n is a block-head Phi.
func (n *Node) IsPhi() bool { return n.Op == OpPhi }

// IsProj reports whether n is a tuple projection.
func (n *Node) IsProj() bool { return n.Op == OpProj }

// IsBlockStart reports whether n is the synthetic block-entry marker.
func (n *Node) IsBlockStart() bool { return n.Op == OpBlockStart }

// IsKeep reports whether n is a Keep/CopyKeep liveness pin.
func (n *Node) IsKeep() bool { return n.Op == OpKeep || n.Op == OpCopyKeep }

// IsEnd reports whether n is a graph anchor with no real schedule slot.
func (n *Node) IsEnd() bool { return n.Op == OpReturn }

// IsTuple reports whether n produces more than one logical result.
func (n *Node) IsTuple() bool { return n.Mode == ModeTuple }

func (n *Node) addUser(target *Node, kind EdgeKind) {
	switch kind {
	case EdgeData:
		target.dataUsers = append(target.dataUsers, n)
	case EdgeMemory:
		target.memUsers = append(target.memUsers, n)
	case EdgeDep:
		target.depUsers = append(target.depUsers, n)
	}
}

func (n *Node) removeUser(target *Node, kind EdgeKind) {
	remove := func(list []*Node) []*Node {
		for i, u := range list {
			if u == n {
				return append(list[:i], list[i+1:]...)
			}
		}
		return list
	}
	switch kind {
	case EdgeData:
		target.dataUsers = remove(target.dataUsers)
	case EdgeMemory:
		target.memUsers = remove(target.memUsers)
	case EdgeDep:
		target.depUsers = remove(target.depUsers)
	}
}

// AddInput appends a new operand. A cycle (target == n, or n already
// reachable from target via data inputs within the same block) is a fatal
// invariant break.
func (n *Node) AddInput(target *Node, kind EdgeKind) {
	n.checkNoCycle(target)
	n.inputs = append(n.inputs, Input{Node: target, Kind: kind})
	n.addUser(target, kind)
}

// ReplaceInput swaps the operand at idx for a new target, maintaining
// out-edge exactness on both the old and new target.
func (n *Node) ReplaceInput(idx int, target *Node) {
	fault.Assertf(
		idx >= 0 && idx < len(n.inputs),
		fault.Substrate,
		int(n.id), string(n.Op), n.blockLabel(),
		"ReplaceInput index %d out of range (arity %d)", idx, len(n.inputs))

	old := n.inputs[idx]
	n.checkNoCycle(target)
	n.removeUser(old.Node, old.Kind)
	n.inputs[idx] = Input{Node: target, Kind: old.Kind}
	n.addUser(target, old.Kind)
}

// RemoveInput deletes the operand at idx, shifting later operands down.
func (n *Node) RemoveInput(idx int) {
	fault.Assertf(
		idx >= 0 && idx < len(n.inputs),
		fault.Substrate,
		int(n.id), string(n.Op), n.blockLabel(),
		"RemoveInput index %d out of range (arity %d)", idx, len(n.inputs))

	old := n.inputs[idx]
	n.removeUser(old.Node, old.Kind)
	n.inputs = append(n.inputs[:idx], n.inputs[idx+1:]...)
}

// checkNoCycle asserts that target does not already transitively depend
// (via data edges, within target's own block) on n -- i.e. that adding the
// edge n -> target would not close a cycle. Only local, same-block cycles
// are checked since cross-block data edges can't cycle (the CFG's
// dominance structure forbids it) and a full-graph search on every edge
// mutation would defeat the O(1)-amortized guarantee.
func (n *Node) checkNoCycle(target *Node) {
	if target.Block != n.Block || target.Block == nil {
		return
	}

	var visit func(*Node) bool
	seen := map[*Node]bool{}
	visit = func(cur *Node) bool {
		if cur == n {
			return true
		}
		if seen[cur] || cur.Block != n.Block {
			return false
		}
		seen[cur] = true
		for _, in := range cur.inputs {
			if in.Kind == EdgeData && visit(in.Node) {
				return true
			}
		}
		return false
	}

	fault.Assertf(
		!visit(target),
		fault.Substrate,
		int(n.id), string(n.Op), n.blockLabel(),
		"adding data edge to #%d would close a cycle", target.id)
}
