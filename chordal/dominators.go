// Package chordal implements the chordal graph colorer: it walks
// the dominator tree and, within each block, a border list of def/use
// events in forward schedule order, greedily assigning physical
// registers via the perfect-elimination ordering that dominator-order +
// border-order induces over a post-constraint-phase interference graph.
package chordal

import "github.com/dbrgn/x86backend/ir"

// Tree is the dominator tree of one graph, computed with the
// Cooper/Harvey/Kennedy iterative algorithm over reverse postorder.
type Tree struct {
	idom     map[*ir.Block]*ir.Block
	children map[*ir.Block][]*ir.Block
	rpo      []*ir.Block
}

// Dominators computes g's dominator tree.
func Dominators(g *ir.Graph) *Tree {
	rpo := reversePostorder(g)
	index := map[*ir.Block]int{}
	for i, b := range rpo {
		index[b] = i
	}

	idom := map[*ir.Block]*ir.Block{}
	if len(rpo) == 0 {
		return &Tree{idom: idom, children: map[*ir.Block][]*ir.Block{}}
	}
	idom[rpo[0]] = rpo[0]

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *ir.Block
			for _, p := range b.Parents {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, index)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	children := map[*ir.Block][]*ir.Block{}
	for _, b := range rpo {
		if b == rpo[0] {
			continue
		}
		p := idom[b]
		children[p] = append(children[p], b)
	}

	return &Tree{idom: idom, children: children, rpo: rpo}
}

func intersect(a, b *ir.Block, idom map[*ir.Block]*ir.Block, index map[*ir.Block]int) *ir.Block {
	for a != b {
		for index[a] > index[b] {
			a = idom[a]
		}
		for index[b] > index[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(g *ir.Graph) []*ir.Block {
	if g.Start == nil {
		return nil
	}
	visited := map[*ir.Block]bool{}
	var post []*ir.Block
	var visit func(*ir.Block)
	visit = func(b *ir.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, c := range b.Children {
			visit(c)
		}
		post = append(post, b)
	}
	visit(g.Start)

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}

	// Append any block unreachable from Start (shouldn't occur in a real
	// graph, but keeps the walk total rather than silently dropping them).
	for _, b := range g.Blocks {
		if !visited[b] {
			post = append(post, b)
		}
	}
	return post
}

// Preorder walks the tree root-first, children in RPO-discovery order.
func (t *Tree) Preorder() []*ir.Block {
	var out []*ir.Block
	var visit func(*ir.Block)
	visit = func(b *ir.Block) {
		out = append(out, b)
		for _, c := range t.children[b] {
			visit(c)
		}
	}
	for _, b := range t.rpo {
		if t.idom[b] == b || t.idom[b] == nil {
			visit(b)
		}
	}
	return out
}

func (t *Tree) IDom(b *ir.Block) *ir.Block { return t.idom[b] }
