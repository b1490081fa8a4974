package chordal

import (
	"testing"

	"github.com/dbrgn/x86backend/ir"
)

func diamond() (*ir.Graph, *ir.Block, *ir.Block, *ir.Block, *ir.Block) {
	g := ir.NewGraph("f")
	entry := ir.NewBlock("entry")
	left := ir.NewBlock("left")
	right := ir.NewBlock("right")
	join := ir.NewBlock("join")
	g.AddBlock(entry)
	g.AddBlock(left)
	g.AddBlock(right)
	g.AddBlock(join)
	entry.AddChild(left)
	entry.AddChild(right)
	left.AddChild(join)
	right.AddChild(join)
	return g, entry, left, right, join
}

func TestDominatorsOfDiamond(t *testing.T) {
	g, entry, left, right, join := diamond()

	tree := Dominators(g)

	if tree.IDom(left) != entry {
		t.Fatalf("idom(left) = %v, want entry", tree.IDom(left))
	}
	if tree.IDom(right) != entry {
		t.Fatalf("idom(right) = %v, want entry", tree.IDom(right))
	}
	// Neither branch dominates the join; only their common ancestor does.
	if tree.IDom(join) != entry {
		t.Fatalf("idom(join) = %v, want entry", tree.IDom(join))
	}
}

func TestDominatorsOfLoop(t *testing.T) {
	g := ir.NewGraph("f")
	entry := ir.NewBlock("entry")
	header := ir.NewBlock("header")
	body := ir.NewBlock("body")
	exit := ir.NewBlock("exit")
	g.AddBlock(entry)
	g.AddBlock(header)
	g.AddBlock(body)
	g.AddBlock(exit)
	entry.AddChild(header)
	header.AddChild(body)
	header.AddChild(exit)
	body.AddChild(header) // back edge

	tree := Dominators(g)

	if tree.IDom(header) != entry {
		t.Fatalf("idom(header) = %v, want entry", tree.IDom(header))
	}
	// The back edge from body must not promote body above its header.
	if tree.IDom(body) != header {
		t.Fatalf("idom(body) = %v, want header", tree.IDom(body))
	}
	if tree.IDom(exit) != header {
		t.Fatalf("idom(exit) = %v, want header", tree.IDom(exit))
	}
}

func TestPreorderVisitsDominatorsFirst(t *testing.T) {
	g, entry, left, right, join := diamond()

	order := Dominators(g).Preorder()

	if len(order) != 4 {
		t.Fatalf("Preorder() visited %d blocks, want 4", len(order))
	}
	pos := map[*ir.Block]int{}
	for i, b := range order {
		pos[b] = i
	}
	for _, b := range []*ir.Block{left, right, join} {
		if pos[entry] >= pos[b] {
			t.Fatalf("entry must precede %s in dominator preorder", b.Label)
		}
	}
}
