package ir

import "testing"

func buildLine(g *Graph, b *Block, n int) []*Node {
	nodes := make([]*Node, n)
	for i := 0; i < n; i++ {
		node := g.NewNode(OpGeneric, KindArithmetic, ModeInt32, b)
		b.Order = append(b.Order, node)
		nodes[i] = node
	}
	return nodes
}

func TestInsertOrderAfterAndBefore(t *testing.T) {
	g := NewGraph("f")
	b := NewBlock("entry")
	g.AddBlock(b)
	nodes := buildLine(g, b, 3)

	mid := g.NewNode(OpSpill, KindBackend, ModeInt32, b)
	b.InsertOrderAfter(nodes[0], mid)

	want := []*Node{nodes[0], mid, nodes[1], nodes[2]}
	if !sameOrder(b.Order, want) {
		t.Fatalf("Order after InsertOrderAfter = %v, want %v", b.Order, want)
	}

	head := g.NewNode(OpReload, KindBackend, ModeInt32, b)
	b.InsertOrderBefore(nodes[0], head)
	want = []*Node{head, nodes[0], mid, nodes[1], nodes[2]}
	if !sameOrder(b.Order, want) {
		t.Fatalf("Order after InsertOrderBefore = %v, want %v", b.Order, want)
	}
}

func TestInsertOrderTargetsScheduleOnceScheduled(t *testing.T) {
	g := NewGraph("f")
	b := NewBlock("entry")
	g.AddBlock(b)
	nodes := buildLine(g, b, 2)
	b.Schedule = append([]*Node(nil), nodes...)

	extra := g.NewNode(OpPerm, KindBackend, ModeTuple, b)
	b.InsertOrderAfter(nodes[0], extra)

	if !sameOrder(b.Order, nodes) {
		t.Fatalf("Order must stay untouched once Schedule is set, got %v", b.Order)
	}
	want := []*Node{nodes[0], extra, nodes[1]}
	if !sameOrder(b.Schedule, want) {
		t.Fatalf("Schedule after InsertOrderAfter = %v, want %v", b.Schedule, want)
	}
}

func TestRemoveFromOrder(t *testing.T) {
	g := NewGraph("f")
	b := NewBlock("entry")
	g.AddBlock(b)
	nodes := buildLine(g, b, 3)

	b.RemoveFromOrder(nodes[1])
	want := []*Node{nodes[0], nodes[2]}
	if !sameOrder(b.Order, want) {
		t.Fatalf("Order after RemoveFromOrder = %v, want %v", b.Order, want)
	}
}

func TestScheduleOrderFallsBackToOrder(t *testing.T) {
	g := NewGraph("f")
	b := NewBlock("entry")
	g.AddBlock(b)
	nodes := buildLine(g, b, 2)

	if !sameOrder(b.ScheduleOrder(), nodes) {
		t.Fatalf("ScheduleOrder() before scheduling must equal Order")
	}

	scheduled := []*Node{nodes[1], nodes[0]}
	b.Schedule = scheduled
	if !sameOrder(b.ScheduleOrder(), scheduled) {
		t.Fatalf("ScheduleOrder() after scheduling must equal Schedule")
	}
}

func sameOrder(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
