package schedule

import (
	"math/rand"
	"testing"

	"github.com/dbrgn/x86backend/ir"
)

func TestRunProducesOrderRespectingDataEdges(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	a := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	c := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	c.AddInput(a, ir.EdgeData)
	d := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	d.AddInput(c, ir.EdgeData)
	b.Order = []*ir.Node{a, c, d}

	Run(g, FirstReadySelector{})

	if len(b.Schedule) != 3 {
		t.Fatalf("len(Schedule) = %d, want 3", len(b.Schedule))
	}
	pos := map[*ir.Node]int{}
	for i, n := range b.Schedule {
		pos[n] = i
	}
	if pos[a] >= pos[c] || pos[c] >= pos[d] {
		t.Fatalf("schedule %v must respect a -> c -> d data dependency", b.Schedule)
	}
}

func TestRunPrioritizesKeepNodes(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	other := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	keep := g.NewNode(ir.OpKeep, ir.KindBackend, ir.ModeNone, b)
	// other has the lower ID but keep must still be preferred once both are
	// ready, since Keep/CopyKeep pins are scheduled ahead of ordinary
	// selector competition.
	b.Order = []*ir.Node{keep, other}

	Run(g, FirstReadySelector{})

	if b.Schedule[0] != keep {
		t.Fatalf("Schedule[0] = %v, want the Keep node scheduled first", b.Schedule[0])
	}
}

func TestRunWithRandomSelectorIsDeterministicGivenSeed(t *testing.T) {
	build := func() (*ir.Graph, *ir.Block) {
		g := ir.NewGraph("f")
		b := ir.NewBlock("entry")
		g.AddBlock(b)
		for i := 0; i < 5; i++ {
			n := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
			b.Order = append(b.Order, n)
		}
		return g, b
	}

	g1, b1 := build()
	Run(g1, RandomSelector{Rand: rand.New(rand.NewSource(42))})

	g2, b2 := build()
	Run(g2, RandomSelector{Rand: rand.New(rand.NewSource(42))})

	if len(b1.Schedule) != len(b2.Schedule) {
		t.Fatalf("schedules differ in length: %d vs %d", len(b1.Schedule), len(b2.Schedule))
	}
	for i := range b1.Schedule {
		if b1.Schedule[i].ID() != b2.Schedule[i].ID() {
			t.Fatalf("same-seed RandomSelector runs diverged at position %d", i)
		}
	}
}

func TestRunIsIdempotentWithSameSelector(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	var prev *ir.Node
	for i := 0; i < 6; i++ {
		n := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
		if prev != nil && i%2 == 0 {
			n.AddInput(prev, ir.EdgeData)
		}
		b.Order = append(b.Order, n)
		prev = n
	}

	Run(g, FirstReadySelector{})
	first := append([]*ir.Node(nil), b.Schedule...)

	Run(g, FirstReadySelector{})
	for i := range first {
		if b.Schedule[i] != first[i] {
			t.Fatalf("re-running the scheduler with the same selector must reproduce the order")
		}
	}
}

func TestSchedulesTupleProjectionsImmediately(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	// Independent fillers compete with the projections for schedule slots.
	f1 := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	tup := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeTuple, b)
	p0 := g.NewNode(ir.OpProj, ir.KindBackend, ir.ModeInt32, b)
	p0.ProjOf = tup
	p0.AddInput(tup, ir.EdgeData)
	p1 := g.NewNode(ir.OpProj, ir.KindBackend, ir.ModeInt32, b)
	p1.ProjOf = tup
	p1.ProjIndex = 1
	p1.AddInput(tup, ir.EdgeData)
	f2 := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	use := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	use.AddInput(p0, ir.EdgeData)
	use.AddInput(p1, ir.EdgeData)
	b.Order = []*ir.Node{f1, tup, p0, p1, f2, use}

	Run(g, FirstReadySelector{})

	pos := map[*ir.Node]int{}
	for i, n := range b.Schedule {
		pos[n] = i
	}
	if pos[p0] != pos[tup]+1 || pos[p1] != pos[tup]+2 {
		t.Fatalf("projections must directly follow their tuple, got tuple=%d p0=%d p1=%d",
			pos[tup], pos[p0], pos[p1])
	}
}

func TestScheduleAllowsPhiConsumers(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	phi := g.NewNode(ir.OpPhi, ir.KindPhi, ir.ModeInt32, b)
	b.AddPhi(phi)

	// A phi occupies position zero of its block, so reading it must not
	// block readiness of ordinary instructions.
	use := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	use.AddInput(phi, ir.EdgeData)
	b.Order = []*ir.Node{use}

	Run(g, FirstReadySelector{})

	if len(b.Schedule) != 1 || b.Schedule[0] != use {
		t.Fatalf("a node consuming its own block's phi must still be schedulable")
	}
}

func TestRunPanicsOnDependencyCycle(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	a := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	c := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	b.Order = []*ir.Node{a, c}
	// Force a cycle the substrate wouldn't normally allow via AddInput, by
	// wiring it directly through the exported edge-mutation API on a
	// construction shape AddInput's cycle check can't see: two otherwise
	// unrelated nodes with a dependency-only edge loop.
	a.AddInput(c, ir.EdgeDep)
	c.AddInput(a, ir.EdgeDep)

	defer func() {
		if recover() == nil {
			t.Fatalf("a genuine scheduling cycle must panic via fault.Assertf")
		}
	}()
	Run(g, FirstReadySelector{})
}
