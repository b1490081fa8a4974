package chordal

import (
	"testing"

	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/ir"
	"github.com/dbrgn/x86backend/liveness"
)

func gpClassN(n int) *architecture.RegisterClass {
	regs := make([]*architecture.Register, n)
	for i := range regs {
		regs[i] = &architecture.Register{Name: "r", Type: architecture.CallerSave}
	}
	return architecture.NewRegisterClass("gp", regs...)
}

func colorerFor(g *ir.Graph, class *architecture.RegisterClass) *Colorer {
	relevant := func(v *ir.Node) bool { return v != nil && v.Mode == ir.ModeInt32 }
	oracle := liveness.Compute(g, relevant, nil)
	return &Colorer{
		Class: class,
		ClassOf: func(v *ir.Node) *architecture.RegisterClass {
			if relevant(v) {
				return class
			}
			return nil
		},
		LiveIn:  oracle.LiveIn,
		LiveOut: oracle.IsLiveOut,
	}
}

func regOf(t *testing.T, g *ir.Graph, v *ir.Node) *architecture.Register {
	t.Helper()
	info := g.InfoFor(v)
	if len(info.AssignedRegisters) == 0 || info.AssignedRegisters[0] == nil {
		t.Fatalf("node #%d got no register assigned", v.ID())
	}
	return info.AssignedRegisters[0]
}

// TestColorerSeparatesInterferingValues defines two values whose live
// ranges overlap and checks they never share a register.
func TestColorerSeparatesInterferingValues(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	a := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	c := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	sum := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	sum.AddInput(a, ir.EdgeData)
	sum.AddInput(c, ir.EdgeData)
	b.Order = []*ir.Node{a, c, sum}

	class := gpClassN(3)
	col := colorerFor(g, class)
	col.Run(g, Dominators(g))

	if regOf(t, g, a) == regOf(t, g, c) {
		t.Fatalf("a and c are simultaneously live and must not share a register")
	}
}

// TestColorerReusesRegisterAfterLastUse checks that a register freed by a
// value's last use is available again for a later def.
func TestColorerReusesRegisterAfterLastUse(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	a := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	useA := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	useA.AddInput(a, ir.EdgeData)
	later := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	sink := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	sink.AddInput(useA, ir.EdgeData)
	sink.AddInput(later, ir.EdgeData)
	b.Order = []*ir.Node{a, useA, later, sink}

	// One register would not suffice for useA+later, but two must: a dies at
	// useA, freeing its register for later.
	class := gpClassN(2)
	col := colorerFor(g, class)
	col.Run(g, Dominators(g))

	if regOf(t, g, useA) == regOf(t, g, later) {
		t.Fatalf("useA and later are simultaneously live and must differ")
	}
}

// TestColorerHonorsPrecoloredDef pins one def to a specific register (as
// the constraint handler would) and checks the walk keeps it while
// steering the other def elsewhere.
func TestColorerHonorsPrecoloredDef(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	a := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	c := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	sum := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	sum.AddInput(a, ir.EdgeData)
	sum.AddInput(c, ir.EdgeData)
	b.Order = []*ir.Node{a, c, sum}

	class := gpClassN(3)
	pinned := class.Registers[1]
	g.InfoFor(a).AssignedRegisters = []*architecture.Register{pinned}

	col := colorerFor(g, class)
	col.Run(g, Dominators(g))

	if regOf(t, g, a) != pinned {
		t.Fatalf("precolored def must keep its register, got %v", regOf(t, g, a))
	}
	if regOf(t, g, c) == pinned {
		t.Fatalf("interfering def must not take the precolored register")
	}
}

// TestColorerReservesLiveThroughRegister routes a value through a middle
// block that never touches it; the middle block's own def must still not
// steal the live-through value's register.
func TestColorerReservesLiveThroughRegister(t *testing.T) {
	g := ir.NewGraph("f")
	top := ir.NewBlock("top")
	mid := ir.NewBlock("mid")
	bot := ir.NewBlock("bot")
	g.AddBlock(top)
	g.AddBlock(mid)
	g.AddBlock(bot)
	top.AddChild(mid)
	mid.AddChild(bot)

	v := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, top)
	top.Order = []*ir.Node{v}

	w := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, mid)
	useW := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, mid)
	useW.AddInput(w, ir.EdgeData)
	mid.Order = []*ir.Node{w, useW}

	useV := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, bot)
	useV.AddInput(v, ir.EdgeData)
	bot.Order = []*ir.Node{useV}

	class := gpClassN(2)
	col := colorerFor(g, class)
	col.Run(g, Dominators(g))

	if regOf(t, g, v) == regOf(t, g, w) {
		t.Fatalf("w must not take the register of v, which is live through mid")
	}
}

// TestColorerColorsTupleProjectionsTogether checks that a tuple's
// projections are treated as simultaneous defs and get distinct registers.
func TestColorerColorsTupleProjectionsTogether(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock("entry")
	g.AddBlock(b)

	tup := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeTuple, b)
	p0 := g.NewNode(ir.OpProj, ir.KindBackend, ir.ModeInt32, b)
	p0.ProjOf = tup
	p0.ProjIndex = 0
	p0.AddInput(tup, ir.EdgeData)
	p1 := g.NewNode(ir.OpProj, ir.KindBackend, ir.ModeInt32, b)
	p1.ProjOf = tup
	p1.ProjIndex = 1
	p1.AddInput(tup, ir.EdgeData)
	sink := g.NewNode(ir.OpGeneric, ir.KindArithmetic, ir.ModeInt32, b)
	sink.AddInput(p0, ir.EdgeData)
	sink.AddInput(p1, ir.EdgeData)
	b.Order = []*ir.Node{tup, p0, p1, sink}

	class := gpClassN(2)
	col := colorerFor(g, class)
	col.Run(g, Dominators(g))

	if regOf(t, g, p0) == regOf(t, g, p1) {
		t.Fatalf("sibling projections are simultaneous defs and must differ")
	}
}
