package pipeline

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/belady"
	"github.com/dbrgn/x86backend/chordal"
	"github.com/dbrgn/x86backend/constraint"
	"github.com/dbrgn/x86backend/fault"
	"github.com/dbrgn/x86backend/ir"
	"github.com/dbrgn/x86backend/liveness"
	"github.com/dbrgn/x86backend/schedule"
	"github.com/dbrgn/x86backend/spillenv"
)

// Result is one compilation unit's outcome: either a materialized stack
// frame for a fully allocated graph, or an error recovered from a fatal
// invariant violation.
type Result struct {
	Graph *ir.Graph
	Frame *architecture.StackFrame
	Err   error
}

// Run processes every unit in units concurrently, bounded by cfg.Workers
// (or runtime.GOMAXPROCS(0) if zero): each compilation unit's pipeline is
// strictly sequential, but independent units fan out across a bounded set
// of goroutines.
func Run(units []*ir.Graph, cfg Config) []Result {
	results := make([]Result, len(units))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(units) {
		workers = len(units)
	}
	if workers <= 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = runOneSafe(units[i], cfg)
			}
		}()
	}
	for i := range units {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// runOneSafe wraps RunOne with panic recovery: a fault.Error (or any other
// panic a stage raises) becomes an error on this unit's Result instead of
// taking down the whole batch.
func runOneSafe(g *ir.Graph, cfg Config) (res Result) {
	res.Graph = g
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*fault.Error); ok {
				res.Err = fe
			} else {
				res.Err = fmt.Errorf("pipeline: unrecovered panic: %v", r)
			}
		}
	}()
	res.Frame = RunOne(g, cfg)
	return res
}

// RunOne runs the full allocation pipeline over one graph and returns its
// finalized stack frame. It panics (via fault.Assertf/fault.Bugf) on any
// fatal invariant violation; callers that need isolation should go through
// Run, which recovers per unit.
//
// Control flow: for every register class, liveness is computed and
// the Belady spiller runs and its requests are materialized before moving
// to the next class, so later classes see the current class's inserted
// Spill/Reload nodes in each block's order. Once every class has spilled,
// the list scheduler produces one combined order per block; only then do
// the constraint handler and chordal colorer run, once per class, over
// that fixed order.
func RunOne(g *ir.Graph, cfg Config) *architecture.StackFrame {
	log := cfg.logger()
	frame := architecture.NewStackFrame()

	doNotSpill := func(v *ir.Node) bool {
		return v != nil && v == g.FramePointer
	}

	oracles := make(map[*architecture.RegisterClass]*liveness.Oracle, len(cfg.Classes))
	for _, class := range cfg.Classes {
		relevant := func(v *ir.Node) bool { return cfg.ClassOf(v) == class }
		oracle := liveness.Compute(g, relevant, doNotSpill)
		oracles[class] = oracle

		env := spillenv.New(class)
		spiller := belady.New(class, cfg.ClassOf, oracle, env)
		spiller.Run(g)
		env.Materialize(g, frame)

		log.Logf("pipeline: %s: spilled class %s", g.Name, class.Name)
	}

	// Spilling may have inserted new nodes into every class's blocks since
	// the last oracle snapshot; recompute liveness once more per class so
	// the colorer's live-out queries reflect the post-spill graph.
	for _, class := range cfg.Classes {
		relevant := func(v *ir.Node) bool { return cfg.ClassOf(v) == class }
		oracles[class] = liveness.Compute(g, relevant, doNotSpill)
	}

	schedule.Run(g, cfg.selector())
	log.Logf("pipeline: %s: scheduled", g.Name)

	for _, class := range cfg.Classes {
		h := constraint.New(class, cfg.Specs)
		h.Run(g)
		log.Logf("pipeline: %s: resolved constraints for class %s", g.Name, class.Name)
	}

	tree := chordal.Dominators(g)
	for _, class := range cfg.Classes {
		oracle := oracles[class]
		col := &chordal.Colorer{
			Class:   class,
			ClassOf: cfg.ClassOf,
			LiveIn:  oracle.LiveIn,
			LiveOut: oracle.IsLiveOut,
		}
		col.Run(g, tree)
		log.Logf("pipeline: %s: colored class %s", g.Name, class.Name)
	}

	frame.Finalize()
	return frame
}
