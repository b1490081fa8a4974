package schedule

import (
	"math/rand"
	"sort"

	"github.com/dbrgn/x86backend/ir"
)

// FirstReadySelector is the trivial, deterministic strategy: always picks
// the lowest-NodeID ready node. Useful as a golden baseline in tests.
type FirstReadySelector struct{}

func (FirstReadySelector) InitGraph(*ir.Graph)                {}
func (FirstReadySelector) InitBlock(*ir.Block)                {}
func (FirstReadySelector) NodeReady(*BlockEnv, *ir.Node)       {}
func (FirstReadySelector) NodeSelected(*BlockEnv, *ir.Node)    {}
func (FirstReadySelector) FinishBlock(*ir.Block)               {}
func (FirstReadySelector) FinishGraph(*ir.Graph)               {}

func (FirstReadySelector) Select(
	_ *BlockEnv, ready []*ir.Node, _ map[*ir.Node]int,
) *ir.Node {
	best := ready[0]
	for _, n := range ready[1:] {
		if n.ID() < best.ID() {
			best = n
		}
	}
	return best
}

// RandomSelector draws uniformly from the ready set using a caller-
// supplied *rand.Rand -- never a package-level global -- so scheduling
// stays reproducible given a seed.
type RandomSelector struct {
	Rand *rand.Rand
}

func (RandomSelector) InitGraph(*ir.Graph)             {}
func (RandomSelector) InitBlock(*ir.Block)             {}
func (RandomSelector) NodeReady(*BlockEnv, *ir.Node)    {}
func (RandomSelector) NodeSelected(*BlockEnv, *ir.Node) {}
func (RandomSelector) FinishBlock(*ir.Block)            {}
func (RandomSelector) FinishGraph(*ir.Graph)            {}

func (s RandomSelector) Select(
	_ *BlockEnv, ready []*ir.Node, _ map[*ir.Node]int,
) *ir.Node {
	sorted := append([]*ir.Node(nil), ready...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })
	return sorted[s.Rand.Intn(len(sorted))]
}

// RegisterPressureSelector is the heuristic strategy: among ready nodes,
// prefers the one whose scheduling reduces, or least increases, the live
// set's size, tie-broken by NodeID.
type RegisterPressureSelector struct{}

func (RegisterPressureSelector) InitGraph(*ir.Graph)             {}
func (RegisterPressureSelector) InitBlock(*ir.Block)             {}
func (RegisterPressureSelector) NodeReady(*BlockEnv, *ir.Node)    {}
func (RegisterPressureSelector) NodeSelected(*BlockEnv, *ir.Node) {}
func (RegisterPressureSelector) FinishBlock(*ir.Block)            {}
func (RegisterPressureSelector) FinishGraph(*ir.Graph)            {}

func (RegisterPressureSelector) Select(
	env *BlockEnv, ready []*ir.Node, live map[*ir.Node]int,
) *ir.Node {
	delta := func(n *ir.Node) int {
		d := 0
		for _, in := range n.DataInputs() {
			if in.Block == env.Block {
				if c, ok := live[in]; ok && c == 1 {
					d-- // this input leaves the live set once n is scheduled
				}
			}
		}
		if len(n.DataSuccessors()) > 0 {
			d++ // n itself enters the live set
		}
		return d
	}

	best := ready[0]
	bestDelta := delta(best)
	for _, n := range ready[1:] {
		d := delta(n)
		if d < bestDelta || (d == bestDelta && n.ID() < best.ID()) {
			best, bestDelta = n, d
		}
	}
	return best
}
