package ir

// Graph is a control-flow graph of Blocks with a unique start and end
// block, plus the frame pointer value and stack-pointer register identity
// the backend needs when materializing spills and prologue/epilogue
// bookkeeping.
type Graph struct {
	Name string

	Start *Block
	End   *Block

	// Blocks is graph-block-walk order: insertion order from construction,
	// which the scheduler and the spiller's non-recursive fallback iterate
	// in.
	Blocks []*Block

	FramePointer     *Node
	StackPointerName string

	nextID  NodeID
	backend info
}

func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// AddBlock appends b to the graph's walk order and records it as Start if
// it is the first block added.
func (g *Graph) AddBlock(b *Block) {
	b.graph = g
	if len(g.Blocks) == 0 {
		g.Start = b
	}
	g.Blocks = append(g.Blocks, b)
	g.End = b
}

// NewNode creates a node owned by this graph, assigning it the next stable
// NodeID. It does not place the node into block's
// order -- every caller already knows the precise program point (append to
// Order during construction, or one of Block's InsertOrder* methods when
// splicing a node into an existing schedule), so placement is always
// explicit rather than a side effect of allocation.
func (g *Graph) NewNode(op Opcode, kind OpKind, mode Mode, block *Block) *Node {
	g.nextID++
	return &Node{
		id:    g.nextID,
		Op:    op,
		Kind:  kind,
		Mode:  mode,
		Block: block,
	}
}

// Successors returns the CFG children of b, used by dominator computation
// and liveness's backward worklist.
func (g *Graph) Successors(b *Block) []*Block { return b.Children }

// Predecessors returns the CFG parents of b.
func (g *Graph) Predecessors(b *Block) []*Block { return b.Parents }
