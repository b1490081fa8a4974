// Package fault centralizes the backend's fatal-invariant-violation
// reporting. Every stage panics through Assertf instead of a bare
// panic("should never happen") call site, so a top-level recover can
// produce one readable diagnostic naming the phase and node.
package fault

import "fmt"

// Phase identifies which pipeline stage raised a fault.
type Phase string

const (
	Substrate  = Phase("substrate")
	Liveness   = Phase("liveness")
	Spill      = Phase("spill")
	Schedule   = Phase("schedule")
	Constraint = Phase("constraint")
	Chordal    = Phase("chordal")
	Pipeline   = Phase("pipeline")
)

// Error is the panic value carried by a fatal invariant violation. Node
// identity is passed as primitive fields (not *ir.Node) so this package
// stays a leaf with no dependency on ir.
type Error struct {
	Phase   Phase
	NodeID  int
	Opcode  string
	Block   string
	Message string
}

func (e *Error) Error() string {
	if e.NodeID == 0 && e.Opcode == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf(
		"[%s] node #%d (%s) in block %s: %s",
		e.Phase,
		e.NodeID,
		e.Opcode,
		e.Block,
		e.Message)
}

// Assertf panics with a structured *Error when cond is false. nodeID,
// opcode, and block may be zero values when the fault isn't attributable
// to one particular node (e.g. ready-set starvation across a whole block).
func Assertf(
	cond bool,
	phase Phase,
	nodeID int,
	opcode string,
	block string,
	format string,
	args ...interface{},
) {
	if cond {
		return
	}
	panic(&Error{
		Phase:   phase,
		NodeID:  nodeID,
		Opcode:  opcode,
		Block:   block,
		Message: fmt.Sprintf(format, args...),
	})
}

// Bugf unconditionally raises a fault not tied to any specific node (e.g. a
// whole-graph invariant such as ready-set starvation).
func Bugf(phase Phase, format string, args ...interface{}) {
	Assertf(false, phase, 0, "", "", format, args...)
}
