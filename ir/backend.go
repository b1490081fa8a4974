package ir

import "github.com/dbrgn/x86backend/architecture"

// BackendInfo is the per-node metadata side-table: per-input requirement,
// per-output requirement/assigned register, and frame entity for nodes
// touching the stack frame.
// It lives on Graph, keyed by NodeID, never as fields on Node itself --
// the constraint handler and chordal colorer are the only writers of
// AssignedRegisters, the spill environment is the only writer of
// FrameEntity.
type BackendInfo struct {
	// InputReqs/OutputReqs hold per-node operand requirements. No pipeline
	// stage fills or reads them: the constraint handler takes requirements
	// from the opcode's shared OpSpec.
	InputReqs  []architecture.RegRequirement
	OutputReqs []architecture.RegRequirement

	// AssignedRegisters holds the physical register chosen for each output
	// position, set by the constraint handler (for precolored/paired
	// operands) or the chordal colorer (everything else). Nil until
	// allocation reaches this node.
	AssignedRegisters []*architecture.Register

	// FrameEntity is set by the spill environment for Spill/Reload nodes
	// (the slot's offset lives on the entity itself); nil for nodes that
	// never touch the stack frame.
	FrameEntity *architecture.FrameEntity

	// Rematerializable is set by the spill environment on every Reload it
	// inserts and never cleared; a later code-motion pass decides whether
	// to honor it.
	Rematerializable bool
}

// info is the graph-wide side-table, keyed by NodeID per the Design
// Notes' "Intrusive ... backend-info pointers" critique.
type info = map[NodeID]*BackendInfo

// Backend returns this graph's backend-info table, creating it on first
// use.
func (g *Graph) Backend() map[NodeID]*BackendInfo {
	if g.backend == nil {
		g.backend = info{}
	}
	return g.backend
}

// InfoFor returns (creating if absent) the BackendInfo for n.
func (g *Graph) InfoFor(n *Node) *BackendInfo {
	tbl := g.Backend()
	bi, ok := tbl[n.id]
	if !ok {
		bi = &BackendInfo{}
		tbl[n.id] = bi
	}
	return bi
}
