package architecture

import (
	"sort"

	"github.com/dbrgn/x86backend/fault"
)

// FrameEntity is an abstract stack-resident storage location assigned to
// a spilled value: one slot per spill equivalence class, not per
// source-level local.
type FrameEntity struct {
	Name  string
	Class *RegisterClass

	// Size in bytes; Offset is assigned once during Finalize.
	Size   int
	Offset int
}

// StackFrame accumulates frame entities lazily as the spill environment
// materializes spills, and assigns final offsets once per function after
// all spill/reload insertion completes.
type StackFrame struct {
	entities []*FrameEntity
	byName   map[string]*FrameEntity
	final    bool
}

func NewStackFrame() *StackFrame {
	return &StackFrame{byName: map[string]*FrameEntity{}}
}

// AllocateSlot returns the entity for name, creating one of the given
// class/size if it doesn't already exist. Idempotent: repeated calls with
// the same name return the same entity, so Spill insertion stays
// order-independent per value.
func (f *StackFrame) AllocateSlot(name string, class *RegisterClass, size int) *FrameEntity {
	if f.final {
		fault.Bugf(fault.Spill, "AllocateSlot(%q) called after StackFrame.Finalize", name)
	}
	if e, ok := f.byName[name]; ok {
		return e
	}
	e := &FrameEntity{Name: name, Class: class, Size: size}
	f.entities = append(f.entities, e)
	f.byName[name] = e
	return e
}

// Finalize assigns monotonically increasing offsets in a deterministic
// (name-sorted) order and freezes the frame against further allocation.
func (f *StackFrame) Finalize() {
	if f.final {
		return
	}
	sort.Slice(f.entities, func(i, j int) bool {
		return f.entities[i].Name < f.entities[j].Name
	})
	offset := 0
	for _, e := range f.entities {
		e.Offset = offset
		offset += e.Size
	}
	f.final = true
}

func (f *StackFrame) TotalSize() int {
	total := 0
	for _, e := range f.entities {
		total += e.Size
	}
	return total
}

func (f *StackFrame) Entities() []*FrameEntity { return f.entities }
