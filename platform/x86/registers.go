// Package x86 is the 32-bit x86-class target table: a hand-written
// map[ir.Opcode]*OpSpec plus register classes, the only target-specific
// input the pipeline consumes. The pipeline never parses a textual table
// format -- it reads this package as a plain Go value, built once at
// process init.
package x86

import (
	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/ir"
)

var (
	// esp is Ignore: never handed out by the colorer or constraint
	// handler.
	esp = &architecture.Register{Name: "esp", Type: architecture.Ignore}
	ebp = &architecture.Register{Name: "ebp", Type: architecture.CalleeSave}
	eax = &architecture.Register{Name: "eax", Type: architecture.CallerSave}
	ebx = &architecture.Register{Name: "ebx", Type: architecture.CalleeSave}
	ecx = &architecture.Register{Name: "ecx", Type: architecture.CallerSave}
	edx = &architecture.Register{Name: "edx", Type: architecture.CallerSave}
	esi = &architecture.Register{Name: "esi", Type: architecture.CalleeSave}
	edi = &architecture.Register{Name: "edi", Type: architecture.CalleeSave}

	xmm0 = &architecture.Register{Name: "xmm0", Type: architecture.CallerSave}
	xmm1 = &architecture.Register{Name: "xmm1", Type: architecture.CallerSave}
	xmm2 = &architecture.Register{Name: "xmm2", Type: architecture.CallerSave}
	xmm3 = &architecture.Register{Name: "xmm3", Type: architecture.CallerSave}
	xmm4 = &architecture.Register{Name: "xmm4", Type: architecture.CallerSave}
	xmm5 = &architecture.Register{Name: "xmm5", Type: architecture.CallerSave}
	xmm6 = &architecture.Register{Name: "xmm6", Type: architecture.CallerSave}
	xmm7 = &architecture.Register{Name: "xmm7", Type: architecture.CallerSave}

	// GP is the general-purpose integer/pointer register class. esp is
	// listed first, ahead of the general registers; it is nonetheless
	// Ignore and never contributes to AllocatableMask.
	GP = architecture.NewRegisterClass("gp",
		esp, ebp, eax, ebx, ecx, edx, esi, edi)

	// Float is the scalar SSE float register class (32/64-bit float modes).
	Float = architecture.NewRegisterClass("float",
		xmm0, xmm1, xmm2, xmm3, xmm4, xmm5, xmm6, xmm7)

	// StackPointer is the GP-class register reserved for esp. The pipeline
	// driver does not read it.
	StackPointer = esp
)

// Classes lists every register class this target defines, in the order
// the driver processes them.
var Classes = []*architecture.RegisterClass{GP, Float}

// ClassOf is the Config.ClassOf this target supplies: a value's mode
// determines its register class directly, since this target has no
// mixed-class values.
func ClassOf(v *ir.Node) *architecture.RegisterClass {
	if v == nil {
		return nil
	}
	switch {
	case v.Mode.IsFloat():
		return Float
	case v.Mode.IsData():
		return GP
	default:
		return nil
	}
}
