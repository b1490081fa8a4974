package pipeline

import (
	"github.com/dbrgn/x86backend/architecture"
	"github.com/dbrgn/x86backend/ir"
	"github.com/dbrgn/x86backend/pipeline/diag"
	"github.com/dbrgn/x86backend/schedule"
)

// Config is threaded explicitly through the driver rather than read from
// globals or environment variables.
type Config struct {
	// Classes lists the register classes to process, in driver order.
	Classes []*architecture.RegisterClass

	// ClassOf maps a value to the register class it belongs to, or nil for
	// values that never occupy a register (memory/control tokens).
	ClassOf func(v *ir.Node) *architecture.RegisterClass

	// Specs is the target's operand requirement table.
	Specs map[ir.Opcode]*architecture.OpSpec

	// Selector is the list scheduler's strategy. Defaults to
	// schedule.RegisterPressureSelector{} if nil.
	Selector schedule.Selector

	// Logger receives optional verbose dumps; defaults to diag.NoopLogger.
	Logger diag.Logger

	// Workers bounds the compilation-unit worker pool; 0 means
	// runtime.GOMAXPROCS(0).
	Workers int
}

func (c Config) selector() schedule.Selector {
	if c.Selector != nil {
		return c.Selector
	}
	return schedule.RegisterPressureSelector{}
}

func (c Config) logger() diag.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return diag.NoopLogger{}
}
