package fault

import (
	"strings"
	"testing"
)

func TestAssertfPassesWhenConditionHolds(t *testing.T) {
	Assertf(true, Spill, 1, "Add", "entry", "never raised")
}

func TestBugfPanicsWithStructuredError(t *testing.T) {
	defer func() {
		r := recover()
		e, ok := r.(*Error)
		if !ok {
			t.Fatalf("panic value = %T, want *Error", r)
		}
		if e.Phase != Schedule {
			t.Fatalf("Phase = %s, want %s", e.Phase, Schedule)
		}
		if !strings.Contains(e.Error(), "ready set starved") {
			t.Fatalf("Error() = %q, want the formatted message", e.Error())
		}
	}()
	Bugf(Schedule, "ready set starved after %d nodes", 3)
}

func TestErrorFormatsNodeContext(t *testing.T) {
	e := &Error{Phase: Chordal, NodeID: 7, Opcode: "Phi", Block: "loop", Message: "no free register"}
	msg := e.Error()
	for _, want := range []string{"chordal", "#7", "Phi", "loop", "no free register"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Error() = %q, missing %q", msg, want)
		}
	}

	bare := &Error{Phase: Spill, Message: "overflow"}
	if strings.Contains(bare.Error(), "#0") {
		t.Fatalf("node-less fault must omit node context, got %q", bare.Error())
	}
}
