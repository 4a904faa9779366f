package heap

import (
	"fmt"
	"runtime"
	"strings"
)

// maxStackDepth bounds the number of frames captured per allocation.
const maxStackDepth = 16

// Leak describes one block still in use when the heap was closed.
type Leak struct {
	// Size is the byte count originally requested by the caller.
	Size int
	// Stack holds symbolized call frames from the allocation site, empty
	// when stack capture was not enabled.
	Stack []string
}

// LeakError is returned by Close when live blocks remain.
type LeakError struct {
	Leaks []Leak
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("heap: %d block(s) leaked", len(e.Leaks))
}

// symbolize resolves captured program counters to function names, stopping
// after the program entry frame.
func symbolize(stack []uintptr) []string {
	if len(stack) == 0 {
		return nil
	}
	out := make([]string, 0, len(stack))
	frames := runtime.CallersFrames(stack)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			out = append(out, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		}
		if isEntryFrame(frame.Function) || !more {
			break
		}
	}
	return out
}

func isEntryFrame(fn string) bool {
	switch fn {
	case "main.main", "runtime.main", "testing.tRunner":
		return true
	}
	return strings.HasPrefix(fn, "runtime.goexit")
}
