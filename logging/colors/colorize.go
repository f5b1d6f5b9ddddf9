package colors

import (
	"fmt"
	"sync/atomic"
)

// enabled indicates whether Colorize emits ANSI escape codes.
var enabled atomic.Bool

// DisableColor turns coloring off for every subsequent Colorize call.
func DisableColor() {
	enabled.Store(false)
}

// Enabled indicates whether coloring is on.
func Enabled() bool {
	return enabled.Load()
}

// Colorize returns s wrapped in the ANSI code c, or s as is when coloring is disabled.
func Colorize(s any, c Color) string {
	if !enabled.Load() {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}
