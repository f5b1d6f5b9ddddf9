//go:build !windows

package colors

// EnableColor turns coloring on. Non-windows terminals support ANSI escape codes.
func EnableColor() {
	enabled.Store(true)
}
