//go:build windows

package colors

import (
	"os"

	"golang.org/x/sys/windows"
)

// EnableColor turns coloring on if the console attached to stdout processes ANSI escape codes, enabling virtual
// terminal processing when the console supports it.
func EnableColor() {
	handle := windows.Handle(os.Stdout.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		enabled.Store(false)
		return
	}
	if mode&windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING != 0 {
		enabled.Store(true)
		return
	}
	err := windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	enabled.Store(err == nil)
}
