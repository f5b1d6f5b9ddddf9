package colors

// init turns coloring on where the terminal supports it.
func init() {
	EnableColor()
}
