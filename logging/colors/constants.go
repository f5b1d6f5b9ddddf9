package colors

// Color is an ANSI SGR code.
type Color int

const (
	// RED is the ANSI code for red
	RED Color = iota + 31
	// GREEN is the ANSI code for green
	GREEN
	// YELLOW is the ANSI code for yellow
	YELLOW
	// BLUE is the ANSI code for blue
	BLUE
	_
	// CYAN is the ANSI code for cyan
	CYAN
	// BOLD is the ANSI code for bold text
	BOLD Color = 1
	// DARK_GRAY is the ANSI code for dark gray
	DARK_GRAY Color = 90
)

const (
	// LEFT_ARROW is the glyph prefixing info level console output
	LEFT_ARROW = "\u21fe"
	// CROSS is the glyph marking a dropped unit in build summaries
	CROSS = "\u2717"
	// CHECK is the glyph marking a compiled unit in build summaries
	CHECK = "\u2713"
)
