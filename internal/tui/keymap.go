package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeyToggle    = " "
	KeySpaceName = "space"
	KeyPlay      = "p"
	KeyStop      = "s"
)
