package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the header menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // 1-9 jumps, drawn in a different color
}

// Component is a page the app can push onto the stack.
type Component interface {
	tview.Primitive
	Name() string
	// Start runs when the page becomes visible, Stop when it is hidden.
	Start()
	Stop()
	Hints() []MenuHint
}
