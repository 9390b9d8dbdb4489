package views

import (
	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ContactsView looks up users by username as the query is typed.
type ContactsView struct {
	*tview.Flex
	theme    *ui.Theme
	input    *tview.InputField
	results  *tview.Table
	contacts []inbox.Contact
	onChange func(query string)
	onPick   func(c inbox.Contact)
}

// NewContactsView creates a new contacts view.
func NewContactsView(theme *ui.Theme) *ContactsView {
	input := tview.NewInputField().
		SetLabel(" Username: ").
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	cv := &ContactsView{
		theme:   theme,
		input:   input,
		results: newTable(theme, " Users "),
	}
	cv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(cv.results, 0, 1, false)

	input.SetChangedFunc(func(text string) {
		if cv.onChange != nil {
			cv.onChange(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		// Enter picks the top hit without leaving the input.
		if key == tcell.KeyEnter && len(cv.contacts) > 0 && cv.onPick != nil {
			cv.onPick(cv.contacts[0])
		}
	})
	cv.results.SetSelectedFunc(func(row, _ int) {
		if row >= 1 && row <= len(cv.contacts) && cv.onPick != nil {
			cv.onPick(cv.contacts[row-1])
		}
	})
	return cv
}

func (cv *ContactsView) Name() string { return "New chat" }

// Start clears the previous query.
func (cv *ContactsView) Start() {
	cv.input.SetText("")
	cv.Update(nil)
}

func (cv *ContactsView) Stop() {}

func (cv *ContactsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Chat"},
		{Key: "Tab", Description: "Results"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnChange sets the callback for every edit of the query.
func (cv *ContactsView) SetOnChange(fn func(query string)) { cv.onChange = fn }

// SetOnPick sets the callback when a user is chosen.
func (cv *ContactsView) SetOnPick(fn func(c inbox.Contact)) { cv.onPick = fn }

// Update replaces the listed users.
func (cv *ContactsView) Update(contacts []inbox.Contact) {
	cv.contacts = contacts
	cv.results.Clear()
	setHeader(cv.results, cv.theme, " USERNAME", " ID")
	for i, c := range contacts {
		cv.results.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(c.Username)).SetExpansion(1).SetTextColor(cv.theme.FgColor))
		cv.results.SetCell(i+1, 1, tview.NewTableCell(" "+c.ID).SetTextColor(cv.theme.FgColor))
	}
}

// Input returns the query field.
func (cv *ContactsView) Input() *tview.InputField { return cv.input }

// Results returns the users table.
func (cv *ContactsView) Results() *tview.Table { return cv.results }
