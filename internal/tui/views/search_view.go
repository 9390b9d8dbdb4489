package views

import (
	"time"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// SearchView runs full-text queries over cached messages.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	data    []collatzv1.SearchHit
	names   func(conversationID string) string
}

// NewSearchView creates a new search view. names resolves a conversation
// id to its display name.
func NewSearchView(theme *ui.Theme, names func(string) string) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := newTable(theme, " Results ")

	sv := &SearchView{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(input, 1, 0, true).
			AddItem(results, 0, 1, false),
		theme:   theme,
		input:   input,
		results: results,
		names:   names,
	}
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil && input.GetText() != "" {
			sv.onQuery(input.GetText())
		}
	})
	return sv
}

func (sv *SearchView) Name() string { return "Search" }
func (sv *SearchView) Start()       {}
func (sv *SearchView) Stop()        {}

func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Tab", Description: "Results"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnQuery sets the callback when a query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) { sv.onQuery = fn }

// SetQuery fills the input, as when searching from the command prompt.
func (sv *SearchView) SetQuery(q string) { sv.input.SetText(q) }

// Update replaces the result rows.
func (sv *SearchView) Update(results []collatzv1.SearchHit) {
	sv.data = results
	sv.results.Clear()
	setHeader(sv.results, sv.theme, " CHAT", " FROM", " SNIPPET", " TIME")

	now := time.Now()
	for i, r := range results {
		row := i + 1
		chat := r.ConversationID
		if sv.names != nil {
			if n := sv.names(r.ConversationID); n != "" {
				chat = n
			}
		}
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(chat)).SetMaxWidth(24).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(r.SenderName)).SetMaxWidth(16).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(oneLine(r.Snippet)))).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 3, tview.NewTableCell(" "+formatTimestamp(r.CreatedAtUnixMs, now)).SetTextColor(sv.theme.FgColor))
	}
	sv.results.SetTitle(" Results (" + itoa(len(results)) + ") ")
}

// SelectedConversation returns the conversation of the highlighted hit.
func (sv *SearchView) SelectedConversation() string {
	row, _ := sv.results.GetSelection()
	if row < 1 || row > len(sv.data) {
		return ""
	}
	return sv.data[row-1].ConversationID
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField { return sv.input }

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table { return sv.results }
