package views

import (
	"fmt"
	"time"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ConversationList is the root page: one row per conversation.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	chats   []collatzv1.Conversation
	visible []collatzv1.Conversation
	filter  string
	now     func() time.Time
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{Table: table, theme: theme, now: time.Now}
	cl.render()
	return cl
}

func (cl *ConversationList) Name() string { return "Conversations" }
func (cl *ConversationList) Start()       {}
func (cl *ConversationList) Stop()        {}

func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "n", Description: "New chat"},
		{Key: "r", Description: "Refresh"},
		{Key: "R", Description: "Recs"},
		{Key: "p", Description: "Profile"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the rows, keeping the selection on the same conversation.
func (cl *ConversationList) Update(chats []collatzv1.Conversation) {
	selected := cl.Selected()
	cl.chats = chats
	cl.render()
	for i, c := range cl.visible {
		if c.ID == selected {
			cl.Select(i+1, 0)
			return
		}
	}
}

// SetFilter narrows the rows to those matching filter.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
	cl.Select(1, 0)
}

// Filter returns the active filter text.
func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) render() {
	cl.Clear()
	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 3},
		{" TIME", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = cl.visible[:0]
	now := cl.now()
	for _, c := range cl.chats {
		if !matchesFilter(cl.filter, c.DisplayName, c.OtherUsername, c.LastMessagePreview) {
			continue
		}
		cl.visible = append(cl.visible, c)
		row := len(cl.visible)
		name := c.DisplayName
		if name == "" {
			name = c.ID
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(oneLine(c.LastMessagePreview)))).SetExpansion(3).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(formatTimestamp(c.LastMessageAtUnixMs, now)+" ").SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) /%s ", len(cl.visible), len(cl.chats), cl.filter))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.chats)))
	}
}

// Selected returns the ID of the highlighted conversation.
func (cl *ConversationList) Selected() string {
	row, _ := cl.GetSelection()
	return cl.ByIndex(row)
}

// SelectedConversation returns the highlighted conversation.
func (cl *ConversationList) SelectedConversation() (collatzv1.Conversation, bool) {
	row, _ := cl.GetSelection()
	if row < 1 || row > len(cl.visible) {
		return collatzv1.Conversation{}, false
	}
	return cl.visible[row-1], true
}

// ByIndex returns the ID of the Nth visible conversation (1-based).
func (cl *ConversationList) ByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].ID
}
