package views

import (
	"fmt"
	"time"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays details of one conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)
	return &ConversationInfo{TextView: tv, theme: theme}
}

func (ci *ConversationInfo) Name() string { return "Details" }
func (ci *ConversationInfo) Start()       {}
func (ci *ConversationInfo) Stop()        {}

func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "D", Description: "Delete"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders c with the message count of its open timeline.
func (ci *ConversationInfo) Update(c collatzv1.Conversation, messages int) {
	ci.Clear()
	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)

	lastActive := "-"
	if c.LastMessageAtUnixMs != 0 {
		lastActive = time.UnixMilli(c.LastMessageAtUnixMs).Local().Format("2006-01-02 15:04")
	}
	other := c.OtherUsername
	if other == "" {
		other = "-"
	}
	row := func(k, v string) string {
		return fmt.Sprintf(" [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, k+":", ct, tview.Escape(v))
	}
	_, _ = fmt.Fprint(ci, "\n"+
		row("Name", c.DisplayName)+
		row("ID", c.ID)+
		row("Title", c.Title)+
		row("With", other)+
		row("Messages", fmt.Sprint(messages))+
		row("Last active", lastActive)+
		row("Last message", oneLine(c.LastMessagePreview)))
	ci.SetTitle(fmt.Sprintf(" %s ", tview.Escape(c.DisplayName)))
}
