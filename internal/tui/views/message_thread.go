package views

import (
	"fmt"
	"strings"
	"time"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// MessageThread shows the active conversation's timeline above a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	title    string
	entries  []collatzv1.TimelineEntry
	now      func() time.Time

	onSend  func(text string)
	onDraft func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	mt := &MessageThread{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(messages, 0, 1, true).
			AddItem(composer, 3, 0, false),
		theme:    theme,
		messages: messages,
		composer: composer,
		now:      time.Now,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := strings.TrimSpace(composer.GetText())
		if text == "" {
			return
		}
		composer.SetText("")
		mt.onSend(text)
	})
	composer.SetChangedFunc(func(text string) {
		if mt.onDraft != nil {
			mt.onDraft(text)
		}
	})
	return mt
}

func (mt *MessageThread) Name() string { return "Chat" }
func (mt *MessageThread) Start()       {}
func (mt *MessageThread) Stop()        {}

func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "r", Description: "Retry failed"},
		{Key: "x", Description: "Discard failed"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetConversation names the open conversation.
func (mt *MessageThread) SetConversation(name string) {
	mt.title = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
}

// SetOnSend sets the callback for a submitted message.
func (mt *MessageThread) SetOnSend(fn func(text string)) { mt.onSend = fn }

// SetOnDraft sets the callback for composer edits.
func (mt *MessageThread) SetOnDraft(fn func(text string)) { mt.onDraft = fn }

// SetDraft loads text into the composer without firing the draft callback.
func (mt *MessageThread) SetDraft(text string) {
	fn := mt.onDraft
	mt.onDraft = nil
	mt.composer.SetText(text)
	mt.onDraft = fn
}

// Update renders the timeline oldest first.
func (mt *MessageThread) Update(tl *collatzv1.GetTimelineResponse) {
	mt.messages.Clear()
	mt.entries = nil
	if tl == nil {
		return
	}
	mt.entries = tl.Entries
	_, _ = fmt.Fprint(mt.messages, renderTimeline(mt.theme, tl.Entries, mt.now()))
	mt.messages.ScrollToEnd()
}

// LastFailed returns the temp id of the newest failed entry, 0 when none.
func (mt *MessageThread) LastFailed() int64 {
	for i := len(mt.entries) - 1; i >= 0; i-- {
		if mt.entries[i].State == "failed" {
			return mt.entries[i].TempID
		}
	}
	return 0
}

// Messages returns the timeline text view.
func (mt *MessageThread) Messages() *tview.TextView { return mt.messages }

// Composer returns the composer input field.
func (mt *MessageThread) Composer() *tview.InputField { return mt.composer }

func renderTimeline(theme *ui.Theme, entries []collatzv1.TimelineEntry, now time.Time) string {
	var b strings.Builder
	for _, e := range entries {
		sender := e.SenderName
		if sender == "" {
			sender = e.SenderID
		}
		color := theme.PeerColor
		if e.FromMe {
			sender = "You"
			color = theme.MineColor
		}

		body := tview.Escape(sanitizeForTerminal(e.Text))
		if e.PayloadKind != "text" {
			body = "[::i]" + body + "[::-]"
		}

		var mark string
		switch e.State {
		case "pending":
			mark = fmt.Sprintf(" [%s]sending…[-]", ui.Tag(theme.PendingColor))
		case "failed":
			reason := e.Error
			if reason == "" {
				reason = "not delivered"
			}
			mark = fmt.Sprintf(" [%s]failed #%d: %s[-]", ui.Tag(theme.FailedColor), e.TempID, tview.Escape(reason))
		}

		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			ui.Tag(color), tview.Escape(sanitizeForTerminal(sender)),
			formatTimestamp(e.CreatedAtUnixMs, now), mark, body)
	}
	return b.String()
}
