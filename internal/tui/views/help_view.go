package views

import (
	"fmt"
	"strings"

	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{TextView: tv, theme: theme}
	hv.render()
	return hv
}

func (hv *HelpView) Name() string { return "Help" }
func (hv *HelpView) Start()       {}
func (hv *HelpView) Stop()        {}

func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{{Key: "Esc", Description: "Back"}}
}

type helpSection struct {
	title string
	rows  [][2]string
}

var helpSections = []helpSection{
	{"Global", [][2]string{
		{":", "Command mode"},
		{"/", "Filter conversations"},
		{"?", "This help"},
		{"Esc", "Back"},
		{"q", "Quit"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Conversations", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Open Nth conversation"},
		{"n", "Start a chat by username"},
		{"r", "Reload from server"},
		{"R", "Recommendations"},
		{"p", "Profile and streak"},
		{"0", "Clear filter"},
	}},
	{"Chat", [][2]string{
		{"i", "Focus composer (Enter sends)"},
		{"r", "Retry last failed message"},
		{"x", "Discard last failed message"},
		{"d", "Conversation details"},
	}},
	{"Recommendations", [][2]string{
		{"Tab", "Cycle jobs, hackathons and projects"},
		{"m", "Message the selected hackathon's host"},
		{"r", "Refresh"},
	}},
	{"Commands", [][2]string{
		{":chat <username>", "Open or create a direct chat"},
		{":search <query>", "Search cached messages"},
		{":image <path> [caption]", "Send an image to the open chat"},
		{":retry <id> / :discard <id>", "Act on a failed message"},
		{":interest <hackathon-id>", "Message a hackathon host"},
		{":recs", "Recommendations"},
		{":profile / :checkin", "Streak and daily check-in"},
		{":refresh", "Reload conversations"},
		{":login / :logout", "Switch account"},
		{":help / :quit", "Help and quit"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&b, "  [%s]%-30s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
