package views

import (
	"fmt"
	"strings"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/rivo/tview"
)

// ProfileView shows profile completeness and the check-in streak.
type ProfileView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewProfileView creates a new profile view.
func NewProfileView(theme *ui.Theme) *ProfileView {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Profile ")
	tv.SetTitleColor(theme.TitleColor)
	return &ProfileView{TextView: tv, theme: theme}
}

func (pv *ProfileView) Name() string { return "Profile" }
func (pv *ProfileView) Start()       {}
func (pv *ProfileView) Stop()        {}

func (pv *ProfileView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "c", Description: "Check in"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders p; nil shows a loading line.
func (pv *ProfileView) Update(p *collatzv1.GetProfileStatusResponse) {
	pv.Clear()
	if p == nil {
		_, _ = fmt.Fprint(pv, "\n Loading…")
		return
	}
	label := ui.Tag(pv.theme.FgColor)
	value := ui.Tag(pv.theme.CounterColor)

	completeness := "complete"
	if !p.Complete {
		completeness = "missing " + strings.Join(p.Missing, ", ")
	}
	today := "not yet, press c"
	if p.CheckedInToday {
		today = "done"
	}
	_, _ = fmt.Fprintf(pv,
		"\n [%s::b]Username:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]Profile:[-:-:-]      [%s]%s[-]\n"+
			" [%s::b]Streak:[-:-:-]       [%s]%d days[-]\n"+
			" [%s::b]Best streak:[-:-:-]  [%s]%d days[-]\n"+
			" [%s::b]Today:[-:-:-]        [%s]%s[-]",
		label, value, tview.Escape(p.Username),
		label, value, tview.Escape(completeness),
		label, value, p.CurrentStreak,
		label, value, p.BestStreak,
		label, value, today,
	)
}
