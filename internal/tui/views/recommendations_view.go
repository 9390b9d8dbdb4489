package views

import (
	"fmt"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/rivo/tview"
)

// RecommendationsView lists jobs, hackathons and projects side by side.
type RecommendationsView struct {
	*tview.Flex
	theme      *ui.Theme
	jobs       *tview.Table
	hackathons *tview.Table
	projects   *tview.Table
	data       *collatzv1.GetRecommendationsResponse
}

// NewRecommendationsView creates a new recommendations view.
func NewRecommendationsView(theme *ui.Theme) *RecommendationsView {
	rv := &RecommendationsView{
		theme:      theme,
		jobs:       newTable(theme, " Jobs "),
		hackathons: newTable(theme, " Hackathons "),
		projects:   newTable(theme, " Projects "),
	}
	rv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(rv.jobs, 0, 1, false).
		AddItem(rv.hackathons, 0, 1, true).
		AddItem(rv.projects, 0, 1, false)
	rv.Update(nil)
	return rv
}

func (rv *RecommendationsView) Name() string { return "Recommendations" }
func (rv *RecommendationsView) Start()       {}
func (rv *RecommendationsView) Stop()        {}

func (rv *RecommendationsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next list"},
		{Key: "m", Description: "Message host"},
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders the three lists. A nil response shows empty tables.
func (rv *RecommendationsView) Update(resp *collatzv1.GetRecommendationsResponse) {
	rv.data = resp
	if resp == nil {
		resp = &collatzv1.GetRecommendationsResponse{}
	}
	rv.fill(rv.jobs, "Jobs", resp.Jobs)
	rv.fill(rv.hackathons, "Hackathons", resp.Hackathons)
	rv.fill(rv.projects, "Projects", resp.Projects)
}

func (rv *RecommendationsView) fill(t *tview.Table, title string, recs []collatzv1.Recommendation) {
	t.Clear()
	setHeader(t, rv.theme, " SCORE", " TITLE", " CATEGORY")
	for i, r := range recs {
		t.SetCell(i+1, 0, tview.NewTableCell(fmt.Sprintf(" %.2f", r.Score)).SetTextColor(rv.theme.ScoreColor))
		t.SetCell(i+1, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(r.Title))).SetExpansion(2).SetTextColor(rv.theme.FgColor))
		t.SetCell(i+1, 2, tview.NewTableCell(" "+tview.Escape(r.Category)).SetExpansion(1).SetTextColor(rv.theme.FgColor))
	}
	t.SetTitle(fmt.Sprintf(" %s (%d) ", title, len(recs)))
}

// Tables returns the lists in focus order.
func (rv *RecommendationsView) Tables() []*tview.Table {
	return []*tview.Table{rv.jobs, rv.hackathons, rv.projects}
}

// SelectedHackathon returns the id of the highlighted hackathon.
func (rv *RecommendationsView) SelectedHackathon() string {
	if rv.data == nil {
		return ""
	}
	row, _ := rv.hackathons.GetSelection()
	if row < 1 || row > len(rv.data.Hackathons) {
		return ""
	}
	return rv.data.Hackathons[row-1].ID
}
