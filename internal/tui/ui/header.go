package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// SessionData is the daemon state shown in the header.
type SessionData struct {
	Session       string
	Email         string
	Status        string
	Conversations int32
	Messages      int32
	Pending       int32
	Realtime      bool
	Uptime        time.Duration
}

// Header is the top band: session details, key hints and the logo.
type Header struct {
	*tview.Flex
	theme *Theme
	info  *tview.TextView
	menu  *tview.TextView
	logo  *tview.TextView
}

// NewHeader creates the header band.
func NewHeader(theme *Theme) *Header {
	newText := func() *tview.TextView {
		tv := tview.NewTextView().SetDynamicColors(true)
		tv.SetBackgroundColor(theme.BgColor)
		return tv
	}
	h := &Header{theme: theme, info: newText(), menu: newText(), logo: newText()}
	h.info.SetBorderPadding(0, 0, 1, 1)
	h.menu.SetBorderPadding(0, 0, 2, 0)
	h.logo.SetTextAlign(tview.AlignRight)
	h.logo.SetBorderPadding(0, 0, 0, 1)
	h.renderLogo()

	h.Flex = tview.NewFlex().
		AddItem(h.info, 40, 0, false).
		AddItem(h.menu, 0, 1, false).
		AddItem(h.logo, 30, 0, false)
	return h
}

// SetSession renders the session panel.
func (h *Header) SetSession(d *SessionData) {
	h.info.Clear()
	if d == nil {
		return
	}
	label := Tag(h.theme.FgColor)
	value := Tag(h.theme.CounterColor)
	user := d.Email
	if user == "" {
		user = "-"
	}
	rt := "down"
	if d.Realtime {
		rt = "up"
	}
	row := func(k, v string) string {
		return fmt.Sprintf("[%s::b]%-8s[-:-:-] [%s]%s[-]\n", label, k+":", value, tview.Escape(v))
	}
	var b strings.Builder
	b.WriteString(row("Session", d.Session))
	b.WriteString(row("User", user))
	b.WriteString(row("Status", fmt.Sprintf("%s (realtime %s)", d.Status, rt)))
	b.WriteString(row("Chats", fmt.Sprint(d.Conversations)))
	b.WriteString(row("Msgs", fmt.Sprintf("%d (%d pending)", d.Messages, d.Pending)))
	b.WriteString(row("Uptime", formatDuration(d.Uptime)))
	_, _ = fmt.Fprint(h.info, strings.TrimRight(b.String(), "\n"))
}

// SetHints renders key hints in two columns.
func (h *Header) SetHints(hints []MenuHint) {
	h.menu.Clear()
	keyColor := Tag(h.theme.MenuKeyColor)
	numColor := Tag(h.theme.NumericKeyColor)

	half := (len(hints) + 1) / 2
	cell := func(m MenuHint) string {
		kc := keyColor
		if m.Numeric {
			kc = numColor
		}
		return fmt.Sprintf("[%s::b]<%s>[-:-:-] %-12s", kc, m.Key, m.Description)
	}
	for i := 0; i < half; i++ {
		line := cell(hints[i])
		if j := i + half; j < len(hints) {
			line += "  " + cell(hints[j])
		}
		_, _ = fmt.Fprintln(h.menu, line)
	}
}

func (h *Header) renderLogo() {
	c := Tag(h.theme.TitleColor)
	_, _ = fmt.Fprintf(h.logo,
		"[%s::b]┏━╸┏━┓╻  ╻  ┏━┓╺┳╸╺━┓[-:-:-]\n"+
			"[%s::b]┃  ┃ ┃┃  ┃  ┣━┫ ┃ ┏━┛[-:-:-]\n"+
			"[%s::b]┗━╸┗━┛┗━╸┗━╸╹ ╹ ╹ ┗━╸[-:-:-]\n"+
			"[%s]find your team[-:-:-]",
		c, c, c, Tag(h.theme.FgColor),
	)
}

// Crumbs is the breadcrumb bar showing the page stack.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update renders the trail; the last entry is the active page.
func (c *Crumbs) Update(stack []string) {
	c.Clear()
	parts := make([]string, 0, len(stack))
	for i, name := range stack {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(stack)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", Tag(fg), Tag(bg), attr, tview.Escape(name)))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " "))
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
