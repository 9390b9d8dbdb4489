package ui

import "github.com/rivo/tview"

// Pages is a stack of Components over tview.Pages. The top component is
// visible and started; the rest are hidden and stopped.
type Pages struct {
	*tview.Pages
	stack    []Component
	onChange func(top Component, stack []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange sets a callback that fires after every stack change.
func (p *Pages) SetOnChange(fn func(top Component, stack []string)) {
	p.onChange = fn
}

// Push shows c on top of the stack. Pushing the current top is a no-op.
func (p *Pages) Push(c Component) {
	if top := p.Top(); top != nil {
		if top == c {
			return
		}
		top.Stop()
		p.HidePage(top.Name())
	}
	if !p.HasPage(c.Name()) {
		p.AddPage(c.Name(), c, true, false)
	}
	p.stack = append(p.stack, c)
	p.show(c)
}

// Pop removes the top component and shows the previous one. The root page
// stays; Pop on a single-entry stack returns nil.
func (p *Pages) Pop() Component {
	if len(p.stack) < 2 {
		return nil
	}
	top := p.stack[len(p.stack)-1]
	top.Stop()
	p.HidePage(top.Name())
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.stack[len(p.stack)-1])
	return top
}

// Reset clears the stack and shows only c.
func (p *Pages) Reset(c Component) {
	for _, old := range p.stack {
		old.Stop()
		p.HidePage(old.Name())
	}
	p.stack = p.stack[:0]
	if !p.HasPage(c.Name()) {
		p.AddPage(c.Name(), c, true, false)
	}
	p.stack = append(p.stack, c)
	p.show(c)
}

// Top returns the visible component, nil when the stack is empty.
func (p *Pages) Top() Component {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// Current returns the name of the visible page.
func (p *Pages) Current() string {
	if top := p.Top(); top != nil {
		return top.Name()
	}
	return ""
}

// Stack returns the page names bottom to top.
func (p *Pages) Stack() []string {
	names := make([]string, len(p.stack))
	for i, c := range p.stack {
		names[i] = c.Name()
	}
	return names
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

func (p *Pages) show(c Component) {
	p.ShowPage(c.Name())
	p.SendToFront(c.Name())
	c.Start()
	if p.onChange != nil {
		p.onChange(c, p.Stack())
	}
}
