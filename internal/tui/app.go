package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/collatz-app/collatz/internal/inbox"
	"github.com/collatz-app/collatz/internal/tui/client"
	"github.com/collatz-app/collatz/internal/tui/keys"
	"github.com/collatz-app/collatz/internal/tui/model"
	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/collatz-app/collatz/internal/tui/views"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	rpcTimeout    = 15 * time.Second
	draftDebounce = 500 * time.Millisecond
	pollInterval  = 5 * time.Second
	headerRows    = 6
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	layout   *tview.Flex
	pages    *ui.Pages
	header   *ui.Header
	crumbs   *ui.Crumbs
	flashBar *ui.FlashBar
	prompt   *ui.Prompt
	vm       *model.ViewModel
	registry *keys.Registry
	contacts *inbox.ContactSearch

	conversations *views.ConversationList
	thread        *views.MessageThread
	info          *views.ConversationInfo
	search        *views.SearchView
	people        *views.ContactsView
	recs          *views.RecommendationsView
	profile       *views.ProfileView
	login         *views.LoginView
	help          *views.HelpView

	sessionName string

	// UI goroutine only.
	activeID     string
	lastTimeline *collatzv1.GetTimelineResponse
	lastRecs     *collatzv1.GetRecommendationsResponse
	draftTimer   *time.Timer

	dirty  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	vm := model.NewViewModel(c)

	a := &App{
		app:         tview.NewApplication(),
		theme:       theme,
		pages:       ui.NewPages(),
		header:      ui.NewHeader(theme),
		crumbs:      ui.NewCrumbs(theme),
		flashBar:    ui.NewFlashBar(theme),
		prompt:      ui.NewPrompt(theme, commandNames),
		vm:          vm,
		registry:    keys.NewRegistry(),
		contacts:    inbox.NewContactSearch(vm, inbox.DefaultDebounce),
		sessionName: sessionName,
		dirty:       make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
	a.conversations = views.NewConversationList(theme)
	a.thread = views.NewMessageThread(theme)
	a.info = views.NewConversationInfo(theme)
	a.search = views.NewSearchView(theme, a.conversationName)
	a.people = views.NewContactsView(theme)
	a.recs = views.NewRecommendationsView(theme)
	a.profile = views.NewProfileView(theme)
	a.login = views.NewLoginView(theme)
	a.help = views.NewHelpView(theme)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	r := a.registry
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'q', Description: "quit", Handler: a.Stop})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '?', Description: "help", Handler: func() { a.pages.Push(a.help) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: ':', Description: "command", Handler: func() { a.showPrompt(ui.PromptCommand) }})

	list := a.conversations.Name()
	r.AddView(list, &keys.Action{Key: tcell.KeyRune, Rune: '/', Description: "filter", Handler: func() { a.showPrompt(ui.PromptFilter) }})
	r.AddView(list, &keys.Action{Key: tcell.KeyRune, Rune: 'n', Description: "new chat", Handler: func() { a.pages.Push(a.people) }})
	r.AddView(list, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Description: "refresh", Handler: a.refreshConversations})
	r.AddView(list, &keys.Action{Key: tcell.KeyRune, Rune: 'R', Description: "recommendations", Handler: a.showRecommendations})
	r.AddView(list, &keys.Action{Key: tcell.KeyRune, Rune: 'p', Description: "profile", Handler: a.showProfile})
	r.AddView(list, &keys.Action{Key: tcell.KeyRune, Rune: '0', Description: "clear filter", Handler: func() { a.conversations.SetFilter("") }})

	chat := a.thread.Name()
	r.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 'i', Description: "compose", Handler: func() { a.app.SetFocus(a.thread.Composer()) }})
	r.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Description: "retry failed", Handler: func() { a.retry(a.thread.LastFailed()) }})
	r.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 'x', Description: "discard failed", Handler: func() { a.discard(a.thread.LastFailed()) }})
	r.AddView(chat, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Description: "details", Handler: a.showDetails})

	r.AddView(a.info.Name(), &keys.Action{Key: tcell.KeyRune, Rune: 'D', Description: "delete", Handler: a.deleteActive})

	recs := a.recs.Name()
	r.AddView(recs, &keys.Action{Key: tcell.KeyRune, Rune: 'm', Description: "message host", Handler: func() { a.markInterest(a.recs.SelectedHackathon()) }})
	r.AddView(recs, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Description: "refresh", Handler: a.showRecommendations})

	r.AddView(a.profile.Name(), &keys.Action{Key: tcell.KeyRune, Rune: 'c', Description: "check in", Handler: a.checkIn})
}

func (a *App) setupCallbacks() {
	a.conversations.SetSelectedFunc(func(row, _ int) {
		a.openConversation(a.conversations.ByIndex(row))
	})

	a.thread.SetOnSend(func(text string) {
		a.stopDraftTimer()
		a.do("send", func(ctx context.Context) error { return a.vm.SendText(ctx, text) }, nil)
	})
	a.thread.SetOnDraft(a.scheduleDraft)

	a.search.SetOnQuery(a.runSearch)
	a.search.Results().SetSelectedFunc(func(int, int) {
		a.openConversation(a.search.SelectedConversation())
	})

	a.people.SetOnChange(a.contacts.Query)
	a.people.SetOnPick(func(c inbox.Contact) { a.startChat(c.Username) })

	a.login.SetOnLogin(a.doLogin)

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptFilter {
			a.conversations.SetFilter(text)
			return
		}
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(top ui.Component, stack []string) {
		a.crumbs.Update(stack)
		a.header.SetHints(top.Hints())
		a.app.SetFocus(top)
	})
}

func (a *App) setupLayout() {
	a.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, headerRows, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)
	a.app.SetRoot(a.layout, true)
	a.app.SetInputCapture(a.onKey)
	a.pages.Reset(a.conversations)
}

func (a *App) onKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}
	focus := a.app.GetFocus()
	if focus == a.prompt || focus == a.prompt.InputField {
		return ev
	}
	current := a.pages.Current()

	switch ev.Key() {
	case tcell.KeyEscape:
		if focus == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		a.back()
		return nil
	case tcell.KeyTab:
		if a.cycleFocus(current, focus) {
			return nil
		}
	}

	// Text widgets and the login form keep their keys.
	if _, ok := focus.(*tview.InputField); ok || current == a.login.Name() {
		return ev
	}

	if current == a.conversations.Name() && ev.Key() == tcell.KeyRune && ev.Rune() >= '1' && ev.Rune() <= '9' {
		if id := a.conversations.ByIndex(int(ev.Rune() - '0')); id != "" {
			a.openConversation(id)
		}
		return nil
	}

	if a.registry.HandleEvent(current, ev) {
		return nil
	}
	return ev
}

// cycleFocus moves Tab focus within multi-pane pages.
func (a *App) cycleFocus(page string, focus tview.Primitive) bool {
	var ring []tview.Primitive
	switch page {
	case a.search.Name():
		ring = []tview.Primitive{a.search.Input(), a.search.Results()}
	case a.people.Name():
		ring = []tview.Primitive{a.people.Input(), a.people.Results()}
	case a.recs.Name():
		for _, t := range a.recs.Tables() {
			ring = append(ring, t)
		}
	default:
		return false
	}
	next := 0
	for i, p := range ring {
		if p == focus {
			next = (i + 1) % len(ring)
			break
		}
	}
	a.app.SetFocus(ring[next])
	return true
}

func (a *App) back() {
	switch a.pages.Current() {
	case a.login.Name():
		return
	case a.thread.Name():
		a.closeConversation()
	case a.conversations.Name():
		if a.conversations.Filter() != "" {
			a.conversations.SetFilter("")
		}
		return
	}
	a.pages.Pop()
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.layout.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.layout.ResizeItem(a.prompt, 0, 0)
	if top := a.pages.Top(); top != nil {
		a.app.SetFocus(top)
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.pages.Push(a.help)
	case "chat":
		if cmd.Args == "" {
			a.pages.Push(a.people)
			return
		}
		a.startChat(cmd.Args)
	case "search":
		a.pages.Push(a.search)
		if cmd.Args != "" {
			a.search.SetQuery(cmd.Args)
			a.runSearch(cmd.Args)
		}
	case "image":
		path, caption := cmd.Fields()
		a.sendImage(path, caption)
	case "retry", "discard":
		id, err := strconv.ParseInt(cmd.Args, 10, 64)
		if err != nil || id <= 0 {
			a.vm.Flash.Warn(fmt.Sprintf("usage: %s <message id>", cmd.Name))
			return
		}
		if cmd.Name == "retry" {
			a.retry(id)
		} else {
			a.discard(id)
		}
	case "interest":
		a.markInterest(cmd.Args)
	case "recs":
		a.showRecommendations()
	case "profile":
		a.showProfile()
	case "checkin":
		a.checkIn()
	case "refresh":
		a.refreshConversations()
	case "login":
		a.pages.Push(a.login)
	case "logout":
		a.do("logout", a.vm.Logout, func() {
			a.activeID = ""
			a.pages.Reset(a.login)
		})
	default:
		a.vm.Flash.Warn(fmt.Sprintf("unknown command %q, try :help", cmd.Name))
	}
}

// do runs fn off the UI goroutine, flashing failures under what and running
// then on the UI goroutine after success.
func (a *App) do(what string, fn func(ctx context.Context) error, then func()) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			if a.ctx.Err() == nil {
				a.vm.Flash.Err(what+" failed", err)
			}
			return
		}
		if then != nil {
			a.app.QueueUpdateDraw(then)
		}
	}()
}

func (a *App) openConversation(id string) {
	if id == "" {
		return
	}
	a.do("open", func(ctx context.Context) error { return a.vm.OpenConversation(ctx, id) }, func() {
		a.showThread(id)
	})
}

// showThread pushes the chat page for the timeline the view model holds.
func (a *App) showThread(id string) {
	tl := a.vm.GetTimeline()
	if tl == nil || tl.ConversationID != id {
		return
	}
	a.activeID = id
	a.lastTimeline = tl
	a.thread.SetConversation(a.conversationName(id))
	a.thread.SetDraft(tl.Draft)
	a.thread.Update(tl)
	for a.pages.Depth() > 1 {
		a.pages.Pop()
	}
	a.pages.Push(a.thread)
}

func (a *App) closeConversation() {
	a.stopDraftTimer()
	a.activeID = ""
	a.lastTimeline = nil
	a.thread.Update(nil)
	a.do("close", a.vm.CloseConversation, nil)
}

func (a *App) startChat(username string) {
	a.do("start chat", func(ctx context.Context) error {
		conv, err := a.vm.StartChat(ctx, username)
		if err != nil {
			return err
		}
		_ = a.vm.LoadConversations(ctx, false)
		a.vm.Flash.Infof("chatting with %s", conv.DisplayName)
		return nil
	}, func() {
		if tl := a.vm.GetTimeline(); tl != nil {
			a.showThread(tl.ConversationID)
		}
	})
}

func (a *App) markInterest(hackathonID string) {
	if hackathonID == "" {
		a.vm.Flash.Warn("no hackathon selected")
		return
	}
	a.do("mark interest", func(ctx context.Context) error {
		conv, err := a.vm.MarkInterest(ctx, hackathonID)
		if err != nil {
			return err
		}
		_ = a.vm.LoadConversations(ctx, false)
		if err := a.vm.OpenConversation(ctx, conv.ID); err != nil {
			return err
		}
		a.vm.Flash.Infof("sent interest to %s", conv.DisplayName)
		return nil
	}, func() {
		if tl := a.vm.GetTimeline(); tl != nil {
			a.showThread(tl.ConversationID)
		}
	})
}

func (a *App) sendImage(path, caption string) {
	if path == "" {
		a.vm.Flash.Warn("usage: image <path> [caption]")
		return
	}
	if a.activeID == "" {
		a.vm.Flash.Warn("open a conversation first")
		return
	}
	a.vm.Flash.Info("uploading " + path)
	a.do("send image", func(ctx context.Context) error { return a.vm.SendImage(ctx, path, caption) }, nil)
}

func (a *App) retry(tempID int64) {
	if tempID == 0 {
		a.vm.Flash.Info("no failed messages")
		return
	}
	a.do("retry", func(ctx context.Context) error { return a.vm.RetryMessage(ctx, tempID) }, nil)
}

func (a *App) discard(tempID int64) {
	if tempID == 0 {
		a.vm.Flash.Info("no failed messages")
		return
	}
	a.do("discard", func(ctx context.Context) error { return a.vm.DiscardMessage(ctx, tempID) }, nil)
}

func (a *App) showDetails() {
	c, ok := a.vm.ConversationByID(a.activeID)
	if !ok {
		return
	}
	n := 0
	if a.lastTimeline != nil {
		n = len(a.lastTimeline.Entries)
	}
	a.info.Update(c, n)
	a.pages.Push(a.info)
}

func (a *App) deleteActive() {
	id := a.activeID
	if id == "" {
		return
	}
	a.do("delete", func(ctx context.Context) error { return a.vm.DeleteConversation(ctx, id) }, func() {
		a.activeID = ""
		a.lastTimeline = nil
		a.pages.Reset(a.conversations)
		a.vm.Flash.Info("conversation deleted")
	})
}

func (a *App) refreshConversations() {
	a.do("refresh", func(ctx context.Context) error { return a.vm.LoadConversations(ctx, true) }, nil)
}

func (a *App) runSearch(query string) {
	a.do("search", func(ctx context.Context) error {
		hits, err := a.vm.SearchMessages(ctx, query)
		if err != nil {
			return err
		}
		a.app.QueueUpdateDraw(func() {
			a.search.Update(hits)
			a.app.SetFocus(a.search.Results())
		})
		return nil
	}, nil)
}

func (a *App) showRecommendations() {
	a.pages.Push(a.recs)
	a.vm.Flash.Info("loading recommendations…")
	a.do("recommendations", func(ctx context.Context) error {
		return a.vm.LoadRecommendations(ctx, collatzv1.RecommendationFilters{})
	}, nil)
}

func (a *App) showProfile() {
	a.pages.Push(a.profile)
	a.profile.Update(a.vm.GetProfile())
	a.do("profile", a.vm.LoadProfile, nil)
}

func (a *App) checkIn() {
	a.do("check in", a.vm.CheckIn, func() { a.vm.Flash.Info("checked in for today") })
}

func (a *App) doLogin(email, password string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		err := a.vm.Login(ctx, email, password)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.login.ShowError(err.Error())
				return
			}
			a.login.ShowMessage("")
			a.pages.Reset(a.conversations)
			a.markDirty()
		})
	}()
}

func (a *App) scheduleDraft(text string) {
	a.stopDraftTimer()
	if a.activeID == "" {
		return
	}
	a.draftTimer = time.AfterFunc(draftDebounce, func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		_ = a.vm.SetDraft(ctx, text)
	})
}

func (a *App) stopDraftTimer() {
	if a.draftTimer != nil {
		a.draftTimer.Stop()
		a.draftTimer = nil
	}
}

func (a *App) conversationName(id string) string {
	if c, ok := a.vm.ConversationByID(id); ok && c.DisplayName != "" {
		return c.DisplayName
	}
	return id
}

// applyStatus routes between the login page and the app for a daemon state.
func (a *App) applyStatus(status collatzv1.SessionStatus) {
	onLogin := a.pages.Current() == a.login.Name()
	switch {
	case status == collatzv1.SessionStatusAuthRequired && !onLogin:
		a.activeID = ""
		a.pages.Reset(a.login)
		a.login.ShowMessage("Sign in to continue")
	case status != collatzv1.SessionStatusAuthRequired && status != collatzv1.SessionStatusBooting && onLogin && a.pages.Depth() == 1:
		a.pages.Reset(a.conversations)
		a.markDirty()
	}
}

// render copies view model snapshots into the views.
func (a *App) render() {
	if st := a.vm.GetSessionStatus(); st != nil {
		a.header.SetSession(&ui.SessionData{
			Session:       a.sessionName,
			Email:         st.Email,
			Status:        string(st.Status),
			Conversations: st.ConversationCount,
			Messages:      st.MessageCount,
			Pending:       st.PendingCount,
			Realtime:      st.RealtimeConnected,
			Uptime:        time.Duration(st.UptimeMs) * time.Millisecond,
		})
	}
	a.conversations.Update(a.vm.GetConversations())

	if tl := a.vm.GetTimeline(); tl != a.lastTimeline && tl != nil && tl.ConversationID == a.activeID {
		a.lastTimeline = tl
		a.thread.Update(tl)
	}
	if recs := a.vm.GetRecommendations(); recs != a.lastRecs {
		a.lastRecs = recs
		a.recs.Update(recs)
	}
	if a.pages.Current() == a.profile.Name() {
		a.profile.Update(a.vm.GetProfile())
	}
}

// markDirty asks the sync loop to refetch the list and the open timeline.
func (a *App) markDirty() {
	select {
	case a.dirty <- struct{}{}:
	default:
	}
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go a.bootstrap()
	go a.redrawLoop()
	go a.syncLoop()
	go a.pollLoop()
	go a.flashLoop()
	go a.contactsLoop()
	go a.watch(func(ctx context.Context) error {
		return a.vm.WatchStatus(ctx, a.onStatusEvent)
	})
	go a.watch(func(ctx context.Context) error {
		return a.vm.WatchTimeline(ctx, func(*collatzv1.TimelineEvent) { a.markDirty() })
	})
	defer a.shutdown()
	return a.app.Run()
}

func (a *App) bootstrap() {
	ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
	defer cancel()
	if err := a.vm.LoadSessionStatus(ctx); err != nil {
		a.vm.Flash.Err("daemon unreachable", err)
		return
	}
	st := a.vm.GetSessionStatus()
	a.app.QueueUpdateDraw(func() { a.applyStatus(st.Status) })
	if st.Status != collatzv1.SessionStatusAuthRequired {
		_ = a.vm.LoadConversations(ctx, false)
	}
}

func (a *App) onStatusEvent(evt *collatzv1.StatusEvent) {
	ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
	defer cancel()
	_ = a.vm.LoadSessionStatus(ctx)
	to := collatzv1.SessionStatus(evt.To)
	a.app.QueueUpdateDraw(func() { a.applyStatus(to) })
	if to == collatzv1.SessionStatusDegraded {
		a.vm.Flash.Warn("degraded: showing cached data")
	}
}

func (a *App) redrawLoop() {
	for {
		select {
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.render)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) syncLoop() {
	for {
		select {
		case <-a.dirty:
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			if a.vm.GetTimeline() != nil {
				_ = a.vm.LoadTimeline(ctx)
			}
			_ = a.vm.LoadConversations(ctx, false)
			cancel()
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			_ = a.vm.LoadSessionStatus(ctx)
			cancel()
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) flashLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.Flash.Watch():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		msg := a.vm.Flash.Current()
		a.app.QueueUpdateDraw(func() { a.flashBar.Update(msg) })
	}
}

func (a *App) contactsLoop() {
	for {
		select {
		case r := <-a.contacts.Results():
			if r.Err != nil {
				a.vm.Flash.Err("user search failed", r.Err)
				continue
			}
			a.app.QueueUpdateDraw(func() { a.people.Update(r.Contacts) })
		case <-a.ctx.Done():
			return
		}
	}
}

// watch keeps a server stream open, reconnecting with backoff until the
// app stops.
func (a *App) watch(stream func(ctx context.Context) error) {
	b := backoff.NewExponentialBackOff()
	for a.ctx.Err() == nil {
		started := time.Now()
		_ = stream(a.ctx)
		if time.Since(started) > time.Minute {
			b.Reset()
		}
		select {
		case <-time.After(b.NextBackOff()):
		case <-a.ctx.Done():
			return
		}
		a.markDirty()
	}
}

func (a *App) shutdown() {
	a.cancel()
	a.contacts.Close()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
