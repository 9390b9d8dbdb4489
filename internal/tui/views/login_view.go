package views

import (
	"fmt"
	"strings"

	"github.com/collatz-app/collatz/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginView asks for email and password while the daemon needs credentials.
type LoginView struct {
	*tview.Flex
	theme   *ui.Theme
	form    *tview.Form
	message *tview.TextView
	onLogin func(email, password string)
}

// NewLoginView creates a new login view.
func NewLoginView(theme *ui.Theme) *LoginView {
	lv := &LoginView{theme: theme}

	lv.message = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	lv.message.SetBackgroundColor(theme.BgColor)
	lv.message.SetTextColor(theme.FgColor)

	lv.form = tview.NewForm().
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddButton("Sign in", lv.submit)
	lv.form.SetBorder(true)
	lv.form.SetBorderColor(theme.BorderColor)
	lv.form.SetTitle(" Sign in ")
	lv.form.SetTitleColor(theme.TitleColor)
	lv.form.SetBackgroundColor(theme.BgColor)
	lv.form.SetFieldBackgroundColor(theme.BgColor)
	lv.form.SetFieldTextColor(theme.FgColor)
	lv.form.SetLabelColor(theme.MenuKeyColor)
	lv.form.SetButtonBackgroundColor(theme.BorderColor)

	box := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(lv.form, 9, 0, true).
		AddItem(lv.message, 2, 0, false).
		AddItem(nil, 0, 1, false)
	lv.Flex = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(box, 60, 0, true).
		AddItem(nil, 0, 1, false)
	return lv
}

func (lv *LoginView) Name() string { return "Login" }

// Start focuses the first empty field.
func (lv *LoginView) Start() {
	lv.form.SetFocus(0)
	if lv.email() != "" {
		lv.form.SetFocus(1)
	}
}

// Stop clears the password.
func (lv *LoginView) Stop() {
	lv.passwordField().SetText("")
}

func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Sign in"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

// SetOnLogin sets the submit callback.
func (lv *LoginView) SetOnLogin(fn func(email, password string)) { lv.onLogin = fn }

// ShowMessage displays a line under the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.message.Clear()
	_, _ = fmt.Fprint(lv.message, tview.Escape(msg))
}

// ShowError displays a failure under the form.
func (lv *LoginView) ShowError(msg string) {
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "[%s]%s[-]", ui.Tag(lv.theme.FlashErrColor), tview.Escape(msg))
}

func (lv *LoginView) submit() {
	email := lv.email()
	password := lv.passwordField().GetText()
	if email == "" || password == "" {
		lv.ShowError("email and password are required")
		return
	}
	lv.ShowMessage("Signing in…")
	if lv.onLogin != nil {
		lv.onLogin(email, password)
	}
}

func (lv *LoginView) email() string {
	return strings.TrimSpace(lv.form.GetFormItemByLabel("Email").(*tview.InputField).GetText())
}

func (lv *LoginView) passwordField() *tview.InputField {
	return lv.form.GetFormItemByLabel("Password").(*tview.InputField)
}
