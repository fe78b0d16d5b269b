// Package state holds the per-visitor state of the web frontend: which modal
// dialog is open, who is signed in, which dashboard request is the newest
// and what the dashboard currently shows.
package state

import "sync"

// Dialog names a modal dialog.
type Dialog string

const (
	DialogNone                     Dialog = ""
	DialogRegistration             Dialog = "registration"
	DialogRegistrationSuccess      Dialog = "registration-success"
	DialogAccountConfirmation      Dialog = "account-confirmation"
	DialogLogin                    Dialog = "login"
	DialogSendPasswordEmail        Dialog = "send-password-email"
	DialogSendPasswordEmailSuccess Dialog = "send-password-email-success"
	DialogResetPassword            Dialog = "reset-password"
	DialogResetPasswordSuccess     Dialog = "reset-password-success"
	DialogResetPasswordError       Dialog = "reset-password-error"
	DialogDeleteAccount            Dialog = "delete-account"
	DialogWelcome                  Dialog = "welcome"
	DialogAddEvent                 Dialog = "add-event"
)

var allDialogs = []Dialog{
	DialogRegistration,
	DialogRegistrationSuccess,
	DialogAccountConfirmation,
	DialogLogin,
	DialogSendPasswordEmail,
	DialogSendPasswordEmailSuccess,
	DialogResetPassword,
	DialogResetPasswordSuccess,
	DialogResetPasswordError,
	DialogDeleteAccount,
	DialogWelcome,
	DialogAddEvent,
}

// AllDialogs returns every dialog name.
func AllDialogs() []Dialog {
	out := make([]Dialog, len(allDialogs))
	copy(out, allDialogs)
	return out
}

// ParseDialog resolves a dialog by name.
func ParseDialog(name string) (Dialog, bool) {
	for _, d := range allDialogs {
		if string(d) == name {
			return d, true
		}
	}
	return DialogNone, false
}

// Dialogs tracks the open modal dialog. At most one dialog is open at any
// time: opening one closes whichever was open before.
type Dialogs struct {
	mu   sync.Mutex
	open Dialog
}

// Open makes d the only open dialog and returns the one it replaced.
func (d *Dialogs) Open(dialog Dialog) Dialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.open
	d.open = dialog
	return prev
}

// Close closes dialog if it is the open one. Closing a dialog that is not
// open is a no-op.
func (d *Dialogs) Close(dialog Dialog) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open == dialog {
		d.open = DialogNone
	}
}

func (d *Dialogs) CloseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = DialogNone
}

func (d *Dialogs) IsOpen(dialog Dialog) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return dialog != DialogNone && d.open == dialog
}

// Current returns the open dialog, or DialogNone.
func (d *Dialogs) Current() Dialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}
