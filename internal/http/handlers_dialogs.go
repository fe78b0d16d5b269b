package http

import (
	"net/http"

	"portfel/internal/state"
)

// openable lists the dialogs a visitor may open directly and whether they
// need a session.
var openable = map[state.Dialog]bool{
	state.DialogRegistration:      false,
	state.DialogLogin:             false,
	state.DialogSendPasswordEmail: false,
	state.DialogDeleteAccount:     true,
	state.DialogAddEvent:          true,
	state.DialogWelcome:           true,
}

// handleOpenDialog opens a dialog, closing whichever was open.
func (s *Server) handleOpenDialog(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	d, ok := state.ParseDialog(r.PathValue("name"))
	needsSession, allowed := openable[d]
	if !ok || !allowed {
		NotFoundError("Nie znaleziono okna.").Write(w)
		return
	}
	if needsSession && !st.Session.Authenticated() {
		s.loginRequired(w, r, st)
		return
	}
	s.writeDialog(w, r, st, s.newDialogData(d))
}

// handleCloseDialogs closes the named dialog, or every dialog when no name
// is given, and empties the dialog container.
func (s *Server) handleCloseDialogs(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if name := r.FormValue("name"); name != "" {
		if d, ok := state.ParseDialog(name); ok {
			st.Dialogs.Close(d)
		}
	} else {
		st.Dialogs.CloseAll()
	}
	NewHTMXResponse().
		Retarget("#dialog", "innerHTML").
		TriggerDialogClosed().
		Write(w)
}
