package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"portfel/internal/api"
	applog "portfel/internal/log"
	"portfel/internal/state"
	"portfel/internal/validation"
)

type registrationForm struct {
	FirstName   string `form:"firstName" validate:"required,firstname"`
	Email       string `form:"email" validate:"required,email_pl"`
	Username    string `form:"username" validate:"required,username"`
	Password    string `form:"password" validate:"required,password_len,password_sign"`
	ConPassword string `form:"conPassword" validate:"required,eqfield=Password"`
}

type loginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type forgotPasswordForm struct {
	Email string `form:"email" validate:"required,email_pl"`
}

type resetPasswordForm struct {
	Password    string `form:"password" validate:"required,password_len,password_sign"`
	ConPassword string `form:"conPassword" validate:"required,eqfield=Password"`
}

type deleteAccountForm struct {
	Password string `form:"password" validate:"required"`
}

const (
	accountExistsText   = "Użytkownik o podanym loginie lub adresie e-mail już istnieje."
	invalidRegistration = "Dane rejestracji są nieprawidłowe."
	wrongPasswordText   = "Błędne hasło."
	accountDeletedText  = "Konto zostało usunięte."
	loggedOutText       = "Wylogowano."
)

func (s *Server) authLogger(r *http.Request) *applog.Logger {
	return applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth)
}

// dialogFailure re-renders d with the submitted values and a banner.
func (s *Server) dialogFailure(w http.ResponseWriter, r *http.Request, st *state.AppState, d state.Dialog, values map[string]string, message string) {
	data := s.newDialogData(d)
	data.Values = values
	banner := st.Fail(message)
	data.Banner = &banner
	s.writeDialog(w, r, st, data)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := registrationForm{
		FirstName:   formValue(r, "firstName"),
		Email:       strings.ToLower(formValue(r, "email")),
		Username:    formValue(r, "username"),
		Password:    r.PostFormValue("password"),
		ConPassword: r.PostFormValue("conPassword"),
	}
	values := map[string]string{"firstName": form.FirstName, "email": form.Email, "username": form.Username}

	if errs := s.validator.Struct(form); errs != nil {
		data := s.newDialogData(state.DialogRegistration)
		data.Values, data.Errors = values, errs
		s.writeDialog(w, r, st, data)
		return
	}

	err := s.public(st).Register(r.Context(), api.Registration{
		FirstName:   form.FirstName,
		Email:       form.Email,
		Username:    form.Username,
		Password:    form.Password,
		ConPassword: form.ConPassword,
	})
	switch {
	case err == nil:
		s.authLogger(r).InfoContext(r.Context(), "Account registered", applog.FieldUsername, form.Username)
		data := s.newDialogData(state.DialogRegistrationSuccess)
		data.Email = form.Email
		s.writeDialog(w, r, st, data)
	case errors.Is(err, api.ErrAccountExists):
		s.dialogFailure(w, r, st, state.DialogRegistration, values, accountExistsText)
	case errors.Is(err, api.ErrInvalidRegistration):
		s.dialogFailure(w, r, st, state.DialogRegistration, values, invalidRegistration)
	default:
		s.authLogger(r).ErrorContext(r.Context(), "Registration failed", applog.FieldError, err.Error())
		s.dialogFailure(w, r, st, state.DialogRegistration, values, upstreamMessage(err))
	}
}

// handleLogin signs the visitor in and sends them to the dashboard.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := loginForm{
		Username: strings.ToLower(formValue(r, "username")),
		Password: r.PostFormValue("password"),
	}
	values := map[string]string{"username": form.Username}
	if errs := s.validator.Struct(form); errs != nil {
		data := s.newDialogData(state.DialogLogin)
		data.Values, data.Errors = values, errs
		s.writeDialog(w, r, st, data)
		return
	}

	if err := s.public(st).Login(r.Context(), form.Username, form.Password); err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			s.authLogger(r).InfoContext(r.Context(), "Login rejected",
				applog.FieldUsername, form.Username,
				applog.FieldStatusCode, se.Code)
			s.dialogFailure(w, r, st, state.DialogLogin, values, se.Message)
			return
		}
		s.authLogger(r).ErrorContext(r.Context(), "Login failed", applog.FieldError, err.Error())
		s.dialogFailure(w, r, st, state.DialogLogin, values, upstreamMessage(err))
		return
	}

	st.Session.SignIn(form.Username)
	st.Dialogs.CloseAll()
	s.authLogger(r).InfoContext(r.Context(), "Signed in", applog.FieldUsername, form.Username)
	NewHTMXResponse().Redirect("/dashboard").Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if err := s.public(st).Logout(r.Context()); err != nil {
		s.authLogger(r).WarnContext(r.Context(), "Backend logout failed", applog.FieldError, err.Error())
	}
	if err := st.SignOut(); err != nil {
		s.authLogger(r).ErrorContext(r.Context(), "Sign out failed", applog.FieldError, err.Error())
	}
	s.goHome(w, r, loggedOutText)
}

// goHome navigates to the home page, with a notification for htmx callers.
func (s *Server) goHome(w http.ResponseWriter, r *http.Request, notice string) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().TriggerSuccessNotification(notice).Redirect("/").Write(w)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := forgotPasswordForm{Email: strings.ToLower(formValue(r, "email"))}
	values := map[string]string{"email": form.Email}
	if errs := s.validator.Struct(form); errs != nil {
		data := s.newDialogData(state.DialogSendPasswordEmail)
		data.Values, data.Errors = values, errs
		s.writeDialog(w, r, st, data)
		return
	}

	ok, text, err := s.public(st).ForgotPassword(r.Context(), form.Email)
	switch {
	case err != nil:
		s.authLogger(r).ErrorContext(r.Context(), "Forgot password failed", applog.FieldError, err.Error())
		s.dialogFailure(w, r, st, state.DialogSendPasswordEmail, values, upstreamMessage(err))
	case !ok:
		s.dialogFailure(w, r, st, state.DialogSendPasswordEmail, values, text)
	default:
		data := s.newDialogData(state.DialogSendPasswordEmailSuccess)
		data.Email, data.Message, data.Success = form.Email, text, true
		s.writeDialog(w, r, st, data)
	}
}

// handleCheckEmail validates the e-mail field and asks the backend whether
// the address is still free.
func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	email := strings.ToLower(formValue(r, "email"))
	s.renderPartial(w, r, "field_check", s.checkField(r, "email", email, "required,email_pl", s.public(st).CheckEmail))
}

func (s *Server) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	username := formValue(r, "username")
	s.renderPartial(w, r, "field_check", s.checkField(r, "username", username, "required,username", s.public(st).CheckUsername))
}

// checkField runs the format rules of a field and, when they pass, the
// backend availability check.
func (s *Server) checkField(r *http.Request, field, value, tags string, available func(ctx context.Context, v string) (bool, error)) checkView {
	v := checkView{Field: field}
	if msg := s.validator.Var(value, tags); msg != "" {
		v.Message = msg
		return v
	}
	free, err := available(r.Context(), value)
	if err != nil {
		s.authLogger(r).WarnContext(r.Context(), "Availability check failed",
			applog.FieldOperation, "check-"+field,
			applog.FieldError, err.Error())
		v.Message = upstreamMessage(err)
		return v
	}
	if !free {
		v.Message = validation.Message(tagOf(tags))
		return v
	}
	v.OK = true
	return v
}

// tagOf returns the last rule of a tag list, the one naming the format.
func tagOf(tags string) string {
	i := strings.LastIndexByte(tags, ',')
	return tags[i+1:]
}

func (s *Server) handleCheckPassword(w http.ResponseWriter, r *http.Request) {
	check := validation.CheckPassword(r.PostFormValue("password"), r.PostFormValue("conPassword"))
	s.renderPartial(w, r, "password_checklist", check)
}

// handleConfirm activates an account from the link of the activation mail.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	ok, text, err := s.public(st).AuthorizeRegistration(r.Context(), r.PathValue("pin"))
	if err != nil {
		s.authLogger(r).ErrorContext(r.Context(), "Account confirmation failed", applog.FieldError, err.Error())
	}
	data := s.newDialogData(state.DialogAccountConfirmation)
	data.Message, data.Success = text, ok
	st.Dialogs.Open(state.DialogAccountConfirmation)
	s.renderHome(w, r, &data)
}

// handleResetPasswordPage checks a reset link and shows the new password
// form, or the reason the link is unusable.
func (s *Server) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	pin, email := r.PathValue("pin"), r.PathValue("email")
	ok, text, err := s.public(st).VerifyReset(r.Context(), pin, email)

	var data dialogData
	switch {
	case err != nil:
		s.authLogger(r).ErrorContext(r.Context(), "Reset link check failed", applog.FieldError, err.Error())
		data = s.newDialogData(state.DialogResetPasswordError)
		data.Message = upstreamMessage(err)
	case !ok:
		data = s.newDialogData(state.DialogResetPasswordError)
		data.Message = text
	default:
		data = s.newDialogData(state.DialogResetPassword)
		data.Pin, data.Email = pin, email
	}
	st.Dialogs.Open(data.Name)
	s.renderHome(w, r, &data)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	pin, email := r.PathValue("pin"), r.PathValue("email")
	form := resetPasswordForm{Password: r.PostFormValue("password"), ConPassword: r.PostFormValue("conPassword")}

	data := s.newDialogData(state.DialogResetPassword)
	data.Pin, data.Email = pin, email
	if errs := s.validator.Struct(form); errs != nil {
		data.Errors = errs
		s.writeDialog(w, r, st, data)
		return
	}

	ok, text, err := s.public(st).ResetPassword(r.Context(), pin, email, form.Password, form.ConPassword)
	switch {
	case err != nil:
		s.authLogger(r).ErrorContext(r.Context(), "Password reset failed", applog.FieldError, err.Error())
		banner := st.Fail(upstreamMessage(err))
		data.Banner = &banner
		s.writeDialog(w, r, st, data)
	case !ok:
		data = s.newDialogData(state.DialogResetPasswordError)
		data.Message = text
		s.writeDialog(w, r, st, data)
	default:
		data = s.newDialogData(state.DialogResetPasswordSuccess)
		data.Message, data.Success = text, true
		s.writeDialog(w, r, st, data)
	}
}

// handleDeleteAccount removes the account after the password check and
// signs the visitor out.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if !st.Session.Authenticated() {
		s.loginRequired(w, r, st)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := deleteAccountForm{Password: r.PostFormValue("password")}
	if errs := s.validator.Struct(form); errs != nil {
		data := s.newDialogData(state.DialogDeleteAccount)
		data.Errors = errs
		s.writeDialog(w, r, st, data)
		return
	}

	username := st.Session.Username()
	deleted, err := s.protected(st).DeleteAccount(r.Context(), form.Password)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		s.loginRequired(w, r, st)
	case err != nil:
		s.authLogger(r).ErrorContext(r.Context(), "Account deletion failed", applog.FieldError, err.Error())
		s.dialogFailure(w, r, st, state.DialogDeleteAccount, map[string]string{}, upstreamMessage(err))
	case !deleted:
		data := s.newDialogData(state.DialogDeleteAccount)
		data.Errors = validation.FieldErrors{"password": wrongPasswordText}
		s.writeDialog(w, r, st, data)
	default:
		s.authLogger(r).InfoContext(r.Context(), "Account deleted", applog.FieldUsername, username)
		if err := st.SignOut(); err != nil {
			s.authLogger(r).ErrorContext(r.Context(), "Sign out failed", applog.FieldError, err.Error())
		}
		s.goHome(w, r, accountDeletedText)
	}
}
