package devapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"portfel/internal/amqp"
	applog "portfel/internal/log"
	"portfel/internal/storage"
)

// Answers shown to the user by the frontend.
const (
	activatedText       = "Autoryzacja przebiegła pomyślnie"
	activationGoneText  = "Link aktywacyjny wygasł"
	unknownEmailText    = "Adres email nie istnieje"
	notActivatedText    = "Nie można zresetować hasła. Proszę najpierw autoryzować swój profil"
	resetLinkSentText   = "Link aktywacyjny został wysłany na adres: "
	mailFailedText      = "Wystąpił błąd podczas wysyłania e-maila"
	badResetDataText    = "Błędne dane, prosimy wygenerować link ponownie"
	resetExpiredText    = "Data ważności linku minęła, prosimy wygenerować link ponownie"
	verifyExpiredText   = "Data ważności linku minęła, prosimy wygenerować go ponownie"
	wrongCredentialText = "Błędny login lub hasło"
	unknownLoginText    = "Błędny login"
	notAuthorizedText   = "Profil nie został zautoryzowany"
)

type registration struct {
	FirstName   string `json:"firstName" form:"firstName" validate:"required,firstname"`
	Email       string `json:"email" form:"email" validate:"required,email_pl"`
	Username    string `json:"username" form:"username" validate:"required,username"`
	Password    string `json:"password" form:"password" validate:"required,password_len,password_sign"`
	ConPassword string `json:"conPassword" form:"conPassword" validate:"required,eqfield=Password"`
}

type newPassword struct {
	Password    string `json:"password" form:"password" validate:"required,password_len,password_sign"`
	ConPassword string `json:"conPassword" form:"conPassword" validate:"required,eqfield=Password"`
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.answerTaken(w, r, s.store.EmailTaken, strings.ToLower(body.Email))
}

func (s *Server) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.answerTaken(w, r, s.store.UsernameTaken, body.Username)
}

func (s *Server) answerTaken(w http.ResponseWriter, r *http.Request, taken func(context.Context, string) (bool, error), value string) {
	used, err := taken(r.Context(), value)
	switch {
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Availability check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
	case used:
		w.WriteHeader(http.StatusConflict)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reg registration
	if err := decodeJSON(w, r, &reg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	reg.Email = strings.ToLower(reg.Email)
	if errs := s.validator.Struct(reg); errs != nil {
		s.logger.InfoContext(ctx, "Registration rejected",
			applog.FieldOperation, applog.OpValidation,
			applog.FieldError, errs)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if reg.Username == AnonymousUser {
		w.WriteHeader(http.StatusConflict)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		s.logger.ErrorContext(ctx, "Password hashing failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	user, err := s.store.CreateUser(ctx, reg.Username, reg.Email, reg.FirstName, string(hash))
	if errors.Is(err, storage.ErrConflict) {
		w.WriteHeader(http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Registration failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	pin, err := s.store.IssuePin(ctx, user.ID, storage.PurposeActivation, s.pinTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "Issuing activation pin failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	n := amqp.NewNotification(amqp.KindActivation, user.Email)
	n.FirstName, n.Username, n.Pin = user.FirstName, user.Username, pin
	n.Link = s.link("confirm", url.PathEscape(pin))
	if err := s.notify(ctx, n); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.logger.InfoContext(ctx, "User registered",
		applog.FieldOperation, applog.OpRegister,
		applog.FieldUsername, user.Username)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pin, err := s.store.LookupPin(ctx, storage.PurposeActivation, r.PathValue("pin"))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && pin.Expired(s.now())) {
		writeText(w, http.StatusGone, activationGoneText)
		return
	}
	if err == nil {
		err = s.store.Activate(ctx, pin)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Activation failed", applog.FieldError, err)
		writeText(w, http.StatusInternalServerError, "Wystąpił błąd. Spróbuj ponownie później")
		return
	}
	s.logger.InfoContext(ctx, "User activated", applog.FieldOperation, applog.OpConfirm, "user_id", pin.UserID)
	writeText(w, http.StatusOK, activatedText)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	email := strings.ToLower(body.Email)

	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		writeText(w, http.StatusNotFound, unknownEmailText)
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "User lookup failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !user.Enabled {
		writeText(w, http.StatusConflict, notActivatedText)
		return
	}

	pin, err := s.store.IssuePin(ctx, user.ID, storage.PurposeReset, s.pinTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "Issuing reset pin failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	n := amqp.NewNotification(amqp.KindPasswordReset, user.Email)
	n.FirstName, n.Username, n.Pin = user.FirstName, user.Username, pin
	n.Link = s.link("reset-password", url.PathEscape(pin), url.PathEscape(user.Email))
	if err := s.notify(ctx, n); err != nil {
		writeText(w, http.StatusInternalServerError, mailFailedText)
		return
	}
	writeText(w, http.StatusOK, resetLinkSentText+user.Email)
}

// resetPin resolves a reset link. On failure it has already answered and
// returns false.
func (s *Server) resetPin(w http.ResponseWriter, r *http.Request, expiredText string) (storage.Pincode, bool) {
	ctx := r.Context()
	pin, err := s.store.LookupPin(ctx, storage.PurposeReset, r.PathValue("pin"))
	if err == nil {
		var user storage.User
		user, err = s.store.UserByID(ctx, pin.UserID)
		if err == nil && !strings.EqualFold(user.Email, r.PathValue("email")) {
			err = storage.ErrNotFound
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		writeText(w, http.StatusNotFound, badResetDataText)
		return pin, false
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Reset link lookup failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return pin, false
	}
	if pin.Expired(s.now()) {
		writeText(w, http.StatusGone, expiredText)
		return pin, false
	}
	return pin, true
}

func (s *Server) handleVerifyReset(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.resetPin(w, r, verifyExpiredText); ok {
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body newPassword
	if err := decodeJSON(w, r, &body); err != nil || s.validator.Struct(body) != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	pin, ok := s.resetPin(w, r, resetExpiredText)
	if !ok {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), s.cost)
	if err == nil {
		err = s.store.ResetPassword(ctx, pin, string(hash))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Password reset failed", applog.FieldError, err)
		writeText(w, http.StatusConflict, "Wystąpił błąd w zapisie danych, prosimy spróbować ponownie później")
		return
	}
	s.logger.InfoContext(ctx, "Password reset", applog.FieldOperation, applog.OpReset, "user_id", pin.UserID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username, password := r.PostFormValue("username"), r.PostFormValue("password")

	user, err := s.store.UserByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": unknownLoginText})
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "User lookup failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": wrongCredentialText})
		return
	}
	if !user.Enabled {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": notAuthorizedText})
		return
	}

	session, err := s.store.CreateSession(ctx, user.ID, s.sessionTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "Session creation failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.InfoContext(ctx, "User logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUsername, user.Username)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		if err := s.store.DeleteSession(r.Context(), c.Value); err != nil {
			s.logger.ErrorContext(r.Context(), "Session removal failed", applog.FieldError, err)
		}
	}
	clearSession(w)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(r)
	if !ok {
		writeText(w, http.StatusOK, AnonymousUser)
		return
	}
	writeText(w, http.StatusOK, user.Username)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, user storage.User) {
	ctx := r.Context()
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "Account deletion failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	n := amqp.NewNotification(amqp.KindAccountDeleted, user.Email)
	n.FirstName, n.Username = user.FirstName, user.Username
	if err := s.notify(ctx, n); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.logger.InfoContext(ctx, "Account deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldUsername, user.Username)
	clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
