package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/galvanai/portal/internal/auth"
	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/flash"
	"github.com/galvanai/portal/internal/form"
	"github.com/galvanai/portal/internal/session"
)

const (
	msgRegistered = "Registration complete. Please log in."
	msgOTPFailed  = "OTP verification failed."
)

type authBackend interface {
	Register(ctx context.Context, in backend.RegisterInput) error
	VerifyOTP(ctx context.Context, email, otp string) (backend.Tokens, error)
	Login(ctx context.Context, email, password string) (backend.LoginResult, error)
}

type loginPageData struct {
	Form form.Login
}

type registerPageData struct {
	Form form.Registration
}

type verifyPageData struct {
	Email string
}

// AuthHandler serves login, registration, OTP verification and logout.
type AuthHandler struct {
	BaseHandler
	backend   authBackend
	sessions  *session.Manager
	maxUpload int64
}

func NewAuthHandler(base BaseHandler, b authBackend, sessions *session.Manager, maxUpload int64) *AuthHandler {
	return &AuthHandler{BaseHandler: base, backend: b, sessions: sessions, maxUpload: maxUpload}
}

// LoginPage renders the login form.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	p := page{Title: "Login", Data: loginPageData{}}
	if r.URL.Query().Get("registered") == "true" {
		n := flash.Info(msgRegistered)
		p.Notice = &n
	}
	h.render(w, r, http.StatusOK, "login.html", p)
}

// Login exchanges credentials for tokens and sends the visitor to the page
// for their role.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	f := form.ParseLogin(r)
	fail := func(status int, msg string) {
		f.Password = ""
		h.render(w, r, status, "login.html", page{Title: "Login", Notice: errorNotice(msg), Data: loginPageData{Form: f}})
	}
	if msg := f.Validate(); msg != "" {
		fail(http.StatusUnprocessableEntity, msg)
		return
	}

	res, err := h.backend.Login(r.Context(), f.Email, f.Password)
	if err != nil {
		slog.Info("auth: login failed", "email", f.Email, "err", err)
		fail(failureStatus(err), backend.MessageOf(err))
		return
	}

	email := res.Email
	if email == "" {
		email = f.Email
	}
	if err := h.sessions.Set(w, r, res.Tokens, res.Role, email); err != nil {
		h.serverError(w, r, err)
		return
	}
	slog.Debug("auth: state", "to", auth.Authenticated, "role", res.Role)
	http.Redirect(w, r, auth.Destination(res.Role), http.StatusSeeOther)
}

// RegisterPage renders the registration form.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", page{Title: "Register", Data: registerPageData{}})
}

// Register validates the form locally, forwards it to the backend and moves
// the visitor on to OTP entry. Nothing is sent while the form is invalid.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	tooLarge, err := parseUpload(w, r, h.maxUpload)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	f := form.ParseRegistration(r)
	fail := func(status int, msg string) {
		f.Password = ""
		h.render(w, r, status, "register.html", page{Title: "Register", Notice: errorNotice(msg), Data: registerPageData{Form: f}})
	}
	if tooLarge != "" {
		fail(http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	if msg := f.Validate(); msg != "" {
		fail(http.StatusUnprocessableEntity, msg)
		return
	}
	pic, msg, err := form.ReadPicture(r, "profile_pic")
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if msg != "" {
		fail(http.StatusUnprocessableEntity, msg)
		return
	}

	slog.Debug("auth: state", "to", auth.Registering)
	if err := h.backend.Register(r.Context(), f.Input(pic)); err != nil {
		slog.Info("auth: register failed", "email", f.Email, "err", err)
		fail(failureStatus(err), backend.MessageOr(err, msgGeneric))
		return
	}

	if err := h.sessions.Pending(w, r, f.Email); err != nil {
		h.serverError(w, r, err)
		return
	}
	slog.Debug("auth: state", "to", session.FromContext(r.Context()).State())
	http.Redirect(w, r, "/verify-otp?email="+url.QueryEscape(f.Email), http.StatusSeeOther)
}

// VerifyPage renders the OTP form for the address in the query string, or
// the one waiting in the session.
func (h *AuthHandler) VerifyPage(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		email = session.FromContext(r.Context()).PendingEmail
	}
	h.render(w, r, http.StatusOK, "verify_otp.html", page{Title: "Verify OTP", Data: verifyPageData{Email: email}})
}

// Verify exchanges the OTP for tokens. The backend does not return a role
// here, so the session holds tokens only until the visitor logs in.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	f := form.ParseOTP(r)
	if f.Email == "" {
		f.Email = session.FromContext(r.Context()).PendingEmail
	}
	fail := func(status int, msg string) {
		h.render(w, r, status, "verify_otp.html", page{Title: "Verify OTP", Notice: errorNotice(msg), Data: verifyPageData{Email: f.Email}})
	}
	if msg := f.Validate(); msg != "" {
		fail(http.StatusUnprocessableEntity, msg)
		return
	}

	tokens, err := h.backend.VerifyOTP(r.Context(), f.Email, f.Code)
	if err != nil {
		slog.Info("auth: otp verification failed", "email", f.Email, "err", err)
		fail(failureStatus(err), backend.MessageOr(err, msgOTPFailed))
		return
	}

	if err := h.sessions.Set(w, r, tokens, "", ""); err != nil {
		h.serverError(w, r, err)
		return
	}
	slog.Debug("auth: state", "to", auth.Authenticated, "role", "")
	http.Redirect(w, r, "/login?registered=true", http.StatusSeeOther)
}

// Logout removes the whole session record.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(w, r); err != nil {
		slog.Error("auth: logout failed to delete session", "err", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
