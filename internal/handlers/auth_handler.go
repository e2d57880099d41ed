package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/njugunanduati/medicine-dose-tracker/internal/logging"
	"github.com/njugunanduati/medicine-dose-tracker/internal/models"
	"github.com/njugunanduati/medicine-dose-tracker/internal/services"
	"github.com/njugunanduati/medicine-dose-tracker/internal/web"
)

const (
	flashInvalidLogin   = "Invalid username or password"
	flashRegistered     = "Congratulations, you are now a registered user!"
	flashResetRequested = "Check your email for the instructions to reset your password"
	flashPasswordReset  = "Your password has been reset."
)

type SessionManager interface {
	Login(ctx context.Context, w http.ResponseWriter, user *models.User, remember bool) (string, error)
	Logout(w http.ResponseWriter, r *http.Request) error
}

type AuthHandler struct {
	*BaseHandler
	auth     *services.AuthService
	sessions SessionManager
}

func NewAuthHandler(base *BaseHandler, auth *services.AuthService, sessions SessionManager) *AuthHandler {
	return &AuthHandler{BaseHandler: base, auth: auth, sessions: sessions}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, web.PageLogin, web.PageData{
		Title: "Sign In",
		Next:  r.URL.Query().Get("next"),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	next := r.URL.Query().Get("next")
	form := models.LoginForm{
		Username:   r.PostForm.Get("username"),
		Password:   r.PostForm.Get("password"),
		RememberMe: checked(r.PostForm.Get("remember_me")),
	}

	user, err := h.auth.Authenticate(r.Context(), form)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			web.SetFlash(w, flashInvalidLogin)
			target := "/login"
			if next != "" {
				target += "?next=" + url.QueryEscape(next)
			}
			redirect(w, r, target)
			return
		}
		h.formError(w, r, web.PageLogin, web.PageData{
			Title: "Sign In",
			Next:  next,
			Form:  map[string]string{"username": form.Username, "remember_me": r.PostForm.Get("remember_me")},
		}, err)
		return
	}

	if _, err := h.sessions.Login(r.Context(), w, user, form.RememberMe); err != nil {
		h.serverError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("user logged in", "user_id", user.ID, "remember", form.RememberMe)
	redirect(w, r, web.SafeNext(next, landingPath))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		logging.FromContext(r.Context()).Warn("logout failed", "error", err)
	}
	redirect(w, r, "/login")
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, web.PageRegister, web.PageData{Title: "Register"})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	form := models.RegistrationForm{
		FirstName: r.PostForm.Get("first_name"),
		LastName:  r.PostForm.Get("last_name"),
		Username:  r.PostForm.Get("username"),
		Email:     r.PostForm.Get("email"),
		Password:  r.PostForm.Get("password"),
		Password2: r.PostForm.Get("password2"),
	}

	if _, err := h.auth.Register(r.Context(), form); err != nil {
		h.formError(w, r, web.PageRegister, web.PageData{
			Title: "Register",
			Form: map[string]string{
				"first_name": form.FirstName,
				"last_name":  form.LastName,
				"username":   form.Username,
				"email":      form.Email,
			},
		}, err)
		return
	}

	web.SetFlash(w, flashRegistered)
	redirect(w, r, "/login")
}

func (h *AuthHandler) ResetPasswordRequestPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, web.PageResetPasswordRequest, web.PageData{Title: "Reset Password"})
}

func (h *AuthHandler) ResetPasswordRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	form := models.ResetPasswordRequestForm{Email: r.PostForm.Get("email")}

	if err := h.auth.RequestPasswordReset(r.Context(), form); err != nil {
		h.formError(w, r, web.PageResetPasswordRequest, web.PageData{
			Title: "Reset Password",
			Form:  map[string]string{"email": form.Email},
		}, err)
		return
	}

	web.SetFlash(w, flashResetRequested)
	redirect(w, r, "/login")
}

func (h *AuthHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, err := h.auth.UserForResetToken(r.Context(), token); err != nil {
		h.rejectToken(w, r, err)
		return
	}
	h.page(w, r, http.StatusOK, web.PageResetPassword, web.PageData{Title: "Reset Password", Token: token})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	form := models.ResetPasswordForm{
		Password:  r.PostForm.Get("password"),
		Password2: r.PostForm.Get("password2"),
	}

	if err := h.auth.ResetPassword(r.Context(), token, form); err != nil {
		if errors.Is(err, services.ErrTokenInvalidOrExpired) {
			h.rejectToken(w, r, err)
			return
		}
		h.formError(w, r, web.PageResetPassword, web.PageData{Title: "Reset Password", Token: token}, err)
		return
	}

	web.SetFlash(w, flashPasswordReset)
	redirect(w, r, "/login")
}

// rejectToken sends bad reset links to the landing page without saying why.
func (h *AuthHandler) rejectToken(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, services.ErrTokenInvalidOrExpired) {
		h.serverError(w, r, err)
		return
	}
	redirect(w, r, landingPath)
}
