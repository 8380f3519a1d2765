package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/auth"
	"github.com/HarveyThePooka404/jokes/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler handles sign-up, sign-in, sign-out and the GitHub OAuth flow.
// github is nil when GitHub sign-in is not configured.
type AuthHandler struct {
	users    *service.UserService
	sessions *auth.Sessions
	github   *auth.GitHubProvider
	logger   *slog.Logger
}

func NewAuthHandler(
	users *service.UserService,
	sessions *auth.Sessions,
	github *auth.GitHubProvider,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		github:   github,
		logger:   logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister: POST /auth/register. Creates the account and signs it in.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.sessions.SetCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res.User)
}

// HandleLogin: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.sessions.SetCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleLogout: POST /auth/logout. Revokes the token server side as well as
// clearing the cookie, so a copied token stops working too.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Revoke(r); err != nil {
		h.logger.Error("revoking session failed", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}
	h.sessions.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe: GET /api/me. Behind RequireAuth.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("valid authentication required"))
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGitHubLogin: GET /auth/github/login. Stores a random state in a
// short-lived cookie and redirects to GitHub.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, h.logger, apperror.NotFoundf("GitHub sign-in is not configured"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback: GET /auth/github/callback?code=&state=
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, h.logger, apperror.NotFoundf("GitHub sign-in is not configured"))
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeError(w, h.logger, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/jokes?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	res, err := h.users.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.sessions.SetCookie(w, res.Token)
	http.Redirect(w, r, "/jokes", http.StatusSeeOther)
}
