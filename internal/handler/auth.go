package handler

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"monch/internal/config"
	"monch/internal/httputil"
	"monch/internal/model"
	"monch/internal/transport/http/middleware"
)

// AuthHandler groups session endpoints: login, refresh, logout and whoami.
type AuthHandler struct {
	userService UserService
	authService AuthService
	config      *config.Config
	logger      *zap.Logger
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(userService UserService, authService AuthService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		config:      cfg,
		logger:      logger,
	}
}

// Login handles user login
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, h.logger, "login", err)
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, "login", err)
		return
	}

	tokenPair, err := h.authService.GenerateTokenPair(r.Context(), user.ID, r.UserAgent(), httputil.ClientIP(r))
	if err != nil {
		writeError(w, h.logger, "login", err)
		return
	}

	view, err := h.userService.Project(r.Context(), user, &user.ID)
	if err != nil {
		writeError(w, h.logger, "login", err)
		return
	}

	h.setAuthCookies(w, tokenPair)
	httputil.WriteJSON(w, http.StatusOK, model.LoginResponse{
		User:         view,
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	})
}

// Refresh rotates the refresh token and issues a new access token.
// POST /token/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := refreshTokenFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "refresh", err)
		return
	}

	tokenPair, _, err := h.authService.RefreshTokens(r.Context(), refreshToken, r.UserAgent(), httputil.ClientIP(r))
	if err != nil {
		h.clearAuthCookies(w)
		writeError(w, h.logger, "refresh", err)
		return
	}

	h.setAuthCookies(w, tokenPair)
	httputil.WriteJSON(w, http.StatusOK, tokenPair)
}

// Logout revokes the presented credentials and clears the cookies.
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := refreshTokenFromRequest(r)
	if err != nil && !errors.Is(err, model.ErrRefreshTokenMissing) {
		writeError(w, h.logger, "logout", err)
		return
	}

	claims, _ := middleware.GetClaimsFromContext(r.Context())
	if err := h.authService.Logout(r.Context(), refreshToken, claims); err != nil {
		writeError(w, h.logger, "logout", err)
		return
	}

	h.clearAuthCookies(w)
	httputil.WriteDetail(w, http.StatusOK, "Successfully logged out")
}

// LogoutAll revokes every refresh token of the user.
// POST /logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	if err := h.authService.RevokeAllUserTokens(r.Context(), userID); err != nil {
		writeError(w, h.logger, "logout all", err)
		return
	}
	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok {
		if err := h.authService.Logout(r.Context(), "", claims); err != nil {
			writeError(w, h.logger, "logout all", err)
			return
		}
	}

	h.clearAuthCookies(w)
	httputil.WriteDetail(w, http.StatusOK, "Logged out from all devices")
}

// WhoAmI returns the currently authenticated user
// GET /whoami
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	me, err := h.userService.WhoAmI(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, "whoami", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, me)
}

// refreshTokenFromRequest prefers the cookie and falls back to the JSON body.
func refreshTokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(model.RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	var req model.RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.RefreshToken == "" {
		return "", model.ErrRefreshTokenMissing
	}
	return req.RefreshToken, nil
}

func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, pair *model.TokenPair) {
	http.SetCookie(w, h.cookie(model.AccessTokenCookie, pair.AccessToken, h.config.AccessTokenMaxAge))
	http.SetCookie(w, h.cookie(model.RefreshTokenCookie, pair.RefreshToken, h.config.RefreshTokenMaxAge))
}

func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{model.AccessTokenCookie, model.RefreshTokenCookie} {
		c := h.cookie(name, "", -1)
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (h *AuthHandler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
