package controllers

import (
	"net/http"
	"time"

	"github.com/alopez/store-backend/api/responses"
	"github.com/alopez/store-backend/api/validators"
	"github.com/alopez/store-backend/internal/auth"
	"github.com/alopez/store-backend/pkg/config"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
	"github.com/alopez/store-backend/pkg/logger"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth/refresh"
)

// RefreshCookie describes how the refresh token cookie is written.
type RefreshCookie struct {
	TTL    time.Duration
	Secure bool
}

func NewRefreshCookie(cfg *config.Config) RefreshCookie {
	return RefreshCookie{
		TTL:    cfg.JWT.RefreshTokenTTL(),
		Secure: !cfg.App.IsDev(),
	}
}

func (c RefreshCookie) write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c RefreshCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func readRefreshCookie(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func AuthLogin(svc auth.Service, cookie RefreshCookie, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.Email = validators.NormalizeEmail(payload.Email)

		pair, err := svc.Login(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cookie.write(w, pair.RefreshToken)
		responses.WriteSuccess(w, auth.TokenResponse{Token: pair.AccessToken})
	}
}

func AuthRefresh(svc auth.Service, cookie RefreshCookie, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := readRefreshCookie(r)
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid refresh token"))
			return
		}
		pair, err := svc.Refresh(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cookie.write(w, pair.RefreshToken)
		responses.WriteSuccess(w, auth.TokenResponse{Token: pair.AccessToken})
	}
}

// AuthLogout revokes the refresh session when the cookie is present. It is idempotent.
func AuthLogout(svc auth.Service, cookie RefreshCookie, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := readRefreshCookie(r); token != "" {
			if err := svc.Logout(r.Context(), token); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		cookie.clear(w)
		responses.WriteNoContent(w)
	}
}

func AuthMe(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Me(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
