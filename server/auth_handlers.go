package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-edge-gateway/auth"
	gatewayerrors "github.com/jrsteele09/go-edge-gateway/internal/errors"
)

// credentialsResponse is the payload returned by register, login, and
// refresh. The refresh token travels only in an HTTP-only cookie and is
// never echoed in the body.
type credentialsResponse struct {
	User        any    `json:"user"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	SessionID   string `json:"sessionId"`
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return gatewayerrors.Wrap(gatewayerrors.KindValidation, "invalid request body", err)
	}
	return nil
}

// setAuthCookies writes the refresh token and session id as HTTP-only
// cookies scoped to the auth routes. Only the refresh flow needs them, so
// the rest of the site never sends them.
func (s *Server) setAuthCookies(w http.ResponseWriter, creds *auth.Credentials) {
	secure := s.env == "production"
	http.SetCookie(w, &http.Cookie{
		Name:     CookieRefreshToken,
		Value:    creds.Pair.RefreshToken,
		Path:     "/api/auth",
		MaxAge:   int(creds.Pair.RefreshExpiresIn),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CookieSessionID,
		Value:    creds.SessionID,
		Path:     "/api/auth",
		MaxAge:   int(creds.Pair.RefreshExpiresIn),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{CookieRefreshToken, CookieSessionID} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/api/auth",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}

// RegisterHandler creates a user under the resolved tenant and starts a
// session. The tenant comes from the resolution middleware, not the body.
func (s *Server) RegisterHandler() http.HandlerFunc {
	type registerRequest struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			s.RespondError(w, r, err)
			return
		}

		tenant, ok := TenantFromContext(r.Context())
		if !ok {
			s.RespondError(w, r, gatewayerrors.Validation("a tenant could not be determined for this request"))
			return
		}

		creds, err := s.auth.Register(r.Context(), auth.RegisterParams{
			TenantID:  tenant.ID,
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		s.setAuthCookies(w, creds)
		s.RespondData(w, http.StatusCreated, credentialsResponse{
			User:        creds.User,
			AccessToken: creds.Pair.AccessToken,
			ExpiresIn:   creds.Pair.AccessExpiresIn,
			SessionID:   creds.SessionID,
		})
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	type loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			s.RespondError(w, r, err)
			return
		}

		creds, err := s.auth.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		s.setAuthCookies(w, creds)
		s.RespondData(w, http.StatusOK, credentialsResponse{
			User:        creds.User,
			AccessToken: creds.Pair.AccessToken,
			ExpiresIn:   creds.Pair.AccessExpiresIn,
			SessionID:   creds.SessionID,
		})
	}
}

// RefreshHandler rotates a credential pair. The refresh token is read from
// the cookie first so browser clients never handle it; API clients may send
// it in the body instead.
func (s *Server) RefreshHandler() http.HandlerFunc {
	type refreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := ""
		if cookie, err := r.Cookie(CookieRefreshToken); err == nil {
			refreshToken = cookie.Value
		}
		if refreshToken == "" {
			var req refreshRequest
			if err := decodeJSON(r, &req); err == nil {
				refreshToken = req.RefreshToken
			}
		}
		if refreshToken == "" {
			s.RespondError(w, r, gatewayerrors.Authentication("missing refresh token"))
			return
		}

		creds, err := s.auth.Refresh(r.Context(), refreshToken, clientIP(r), r.UserAgent())
		if err != nil {
			s.clearAuthCookies(w)
			s.RespondError(w, r, err)
			return
		}

		s.setAuthCookies(w, creds)
		s.RespondData(w, http.StatusOK, credentialsResponse{
			User:        creds.User,
			AccessToken: creds.Pair.AccessToken,
			ExpiresIn:   creds.Pair.AccessExpiresIn,
			SessionID:   creds.SessionID,
		})
	}
}

// LogoutHandler revokes the current session and clears the auth cookies.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			s.RespondError(w, r, gatewayerrors.Authentication("missing credentials"))
			return
		}

		refreshToken := ""
		if cookie, err := r.Cookie(CookieRefreshToken); err == nil {
			refreshToken = cookie.Value
		}

		if err := s.auth.Logout(r.Context(), accessTokenFromContext(r.Context()), refreshToken, principal.UserID); err != nil {
			s.RespondError(w, r, err)
			return
		}

		s.clearAuthCookies(w)
		s.RespondMessage(w, http.StatusOK, "logged out")
	}
}

// LogoutAllHandler revokes every active session for the caller.
func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			s.RespondError(w, r, gatewayerrors.Authentication("missing credentials"))
			return
		}

		count, err := s.auth.LogoutAll(r.Context(), principal.UserID)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		s.clearAuthCookies(w)
		s.RespondData(w, http.StatusOK, map[string]any{"revokedSessions": count})
	}
}

// MeHandler returns the authenticated user's profile.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			s.RespondError(w, r, gatewayerrors.Authentication("missing credentials"))
			return
		}

		user, err := s.users.GetByID(r.Context(), principal.UserID)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		s.RespondData(w, http.StatusOK, user)
	}
}

// SessionsHandler reports the caller's session activity: the number of
// active sessions and the remaining lifetime of the current one.
func (s *Server) SessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			s.RespondError(w, r, gatewayerrors.Authentication("missing credentials"))
			return
		}

		count, err := s.auth.ActiveSessions(r.Context(), principal.UserID)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		accessToken := accessTokenFromContext(r.Context())
		record, err := s.sessions.GetByAccess(r.Context(), accessToken)
		if err != nil {
			s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindInternal, "session lookup failed", err))
			return
		}
		ttl, err := s.sessions.TTLRemaining(r.Context(), accessToken)
		if err != nil {
			s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindInternal, "session lookup failed", err))
			return
		}

		s.RespondData(w, http.StatusOK, map[string]any{
			"activeSessions":   count,
			"ttlSeconds":       ttl,
			"currentSessionId": record.SessionID,
			"lastActivity":     record.LastActivity,
		})
	}
}

// UserSessionsHandler reports session activity for a specific user. Guarded
// by the resource-ownership middleware.
func (s *Server) UserSessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("userID")
		if userID == "" {
			s.RespondError(w, r, gatewayerrors.Validation("a user id is required"))
			return
		}

		count, err := s.auth.ActiveSessions(r.Context(), userID)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		s.RespondData(w, http.StatusOK, map[string]any{"userId": userID, "activeSessions": count})
	}
}

// UserLogoutAllHandler force-revokes every session for a specific user.
// Guarded by the resource-ownership middleware.
func (s *Server) UserLogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("userID")
		if userID == "" {
			s.RespondError(w, r, gatewayerrors.Validation("a user id is required"))
			return
		}

		count, err := s.auth.LogoutAll(r.Context(), userID)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		s.RespondData(w, http.StatusOK, map[string]any{"userId": userID, "revokedSessions": count})
	}
}
