package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	gatewayerrors "github.com/jrsteele09/go-edge-gateway/internal/errors"
	"github.com/jrsteele09/go-edge-gateway/server/authflowrepo"
)

// oidcFederation holds the upstream identity provider handles. Built once
// on first use because provider discovery performs a network fetch.
type oidcFederation struct {
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	err          error
}

func (s *Server) federation(r *http.Request) (*oidcFederation, error) {
	issuer := s.config.GetOidcIssuer()
	if issuer == "" {
		return nil, gatewayerrors.NotFound("federated login is not configured")
	}

	s.oidcOnce.Do(func() {
		fed := &oidcFederation{}
		provider, err := oidc.NewProvider(r.Context(), issuer)
		if err != nil {
			fed.err = fmt.Errorf("failed to create OIDC provider: %w", err)
			s.oidc = fed
			return
		}
		fed.provider = provider
		fed.oauth2Config = &oauth2.Config{
			ClientID:     s.config.GetOidcClientID(),
			ClientSecret: s.config.GetOidcClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  s.config.GetBaseURL() + RouteOIDCCallback,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}
		fed.verifier = provider.Verifier(&oidc.Config{
			ClientID: s.config.GetOidcClientID(),
		})
		s.oidc = fed
	})

	if s.oidc.err != nil {
		return nil, gatewayerrors.Wrap(gatewayerrors.KindExternalService, "identity provider is unavailable", s.oidc.err)
	}
	return s.oidc, nil
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateCodeChallenge creates a PKCE code challenge from a verifier
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// OIDCStartHandler begins a federated login for the tenant named in the
// path. The attempt is parked under a random state value and the caller is
// redirected to the identity provider.
func (s *Server) OIDCStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.resolver.Find(r.Context(), r.PathValue("tenant"))
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		fed, err := s.federation(r)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		state := generateRandomString(32)
		nonce := generateRandomString(32)
		codeVerifier := generateRandomString(64)

		if err := s.authState.Put(state, &authflowrepo.FlowState{
			TenantID:     tenant.ID,
			CodeVerifier: codeVerifier,
			Nonce:        nonce,
			ReturnURL:    r.URL.Query().Get("return_url"),
			CreatedAt:    time.Now(),
		}); err != nil {
			s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindInternal, "failed to start federated login", err))
			return
		}

		authURL := fed.oauth2Config.AuthCodeURL(state,
			oidc.Nonce(nonce),
			oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(codeVerifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OIDCCallbackHandler finishes a federated login: it exchanges the code,
// verifies the ID token, and issues local credentials to the matching user.
// Federation authenticates identity only; the user must already exist under
// the tenant the flow was started for.
func (s *Server) OIDCCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.FormValue("error"); errParam != "" {
			s.RespondError(w, r, gatewayerrors.Authentication("identity provider rejected the login: "+errParam))
			return
		}

		state := r.FormValue("state")
		code := r.FormValue("code")
		if state == "" || code == "" {
			s.RespondError(w, r, gatewayerrors.Validation("missing code or state parameter"))
			return
		}

		flowState, err := s.authState.Consume(state)
		if err != nil {
			s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindAuthentication, "login attempt is invalid or has expired", err))
			return
		}

		fed, err := s.federation(r)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		oauth2Token, err := fed.oauth2Config.Exchange(r.Context(), code,
			oauth2.SetAuthURLParam("code_verifier", flowState.CodeVerifier),
		)
		if err != nil {
			s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindExternalService, "token exchange failed", err))
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			s.RespondError(w, r, gatewayerrors.ExternalService("identity provider returned no ID token"))
			return
		}

		idToken, err := fed.verifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindAuthentication, "ID token verification failed", err))
			return
		}

		var claims struct {
			Nonce string `json:"nonce"`
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindInternal, "failed to parse ID token claims", err))
			return
		}
		if claims.Nonce != flowState.Nonce {
			s.RespondError(w, r, gatewayerrors.Authentication("nonce mismatch"))
			return
		}
		if claims.Email == "" {
			s.RespondError(w, r, gatewayerrors.Authentication("identity provider supplied no email"))
			return
		}

		creds, err := s.auth.FederatedLogin(r.Context(), flowState.TenantID, claims.Email, clientIP(r), r.UserAgent())
		if err != nil {
			s.RespondError(w, r, err)
			return
		}

		s.setAuthCookies(w, creds)
		if flowState.ReturnURL != "" {
			http.Redirect(w, r, flowState.ReturnURL, http.StatusFound)
			return
		}
		s.RespondData(w, http.StatusOK, credentialsResponse{
			User:        creds.User,
			AccessToken: creds.Pair.AccessToken,
			ExpiresIn:   creds.Pair.AccessExpiresIn,
			SessionID:   creds.SessionID,
		})
	}
}
