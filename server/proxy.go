package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-edge-gateway/internal/config"
	gatewayerrors "github.com/jrsteele09/go-edge-gateway/internal/errors"
)

// Hop-by-hop headers are connection-scoped and must not be forwarded.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// ProxyHandler forwards the request to the descriptor's backend. Identity
// and tracing headers are injected after the client's own copies are
// dropped, so a caller can never spoof them past the gateway.
func (s *Server) ProxyHandler(route config.RouteDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetPath := r.URL.Path
		if route.StripPrefix {
			targetPath = strings.TrimPrefix(targetPath, route.PathPrefix)
			if !strings.HasPrefix(targetPath, "/") {
				targetPath = "/" + targetPath
			}
		}

		targetURL := strings.TrimSuffix(route.TargetBaseURL, "/") + targetPath
		if r.URL.RawQuery != "" {
			targetURL += "?" + r.URL.RawQuery
		}

		timeout := route.Timeout
		if timeout == 0 {
			timeout = s.config.GetProxyTimeout()
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, r.Method, targetURL, r.Body)
		if err != nil {
			s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindInternal, "failed to build upstream request", err))
			return
		}
		req.ContentLength = r.ContentLength

		copyProxyHeaders(req.Header, r.Header)
		s.injectIdentityHeaders(req, r)

		resp, err := s.proxyClient.Do(req)
		if err != nil {
			log.Error().
				Err(err).
				Str("service", route.ServiceName).
				Str("target", targetURL).
				Str("request_id", RequestIDFromContext(r.Context())).
				Msg("backend request failed")
			s.RespondError(w, r, gatewayerrors.ExternalService(route.ServiceName+" service is unavailable").
				WithDetails(map[string]any{"service": route.ServiceName}))
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			if _, hop := hopByHopHeaders[http.CanonicalHeaderKey(key)]; hop {
				continue
			}
			for _, v := range values {
				w.Header().Add(key, v)
			}
		}
		w.Header().Set(HeaderRequestID, RequestIDFromContext(r.Context()))
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}

func copyProxyHeaders(dst, src http.Header) {
	for key, values := range src {
		if _, hop := hopByHopHeaders[http.CanonicalHeaderKey(key)]; hop {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// injectIdentityHeaders replaces any client-supplied identity headers with
// the gateway's verified values.
func (s *Server) injectIdentityHeaders(req *http.Request, r *http.Request) {
	for _, header := range []string{HeaderUserID, HeaderUserEmail, HeaderUserRole, HeaderTenantID} {
		req.Header.Del(header)
	}

	req.Header.Set(HeaderRequestID, RequestIDFromContext(r.Context()))
	req.Header.Set("X-Forwarded-For", clientIP(r))
	req.Header.Set("X-Forwarded-Host", r.Host)

	if principal, ok := PrincipalFromContext(r.Context()); ok {
		req.Header.Set(HeaderUserID, principal.UserID)
		req.Header.Set(HeaderUserEmail, principal.Email)
		req.Header.Set(HeaderUserRole, principal.Role)
	}
	if tenant, ok := TenantFromContext(r.Context()); ok {
		req.Header.Set(HeaderTenantID, tenant.ID)
	} else if principal, ok := PrincipalFromContext(r.Context()); ok && principal.TenantID != "" {
		req.Header.Set(HeaderTenantID, principal.TenantID)
	}
}
