package server

import (
	"context"
	"net/http"
)

// ResolveTenant resolves the request's tenant through the configured
// strategy chain and attaches it to the context. The principal's tenant
// claim, when present, wins over every request-derived hint.
func (s *Server) ResolveTenant() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principalTenantID := ""
			if principal, ok := PrincipalFromContext(r.Context()); ok {
				principalTenantID = principal.TenantID
			}

			tenant, err := s.resolver.Resolve(r.Context(), r, principalTenantID)
			if err != nil {
				s.RespondError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyTenant, tenant)
			next(w, r.WithContext(ctx))
		}
	}
}

// ResolveTenantOptional attaches a tenant when one can be resolved and
// passes the request through without one otherwise. A request naming no
// tenant proceeds anonymously, but a tenant that resolves to a suspended,
// cancelled, or trial-lapsed state is rejected here, never dropped.
func (s *Server) ResolveTenantOptional() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principalTenantID := ""
			if principal, ok := PrincipalFromContext(r.Context()); ok {
				principalTenantID = principal.TenantID
			}

			tenant, err := s.resolver.ResolveOptional(r.Context(), r, principalTenantID)
			if err != nil {
				s.RespondError(w, r, err)
				return
			}
			if tenant != nil {
				ctx := context.WithValue(r.Context(), ContextKeyTenant, tenant)
				r = r.WithContext(ctx)
			}
			next(w, r)
		}
	}
}
