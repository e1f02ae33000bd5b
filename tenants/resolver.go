package tenants

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-edge-gateway/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Resolution strategy names, tried in the configured order. The first
// strategy producing a non-empty candidate wins.
const (
	StrategyToken     = "token"
	StrategyHeader    = "header"
	StrategySubdomain = "subdomain"
	StrategyQuery     = "query"
)

// TenantIDHeader is the explicit tenant selection header.
const TenantIDHeader = "X-Tenant-ID"

// tenantQueryParam selects a tenant via the URL query string.
const tenantQueryParam = "tenant"

// Resolver determines which tenant a request belongs to and validates the
// tenant's lifecycle status. It holds no state beyond its lookup handle.
type Resolver struct {
	repo  Repo
	order []string
}

// NewResolver creates a resolver that tries strategies in the given order.
// An empty order falls back to token → header → subdomain → query.
func NewResolver(repo Repo, strategyOrder []string) *Resolver {
	if len(strategyOrder) == 0 {
		strategyOrder = []string{StrategyToken, StrategyHeader, StrategySubdomain, StrategyQuery}
	}
	return &Resolver{repo: repo, order: strategyOrder}
}

// Resolve finds the tenant for a request. principalTenantID is the tenant id
// from an already-verified credential, or empty when the request carries
// none. Returns a typed error when no candidate resolves, when the tenant is
// suspended or cancelled, or when its trial has lapsed.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request, principalTenantID string) (*Tenant, error) {
	candidate := res.candidate(r, principalTenantID)
	if candidate == "" {
		return nil, errors.Wrap(errors.KindNotFound, "no tenant identified on request", errors.ErrTenantNotFound)
	}

	tenant, err := res.lookup(ctx, candidate)
	if err != nil {
		return nil, err
	}
	return tenant, Validate(tenant)
}

// Find looks up a tenant directly by id or slug and validates its
// lifecycle status. Used where the tenant is named explicitly, such as a
// federated-login path segment, rather than inferred from the request.
func (res *Resolver) Find(ctx context.Context, idOrSlug string) (*Tenant, error) {
	if idOrSlug == "" {
		return nil, errors.Wrap(errors.KindNotFound, "no tenant identified", errors.ErrTenantNotFound)
	}
	tenant, err := res.lookup(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	return tenant, Validate(tenant)
}

// ResolveOptional behaves like Resolve on routes that tolerate tenant-less
// access: a request naming no tenant, or an unknown one, proceeds with nil.
// A tenant that does resolve is still validated, so a suspended or
// cancelled tenant is denied rather than silently treated as absent.
func (res *Resolver) ResolveOptional(ctx context.Context, r *http.Request, principalTenantID string) (*Tenant, error) {
	tenant, err := res.Resolve(ctx, r, principalTenantID)
	if err != nil {
		if errors.Is(err, errors.ErrTenantNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}

// candidate runs the strategy chain and returns the first non-empty tenant
// id or slug.
func (res *Resolver) candidate(r *http.Request, principalTenantID string) string {
	for _, strategy := range res.order {
		var candidate string
		switch strategy {
		case StrategyToken:
			candidate = principalTenantID
		case StrategyHeader:
			candidate = r.Header.Get(TenantIDHeader)
		case StrategySubdomain:
			candidate = subdomainFromHost(r.Host)
		case StrategyQuery:
			candidate = r.URL.Query().Get(tenantQueryParam)
		}
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// lookup fetches the tenant by id, falling back to a slug lookup so that
// subdomain labels resolve without the caller knowing which form it has.
// Only a genuine miss falls through to the slug; a failing store surfaces
// as its own error instead of masquerading as an unknown tenant.
func (res *Resolver) lookup(ctx context.Context, candidate string) (*Tenant, error) {
	tenant, err := res.repo.Get(ctx, candidate)
	if err == nil && tenant != nil {
		return tenant, nil
	}
	if err != nil && !errors.Is(err, errors.ErrTenantNotFound) {
		return nil, errors.Wrap(errors.KindInternal, "tenant lookup failed", err)
	}

	tenant, err = res.repo.GetBySlug(ctx, candidate)
	if err != nil && !errors.Is(err, errors.ErrTenantNotFound) {
		return nil, errors.Wrap(errors.KindInternal, "tenant lookup failed", err)
	}
	if err != nil || tenant == nil {
		return nil, errors.Wrap(errors.KindNotFound, "tenant not found", errors.ErrTenantNotFound)
	}
	return tenant, nil
}

// Validate checks a tenant's lifecycle status. Suspended and cancelled
// tenants are denied; trial tenants are denied once the trial has lapsed.
func Validate(tenant *Tenant) error {
	switch tenant.Status {
	case StatusSuspended, StatusCancelled:
		return errors.Wrap(errors.KindAuthorization, "tenant account is "+string(tenant.Status), errors.ErrTenantAccessDenied)
	case StatusTrial:
		if tenant.TrialExpired(NowTimeFunc()) {
			return errors.Wrap(errors.KindAuthorization, "tenant trial has expired", errors.ErrTenantTrialExpired)
		}
	}
	return nil
}

// subdomainFromHost extracts the first host label as a tenant candidate.
// Generic labels (www, api) and bare hosts yield no candidate.
func subdomainFromHost(host string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.Contains(host, ".") {
		return ""
	}
	label := strings.SplitN(host, ".", 2)[0]
	if label == "www" || label == "api" || label == "" {
		return ""
	}
	return label
}
