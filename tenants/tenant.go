package tenants

import "time"

// Status represents a tenant's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Tenant represents an isolated customer/organization scope. Every protected
// resource behind the gateway belongs to exactly one tenant. The gateway only
// reads and validates tenants; ownership lives with the tenant lookup store.
type Tenant struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Plan        string     `json:"plan"`
	Status      Status     `json:"status"`
	MaxUsers    int        `json:"max_users"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TrialExpired reports whether a trial tenant's trial period has lapsed.
func (t *Tenant) TrialExpired(now time.Time) bool {
	return t.Status == StatusTrial && t.TrialEndsAt != nil && now.After(*t.TrialEndsAt)
}
