package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a user's role within their tenant. super_admin is
// system-wide and bypasses tenant-ownership checks entirely.
type RoleType string

const (
	RoleSuperAdmin RoleType = "super_admin" // Can manage all tenants and system configuration
	RoleAdmin      RoleType = "admin"       // Can manage users and settings within a tenant
	RoleUser       RoleType = "user"        // Regular user within a tenant
	RoleViewer     RoleType = "viewer"      // Read-only access within a tenant
)

// ValidRole reports whether the role is one of the recognized role types.
func ValidRole(role RoleType) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleUser, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id,omitempty"`         // Unique identifier for the user
	TenantID     string    `json:"tenant_id,omitempty"`  // Tenant the user belongs to
	Email        string    `json:"email,omitempty"`      // User's email address
	PasswordHash string    `json:"-"`                    // Hashed password - never serialize
	FirstName    string    `json:"first_name,omitempty"` // First name of the user
	LastName     string    `json:"last_name,omitempty"`  // Last name of the user
	Role         RoleType  `json:"role,omitempty"`       // Role within the tenant
	Blocked      bool      `json:"blocked,omitempty"`    // Blocked users cannot log in
	CreatedAt    time.Time `json:"created_at,omitempty"` // When the user registered
	LastLogin    time.Time `json:"last_login,omitempty"` // Last successful login
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a plaintext password against the user's stored hash.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

// IsSuperAdmin returns true if the user has super admin privileges
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// IsAdmin returns true for tenant admins and super admins.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
