package users

import "context"

type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, email string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
	CountByTenant(ctx context.Context, tenantID string) (int, error)
	SetBlocked(ctx context.Context, email string, blocked bool) error
	SetLastLogin(ctx context.Context, id string) error
}
