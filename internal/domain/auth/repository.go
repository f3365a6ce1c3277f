package auth

import "context"

// Repository abstracts member persistence.
type Repository interface {
	Create(ctx context.Context, email, displayName, passwordHash string) (Member, error)
	GetByEmail(ctx context.Context, email string) (Member, bool, error)
	GetByID(ctx context.Context, id int64) (Member, bool, error)
}
