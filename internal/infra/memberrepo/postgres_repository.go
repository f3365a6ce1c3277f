package memberrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/prayer-companion/internal/domain/auth"
)

const uniqueViolation = "23505"

// Schema creates the members table.
const Schema = `
CREATE TABLE IF NOT EXISTS members (
	id            BIGSERIAL PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresRepository persists members in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository over pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the members table when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

// Create inserts a member row.
func (r *PostgresRepository) Create(ctx context.Context, email, displayName, passwordHash string) (auth.Member, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO members (email, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, display_name, password_hash, created_at
	`, email, displayName, passwordHash)
	member, err := scanMember(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.Member{}, auth.ErrEmailExists
		}
		return auth.Member{}, err
	}
	return member, nil
}

// GetByEmail fetches a member by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (auth.Member, bool, error) {
	return r.getOne(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM members
		WHERE email = $1
	`, email)
}

// GetByID fetches a member by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (auth.Member, bool, error) {
	return r.getOne(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM members
		WHERE id = $1
	`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (auth.Member, bool, error) {
	member, err := scanMember(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Member{}, false, nil
	}
	if err != nil {
		return auth.Member{}, false, err
	}
	return member, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (auth.Member, error) {
	var member auth.Member
	var created time.Time
	if err := row.Scan(&member.ID, &member.Email, &member.DisplayName, &member.PasswordHash, &created); err != nil {
		return auth.Member{}, err
	}
	member.CreatedAt = created.UTC()
	return member, nil
}

var _ auth.Repository = (*PostgresRepository)(nil)
