package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/authgate/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// pq error code for unique_violation.
const uniqueViolation = "23505"

const userColumns = `id, email, username, first_name, last_name, password_hash, refresh_token_hash, is_active, roles, created_at, updated_at`

// UserPatch describes a partial update. Nil fields are left untouched.
// A non-nil RefreshTokenHash pointing at the empty string clears the
// stored session.
type UserPatch struct {
	Email            *string
	Username         *string
	FirstName        *string
	LastName         *string
	PasswordHash     *string
	RefreshTokenHash *string
	IsActive         *bool
	Roles            []string
}

// UserRepository handles persistence for user accounts.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// GetByIdentity locates a user by an identity term: a uuid-shaped term is
// looked up as an id, anything else matches email or username. Uniqueness
// constraints guarantee at most one match.
func (r *UserRepository) GetByIdentity(ctx context.Context, term string) (types.User, error) {
	if _, err := uuid.Parse(term); err == nil {
		return r.GetByID(ctx, term)
	}

	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 OR username = $1`
	return r.queryOne(ctx, query, term)
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Roles == nil {
		user.Roles = []string{"user"}
	}

	const query = `
		INSERT INTO users (id, email, username, first_name, last_name, password_hash, refresh_token_hash, is_active, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		nullable(user.RefreshTokenHash),
		user.IsActive,
		pq.Array(user.Roles),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return types.User{}, ErrDuplicateIdentity
		}
		return types.User{}, err
	}
	return user, nil
}

// Update merges the patch over the stored record and writes it back.
// Concurrent writers race at the row level; the last write wins, which is
// the intended most-recent-session semantics for refresh-token rotation.
func (r *UserRepository) Update(ctx context.Context, id string, patch UserPatch) (types.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	applyPatch(&user, patch)
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET email = $1,
			username = $2,
			first_name = $3,
			last_name = $4,
			password_hash = $5,
			refresh_token_hash = $6,
			is_active = $7,
			roles = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		nullable(user.RefreshTokenHash),
		user.IsActive,
		pq.Array(user.Roles),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return types.User{}, ErrDuplicateIdentity
		}
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) queryOne(ctx context.Context, query string, args ...any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var refreshHash sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&refreshHash,
		&user.IsActive,
		pq.Array(&user.Roles),
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	user.RefreshTokenHash = refreshHash.String
	return user, nil
}

func applyPatch(user *types.User, patch UserPatch) {
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.Username != nil {
		user.Username = *patch.Username
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if patch.RefreshTokenHash != nil {
		user.RefreshTokenHash = *patch.RefreshTokenHash
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	if patch.Roles != nil {
		user.Roles = patch.Roles
	}
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
