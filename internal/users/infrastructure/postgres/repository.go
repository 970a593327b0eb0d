package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"smarthome-cloud/internal/resource"
	users "smarthome-cloud/internal/users/domain"
)

const uniqueViolation = "23505"

// UserRepository is a Postgres gateway storing users as JSONB documents.
// Email is lifted into its own uniquely indexed column.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID fetches a user document by id.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*users.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	var doc []byte
	err := r.db.QueryRowContext(ctx, `
SELECT doc
FROM users
WHERE id = $1`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, resource.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return scanUser(doc)
}

// GetByEmail fetches a user document by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	var doc []byte
	err := r.db.QueryRowContext(ctx, `
SELECT doc
FROM users
WHERE email = $1`, email).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user email %s: %w", email, resource.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return scanUser(doc)
}

// List returns all user documents in creation order.
func (r *UserRepository) List(ctx context.Context) ([]users.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT doc
FROM users
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []users.User
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		user, err := scanUser(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert inserts or replaces a user document wholesale.
func (r *UserRepository) Upsert(ctx context.Context, user *users.User) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if user == nil {
		return errors.New("user repo: nil user")
	}
	doc, err := json.Marshal(user)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO users (id, email, doc, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, doc = EXCLUDED.doc`,
		user.UserID, user.Email, doc, user.CreatedAt)
	// Concurrent writers can both pass the service's email check; the
	// unique index on email decides the race.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("user with email %s already exists: %w", user.Email, resource.ErrConflict)
	}
	return err
}

// Delete removes a user document.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
DELETE FROM users
WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	count, _ := result.RowsAffected()
	if count == 0 {
		return fmt.Errorf("user %s: %w", userID, resource.ErrNotFound)
	}
	return nil
}

func scanUser(doc []byte) (*users.User, error) {
	var user users.User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
