package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"smarthome-cloud/internal/resource"
	users "smarthome-cloud/internal/users/domain"
)

// UserRepository is an in-memory user store.
type UserRepository struct {
	mu   sync.RWMutex
	data map[string]users.User
}

// NewUserRepository constructs a repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{data: make(map[string]users.User)}
}

// GetByID fetches a user by id.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*users.User, error) {
	_ = ctx
	r.mu.RLock()
	user, ok := r.data[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, resource.ErrNotFound)
	}
	copied := user
	return &copied, nil
}

// GetByEmail fetches a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.data {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user email %s: %w", email, resource.ErrNotFound)
}

// List returns all users in creation order.
func (r *UserRepository) List(ctx context.Context) ([]users.User, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]users.User, 0, len(r.data))
	for _, user := range r.data {
		result = append(result, user)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].UserID < result[j].UserID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Upsert inserts or replaces a user.
func (r *UserRepository) Upsert(ctx context.Context, user *users.User) error {
	_ = ctx
	if user == nil {
		return errors.New("user repo: nil user")
	}
	r.mu.Lock()
	r.data[user.UserID] = *user
	r.mu.Unlock()
	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, resource.ErrNotFound)
	}
	delete(r.data, userID)
	return nil
}
