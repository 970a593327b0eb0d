package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smarthome-cloud/internal/auth"
	"smarthome-cloud/internal/cache"
	"smarthome-cloud/internal/observability/metrics"
	"smarthome-cloud/internal/resource"
	users "smarthome-cloud/internal/users/domain"
)

const resourceName = "users"

// Service orchestrates the user store gateway and the cache-aside
// protocol, and owns registration and login. Cached entries are always
// sanitized views; the password hash never enters the cache.
type Service struct {
	repo     users.Repository
	cache    cache.Store
	ttl      time.Duration
	secret   []byte
	tokenTTL time.Duration
	logger   *log.Logger
}

// NewService constructs a user service.
func NewService(repo users.Repository, cacheStore cache.Store, ttl time.Duration, secret []byte, tokenTTL time.Duration, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("users: nil repo")
	}
	if cacheStore == nil {
		return nil, errors.New("users: nil cache")
	}
	if len(secret) == 0 {
		return nil, errors.New("users: empty jwt secret")
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cacheStore,
		ttl:      ttl,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
	}, nil
}

// List returns all users as sanitized views, serving from cache when
// possible.
func (s *Service) List(ctx context.Context) ([]users.View, error) {
	if data, ok := s.cacheGet(ctx, cache.KeyAllUsers); ok {
		var views []users.View
		if err := json.Unmarshal(data, &views); err == nil {
			return views, nil
		}
		s.logger.Printf("users: corrupt cache entry %s, refetching", cache.KeyAllUsers)
	}

	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]users.View, 0, len(list))
	for _, user := range list {
		views = append(views, user.View())
	}
	s.cachePut(ctx, cache.KeyAllUsers, views)
	return views, nil
}

// Get returns one user as a sanitized view, serving from cache when
// possible. A store miss returns resource.ErrNotFound and caches nothing.
func (s *Service) Get(ctx context.Context, userID string) (*users.View, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", resource.ErrValidation)
	}
	key := cache.UserKey(userID)
	if data, ok := s.cacheGet(ctx, key); ok {
		var view users.View
		if err := json.Unmarshal(data, &view); err == nil {
			return &view, nil
		}
		s.logger.Printf("users: corrupt cache entry %s, refetching", key)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := user.View()
	s.cachePut(ctx, key, view)
	return &view, nil
}

// Register validates and persists a new account. Email uniqueness is
// checked against the store before any write; a duplicate is a conflict
// and leaves the store untouched.
func (s *Service) Register(ctx context.Context, payload json.RawMessage) (*users.View, error) {
	doc, err := decodeDocument(payload)
	if err != nil {
		return nil, err
	}

	password, _ := doc["password"].(string)
	if password == "" {
		return nil, fmt.Errorf("password is required: %w", resource.ErrValidation)
	}
	delete(doc, "password")

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc["userId"] = uuid.NewString()
	doc["passwordHash"] = string(hash)
	doc["createdAt"] = now.Format(time.RFC3339Nano)
	users.DocumentSchema.ApplyDefaults(doc)
	if err := users.DocumentSchema.Validate(doc); err != nil {
		return nil, err
	}

	user, err := users.FromDocument(doc)
	if err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, user.Email); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.KeyAllUsers)
	view := user.View()
	return &view, nil
}

// Login verifies credentials and issues a signed bearer token carrying
// the user id and role.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", fmt.Errorf("invalid email or password: %w", resource.ErrUnauthorized)
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, resource.ErrNotFound) {
		return "", fmt.Errorf("invalid email or password: %w", resource.ErrUnauthorized)
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", fmt.Errorf("invalid email or password: %w", resource.ErrUnauthorized)
	}
	role, ok := auth.NormalizeRole(user.Role)
	if !ok {
		role = auth.RoleUser
	}
	return auth.NewToken(s.secret, user.UserID, role, s.tokenTTL)
}

// Update merges a partial payload over the stored document, re-validates
// the result and persists it, then evicts both keys the write touched.
// A plaintext password in the patch is re-hashed; the hash itself and
// the identity fields cannot be patched directly.
func (s *Service) Update(ctx context.Context, userID string, payload json.RawMessage) (*users.View, error) {
	patch, err := decodeDocument(payload)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc, err := existing.Document()
	if err != nil {
		return nil, err
	}

	if password, ok := patch["password"].(string); ok && password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		doc["passwordHash"] = string(hash)
	}
	delete(patch, "password")

	for key, value := range patch {
		// identity and credential fields are managed by the service
		if key == "userId" || key == "createdAt" || key == "passwordHash" {
			continue
		}
		doc[key] = value
	}
	if err := users.DocumentSchema.Validate(doc); err != nil {
		return nil, err
	}

	user, err := users.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	if user.Email != existing.Email {
		if err := s.ensureEmailFree(ctx, user.Email); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.UserKey(userID), cache.KeyAllUsers)
	view := user.View()
	return &view, nil
}

// Delete removes a user and evicts every key that referenced it.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, cache.UserKey(userID), cache.KeyAllUsers)
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, resource.ErrNotFound) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user with email %s already exists: %w", email, resource.ErrConflict)
	}
	return nil
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	data, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.IncCacheError(resourceName, "get")
		s.logger.Printf("users: cache get %s failed, treating as miss: %v", key, err)
		return nil, false
	}
	if !hit {
		metrics.IncCacheMiss(resourceName)
		return nil, false
	}
	metrics.IncCacheHit(resourceName)
	return data, true
}

func (s *Service) cachePut(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Printf("users: cache marshal %s: %v", key, err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		metrics.IncCacheError(resourceName, "set")
		s.logger.Printf("users: cache set %s: %v", key, err)
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		metrics.IncCacheError(resourceName, "delete")
		s.logger.Printf("users: cache invalidate %v: %v", keys, err)
	}
}

func decodeDocument(payload json.RawMessage) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("invalid json body: %w", resource.ErrValidation)
	}
	if doc == nil {
		return nil, fmt.Errorf("empty body: %w", resource.ErrValidation)
	}
	return doc, nil
}
