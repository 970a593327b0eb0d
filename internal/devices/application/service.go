package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"smarthome-cloud/internal/cache"
	devices "smarthome-cloud/internal/devices/domain"
	"smarthome-cloud/internal/observability/metrics"
	"smarthome-cloud/internal/resource"
)

const resourceName = "devices"

// Service orchestrates the device store gateway and the cache-aside
// protocol. Cache failures are never surfaced: reads fail open to the
// store, write-side eviction failures are logged and swallowed.
type Service struct {
	repo   devices.Repository
	cache  cache.Store
	ttl    time.Duration
	logger *log.Logger
}

// NewService constructs a device service.
func NewService(repo devices.Repository, cacheStore cache.Store, ttl time.Duration, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("devices: nil repo")
	}
	if cacheStore == nil {
		return nil, errors.New("devices: nil cache")
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, cache: cacheStore, ttl: ttl, logger: logger}, nil
}

// List returns all devices, serving from cache when possible.
func (s *Service) List(ctx context.Context) ([]devices.Device, error) {
	if data, ok := s.cacheGet(ctx, cache.KeyAllDevices); ok {
		var list []devices.Device
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		s.logger.Printf("devices: corrupt cache entry %s, refetching", cache.KeyAllDevices)
	}

	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []devices.Device{}
	}
	s.cachePut(ctx, cache.KeyAllDevices, list)
	return list, nil
}

// Get returns one device by id, serving from cache when possible.
// A store miss returns resource.ErrNotFound and caches nothing.
func (s *Service) Get(ctx context.Context, deviceID string) (*devices.Device, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required: %w", resource.ErrValidation)
	}
	key := cache.DeviceKey(deviceID)
	if data, ok := s.cacheGet(ctx, key); ok {
		var device devices.Device
		if err := json.Unmarshal(data, &device); err == nil {
			return &device, nil
		}
		s.logger.Printf("devices: corrupt cache entry %s, refetching", key)
	}

	device, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, key, device)
	return device, nil
}

// Create validates and persists a new device, then evicts the collection
// key. The id and creation time are assigned here, never by the caller.
func (s *Service) Create(ctx context.Context, payload json.RawMessage) (*devices.Device, error) {
	doc, err := decodeDocument(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc["deviceId"] = uuid.NewString()
	doc["createdAt"] = now.Format(time.RFC3339Nano)
	if err := devices.DocumentSchema.Validate(doc); err != nil {
		return nil, err
	}

	device, err := devices.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, device); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.KeyAllDevices)
	return device, nil
}

// Update merges a partial payload over the stored document, re-validates
// the result and persists it, then evicts both keys the write touched.
func (s *Service) Update(ctx context.Context, deviceID string, payload json.RawMessage) (*devices.Device, error) {
	patch, err := decodeDocument(payload)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	doc, err := existing.Document()
	if err != nil {
		return nil, err
	}
	for key, value := range patch {
		// deviceId and createdAt are assigned once at creation.
		if key == "deviceId" || key == "createdAt" {
			continue
		}
		doc[key] = value
	}
	if err := devices.DocumentSchema.Validate(doc); err != nil {
		return nil, err
	}

	device, err := devices.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, device); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.DeviceKey(deviceID), cache.KeyAllDevices)
	return device, nil
}

// Delete removes a device and evicts every key that referenced it.
func (s *Service) Delete(ctx context.Context, deviceID string) error {
	if _, err := s.repo.GetByID(ctx, deviceID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, deviceID); err != nil {
		return err
	}
	s.invalidate(ctx, cache.DeviceKey(deviceID), cache.KeyAllDevices)
	return nil
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	data, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.IncCacheError(resourceName, "get")
		s.logger.Printf("devices: cache get %s failed, treating as miss: %v", key, err)
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
		s.logger.Printf("devices: cache marshal %s: %v", key, err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		metrics.IncCacheError(resourceName, "set")
		s.logger.Printf("devices: cache set %s: %v", key, err)
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		metrics.IncCacheError(resourceName, "delete")
		s.logger.Printf("devices: cache invalidate %v: %v", keys, err)
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
