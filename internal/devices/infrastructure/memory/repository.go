package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	devices "smarthome-cloud/internal/devices/domain"
	"smarthome-cloud/internal/resource"
)

// DeviceRepository is an in-memory device store.
type DeviceRepository struct {
	mu   sync.RWMutex
	data map[string]devices.Device
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{data: make(map[string]devices.Device)}
}

// GetByID fetches a device by id.
func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*devices.Device, error) {
	_ = ctx
	r.mu.RLock()
	device, ok := r.data[deviceID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceID, resource.ErrNotFound)
	}
	copied := device
	return &copied, nil
}

// List returns all devices in creation order.
func (r *DeviceRepository) List(ctx context.Context) ([]devices.Device, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]devices.Device, 0, len(r.data))
	for _, device := range r.data {
		result = append(result, device)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].DeviceID < result[j].DeviceID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Upsert inserts or replaces a device.
func (r *DeviceRepository) Upsert(ctx context.Context, device *devices.Device) error {
	_ = ctx
	if device == nil {
		return errors.New("device repo: nil device")
	}
	r.mu.Lock()
	r.data[device.DeviceID] = *device
	r.mu.Unlock()
	return nil
}

// Delete removes a device.
func (r *DeviceRepository) Delete(ctx context.Context, deviceID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[deviceID]; !ok {
		return fmt.Errorf("device %s: %w", deviceID, resource.ErrNotFound)
	}
	delete(r.data, deviceID)
	return nil
}
