package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"smarthome-cloud/internal/cache"
	devices "smarthome-cloud/internal/devices/domain"
	"smarthome-cloud/internal/devices/infrastructure/memory"
	"smarthome-cloud/internal/resource"
)

func newTestService(t *testing.T) (*Service, *memory.DeviceRepository, cache.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store, err := cache.NewRedisStore(client)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	repo := memory.NewDeviceRepository()
	svc, err := NewService(repo, store, time.Minute, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, store
}

func createPayload() json.RawMessage {
	return json.RawMessage(`{
		"status": "on",
		"type": "light",
		"settings": {"brightness": 80, "color": "warm"},
		"userId": "user-1"
	}`)
}

func TestServiceCreateAssignsIdentity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if device.DeviceID == "" {
		t.Error("expected generated device id")
	}
	if device.CreatedAt.IsZero() {
		t.Error("expected createdAt to be set")
	}
	if device.Status != devices.StatusOn || device.Type != devices.TypeLight {
		t.Errorf("unexpected device %+v", device)
	}

	got, err := svc.Get(ctx, device.DeviceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DeviceID != device.DeviceID || got.UserID != "user-1" {
		t.Errorf("fetched device %+v does not match created %+v", got, device)
	}
}

func TestServiceCreateInvalidPayload(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	cases := []json.RawMessage{
		json.RawMessage(`not-json`),
		json.RawMessage(`{"status":"standby","type":"light","settings":{},"userId":"user-1"}`),
		json.RawMessage(`{"status":"on","type":"light","settings":{"brightness":150},"userId":"user-1"}`),
		json.RawMessage(`{"status":"on","type":"light","settings":{}}`),
		json.RawMessage(`{"status":"on","type":"light","settings":{},"userId":"user-1","extra":true}`),
	}
	for _, payload := range cases {
		if _, err := svc.Create(ctx, payload); !errors.Is(err, resource.ErrValidation) {
			t.Errorf("payload %s: expected validation error, got %v", payload, err)
		}
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no devices persisted, got %d", len(all))
	}
}

func TestServiceGetCachesReads(t *testing.T) {
	svc, repo, store := newTestService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Get(ctx, device.DeviceID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok, _ := store.Get(ctx, cache.DeviceKey(device.DeviceID)); !ok {
		t.Fatal("expected device cached after read")
	}

	// A cached read must not touch the repository again.
	if err := repo.Delete(ctx, device.DeviceID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := svc.Get(ctx, device.DeviceID)
	if err != nil {
		t.Fatalf("Get from cache: %v", err)
	}
	if got.DeviceID != device.DeviceID {
		t.Errorf("unexpected cached device %+v", got)
	}
}

func TestServiceUpdateInvalidatesCache(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := svc.Get(ctx, device.DeviceID); err != nil {
		t.Fatalf("Get: %v", err)
	}

	updated, err := svc.Update(ctx, device.DeviceID, json.RawMessage(`{"status":"off"}`))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != devices.StatusOff {
		t.Errorf("expected status off, got %q", updated.Status)
	}
	if updated.DeviceID != device.DeviceID {
		t.Errorf("device id changed across update: %q", updated.DeviceID)
	}

	if _, ok, _ := store.Get(ctx, cache.DeviceKey(device.DeviceID)); ok {
		t.Error("expected item cache entry invalidated by update")
	}
	if _, ok, _ := store.Get(ctx, cache.KeyAllDevices); ok {
		t.Error("expected list cache entry invalidated by update")
	}

	// Reads after the write observe the new state, never the stale entry.
	got, err := svc.Get(ctx, device.DeviceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != devices.StatusOff {
		t.Errorf("stale read after update: %+v", got)
	}
}

func TestServiceUpdateIgnoresImmutableFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	updated, err := svc.Update(ctx, device.DeviceID, json.RawMessage(`{"deviceId":"hijack","status":"off"}`))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.DeviceID != device.DeviceID {
		t.Errorf("deviceId must be immutable, got %q", updated.DeviceID)
	}
}

// Repeating the same patch must land on the same stored record.
func TestServiceUpdateIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	patch := json.RawMessage(`{"status":"off","settings":{"brightness":30,"color":"cool"}}`)

	if _, err := svc.Update(ctx, device.DeviceID, patch); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	first, err := repo.GetByID(ctx, device.DeviceID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if _, err := svc.Update(ctx, device.DeviceID, patch); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	second, err := repo.GetByID(ctx, device.DeviceID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated update diverged:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestServiceUpdateRevalidatesMerge(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = svc.Update(ctx, device.DeviceID, json.RawMessage(`{"status":"broken"}`))
	if !errors.Is(err, resource.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, err := svc.Get(ctx, device.DeviceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != devices.StatusOn {
		t.Errorf("rejected update must not change state, got %q", got.Status)
	}
}

func TestServiceUpdateUnknownDevice(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "absent", json.RawMessage(`{"status":"off"}`))
	if !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceDelete(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Get(ctx, device.DeviceID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := svc.Delete(ctx, device.DeviceID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, ok, _ := store.Get(ctx, cache.DeviceKey(device.DeviceID)); ok {
		t.Error("expected item cache entry invalidated by delete")
	}
	if _, err := svc.Get(ctx, device.DeviceID); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(all))
	}

	if err := svc.Delete(ctx, device.DeviceID); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected not found for second delete, got %v", err)
	}
}

func TestServiceMissNotCached(t *testing.T) {
	svc, repo, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "dev-later"); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, ok, _ := store.Get(ctx, cache.DeviceKey("dev-later")); ok {
		t.Fatal("a miss must not be cached")
	}

	// Once the device exists, the next read sees it.
	device := devices.Device{
		DeviceID: "dev-later", Status: devices.StatusOn, Type: devices.TypeCamera,
		Settings: map[string]any{"recording": true}, UserID: "user-1", CreatedAt: time.Now().UTC(),
	}
	if err := repo.Upsert(ctx, &device); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := svc.Get(ctx, "dev-later"); err != nil {
		t.Fatalf("Get after upsert: %v", err)
	}
}

// faultyStore fails every operation; the service must keep serving
// from the repository.
type faultyStore struct{}

func (faultyStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (faultyStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (faultyStore) Delete(context.Context, ...string) error {
	return errors.New("cache down")
}

func TestServiceFailsOpenOnCacheErrors(t *testing.T) {
	repo := memory.NewDeviceRepository()
	svc, err := NewService(repo, faultyStore{}, time.Minute, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create with broken cache: %v", err)
	}
	if _, err := svc.Get(ctx, device.DeviceID); err != nil {
		t.Fatalf("Get with broken cache: %v", err)
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List with broken cache: %v", err)
	}
	if _, err := svc.Update(ctx, device.DeviceID, json.RawMessage(`{"status":"off"}`)); err != nil {
		t.Fatalf("Update with broken cache: %v", err)
	}
	if err := svc.Delete(ctx, device.DeviceID); err != nil {
		t.Fatalf("Delete with broken cache: %v", err)
	}
}

func TestServiceCorruptCacheEntryRefetched(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, createPayload())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Set(ctx, cache.DeviceKey(device.DeviceID), []byte("{corrupt"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := svc.Get(ctx, device.DeviceID)
	if err != nil {
		t.Fatalf("Get past corrupt entry: %v", err)
	}
	if got.DeviceID != device.DeviceID {
		t.Errorf("unexpected device %+v", got)
	}
}
