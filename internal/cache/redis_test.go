package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store, err := NewRedisStore(client)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return store, mr
}

func TestRedisStoreSetGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, DeviceKey("dev-1"), []byte(`{"deviceId":"dev-1"}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, ok, err := store.Get(ctx, DeviceKey("dev-1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(value) != `{"deviceId":"dev-1"}` {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestRedisStoreGetMiss(t *testing.T) {
	store, _ := newTestStore(t)
	_, ok, err := store.Get(context.Background(), DeviceKey("absent"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss")
	}
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, DeviceKey("dev-1"), []byte("a"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, KeyAllDevices, []byte("b"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete(ctx, DeviceKey("dev-1"), KeyAllDevices); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, key := range []string{DeviceKey("dev-1"), KeyAllDevices} {
		if _, ok, _ := store.Get(ctx, key); ok {
			t.Fatalf("expected %s to be deleted", key)
		}
	}
	// deleting an absent key is not an error
	if err := store.Delete(ctx, DeviceKey("dev-1")); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, UserKey("user-1"), []byte("u"), time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, ok, _ := store.Get(ctx, UserKey("user-1")); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestRedisStoreDefaultTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, UserKey("user-1"), []byte("u"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ttl := mr.TTL(UserKey("user-1"))
	if ttl != DefaultTTL {
		t.Fatalf("expected default ttl %v, got %v", DefaultTTL, ttl)
	}
}

func TestKeys(t *testing.T) {
	if DeviceKey("dev-1") != "device_dev-1" {
		t.Errorf("unexpected device key %q", DeviceKey("dev-1"))
	}
	if UserKey("user-1") != "user_user-1" {
		t.Errorf("unexpected user key %q", UserKey("user-1"))
	}
	if KeyAllDevices != "all_devices" || KeyAllUsers != "all_users" {
		t.Error("unexpected list keys")
	}
}
