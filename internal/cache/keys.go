package cache

// Collection keys mirror the last full list read for a resource type.
const (
	KeyAllDevices = "all_devices"
	KeyAllUsers   = "all_users"
)

// DeviceKey returns the cache key for a single device record.
func DeviceKey(deviceID string) string { return "device_" + deviceID }

// UserKey returns the cache key for a single user record.
func UserKey(userID string) string { return "user_" + userID }
