package devices

import (
	"context"
	"encoding/json"
	"time"

	"smarthome-cloud/internal/schema"
)

// Device statuses.
const (
	StatusOn  = "on"
	StatusOff = "off"
)

// Device types.
const (
	TypeLight      = "light"
	TypeCamera     = "camera"
	TypeThermostat = "thermostat"
)

// Device represents a smart-home device owned by a user. The settings
// shape depends on the device type and is validated declaratively.
type Device struct {
	DeviceID  string         `json:"deviceId"`
	Status    string         `json:"status"`
	Type      string         `json:"type"`
	Settings  map[string]any `json:"settings"`
	UserID    string         `json:"userId"`
	CreatedAt time.Time      `json:"createdAt"`
}

// DocumentSchema is the declarative constraint set for device documents.
var DocumentSchema = schema.Schema{
	Name: "device",
	Fields: []schema.Field{
		{Name: "deviceId", Type: schema.TypeString, Required: true},
		{Name: "status", Type: schema.TypeString, Required: true, Enum: []string{StatusOn, StatusOff}},
		{Name: "type", Type: schema.TypeString, Required: true, Enum: []string{TypeLight, TypeCamera, TypeThermostat}},
		{Name: "settings", Type: schema.TypeObject, Required: true, Fields: []schema.Field{
			{Name: "brightness", Type: schema.TypeNumber, Min: schema.FloatPtr(0), Max: schema.FloatPtr(100)},
			{Name: "color", Type: schema.TypeString},
			{Name: "recording", Type: schema.TypeBool},
			{Name: "feedUrl", Type: schema.TypeString, Format: schema.FormatURL},
			{Name: "temperature", Type: schema.TypeNumber, Min: schema.FloatPtr(0), Max: schema.FloatPtr(100)},
			{Name: "mode", Type: schema.TypeString, Enum: []string{"heating", "cooling", "auto"}},
		}},
		{Name: "userId", Type: schema.TypeString, Required: true},
		{Name: "createdAt", Type: schema.TypeString},
	},
}

// Document converts the device to its persisted document form.
func (d Device) Document() (map[string]any, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDocument decodes a document into a Device.
func FromDocument(doc map[string]any) (*Device, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var device Device
	if err := json.Unmarshal(data, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// Repository manages device persistence. GetByID and Delete report an
// absent record as resource.ErrNotFound.
type Repository interface {
	GetByID(ctx context.Context, deviceID string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Upsert(ctx context.Context, device *Device) error
	Delete(ctx context.Context, deviceID string) error
}
