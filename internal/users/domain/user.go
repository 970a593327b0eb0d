package users

import (
	"context"
	"encoding/json"
	"time"

	"smarthome-cloud/internal/schema"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account. PasswordHash never leaves the service
// layer; responses and cache entries carry the sanitized View instead.
type User struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Devices      []string  `json:"devices"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// View is the externally visible shape of a user.
type View struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Devices   []string  `json:"devices"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// View returns the sanitized form of the user.
func (u User) View() View {
	devices := u.Devices
	if devices == nil {
		devices = []string{}
	}
	return View{
		UserID:    u.UserID,
		Email:     u.Email,
		Devices:   devices,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// DocumentSchema is the declarative constraint set for user documents.
var DocumentSchema = schema.Schema{
	Name: "user",
	Fields: []schema.Field{
		{Name: "userId", Type: schema.TypeString, Required: true, Format: schema.FormatUUID},
		{Name: "email", Type: schema.TypeString, Required: true, Format: schema.FormatEmail},
		{Name: "passwordHash", Type: schema.TypeString, Required: true, Min: schema.FloatPtr(60)},
		{Name: "devices", Type: schema.TypeArray, Elem: &schema.Field{Type: schema.TypeString}, Default: []any{}},
		{Name: "role", Type: schema.TypeString, Enum: []string{RoleAdmin, RoleUser}, Default: RoleUser},
		{Name: "createdAt", Type: schema.TypeString},
	},
}

// Document converts the user to its persisted document form.
func (u User) Document() (map[string]any, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDocument decodes a document into a User.
func FromDocument(doc map[string]any) (*User, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Repository manages user persistence. Get lookups report an absent
// record as resource.ErrNotFound.
type Repository interface {
	GetByID(ctx context.Context, userID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, userID string) error
}
