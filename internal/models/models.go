// package models defines the persisted documents of the bubl backend
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/shared"
)

// Document field names shared by every store backend.
const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldExpiresAt    = "expires_at"
	FieldIsConnected  = "is_connected"
	FieldBio          = "bio"
	FieldUpdatedAt    = "updated_at"
)

// UserTokenRecord is the Spotify credential state stored on a user document.
type UserTokenRecord struct {
	AccessToken  string    `json:"access_token" bson:"access_token"`
	RefreshToken string    `json:"refresh_token" bson:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" bson:"expires_at"`
	IsConnected  bool      `json:"is_connected" bson:"is_connected"`
}

// Expired reports whether the access token must be treated as invalid at now.
//
// The token is invalid at or after ExpiresAt; skew moves that instant earlier.
func (r *UserTokenRecord) Expired(now time.Time, skew time.Duration) bool {
	return !now.UTC().Before(r.ExpiresAt.UTC().Add(-skew))
}

// User is the full user document: credentials plus profile fields.
type User struct {
	UserTokenRecord `bson:",inline"`

	ID        string    `json:"id" bson:"-"`
	Bio       string    `json:"bio" bson:"bio"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewUser returns an unconnected user document with empty credentials.
func NewUser(id string, now time.Time) *User {
	now = now.UTC()
	return &User{
		ID: id,
		UserTokenRecord: UserTokenRecord{
			ExpiresAt:   now,
			IsConnected: false,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the user id.
func (u *User) Validate() error {
	return ValidateUserID(u.ID)
}

// ValidateUserID rejects empty ids and ids containing path or control characters.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if len(id) > 128 {
		return fmt.Errorf("%w: user id too long", shared.ErrInvalidInput)
	}
	if strings.ContainsAny(id, "/\\\x00\n\r\t") {
		return fmt.Errorf("%w: user id contains invalid characters", shared.ErrInvalidInput)
	}
	return nil
}

// TokenUpdate is a partial write to a [UserTokenRecord].
//
// Nil fields are left untouched in the store.
type TokenUpdate struct {
	AccessToken  *string
	RefreshToken *string
	ExpiresAt    *time.Time
	IsConnected  *bool
}

// Fields returns the document fields to merge, including updated_at.
func (u TokenUpdate) Fields(now time.Time) map[string]any {
	fields := map[string]any{FieldUpdatedAt: now.UTC()}
	if u.AccessToken != nil {
		fields[FieldAccessToken] = *u.AccessToken
	}
	if u.RefreshToken != nil {
		fields[FieldRefreshToken] = *u.RefreshToken
	}
	if u.ExpiresAt != nil {
		fields[FieldExpiresAt] = u.ExpiresAt.UTC()
	}
	if u.IsConnected != nil {
		fields[FieldIsConnected] = *u.IsConnected
	}
	return fields
}

// ProfileUpdate is a partial write to the profile portion of a [User].
type ProfileUpdate struct {
	Bio *string
}

// Fields returns the document fields to merge, including updated_at.
func (u ProfileUpdate) Fields(now time.Time) map[string]any {
	fields := map[string]any{FieldUpdatedAt: now.UTC()}
	if u.Bio != nil {
		fields[FieldBio] = *u.Bio
	}
	return fields
}

// AppToken is the process-wide client-credentials token used for catalog search.
//
// It has no refresh token; it is regenerated whenever expired.
type AppToken struct {
	AccessToken string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Valid reports whether the token is set and not yet expired at now.
func (t *AppToken) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.UTC().Before(t.ExpiresAt.UTC())
}

// Board is the ordered set of items a user pinned to their board.
type Board struct {
	UserID    string      `json:"-" bson:"-"`
	Items     []BoardItem `json:"items" bson:"items"`
	UpdatedAt time.Time   `json:"updated_at" bson:"updated_at"`
}

// BoardItem is one thing the frontend pinned to a board. Its fields belong to the frontend and are
// stored and returned exactly as sent.
type BoardItem map[string]any
