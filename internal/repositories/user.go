package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/models"
)

// UserRepository persists [models.User] documents in a [DocumentStore].
//
// Credential and profile writers use separate partial updates so neither clobbers the other.
type UserRepository struct {
	store DocumentStore
	now   func() time.Time
}

// NewUserRepository creates a new [UserRepository] backed by store.
func NewUserRepository(store DocumentStore) *UserRepository {
	return &UserRepository{store: store, now: time.Now}
}

// Create inserts an empty, unconnected user document.
//
// Returns [ErrAlreadyExists] when the user is already present.
func (r *UserRepository) Create(ctx context.Context, id string) (*models.User, error) {
	user := models.NewUser(id, r.now())
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := r.store.Create(ctx, UsersCollection, id, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get retrieves the full user document.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	if err := models.ValidateUserID(id); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var user models.User
	if err := r.store.Get(ctx, UsersCollection, id, &user); err != nil {
		return nil, err
	}

	user.ID = id
	user.ExpiresAt = user.ExpiresAt.UTC()
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

// TokenRecord retrieves only the Spotify credential portion of a user document.
func (r *UserRepository) TokenRecord(ctx context.Context, id string) (*models.UserTokenRecord, error) {
	user, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	record := user.UserTokenRecord
	return &record, nil
}

// UpdateTokens merges the non-nil credential fields into the user document.
func (r *UserRepository) UpdateTokens(ctx context.Context, id string, update models.TokenUpdate) error {
	if err := models.ValidateUserID(id); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return r.store.Update(ctx, UsersCollection, id, update.Fields(r.now()))
}

// UpdateProfile merges the non-nil profile fields into the user document.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	if err := models.ValidateUserID(id); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return r.store.Update(ctx, UsersCollection, id, update.Fields(r.now()))
}
