// package repositories provides persistence layer implementations for bubl documents.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Collection names.
const (
	UsersCollection  = "users"
	BoardsCollection = "boards"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrInvalidField  = errors.New("invalid field name")
)

// DocumentStore is the persistence contract shared by every backend.
type DocumentStore interface {
	// Get decodes the document into dst, or returns [ErrNotFound].
	Get(ctx context.Context, collection, id string, dst any) error

	// Create inserts doc, or returns [ErrAlreadyExists].
	Create(ctx context.Context, collection, id string, doc any) error

	// Set replaces the document, creating it when absent.
	Set(ctx context.Context, collection, id string, doc any) error

	// Update merges fields into an existing document, or returns [ErrNotFound].
	// Fields not named are left untouched.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

var fieldPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// validateFields rejects empty updates and field names that are not plain snake_case identifiers.
func validateFields(fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", ErrInvalidField)
	}
	for name := range fields {
		if !fieldPattern.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
	}
	return nil
}
