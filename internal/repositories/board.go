package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/models"
	"github.com/dylantheriot/bubl-backend/internal/shared"
)

// MaxBoardItems bounds the size of a single board document.
const MaxBoardItems = 200

// BoardRepository persists [models.Board] documents keyed by user id.
type BoardRepository struct {
	store DocumentStore
	now   func() time.Time
}

// NewBoardRepository creates a new [BoardRepository] backed by store.
func NewBoardRepository(store DocumentStore) *BoardRepository {
	return &BoardRepository{store: store, now: time.Now}
}

// Get returns the user's board, or an empty board when none has been saved.
func (r *BoardRepository) Get(ctx context.Context, userID string) (*models.Board, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	board := models.Board{UserID: userID}
	err := r.store.Get(ctx, BoardsCollection, userID, &board)
	if errors.Is(err, ErrNotFound) {
		return &models.Board{UserID: userID, Items: []models.BoardItem{}}, nil
	}
	if err != nil {
		return nil, err
	}

	board.UserID = userID
	if board.Items == nil {
		board.Items = []models.BoardItem{}
	}
	return &board, nil
}

// Replace overwrites the stored board with items as given. Only the item count is bounded.
func (r *BoardRepository) Replace(ctx context.Context, userID string, items []models.BoardItem) (*models.Board, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if len(items) > MaxBoardItems {
		return nil, fmt.Errorf("%w: at most %d board items", shared.ErrInvalidInput, MaxBoardItems)
	}
	if items == nil {
		items = []models.BoardItem{}
	}

	board := &models.Board{UserID: userID, Items: items, UpdatedAt: r.now().UTC()}
	if err := r.store.Set(ctx, BoardsCollection, userID, board); err != nil {
		return nil, err
	}
	return board, nil
}
