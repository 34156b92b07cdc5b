package userRepo

import (
	"context"

	"cmsledger/models"
)

// UserRepository defines the read-only user access the ledger needs.
type UserRepository interface {
	// GetByID retrieves a user by its unique ID.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
