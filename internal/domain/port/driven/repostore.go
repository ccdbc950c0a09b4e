package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// Sentinel errors returned by TrackedRepoStore implementations.
var (
	// ErrRepoNotFound indicates the requested tracked repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadyExists indicates the user already tracks the repository on that server.
	ErrRepoAlreadyExists = errors.New("repository already exists")
)

// TrackedRepoStore defines the driven port for tracked repository metadata.
// Add returns ErrRepoAlreadyExists for a duplicate (user, server, full name).
// Get and Remove return ErrRepoNotFound when the repository is not tracked by the user.
type TrackedRepoStore interface {
	Add(ctx context.Context, repo model.TrackedRepository) (model.TrackedRepository, error)
	Get(ctx context.Context, userID string, id int64) (model.TrackedRepository, error)
	ListByUser(ctx context.Context, userID string) ([]model.TrackedRepository, error)
	ListAll(ctx context.Context) ([]model.TrackedRepository, error)
	Remove(ctx context.Context, userID string, id int64) error
}
