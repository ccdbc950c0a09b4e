package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// Sentinel errors returned by ServerStore implementations.
var (
	// ErrServerNotFound indicates the requested server does not exist.
	ErrServerNotFound = errors.New("server not found")

	// ErrServerAlreadyExists indicates a server with the same base URL is already configured.
	ErrServerAlreadyExists = errors.New("server already exists")
)

// ServerStore defines the driven port for upstream server configuration.
type ServerStore interface {
	Add(ctx context.Context, server model.Server) (model.Server, error)
	Get(ctx context.Context, id int64) (model.Server, error)
	ListAll(ctx context.Context) ([]model.Server, error)
}
