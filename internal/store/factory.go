package store

import (
	"context"
	"fmt"

	"github.com/iraqaf/assurance/internal/models"
)

// NewStore selects a persistence backend by name. Unknown backends are a
// ConfigurationError caught at startup.
func NewStore(ctx context.Context, backend, dsn string) (Store, error) {
	switch backend {
	case "memory", "":
		return NewMemory(), nil
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn)
	case "mysql":
		return NewMySQL(ctx, dsn)
	case "mongodb", "mongo":
		return NewMongo(ctx, dsn)
	default:
		return nil, &models.ConfigurationError{
			Field:  "STORE_BACKEND",
			Reason: fmt.Sprintf("unsupported backend: %q", backend),
		}
	}
}
