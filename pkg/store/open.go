package store

import (
	"context"
	"fmt"

	"Aarogya/pkg/config"

	"github.com/rs/zerolog"
)

// Open builds the Store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case "mongo":
		return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	case "mysql", "sqlite":
		return OpenGorm(cfg.StoreDriver, cfg.DatabaseURL, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
