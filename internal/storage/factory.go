package storage

import (
	"fmt"

	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/logging"
)

// NewStore creates an event store for the configured backend
func NewStore(cfg config.StorageConfig, logger *logging.Logger) (EventStore, error) {
	switch cfg.Backend {
	case "badger":
		return NewBadgerStore(cfg.Path, cfg.RetentionDays, logger)
	case "postgres":
		return NewPostgresStore(cfg.PostgresURL, logger)
	case "none":
		logger.WithComponent(logging.ComponentStorage).
			Warn("Persistence disabled; probe history will not survive restarts")
		return NewNoOpStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
