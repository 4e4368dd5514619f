package store

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed migrations/000001_init.up.sql
var initMigrationUp string

//go:embed migrations/000001_init.down.sql
var initMigrationDown string

// MigrateUp creates the crawler tables. It is idempotent.
func (s *Store) MigrateUp(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, initMigrationUp); err != nil {
		return fmt.Errorf("%w: migrate up: %w", ErrStore, err)
	}
	s.logger.Info().Msg("Schema migrated")
	return nil
}

// MigrateDown drops the crawler tables.
func (s *Store) MigrateDown(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, initMigrationDown); err != nil {
		return fmt.Errorf("%w: migrate down: %w", ErrStore, err)
	}
	return nil
}
