package main

import (
	"context"
	"fmt"

	"github.com/MimeLyc/torznab-title-mapper/internal/config"
	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	"github.com/MimeLyc/torznab-title-mapper/internal/persistence"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

// openStore returns the configured mapping store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config) (mapping.Store, func() error, error) {
	fileStore := mapping.NewFileStore(cfg.Mapping.File)
	if cfg.Mapping.Store != config.StoreSQLite {
		return fileStore, func() error { return nil }, nil
	}

	db, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open mapping database: %w", err)
	}
	if err := seedFromFile(ctx, db, fileStore); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, db.Close, nil
}

// seedFromFile copies the JSON mapping file into an empty database.
func seedFromFile(ctx context.Context, dst, src mapping.Store) error {
	existing, err := dst.Load(ctx)
	if err != nil {
		return fmt.Errorf("load mapping database: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	mappings, err := src.Load(ctx)
	if err != nil {
		log.Warn("Unable to read mapping file for import: %v", err)
		return nil
	}
	if len(mappings) == 0 {
		return nil
	}
	if err := dst.Save(ctx, mappings); err != nil {
		return fmt.Errorf("import mappings: %w", err)
	}
	log.Info("Imported %d mappings from file into database", len(mappings))
	return nil
}
