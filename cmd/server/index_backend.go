package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"pkworld.ai/internal/persistence/indexdb"
	"pkworld.ai/internal/sim/catalogs"
	"pkworld.ai/internal/sim/tuning"
	"pkworld.ai/internal/sim/world"
	"pkworld.ai/internal/sim/world/feature/pvp"
)

type runtimeIndex interface {
	world.AuditLogger
	pvp.Store
	Close() error
	UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error
	LoadPvPStats(ctx context.Context) ([]pvp.Stats, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(worldDir, backend string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported PKWORLD_INDEX_BACKEND: %s", backend)
	}
}
