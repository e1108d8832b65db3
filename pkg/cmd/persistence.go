// Package cmd provides shared initialization for the journey daemons.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftline/journey/pkg/persistence"
	"github.com/driftline/journey/pkg/persistence/file"
	"github.com/driftline/journey/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence layer from the database URL scheme:
// postgres:// for PostgreSQL, anything else is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"),
		strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case databaseURL == "":
		return nil, fmt.Errorf("DATABASE_URL is required")
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
