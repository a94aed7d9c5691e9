package mcp

import (
	"context"
	"time"

	"github.com/claude/sleepbuddy/internal/models"
	"github.com/claude/sleepbuddy/internal/storage"
)

// DataSource abstracts the record store for MCP handlers. Both *storage.DB
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QuerySleepRecords(ctx context.Context, start, end time.Time, userID int) ([]models.SleepRecord, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
