// Package storage defines persistence interfaces for the gateway.
package storage

import (
	"context"
	"time"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// FetchLogStore persists resolve events.
type FetchLogStore interface {
	InsertFetches(ctx context.Context, records []gateway.FetchRecord) error
	ListFetches(ctx context.Context, filter gateway.FetchFilter) ([]gateway.FetchRecord, error)
	SummarizeFetches(ctx context.Context, since time.Time) ([]gateway.FetchSummary, error)
	// PruneFetches deletes records created before cutoff and returns how many were removed.
	PruneFetches(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store combines all storage interfaces.
type Store interface {
	FetchLogStore
	Ping(ctx context.Context) error
	Close() error
}
