// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdiddy/legal-ingest/internal/metrics"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// DefaultCadence is the number of documents between checkpoints.
const DefaultCadence = 100

// Marker records documents whose vectors are durable.
type Marker interface {
	MarkInVectorDB(ctx context.Context, fileIDs []string) error
}

// Updater feeds documents into an Index and checkpoints every Cadence
// documents. A document is marked in the state store only after the
// checkpoint holding its records has committed.
type Updater struct {
	Index   *Index
	Store   Marker
	Cadence int
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	pending []string
}

func (u *Updater) log() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return slog.Default()
}

func (u *Updater) cadence() int {
	if u.Cadence <= 0 {
		return DefaultCadence
	}
	return u.Cadence
}

// Has reports whether the index already holds n persisted records of fileID.
func (u *Updater) Has(fileID string, n int) bool {
	return n > 0 && u.Index.FileCount(fileID) >= n
}

// Add stages the records of one document and checkpoints when the cadence
// is reached.
func (u *Updater) Add(ctx context.Context, fileID string, records []types.VectorRecord) error {
	if err := u.Index.Upsert(records); err != nil {
		return fmt.Errorf("staging %s: %w", fileID, err)
	}
	u.pending = append(u.pending, fileID)
	if len(u.pending) >= u.cadence() {
		return u.Checkpoint(ctx)
	}
	return nil
}

// Pending returns the number of documents waiting for a checkpoint.
func (u *Updater) Pending() int {
	return len(u.pending)
}

// Checkpoint persists the index and then marks every pending document.
func (u *Updater) Checkpoint(ctx context.Context) error {
	if len(u.pending) == 0 {
		return nil
	}
	if err := u.Index.Persist(ctx); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}
	if err := u.Store.MarkInVectorDB(ctx, u.pending); err != nil {
		return fmt.Errorf("marking documents: %w", err)
	}
	u.log().Info("index checkpoint", "documents", len(u.pending), "records", u.Index.Len())
	for range u.pending {
		u.Metrics.Observe(metrics.StageIndex, metrics.OutcomeDone)
	}
	u.pending = nil
	return nil
}

// Close writes the final checkpoint.
func (u *Updater) Close(ctx context.Context) error {
	return u.Checkpoint(ctx)
}
