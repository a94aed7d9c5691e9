package upload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/sleepbuddy/internal/models"
)

// Stats tracks upload progress.
type Stats struct {
	DatasetsUploaded int
	DatasetsSkipped  int
	RecordsInserted  int64
}

// Uploader sends datasets to the server, skipping any it already sent.
type Uploader struct {
	client *Client
	state  *StateDB
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. state may be nil to always send.
func New(client *Client, state *StateDB, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		dryRun: dryRun,
		log:    log,
	}
}

// Upload sends one dataset unless an identical one was uploaded before.
func (u *Uploader) Upload(ctx context.Context, ds models.FitDataset) error {
	hash, err := HashDataset(ds)
	if err != nil {
		return err
	}

	if u.state != nil {
		uploaded, err := u.state.IsUploaded(hash)
		if err != nil {
			return err
		}
		if uploaded {
			u.stats.DatasetsSkipped++
			u.log.Info("dataset already uploaded, skipping", "hash", hash[:12])
			return nil
		}
	}

	if u.dryRun {
		u.log.Info("dry run: would upload dataset", "hash", hash[:12], "days", len(ds.Bucket))
		return nil
	}

	result, err := u.client.SendDataset(ctx, ds)
	if err != nil {
		return fmt.Errorf("uploading dataset %s: %w", hash[:12], err)
	}
	u.stats.DatasetsUploaded++
	u.stats.RecordsInserted += result.RecordsInserted
	u.log.Info("dataset uploaded",
		"hash", hash[:12],
		"received", result.RecordsReceived,
		"inserted", result.RecordsInserted,
	)

	if u.state != nil {
		if err := u.state.MarkUploaded(hash, len(ds.Bucket), result.RecordsInserted); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the progress so far.
func (u *Uploader) Stats() Stats {
	return u.stats
}
