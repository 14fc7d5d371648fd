package tasks

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/database"
	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/logger"
)

// SyncSourceTask registers a source configuration in the database.
type SyncSourceTask struct {
	Task
	FeedConfig *feed.Config
	sourceRepo database.SourceRepository
}

func NewSyncSourceTask(feedName string, feedConfig *feed.Config, sourceRepo database.SourceRepository) *SyncSourceTask {
	return &SyncSourceTask{
		Task:       NewTask(TaskTypeSyncSource, feedName),
		FeedConfig: feedConfig,
		sourceRepo: sourceRepo,
	}
}

func (t *SyncSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.sourceRepo.UpsertSource(t.FeedName, t.FeedConfig.URL, t.FeedConfig.Format); err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"type":     "SyncedSource",
		"feed":     t.FeedName,
		"duration": t.GetDuration().String(),
		"format":   t.FeedConfig.Format,
		"enabled":  t.FeedConfig.Settings.Enabled,
	}).Info("Task completed")

	return nil
}
