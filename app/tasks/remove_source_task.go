package tasks

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/database"
	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/logger"
	"github.com/lysyi3m/media-report/app/metrics"
)

// RemoveSourceTask drops a source whose configuration file was deleted.
type RemoveSourceTask struct {
	Task
	sourceRepo database.SourceRepository
	registry   *feed.Registry
	metrics    *metrics.Metrics
}

func NewRemoveSourceTask(feedName string, sourceRepo database.SourceRepository, registry *feed.Registry, m *metrics.Metrics) *RemoveSourceTask {
	return &RemoveSourceTask{
		Task:       NewTask(TaskTypeRemoveSource, feedName),
		sourceRepo: sourceRepo,
		registry:   registry,
		metrics:    m,
	}
}

func (t *RemoveSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.registry.Remove(t.FeedName)
	if t.metrics != nil {
		t.metrics.Forget(t.FeedName)
	}

	if err := t.sourceRepo.DeleteSource(t.FeedName); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"type":     "RemovedSource",
		"feed":     t.FeedName,
		"duration": t.GetDuration().String(),
	}).Info("Task completed")

	return nil
}
