package tasks

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/logger"
)

// RestoreFeedTask rebuilds a source's Feed from its last stored snapshot so
// reports are served before the first fetch completes. A Feed that is
// already loaded is never replaced.
type RestoreFeedTask struct {
	Task
	FeedConfig *feed.Config
	pipeline   *Pipeline
}

func NewRestoreFeedTask(feedName string, feedConfig *feed.Config, pipeline *Pipeline) *RestoreFeedTask {
	task := NewTask(TaskTypeRestoreFeed, feedName)
	task.MaxRetries = 0

	return &RestoreFeedTask{
		Task:       task,
		FeedConfig: feedConfig,
		pipeline:   pipeline,
	}
}

func (t *RestoreFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, ok := t.pipeline.Registry.Get(t.FeedName); ok {
		logger.Log.WithField("feed", t.FeedName).Debug("Feed already loaded, skipping restore")
		return nil
	}

	snapshot, err := t.pipeline.SnapshotRepo.GetSnapshot(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get snapshot: %w", err)
	}
	if snapshot == nil {
		logger.Log.WithField("feed", t.FeedName).Debug("No snapshot stored")
		return nil
	}

	restored, _, err := t.pipeline.build(t.FeedConfig, snapshot.Payload, t.pipeline.now())
	if err != nil {
		return fmt.Errorf("failed to rebuild snapshot: %w", err)
	}
	restored.LoadedAt = snapshot.FetchedAt

	if !t.pipeline.Registry.SwapIfAbsent(t.FeedName, restored) {
		logger.Log.WithField("feed", t.FeedName).Debug("Feed loaded during restore, snapshot discarded")
		return nil
	}

	if m := t.pipeline.Metrics; m != nil {
		m.SetItems(t.FeedName, len(restored.Items))
	}

	logger.Log.WithFields(logrus.Fields{
		"type":       "RestoredFeed",
		"feed":       t.FeedName,
		"duration":   t.GetDuration().String(),
		"total":      len(restored.Items),
		"fetched_at": snapshot.FetchedAt,
	}).Info("Task completed")

	return nil
}
