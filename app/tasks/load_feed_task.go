package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/database"
	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/logger"
)

// LoadFeedTask fetches a source and replaces its Feed. A failed load is not
// retried; the next scheduled refresh is a fresh load.
type LoadFeedTask struct {
	Task
	FeedConfig *feed.Config
	pipeline   *Pipeline
	generation uint64
}

func NewLoadFeedTask(feedName string, feedConfig *feed.Config, pipeline *Pipeline) *LoadFeedTask {
	task := NewTask(TaskTypeLoadFeed, feedName)
	task.MaxRetries = 0

	loadTask := &LoadFeedTask{
		Task:       task,
		FeedConfig: feedConfig,
		pipeline:   pipeline,
	}
	if pipeline != nil {
		loadTask.generation = pipeline.Registry.Generation(feedName)
	}
	return loadTask
}

func (t *LoadFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		logger.Log.WithField("feed", t.FeedName).Debug("Feed disabled, skipping")
		return nil
	}

	fetchedAt := t.pipeline.now()
	nextFetch := fetchedAt.Add(t.FeedConfig.Settings.GetRefreshInterval())

	data, err := t.pipeline.Fetcher.Fetch(ctx, t.FeedConfig.URL, t.FeedConfig.Settings.GetTimeout())
	if err != nil {
		return t.fail(fetchedAt, nextFetch, err)
	}

	loaded, warnings, err := t.pipeline.build(t.FeedConfig, data, fetchedAt)
	if err != nil {
		return t.fail(fetchedAt, nextFetch, err)
	}

	if reason := t.stale(); reason != "" {
		t.discard(reason)
		return nil
	}

	if err := t.pipeline.SnapshotRepo.SaveSnapshot(t.FeedName, data, fetchedAt); err != nil {
		logger.Log.WithFields(logrus.Fields{"feed": t.FeedName, "error": err}).Warn("Failed to save snapshot")
	}

	err = t.pipeline.SourceRepo.RecordLoad(t.FeedName, database.LoadResult{
		FetchedAt:    fetchedAt,
		ItemCount:    len(loaded.Items),
		WarningCount: len(warnings),
		NextFetchAt:  nextFetch,
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"feed": t.FeedName, "error": err}).Warn("Failed to record load")
	}

	if !t.pipeline.Registry.SwapAt(t.FeedName, loaded, t.generation) {
		t.discard("source removed during load")
		return nil
	}

	if m := t.pipeline.Metrics; m != nil {
		m.ObserveLoad(t.FeedName, loadResult(nil))
		m.SetItems(t.FeedName, len(loaded.Items))
	}

	logger.Log.WithFields(logrus.Fields{
		"type":     "LoadedFeed",
		"feed":     t.FeedName,
		"duration": t.GetDuration().String(),
		"total":    len(loaded.Items),
		"warnings": len(warnings),
		"new":      countNew(loaded),
	}).Info("Task completed")

	return nil
}

// fail keeps the previously served Feed and records why this load failed.
func (t *LoadFeedTask) fail(fetchedAt, nextFetch time.Time, loadErr error) error {
	if reason := t.stale(); reason != "" {
		t.discard(reason)
		return nil
	}

	t.pipeline.Registry.Fail(t.FeedName, loadErr)

	if err := t.pipeline.SourceRepo.RecordFailure(t.FeedName, fetchedAt, loadErr.Error(), nextFetch); err != nil {
		logger.Log.WithFields(logrus.Fields{"feed": t.FeedName, "error": err}).Warn("Failed to record load failure")
	}

	if m := t.pipeline.Metrics; m != nil {
		m.ObserveLoad(t.FeedName, loadResult(loadErr))
	}

	return fmt.Errorf("failed to load feed: %w", loadErr)
}

// stale returns why the outcome of this load must not be kept, or "" when the
// source is still registered and enabled.
func (t *LoadFeedTask) stale() string {
	if t.pipeline.Registry.Generation(t.FeedName) != t.generation {
		return "source removed"
	}

	if configs := t.pipeline.Configs; configs != nil {
		config, err := configs.GetConfig(t.FeedName)
		if err != nil {
			return "source configuration removed"
		}
		if !config.Settings.Enabled {
			return "source disabled"
		}
	}

	source, err := t.pipeline.SourceRepo.GetSource(t.FeedName)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"feed": t.FeedName, "error": err}).Warn("Failed to check source registration")
		return ""
	}
	if source == nil {
		return "source not registered"
	}

	return ""
}

func (t *LoadFeedTask) discard(reason string) {
	logger.Log.WithFields(logrus.Fields{
		"type":     "LoadedFeed",
		"feed":     t.FeedName,
		"duration": t.GetDuration().String(),
		"reason":   reason,
	}).Info("Load result discarded")
}

func countNew(f *feed.Feed) int {
	n := 0
	for _, item := range f.Items {
		if item.IsNew {
			n++
		}
	}
	return n
}
