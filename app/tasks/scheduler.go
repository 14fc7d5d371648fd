package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/logger"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

type Scheduler struct {
	configCache *feed.ConfigCache
	pipeline    *Pipeline
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *feed.ConfigCache, pipeline *Pipeline, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		pipeline:    pipeline,
		interval:    interval,
		workerCount: max(workerCount, 1),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// Reload registers a changed source and queues a fresh load for it. The
// source row is written before the load is queued so the load can record
// its outcome.
func (s *Scheduler) Reload(config *feed.Config) ([]TaskInterface, error) {
	syncTask := NewSyncSourceTask(config.Name, config, s.pipeline.SourceRepo)
	if err := s.runNow(syncTask); err != nil {
		return nil, err
	}

	queued := []TaskInterface{syncTask}
	if !config.Settings.Enabled {
		s.pipeline.Registry.Remove(config.Name)
		return queued, nil
	}

	loadTask := NewLoadFeedTask(config.Name, config, s.pipeline)
	if err := s.EnqueueTask(loadTask); err != nil {
		return queued, fmt.Errorf("failed to enqueue load task: %w", err)
	}

	return append(queued, loadTask), nil
}

// Remove queues the removal of a source whose configuration is gone.
func (s *Scheduler) Remove(name string) error {
	s.configCache.Remove(name)
	return s.EnqueueTask(NewRemoveSourceTask(name, s.pipeline.SourceRepo, s.pipeline.Registry, s.pipeline.Metrics))
}

func (s *Scheduler) runNow(task TaskInterface) error {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	return task.Execute(taskCtx)
}

func (s *Scheduler) enqueueStartupTasks() {
	feedConfigs := s.configCache.GetConfigs()
	if len(feedConfigs) == 0 {
		logger.Log.Debug("No source configurations found")
		return
	}

	logger.Log.WithField("count", len(feedConfigs)).Debug("Processing source configurations")

	for _, feedConfig := range feedConfigs {
		syncTask := NewSyncSourceTask(feedConfig.Name, feedConfig, s.pipeline.SourceRepo)
		if err := s.runNow(syncTask); err != nil {
			logger.Log.WithFields(logrus.Fields{"feed": feedConfig.Name, "error": err}).Warn("Failed to sync source")
			continue
		}

		if !feedConfig.Settings.Enabled {
			logger.Log.WithField("feed", feedConfig.Name).Debug("Feed disabled, skipping LoadFeedTask")
			continue
		}

		restoreTask := NewRestoreFeedTask(feedConfig.Name, feedConfig, s.pipeline)
		if err := s.EnqueueTask(restoreTask); err != nil {
			logger.Log.WithFields(logrus.Fields{"feed": feedConfig.Name, "error": err}).Warn("Failed to enqueue RestoreFeedTask")
		}

		loadTask := NewLoadFeedTask(feedConfig.Name, feedConfig, s.pipeline)
		if err := s.EnqueueTask(loadTask); err != nil {
			logger.Log.WithFields(logrus.Fields{"feed": feedConfig.Name, "error": err}).Warn("Failed to enqueue LoadFeedTask")
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		logger.Log.Debug("No enabled source configurations found")
		return
	}

	now := s.pipeline.now()

	for _, feedConfig := range feedConfigs {
		source, err := s.pipeline.SourceRepo.GetSource(feedConfig.Name)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"feed": feedConfig.Name, "error": err}).Warn("Failed to get source from database, skipping")
			continue
		}

		if source == nil {
			syncTask := NewSyncSourceTask(feedConfig.Name, feedConfig, s.pipeline.SourceRepo)
			if err := s.runNow(syncTask); err != nil {
				logger.Log.WithFields(logrus.Fields{"feed": feedConfig.Name, "error": err}).Warn("Failed to sync source")
				continue
			}
		} else if source.NextFetchAt != nil && source.NextFetchAt.After(now) {
			logger.Log.WithFields(logrus.Fields{"feed": feedConfig.Name, "next_fetch_at": source.NextFetchAt}).Debug("Feed not due for refresh yet")
			continue
		}

		loadTask := NewLoadFeedTask(feedConfig.Name, feedConfig, s.pipeline)
		if err := s.EnqueueTask(loadTask); err != nil {
			logger.Log.WithFields(logrus.Fields{"feed": feedConfig.Name, "error": err}).Warn("Failed to enqueue LoadFeedTask")
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	fields := logrus.Fields{
		"worker_id":   workerID,
		"type":        string(task.GetType()),
		"id":          task.GetID(),
		"feed":        task.GetFeedName(),
		"retry_count": task.GetRetryCount(),
		"error":       err,
	}

	if !task.CanRetry() {
		if task.GetMaxRetries() == 0 {
			logger.Log.WithFields(fields).Error("Task failed")
		} else {
			logger.Log.WithFields(fields).WithField("max_retries", task.GetMaxRetries()).Error("Task failed after maximum retries")
		}
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, maxRetryDelay)

	logger.Log.WithFields(fields).WithFields(logrus.Fields{
		"max_retries": task.GetMaxRetries(),
		"delay":       retryDelay.String(),
	}).Warn("Task retry scheduled")

	go func() {
		select {
		case <-s.ctx.Done():
			logger.Log.WithFields(logrus.Fields{"type": string(task.GetType()), "id": task.GetID()}).Debug("Scheduler stopped, skipping task retry")
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				logger.Log.WithFields(logrus.Fields{"type": string(task.GetType()), "id": task.GetID(), "error": retryErr}).Error("Failed to re-enqueue task for retry")
			}
		}
	}()
}
