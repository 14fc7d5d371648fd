package tasks

import "github.com/lysyi3m/media-report/app/feed"

// TaskSchedulerInterface is what the API and the config watcher need from
// the scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	Reload(config *feed.Config) ([]TaskInterface, error)
	Remove(name string) error
}
