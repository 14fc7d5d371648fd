package api

import (
	"time"

	"github.com/lysyi3m/media-report/app/database"
	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/metrics"
	"github.com/lysyi3m/media-report/app/tasks"
)

type FiltererInterface interface {
	Run(f *feed.Feed, sel feed.Selection) feed.ViewResult
}

var _ FiltererInterface = (*feed.Filterer)(nil)

type Handler struct {
	configCache *feed.ConfigCache
	registry    *feed.Registry
	filterer    FiltererInterface
	sourceRepo  database.SourceRepository
	scheduler   tasks.TaskSchedulerInterface
	metrics     *metrics.Metrics
	now         func() time.Time
}

// ViewResponse is a filtered view, optionally arranged by month and category.
type ViewResponse struct {
	feed.ViewResult
	Groups []feed.MonthGroup `json:"groups,omitempty"`
}
