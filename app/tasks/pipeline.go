package tasks

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/database"
	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/logger"
	"github.com/lysyi3m/media-report/app/metrics"
)

// Pipeline bundles the collaborators shared by the feed tasks.
type Pipeline struct {
	Fetcher      *feed.Fetcher
	Parser       *feed.Parser
	SourceRepo   database.SourceRepository
	SnapshotRepo database.SnapshotRepository
	Registry     *feed.Registry
	Configs      *feed.ConfigCache // optional; when set, loads for unknown or disabled sources are discarded
	Metrics      *metrics.Metrics
	Location     *time.Location
	Now          func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// build decodes and normalizes a source document. Warnings are logged and
// counted here; they never fail the build on their own.
func (p *Pipeline) build(config *feed.Config, data []byte, now time.Time) (*feed.Feed, feed.Warnings, error) {
	payload, err := p.Parser.Decode(data, config)
	if err != nil {
		return nil, nil, err
	}

	normalizer := feed.NewNormalizer(config.Settings, p.Location)
	normalizer.Now = func() time.Time { return now }

	built, warnings, err := normalizer.Run(payload)
	p.reportWarnings(config.Name, warnings)
	if err != nil {
		return nil, warnings, err
	}

	built.Source = config.Name
	return built, warnings, nil
}

func (p *Pipeline) reportWarnings(source string, warnings feed.Warnings) {
	for _, w := range warnings {
		logger.Log.WithFields(logrus.Fields{
			"feed":       source,
			"kind":       string(w.Kind),
			"item_index": w.Index,
			"title":      w.Title,
			"reason":     w.Reason,
		}).Warn("Item dropped during normalization")

		if p.Metrics != nil {
			p.Metrics.ObserveWarning(source, string(w.Kind))
		}
	}
}

func loadResult(err error) string {
	var fetchErr *feed.FetchError
	var malformedErr *feed.MalformedFeedError
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.As(err, &fetchErr):
		return metrics.ResultFetch
	case errors.As(err, &malformedErr):
		return metrics.ResultMalformed
	default:
		return metrics.ResultError
	}
}
