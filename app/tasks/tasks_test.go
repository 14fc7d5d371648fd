package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/media-report/app/database"
	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/metrics"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

const reportJSON = `{
  "success": true,
  "data": {
    "noticias": [
      {"fecha": "2024-06-14T09:00:00Z", "titulo": "Inflación baja", "categoria": "econ", "alcance": "Nacional", "medio": "El Diario", "url": "https://news.example.com/1"},
      {"fecha": "2024-05-20T09:00:00Z", "titulo": "Final de copa", "categoria": "sports", "alcance": "Internacional", "medio": "AS", "url": "https://news.example.com/2"},
      {"fecha": "2024-06-01T09:00:00Z", "titulo": "Sin categoría", "categoria": "weather", "medio": "X", "url": "https://news.example.com/3"}
    ],
    "categorias": [
      {"Slug": "econ", "Nombre": "Economía"},
      {"Slug": "sports", "Nombre": "Deportes"}
    ]
  }
}`

// reportServer serves body with status until changed.
type reportServer struct {
	*httptest.Server
	mu     sync.Mutex
	status int
	body   string
	hits   int
}

func newReportServer(t *testing.T) *reportServer {
	s := &reportServer{status: http.StatusOK, body: reportJSON}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.hits++
		w.WriteHeader(s.status)
		w.Write([]byte(s.body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *reportServer) set(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

func (s *reportServer) hitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	return &Pipeline{
		Fetcher:      feed.NewFetcher(http.DefaultClient, "test"),
		Parser:       feed.NewParser(feed.NewContentExtractor()),
		SourceRepo:   database.NewSourceRepository(db),
		SnapshotRepo: database.NewSnapshotRepository(db),
		Registry:     feed.NewRegistry(),
		Metrics:      metrics.New(),
		Location:     time.UTC,
		Now:          func() time.Time { return testNow },
	}
}

func sourceConfig(name, url string) *feed.Config {
	return &feed.Config{
		Name:   name,
		URL:    url,
		Format: feed.FormatJSON,
		Settings: feed.ConfigSettings{
			Enabled:         true,
			RefreshInterval: 3600,
			Timeout:         5,
			FreshnessDays:   7,
		},
	}
}

func registerSource(t *testing.T, p *Pipeline, config *feed.Config) {
	t.Helper()
	require.NoError(t, NewSyncSourceTask(config.Name, config, p.SourceRepo).Execute(context.Background()))
}

func TestLoadFeedTask_Success(t *testing.T) {
	server := newReportServer(t)
	p := newTestPipeline(t)
	config := sourceConfig("global", server.URL)
	registerSource(t, p, config)

	task := NewLoadFeedTask("global", config, p)
	task.Start()
	require.NoError(t, task.Execute(context.Background()))

	loaded, ok := p.Registry.Get("global")
	require.True(t, ok)
	assert.Equal(t, "global", loaded.Source)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "Inflación baja", loaded.Items[0].Title)
	assert.True(t, loaded.Items[0].IsNew)
	assert.False(t, loaded.Items[1].IsNew)

	source, err := p.SourceRepo.GetSource("global")
	require.NoError(t, err)
	assert.Equal(t, 2, source.ItemCount)
	assert.Equal(t, 1, source.WarningCount)
	require.NotNil(t, source.NextFetchAt)
	assert.True(t, source.NextFetchAt.Equal(testNow.Add(time.Hour)))

	snapshot, err := p.SnapshotRepo.GetSnapshot("global")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.JSONEq(t, reportJSON, string(snapshot.Payload))

	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.FeedLoads.WithLabelValues("global", metrics.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.ItemWarnings.WithLabelValues("global", string(feed.WarningUnknownCategory))))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.Metrics.FeedItems.WithLabelValues("global")))
}

func TestLoadFeedTask_FetchErrorKeepsPreviousFeed(t *testing.T) {
	server := newReportServer(t)
	p := newTestPipeline(t)
	config := sourceConfig("global", server.URL)
	registerSource(t, p, config)

	require.NoError(t, NewLoadFeedTask("global", config, p).Execute(context.Background()))
	previous, _ := p.Registry.Get("global")

	server.set(http.StatusInternalServerError, "down")
	task := NewLoadFeedTask("global", config, p)
	err := task.Execute(context.Background())

	var fetchErr *feed.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.False(t, task.CanRetry(), "failed loads are not retried")

	current, ok := p.Registry.Get("global")
	require.True(t, ok)
	assert.Same(t, previous, current)
	assert.Error(t, p.Registry.Failure("global"))

	source, err := p.SourceRepo.GetSource("global")
	require.NoError(t, err)
	assert.Contains(t, source.LastError, "HTTP 500")
	assert.Equal(t, 2, source.ItemCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.FeedLoads.WithLabelValues("global", metrics.ResultFetch)))
}

func TestLoadFeedTask_Malformed(t *testing.T) {
	server := newReportServer(t)
	server.set(http.StatusOK, `{"success": false}`)
	p := newTestPipeline(t)
	config := sourceConfig("global", server.URL)
	registerSource(t, p, config)

	err := NewLoadFeedTask("global", config, p).Execute(context.Background())

	var malformed *feed.MalformedFeedError
	require.ErrorAs(t, err, &malformed)

	_, ok := p.Registry.Get("global")
	assert.False(t, ok, "a malformed payload never produces an empty feed")
	assert.ErrorAs(t, p.Registry.Failure("global"), &malformed)

	snapshot, err := p.SnapshotRepo.GetSnapshot("global")
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.FeedLoads.WithLabelValues("global", metrics.ResultMalformed)))
}

func TestLoadFeedTask_DisabledAndCancelled(t *testing.T) {
	server := newReportServer(t)
	p := newTestPipeline(t)

	config := sourceConfig("global", server.URL)
	config.Settings.Enabled = false
	require.NoError(t, NewLoadFeedTask("global", config, p).Execute(context.Background()))
	assert.Equal(t, 0, server.hitCount())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLoadFeedTask("global", sourceConfig("global", server.URL), p).Execute(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, server.hitCount())
}

func TestLoadFeedTask_QueuedBeforeRemoval(t *testing.T) {
	server := newReportServer(t)
	p := newTestPipeline(t)
	config := sourceConfig("global", server.URL)
	registerSource(t, p, config)

	queued := NewLoadFeedTask("global", config, p)
	require.NoError(t, NewRemoveSourceTask("global", p.SourceRepo, p.Registry, p.Metrics).Execute(context.Background()))

	require.NoError(t, queued.Execute(context.Background()))

	_, ok := p.Registry.Get("global")
	assert.False(t, ok, "a removed source is not served again")
	assert.Empty(t, p.Registry.Names())

	snapshot, err := p.SnapshotRepo.GetSnapshot("global")
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	source, err := p.SourceRepo.GetSource("global")
	require.NoError(t, err)
	assert.Nil(t, source)

	assert.Equal(t, 0, testutil.CollectAndCount(p.Metrics.FeedItems))
}

func TestLoadFeedTask_QueuedBeforeRemovalFailure(t *testing.T) {
	server := newReportServer(t)
	server.set(http.StatusInternalServerError, "down")
	p := newTestPipeline(t)
	config := sourceConfig("global", server.URL)
	registerSource(t, p, config)

	queued := NewLoadFeedTask("global", config, p)
	require.NoError(t, NewRemoveSourceTask("global", p.SourceRepo, p.Registry, p.Metrics).Execute(context.Background()))

	require.NoError(t, queued.Execute(context.Background()))
	assert.NoError(t, p.Registry.Failure("global"))
}

func TestLoadFeedTask_QueuedBeforeDisable(t *testing.T) {
	server := newReportServer(t)
	p := newTestPipeline(t)

	dir := t.TempDir()
	writeSourceConfig(t, dir, "global", server.URL, true)
	p.Configs = feed.NewConfigCache(dir)
	require.NoError(t, p.Configs.Run())

	config, err := p.Configs.GetConfig("global")
	require.NoError(t, err)
	registerSource(t, p, config)

	queued := NewLoadFeedTask("global", config, p)

	writeSourceConfig(t, dir, "global", server.URL, false)
	_, err = p.Configs.LoadConfig("global")
	require.NoError(t, err)

	require.NoError(t, queued.Execute(context.Background()))

	_, ok := p.Registry.Get("global")
	assert.False(t, ok)

	snapshot, err := p.SnapshotRepo.GetSnapshot("global")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestLoadFeedTask_UnregisteredSourceIsDiscarded(t *testing.T) {
	server := newReportServer(t)
	p := newTestPipeline(t)

	require.NoError(t, NewLoadFeedTask("global", sourceConfig("global", server.URL), p).Execute(context.Background()))

	_, ok := p.Registry.Get("global")
	assert.False(t, ok)

	snapshot, err := p.SnapshotRepo.GetSnapshot("global")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestRestoreFeedTask(t *testing.T) {
	p := newTestPipeline(t)
	config := sourceConfig("global", "https://unused.example.com")
	fetchedAt := testNow.Add(-2 * time.Hour)

	// nothing stored yet
	require.NoError(t, NewRestoreFeedTask("global", config, p).Execute(context.Background()))
	_, ok := p.Registry.Get("global")
	assert.False(t, ok)

	require.NoError(t, p.SnapshotRepo.SaveSnapshot("global", []byte(reportJSON), fetchedAt))
	require.NoError(t, NewRestoreFeedTask("global", config, p).Execute(context.Background()))

	restored, ok := p.Registry.Get("global")
	require.True(t, ok)
	assert.Len(t, restored.Items, 2)
	assert.True(t, restored.LoadedAt.Equal(fetchedAt))
	assert.True(t, restored.Items[0].IsNew, "freshness is derived against the current time")
}

func TestRestoreFeedTask_NeverReplacesLoadedFeed(t *testing.T) {
	p := newTestPipeline(t)
	config := sourceConfig("global", "https://unused.example.com")
	require.NoError(t, p.SnapshotRepo.SaveSnapshot("global", []byte(reportJSON), testNow))

	fresh := &feed.Feed{Source: "global"}
	p.Registry.Swap("global", fresh)

	require.NoError(t, NewRestoreFeedTask("global", config, p).Execute(context.Background()))

	current, _ := p.Registry.Get("global")
	assert.Same(t, fresh, current)
}

func TestRestoreFeedTask_CorruptSnapshot(t *testing.T) {
	p := newTestPipeline(t)
	config := sourceConfig("global", "https://unused.example.com")
	require.NoError(t, p.SnapshotRepo.SaveSnapshot("global", []byte("not json"), testNow))

	err := NewRestoreFeedTask("global", config, p).Execute(context.Background())
	assert.Error(t, err)

	_, ok := p.Registry.Get("global")
	assert.False(t, ok)
}

func TestSyncAndRemoveSourceTasks(t *testing.T) {
	p := newTestPipeline(t)
	config := sourceConfig("global", "https://a.example.com")

	syncTask := NewSyncSourceTask("global", config, p.SourceRepo)
	assert.Equal(t, TaskTypeSyncSource, syncTask.GetType())
	assert.Equal(t, DefaultMaxRetries, syncTask.GetMaxRetries())
	require.NoError(t, syncTask.Execute(context.Background()))

	source, err := p.SourceRepo.GetSource("global")
	require.NoError(t, err)
	require.NotNil(t, source)
	assert.Equal(t, "https://a.example.com", source.URL)

	require.NoError(t, p.SnapshotRepo.SaveSnapshot("global", []byte(reportJSON), testNow))
	p.Registry.Swap("global", &feed.Feed{Source: "global"})
	p.Metrics.SetItems("global", 2)

	require.NoError(t, NewRemoveSourceTask("global", p.SourceRepo, p.Registry, p.Metrics).Execute(context.Background()))

	source, err = p.SourceRepo.GetSource("global")
	require.NoError(t, err)
	assert.Nil(t, source)

	snapshot, err := p.SnapshotRepo.GetSnapshot("global")
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	_, ok := p.Registry.Get("global")
	assert.False(t, ok)
	assert.Equal(t, 0, testutil.CollectAndCount(p.Metrics.FeedItems))
}

func TestTask(t *testing.T) {
	a := NewTask(TaskTypeLoadFeed, "global")
	b := NewTask(TaskTypeLoadFeed, "global")

	assert.NotEqual(t, a.GetID(), b.GetID())
	assert.Len(t, a.GetID(), 36)
	assert.Equal(t, "global", a.GetFeedName())
	assert.Equal(t, time.Duration(0), a.GetDuration())

	assert.True(t, a.CanRetry())
	for i := 0; i < DefaultMaxRetries; i++ {
		a.IncrementRetryCount()
	}
	assert.False(t, a.CanRetry())
	assert.Equal(t, DefaultMaxRetries, a.GetRetryCount())

	a.Start()
	assert.GreaterOrEqual(t, a.GetDuration(), time.Duration(0))
}
