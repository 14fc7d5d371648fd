package api

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/database"
	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/logger"
	"github.com/lysyi3m/media-report/app/metrics"
	"github.com/lysyi3m/media-report/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, registry *feed.Registry, filterer FiltererInterface,
	sourceRepo database.SourceRepository, scheduler tasks.TaskSchedulerInterface, m *metrics.Metrics) *Handler {
	return &Handler{
		configCache: configCache,
		registry:    registry,
		filterer:    filterer,
		sourceRepo:  sourceRepo,
		scheduler:   scheduler,
		metrics:     m,
		now:         time.Now,
	}
}

// loadedFeed resolves the Feed for the :name route parameter. It writes the
// error response itself and returns false when there is nothing to serve.
func (h *Handler) loadedFeed(c *gin.Context) (*feed.Feed, bool) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil || !feedConfig.Settings.Enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report source not found"})
		return nil, false
	}

	loaded, ok := h.registry.Get(name)
	if !ok {
		body := gin.H{"error": "Report not loaded yet"}
		if loadErr := h.registry.Failure(name); loadErr != nil {
			body["details"] = loadErr.Error()
		}
		c.Header("Retry-After", strconv.Itoa(feedConfig.Settings.RefreshInterval))
		c.JSON(http.StatusServiceUnavailable, body)
		return nil, false
	}

	return loaded, true
}

func (h *Handler) GetReport(c *gin.Context) {
	loaded, ok := h.loadedFeed(c)
	if !ok {
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(loaded.Items)))
	c.Header("X-Last-Updated", loaded.LoadedAt.Format(time.RFC3339))
	c.JSON(http.StatusOK, loaded)
}

func (h *Handler) GetView(c *gin.Context) {
	started := time.Now()

	loaded, ok := h.loadedFeed(c)
	if !ok {
		return
	}

	var sel feed.Selection
	if err := c.ShouldBindQuery(&sel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid selection", "details": err.Error()})
		return
	}

	response := ViewResponse{ViewResult: h.filterer.Run(loaded, sel)}
	if group, _ := strconv.ParseBool(c.Query("group")); group {
		response.Groups = feed.Group(response.VisibleItems, loaded.Categories)
	}

	if h.metrics != nil {
		h.metrics.ObserveView(loaded.Source, started)
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetStats(c *gin.Context) {
	loaded, ok := h.loadedFeed(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, feed.ComputeStats(loaded, h.now()))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": h.now().Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()
	health["loaded_reports"] = len(h.registry.Names())

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make(map[string]database.Source)
	stored, err := h.sourceRepo.GetSources()
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"operation": "get_sources", "error": err}).Error("Database error")
	}
	for _, source := range stored {
		rows[source.Name] = source
	}

	sources := make([]map[string]interface{}, 0, len(configs))

	for _, name := range names {
		feedConfig := configs[name]
		sourceInfo := map[string]interface{}{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"format":           feedConfig.Format,
			"enabled":          feedConfig.Settings.Enabled,
			"refresh_interval": feedConfig.Settings.GetRefreshInterval().String(),
			"freshness_days":   feedConfig.Settings.FreshnessDays,
		}

		_, loaded := h.registry.Get(name)
		sourceInfo["loaded"] = loaded

		if source, ok := rows[name]; ok {
			sourceInfo["last_fetched_at"] = source.LastFetchedAt
			sourceInfo["last_loaded_at"] = source.LastLoadedAt
			sourceInfo["next_fetch_at"] = source.NextFetchAt
			sourceInfo["last_error"] = source.LastError
			sourceInfo["item_count"] = source.ItemCount
			sourceInfo["warning_count"] = source.WarningCount
		}

		sources = append(sources, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		logger.Log.WithFields(logrus.Fields{"feed": name, "error": err}).Error("Source configuration not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"feed": name, "error": err}).Error("Error reloading configuration")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	queued, err := h.scheduler.Reload(feedConfig)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"feed": name, "error": err}).Error("Error enqueueing reload tasks")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue reload tasks",
			"details": err.Error(),
		})
		return
	}

	taskList := make([]gin.H, 0, len(queued))
	for _, task := range queued {
		taskList = append(taskList, gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued successfully",
		"source": gin.H{
			"name":    name,
			"url":     feedConfig.URL,
			"format":  feedConfig.Format,
			"enabled": feedConfig.Settings.Enabled,
		},
		"tasks": taskList,
	})
}
