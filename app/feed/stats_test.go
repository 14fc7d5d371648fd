package feed

import (
	"testing"
	"time"
)

func TestComputeStats(t *testing.T) {
	feed := fiveItemFeed()
	feed.Items[0].PublishedAt = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	feed.Items[0].IsNew = true
	feed.Items[4].PublishedAt = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	stats := ComputeStats(feed, now)

	if stats.Total != 5 {
		t.Errorf("Expected total 5, got %d", stats.Total)
	}
	if stats.National != 3 || stats.International != 2 {
		t.Errorf("Expected 3 national and 2 international, got %d and %d", stats.National, stats.International)
	}
	if stats.New != 1 {
		t.Errorf("Expected 1 new item, got %d", stats.New)
	}
	if stats.ByCategory["econ"] != 3 || stats.ByCategory["sports"] != 2 {
		t.Errorf("Unexpected category counts: %v", stats.ByCategory)
	}
	if stats.ByMonth["2024-06"] != 4 || stats.ByMonth["2024-05"] != 1 {
		t.Errorf("Unexpected month counts: %v", stats.ByMonth)
	}
	if stats.TopCategory == nil || stats.TopCategory.Slug != "econ" {
		t.Errorf("Expected top category econ, got %v", stats.TopCategory)
	}
	if !stats.Live {
		t.Error("Expected feed to be live")
	}
	if stats.LastUpdate != "Hace 3h" {
		t.Errorf("Expected 'Hace 3h', got '%s'", stats.LastUpdate)
	}
	if stats.Period != "Mayo de 2024 - Junio de 2024" {
		t.Errorf("Expected 'Mayo de 2024 - Junio de 2024', got '%s'", stats.Period)
	}
	if stats.Newest == nil || !stats.Newest.Equal(feed.Items[0].PublishedAt) {
		t.Errorf("Unexpected newest: %v", stats.Newest)
	}
	if stats.Oldest == nil || !stats.Oldest.Equal(feed.Items[4].PublishedAt) {
		t.Errorf("Unexpected oldest: %v", stats.Oldest)
	}
}

func TestComputeStats_TopCategoryTieUsesDeclaredOrder(t *testing.T) {
	feed := &Feed{
		Items: []NewsItem{
			newsItem("a", "2024-06", "sports", ScopeNational),
			newsItem("b", "2024-06", "econ", ScopeNational),
		},
		Categories: []Category{{Slug: "econ"}, {Slug: "sports"}},
	}

	stats := ComputeStats(feed, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))

	if stats.TopCategory == nil || stats.TopCategory.Slug != "econ" {
		t.Errorf("Expected econ on tie, got %v", stats.TopCategory)
	}
	if stats.Live {
		t.Error("Expected feed not to be live")
	}
	if stats.Period != "Junio de 2024" {
		t.Errorf("Expected 'Junio de 2024', got '%s'", stats.Period)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	for _, feed := range []*Feed{nil, {}} {
		stats := ComputeStats(feed, time.Now())
		if stats.Total != 0 || stats.Period != "Sin datos" || stats.TopCategory != nil {
			t.Errorf("Unexpected stats for empty feed: %+v", stats)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		ago      time.Duration
		expected string
	}{
		{0, "Ahora mismo"},
		{59 * time.Second, "Ahora mismo"},
		{time.Minute, "Hace 1m"},
		{45 * time.Minute, "Hace 45m"},
		{time.Hour, "Hace 1h"},
		{23*time.Hour + 59*time.Minute, "Hace 23h"},
		{24 * time.Hour, "Hace 1d"},
		{6 * 24 * time.Hour, "Hace 6d"},
		{13 * 24 * time.Hour, "2 jun"},
		{14*24*time.Hour + 12*time.Hour, "1 jun"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := RelativeTime(now.Add(-tt.ago), now); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestFormatMonth(t *testing.T) {
	tests := map[string]string{
		"2024-06": "Jun 2024",
		"2024-01": "Ene 2024",
		"2023-09": "Sept 2023",
		"invalid": "invalid",
		"2024-13": "2024-13",
	}

	for key, expected := range tests {
		if got := FormatMonth(key); got != expected {
			t.Errorf("FormatMonth(%q): expected '%s', got '%s'", key, expected, got)
		}
	}
}

func TestPeriodRange(t *testing.T) {
	month := func(y int, m time.Month) time.Time {
		return time.Date(y, m, 10, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		oldest   time.Time
		newest   time.Time
		expected string
	}{
		{"same month", month(2024, time.June), month(2024, time.June), "Junio de 2024"},
		{"two months", month(2024, time.May), month(2024, time.June), "Mayo de 2024 - Junio de 2024"},
		{"across years", month(2023, time.December), month(2024, time.February), "Diciembre de 2023 - Febrero de 2024"},
		{"six months", month(2024, time.January), month(2024, time.July), "Enero de 2024 - Julio de 2024"},
		{"seven months", month(2024, time.January), month(2024, time.August), "Feed perpetuo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodRange(tt.oldest, tt.newest); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}
