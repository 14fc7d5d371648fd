package feed

import (
	"time"
)

// News item types

type Scope string

const (
	ScopeNational      Scope = "national"
	ScopeInternational Scope = "international"
	ScopeUnknown       Scope = "unknown"
)

type Category struct {
	Slug  string `json:"slug" yaml:"slug"`
	Name  string `json:"name" yaml:"name"`
	Icon  string `json:"icon" yaml:"icon"`
	Color string `json:"color" yaml:"color"`
}

type NewsItem struct {
	Title             string    `json:"title"`
	PublishedAt       time.Time `json:"published_at"`
	Month             string    `json:"month"` // YYYY-MM in the feed location
	Scope             Scope     `json:"scope"`
	Category          string    `json:"category"`
	Outlet            string    `json:"outlet"`
	Summary           string    `json:"summary,omitempty"`
	ImageURL          string    `json:"image_url"`
	UsesFallbackImage bool      `json:"uses_fallback_image"`
	Tags              []string  `json:"tags,omitempty"`
	URL               string    `json:"url"`
	IsNew             bool      `json:"is_new"`
}

// Feed is the normalized aggregate for one load of a source. It is never
// mutated after Normalizer.Run returns; reloads replace it wholesale.
type Feed struct {
	Source     string     `json:"source"`
	Items      []NewsItem `json:"items"`
	Categories []Category `json:"categories"`
	LoadedAt   time.Time  `json:"loaded_at"`

	categoryIndex map[string]int
}

func (f *Feed) Category(slug string) (Category, bool) {
	i, ok := f.categoryIndex[slug]
	if !ok {
		return Category{}, false
	}
	return f.Categories[i], true
}

// Raw payload types, as published by the report builder

type RawPayload struct {
	Success    *bool
	Items      []RawItem // nil when the collection is absent
	Categories []RawCategory
}

type RawItem struct {
	Date     string   `json:"fecha"`
	Title    string   `json:"titulo"`
	Category string   `json:"categoria"`
	Scope    string   `json:"alcance"`
	Outlet   string   `json:"medio"`
	URL      string   `json:"url"`
	Summary  string   `json:"resumen"`
	Image    string   `json:"imagen"`
	Tags     []string `json:"tags"`

	decodeErr error
}

type RawCategory struct {
	Slug  string `json:"Slug"`
	Name  string `json:"Nombre"`
	Icon  string `json:"Icono"`
	Color string `json:"Color"`
}

// Configuration types

type Config struct {
	Name       string         // Derived from filename (without extension)
	URL        string         `yaml:"url"`
	Format     string         `yaml:"format"`   // json or rss
	Category   string         `yaml:"category"` // rss only: slug assigned to every entry
	Scope      string         `yaml:"scope"`    // rss only
	Categories []Category     `yaml:"categories"`
	Settings   ConfigSettings `yaml:"settings"`
}

const (
	FormatJSON = "json"
	FormatRSS  = "rss"
)

type ConfigSettings struct {
	Enabled            bool     `yaml:"enabled"`
	RefreshInterval    int      `yaml:"refresh_interval"` // seconds
	Timeout            int      `yaml:"timeout"`          // seconds
	FreshnessDays      int      `yaml:"freshness_days"`
	FallbackImage      string   `yaml:"fallback_image"`
	PlaceholderDomains []string `yaml:"placeholder_domains"`
	SummaryLength      int      `yaml:"summary_length"` // runes, rss only
}

func (s ConfigSettings) GetRefreshInterval() time.Duration {
	return time.Duration(s.RefreshInterval) * time.Second
}

func (s ConfigSettings) GetTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
