package feed

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	shortMonths = [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"}
	longMonths  = [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// A span wider than this many months is shown as a rolling feed.
const perpetualPeriodMonths = 6

type Stats struct {
	Total         int            `json:"total"`
	National      int            `json:"national"`
	International int            `json:"international"`
	New           int            `json:"new"`
	ByCategory    map[string]int `json:"by_category"`
	ByMonth       map[string]int `json:"by_month"`
	TopCategory   *Category      `json:"top_category,omitempty"`
	Newest        *time.Time     `json:"newest,omitempty"`
	Oldest        *time.Time     `json:"oldest,omitempty"`
	LastUpdate    string         `json:"last_update"`
	Period        string         `json:"period"`
	Live          bool           `json:"live"`
}

func ComputeStats(f *Feed, now time.Time) Stats {
	stats := Stats{
		ByCategory: make(map[string]int),
		ByMonth:    make(map[string]int),
		Period:     "Sin datos",
	}
	if f == nil || len(f.Items) == 0 {
		return stats
	}

	stats.Total = len(f.Items)
	for _, item := range f.Items {
		switch item.Scope {
		case ScopeNational:
			stats.National++
		case ScopeInternational:
			stats.International++
		}
		if item.IsNew {
			stats.New++
		}
		stats.ByCategory[item.Category]++
		stats.ByMonth[item.Month]++
	}

	best := 0
	for _, c := range f.Categories {
		if n := stats.ByCategory[c.Slug]; n > best {
			best = n
			top := c
			stats.TopCategory = &top
		}
	}

	// Items are sorted newest first.
	newest := f.Items[0].PublishedAt
	oldest := f.Items[len(f.Items)-1].PublishedAt
	stats.Newest = &newest
	stats.Oldest = &oldest
	stats.LastUpdate = RelativeTime(newest, now)
	stats.Live = now.Sub(newest) < 24*time.Hour
	stats.Period = PeriodRange(oldest, newest)

	return stats
}

// RelativeTime renders how long ago t was, the way the report headers show it.
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Ahora mismo"
	case diff < time.Hour:
		return fmt.Sprintf("Hace %dm", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("Hace %dh", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("Hace %dd", int(diff/(24*time.Hour)))
	}
	return fmt.Sprintf("%d %s", t.Day(), shortMonths[t.Month()-1])
}

// FormatMonth turns a YYYY-MM key into a chip label such as "Jun 2024".
// Keys that do not parse are returned unchanged.
func FormatMonth(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("%s %d", titleES(shortMonths[t.Month()-1]), t.Year())
}

func PeriodRange(oldest, newest time.Time) string {
	from := longMonthLabel(oldest)
	to := longMonthLabel(newest)
	if from == to {
		return from
	}

	months := (newest.Year()-oldest.Year())*12 + int(newest.Month()) - int(oldest.Month())
	if months > perpetualPeriodMonths {
		return "Feed perpetuo"
	}

	return from + " - " + to
}

func longMonthLabel(t time.Time) string {
	return fmt.Sprintf("%s de %d", titleES(longMonths[t.Month()-1]), t.Year())
}

// Casers carry state and are not shared between goroutines.
func titleES(s string) string {
	return cases.Title(language.Spanish).String(s)
}
