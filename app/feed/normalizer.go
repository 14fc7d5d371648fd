package feed

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	DefaultFreshnessDays = 7
	DefaultFallbackImage = "https://placehold.co/400x240/122864/FFFFFF?text=Global+Exchange"
)

var DefaultPlaceholderDomains = []string{"placehold.co"}

type Normalizer struct {
	FreshnessWindow    time.Duration
	FallbackImage      string
	PlaceholderDomains []string
	Location           *time.Location
	Now                func() time.Time
}

func NewNormalizer(settings ConfigSettings, loc *time.Location) *Normalizer {
	days := settings.FreshnessDays
	if days <= 0 {
		days = DefaultFreshnessDays
	}

	domains := settings.PlaceholderDomains
	if len(domains) == 0 {
		domains = DefaultPlaceholderDomains
	}

	return &Normalizer{
		FreshnessWindow:    time.Duration(days) * 24 * time.Hour,
		FallbackImage:      cmp.Or(settings.FallbackImage, DefaultFallbackImage),
		PlaceholderDomains: domains,
		Location:           cmp.Or(loc, time.Local),
		Now:                time.Now,
	}
}

// Run validates the payload and builds a Feed sorted newest first. Items that
// fail validation are dropped and reported as warnings; the error is non-nil
// only when the payload as a whole is unusable.
func (n *Normalizer) Run(payload *RawPayload) (*Feed, Warnings, error) {
	if payload == nil {
		return nil, nil, &MalformedFeedError{Reason: "payload is empty"}
	}
	if payload.Success == nil {
		return nil, nil, &MalformedFeedError{Reason: "success flag is absent"}
	}
	if !*payload.Success {
		return nil, nil, &MalformedFeedError{Reason: "success flag is false"}
	}
	if payload.Items == nil {
		return nil, nil, &MalformedFeedError{Reason: "items collection is missing"}
	}

	var warnings Warnings

	categories, index, categoryWarnings := n.buildCategories(payload.Categories)
	warnings = append(warnings, categoryWarnings...)

	now := n.Now()
	items := make([]NewsItem, 0, len(payload.Items))
	for i, raw := range payload.Items {
		item, warning, ok := n.normalizeItem(i, raw, index, now)
		if !ok {
			warnings = append(warnings, warning)
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, warnings, &MalformedFeedError{
			Reason:   fmt.Sprintf("no valid items out of %d", len(payload.Items)),
			Warnings: warnings,
		}
	}

	slices.SortStableFunc(items, func(a, b NewsItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	return &Feed{
		Items:         items,
		Categories:    categories,
		LoadedAt:      now,
		categoryIndex: index,
	}, warnings, nil
}

func (n *Normalizer) buildCategories(raw []RawCategory) ([]Category, map[string]int, Warnings) {
	var warnings Warnings
	categories := make([]Category, 0, len(raw))
	index := make(map[string]int, len(raw))

	for i, rc := range raw {
		slug := strings.TrimSpace(rc.Slug)
		if slug == "" {
			warnings = append(warnings, Warning{Kind: WarningInvalidCategory, Index: i, Reason: "category without slug"})
			continue
		}
		if _, exists := index[slug]; exists {
			warnings = append(warnings, Warning{Kind: WarningDuplicateCategory, Index: i, Reason: fmt.Sprintf("category %q declared twice", slug)})
			continue
		}

		index[slug] = len(categories)
		categories = append(categories, Category{
			Slug:  slug,
			Name:  cmp.Or(strings.TrimSpace(rc.Name), slug),
			Icon:  rc.Icon,
			Color: rc.Color,
		})
	}

	return categories, index, warnings
}

func (n *Normalizer) normalizeItem(i int, raw RawItem, index map[string]int, now time.Time) (NewsItem, Warning, bool) {
	title := strings.TrimSpace(raw.Title)
	invalid := func(kind WarningKind, reason string) (NewsItem, Warning, bool) {
		return NewsItem{}, Warning{Kind: kind, Index: i, Title: title, Reason: reason}, false
	}

	if raw.decodeErr != nil {
		return invalid(WarningItemValidation, fmt.Sprintf("undecodable item: %v", raw.decodeErr))
	}

	required := []struct {
		field string
		value string
	}{
		{"title", raw.Title},
		{"date", raw.Date},
		{"category", raw.Category},
		{"url", raw.URL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid(WarningItemValidation, r.field+" is required")
		}
	}

	publishedAt, err := n.parseDate(raw.Date)
	if err != nil {
		return invalid(WarningItemValidation, fmt.Sprintf("unparsable date %q", raw.Date))
	}

	category := strings.TrimSpace(raw.Category)
	if _, ok := index[category]; !ok {
		return invalid(WarningUnknownCategory, fmt.Sprintf("unknown category %q", category))
	}

	imageURL, fallback := n.resolveImage(raw.Image)

	age := now.Sub(publishedAt)

	return NewsItem{
		Title:             title,
		PublishedAt:       publishedAt,
		Month:             MonthKey(publishedAt),
		Scope:             ParseScope(raw.Scope),
		Category:          category,
		Outlet:            strings.TrimSpace(raw.Outlet),
		Summary:           strings.TrimSpace(raw.Summary),
		ImageURL:          imageURL,
		UsesFallbackImage: fallback,
		Tags:              compactTags(raw.Tags),
		URL:               strings.TrimSpace(raw.URL),
		IsNew:             age >= 0 && age <= n.FreshnessWindow,
	}, Warning{}, true
}

func (n *Normalizer) parseDate(value string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(value), n.Location)
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("zero date")
	}
	return t.In(n.Location), nil
}

func (n *Normalizer) resolveImage(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return n.FallbackImage, true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return n.FallbackImage, true
	}

	host := strings.ToLower(u.Hostname())
	for _, domain := range n.PlaceholderDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return n.FallbackImage, true
		}
	}

	return raw, false
}

func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

func ParseScope(value string) Scope {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "nacional", "national":
		return ScopeNational
	case "internacional", "international":
		return ScopeInternational
	default:
		return ScopeUnknown
	}
}

func compactTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
