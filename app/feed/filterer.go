package feed

import (
	"strings"
)

// AllValues disables a facet.
const AllValues = "all"

type Selection struct {
	Month      string `form:"month" json:"month"`
	Category   string `form:"category" json:"category"`
	Scope      string `form:"scope" json:"scope"`
	SearchTerm string `form:"q" json:"search_term"`
}

type ViewResult struct {
	VisibleItems     []NewsItem     `json:"items"`
	CountsByMonth    map[string]int `json:"counts_by_month"`
	CountsByCategory map[string]int `json:"counts_by_category"`
	CountsByScope    map[Scope]int  `json:"counts_by_scope"`
	TotalVisible     int            `json:"total_visible"`
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run computes the visible subset of the feed for a selection. Each facet's
// counts are taken with that facet released, so a count answers "how many
// items would show if this value were picked".
func (f *Filterer) Run(feed *Feed, sel Selection) ViewResult {
	result := ViewResult{
		VisibleItems:     make([]NewsItem, 0),
		CountsByMonth:    make(map[string]int),
		CountsByCategory: make(map[string]int),
		CountsByScope:    make(map[Scope]int),
	}
	if feed == nil {
		return result
	}

	for _, c := range feed.Categories {
		result.CountsByCategory[c.Slug] = 0
	}

	month := facetValue(sel.Month)
	category := facetValue(sel.Category)
	scope := scopeFacet(sel.Scope)
	term := strings.ToLower(strings.TrimSpace(sel.SearchTerm))

	for _, item := range feed.Items {
		monthOK := month == "" || item.Month == month
		categoryOK := category == "" || item.Category == category
		scopeOK := scope == "" || item.Scope == scope
		searchOK := f.matchesSearch(item, term)

		if _, ok := result.CountsByMonth[item.Month]; !ok {
			result.CountsByMonth[item.Month] = 0
		}
		if _, ok := result.CountsByScope[item.Scope]; !ok {
			result.CountsByScope[item.Scope] = 0
		}

		if categoryOK && scopeOK && searchOK {
			result.CountsByMonth[item.Month]++
		}
		if monthOK && scopeOK && searchOK {
			result.CountsByCategory[item.Category]++
		}
		if monthOK && categoryOK && searchOK {
			result.CountsByScope[item.Scope]++
		}

		if monthOK && categoryOK && scopeOK && searchOK {
			result.VisibleItems = append(result.VisibleItems, item)
		}
	}

	result.TotalVisible = len(result.VisibleItems)
	return result
}

// matchesSearch expects term already lowercased. Tags and category names are
// deliberately not searched.
func (f *Filterer) matchesSearch(item NewsItem, term string) bool {
	if term == "" {
		return true
	}
	for _, value := range []string{item.Title, item.Outlet, item.Summary} {
		if strings.Contains(strings.ToLower(value), term) {
			return true
		}
	}
	return false
}

func facetValue(value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, AllValues) {
		return ""
	}
	return value
}

func scopeFacet(value string) Scope {
	value = facetValue(value)
	if value == "" {
		return ""
	}
	if scope := ParseScope(value); scope != ScopeUnknown {
		return scope
	}
	return Scope(strings.ToLower(value))
}
