package feed

import (
	"slices"
	"strings"
)

type CategoryGroup struct {
	Category Category   `json:"category"`
	Items    []NewsItem `json:"items"`
}

type MonthGroup struct {
	Month      string          `json:"month"`
	Label      string          `json:"label"`
	Count      int             `json:"count"`
	Categories []CategoryGroup `json:"categories"`
}

// Group arranges items by month, newest first, then by category in declared
// order. Items keep their relative order inside each group. Slugs that are not
// declared are appended after the declared ones in order of appearance.
func Group(items []NewsItem, categories []Category) []MonthGroup {
	byMonth := make(map[string][]NewsItem)
	var months []string
	for _, item := range items {
		if _, ok := byMonth[item.Month]; !ok {
			months = append(months, item.Month)
		}
		byMonth[item.Month] = append(byMonth[item.Month], item)
	}

	slices.SortFunc(months, func(a, b string) int {
		return strings.Compare(b, a)
	})

	declared := make(map[string]Category, len(categories))
	for _, c := range categories {
		declared[c.Slug] = c
	}

	groups := make([]MonthGroup, 0, len(months))
	for _, month := range months {
		monthItems := byMonth[month]

		byCategory := make(map[string][]NewsItem)
		var undeclared []string
		for _, item := range monthItems {
			if _, ok := declared[item.Category]; !ok {
				if _, seen := byCategory[item.Category]; !seen {
					undeclared = append(undeclared, item.Category)
				}
			}
			byCategory[item.Category] = append(byCategory[item.Category], item)
		}

		group := MonthGroup{
			Month: month,
			Label: FormatMonth(month),
			Count: len(monthItems),
		}
		for _, c := range categories {
			if list := byCategory[c.Slug]; len(list) > 0 {
				group.Categories = append(group.Categories, CategoryGroup{Category: c, Items: list})
			}
		}
		for _, slug := range undeclared {
			group.Categories = append(group.Categories, CategoryGroup{
				Category: Category{Slug: slug, Name: slug},
				Items:    byCategory[slug],
			})
		}

		groups = append(groups, group)
	}

	return groups
}
