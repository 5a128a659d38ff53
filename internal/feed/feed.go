// Package feed turns a loaded set of confessions into the sequence a user sees.
package feed

import (
	"sort"
	"strings"

	"confessions/internal/models"
)

// SortBy selects the feed ordering.
type SortBy string

const (
	SortRecent  SortBy = "recent"
	SortPopular SortBy = "popular"
	SortRelated SortBy = "related"
)

// Query is what the user typed and picked above the feed.
type Query struct {
	SearchTerm string          `json:"q"`
	Category   models.Category `json:"category"`
	SortBy     SortBy          `json:"sort"`
}

// ParseSortBy maps user input to a SortBy. Unknown values sort by recency.
func ParseSortBy(s string) SortBy {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case SortPopular:
		return SortPopular
	case SortRelated:
		return SortRelated
	default:
		return SortRecent
	}
}

// Compose filters posts by search term and category, then sorts the result
// stably. posts is not modified; the returned slice is new but shares the
// element pointers.
func Compose(posts []*models.Confession, q Query) []*models.Confession {
	term := strings.ToLower(q.SearchTerm)
	out := make([]*models.Confession, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		if !matchesCategory(p, q.Category) || !matchesSearch(p, term) {
			continue
		}
		out = append(out, p)
	}

	var less func(a, b *models.Confession) bool
	switch q.SortBy {
	case SortPopular:
		less = func(a, b *models.Confession) bool { return a.HugCount > b.HugCount }
	case SortRelated:
		less = func(a, b *models.Confession) bool { return a.RelateCount > b.RelateCount }
	default:
		less = func(a, b *models.Confession) bool { return a.CreatedDate.After(b.CreatedDate) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func matchesCategory(p *models.Confession, c models.Category) bool {
	return c == "" || c == models.CategoryAll || p.Category == c
}

// term must already be lower-cased.
func matchesSearch(p *models.Confession, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Content), term)
}

// Summary is the header line above the feed.
type Summary struct {
	Posts int   `json:"posts"`
	Hugs  int64 `json:"hugs"`
}

// Summarize counts posts and total hugs.
func Summarize(posts []*models.Confession) Summary {
	var s Summary
	for _, p := range posts {
		if p == nil {
			continue
		}
		s.Posts++
		s.Hugs += p.HugCount
	}
	return s
}
