package shopping

import (
	"strings"

	"github.com/robsonsouzans/listans/internal/model"
)

// FilterGroups applies a free-text query to a snapshot. A group is retained
// when its name contains the query (case-insensitive) or at least one of its
// items does; a group retained only through its items shows just the matching
// items. An empty query returns the snapshot unchanged.
func FilterGroups(groups []model.Group, query string) []model.Group {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return groups
	}

	filtered := make([]model.Group, 0, len(groups))
	for _, g := range groups {
		nameMatches := strings.Contains(strings.ToLower(g.Name), query)

		matching := make([]model.Item, 0, len(g.Items))
		for _, item := range g.Items {
			if strings.Contains(strings.ToLower(item.Name), query) {
				matching = append(matching, item)
			}
		}

		switch {
		case nameMatches:
			// A group matched by name keeps all of its items visible.
			filtered = append(filtered, g)
		case len(matching) > 0:
			g.Items = matching
			filtered = append(filtered, g)
		}
	}

	return filtered
}
