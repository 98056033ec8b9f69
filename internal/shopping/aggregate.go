// Package shopping implements the shopping data store and the aggregation
// engine over groups and items.
package shopping

import (
	"math"

	"github.com/robsonsouzans/listans/internal/model"
)

// LineTotal returns quantity times unit price for one item.
func LineTotal(item model.Item) model.Cents {
	return item.Price.Mul(item.Quantity)
}

// GroupTotal returns the sum of line totals of a group's items. An empty
// group totals zero.
func GroupTotal(group model.Group) model.Cents {
	var total model.Cents
	for _, item := range group.Items {
		total += LineTotal(item)
	}
	return total
}

// GrandTotal returns the sum of group totals over all groups.
func GrandTotal(groups []model.Group) model.Cents {
	var total model.Cents
	for _, g := range groups {
		total += GroupTotal(g)
	}
	return total
}

// PurchasedTotal returns the sum of line totals of purchased items across all
// groups. It never exceeds GrandTotal.
func PurchasedTotal(groups []model.Group) model.Cents {
	var total model.Cents
	for _, g := range groups {
		for _, item := range g.Items {
			if item.Purchased {
				total += LineTotal(item)
			}
		}
	}
	return total
}

// PurchasedCount returns the number of purchased items in a group.
func PurchasedCount(group model.Group) int {
	count := 0
	for _, item := range group.Items {
		if item.Purchased {
			count++
		}
	}
	return count
}

// ItemCount returns the total number of items across all groups.
func ItemCount(groups []model.Group) int {
	count := 0
	for _, g := range groups {
		count += len(g.Items)
	}
	return count
}

// TotalPurchasedCount returns the number of purchased items across all groups.
func TotalPurchasedCount(groups []model.Group) int {
	count := 0
	for _, g := range groups {
		count += PurchasedCount(g)
	}
	return count
}

// ProgressRatio returns the exact purchased ratio of a group on a 0-100
// scale. An empty group has zero progress. Rounding happens only at the
// display edge.
func ProgressRatio(group model.Group) float64 {
	if len(group.Items) == 0 {
		return 0
	}
	return 100 * float64(PurchasedCount(group)) / float64(len(group.Items))
}

// GlobalProgressRatio returns the exact purchased ratio across all groups on
// a 0-100 scale.
func GlobalProgressRatio(groups []model.Group) float64 {
	total := ItemCount(groups)
	if total == 0 {
		return 0
	}
	return 100 * float64(TotalPurchasedCount(groups)) / float64(total)
}

// Summarize renders the display form of the aggregates: percentages rounded
// to the nearest whole number, monetary totals formatted to two decimals.
func Summarize(listID string, groups []model.Group) model.ListSummary {
	grand := GrandTotal(groups)
	purchased := PurchasedTotal(groups)

	summary := model.ListSummary{
		ListID:                listID,
		GrandTotal:            grand,
		GrandTotalDisplay:     grand.String(),
		PurchasedTotal:        purchased,
		PurchasedTotalDisplay: purchased.String(),
		TotalItems:            ItemCount(groups),
		TotalPurchased:        TotalPurchasedCount(groups),
		GlobalProgressPercent: int(math.Round(GlobalProgressRatio(groups))),
		Groups:                make([]model.GroupSummary, 0, len(groups)),
	}

	for _, g := range groups {
		total := GroupTotal(g)
		summary.Groups = append(summary.Groups, model.GroupSummary{
			GroupID:         g.ID,
			Total:           total,
			TotalDisplay:    total.String(),
			ItemCount:       len(g.Items),
			PurchasedCount:  PurchasedCount(g),
			ProgressPercent: int(math.Round(ProgressRatio(g))),
		})
	}

	return summary
}
