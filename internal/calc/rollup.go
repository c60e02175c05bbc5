package calc

import (
	"github.com/sells-group/bidquote/internal/model"
)

// RollupParents fills every unset parent amount with the sum of its
// immediate children's amounts, walking the tree bottom-up so nested
// parents see their children's rolled-up values. A parent whose children
// sum to 0 stays unset. Amounts that are already set are never changed, so
// a second call is a no-op.
func RollupParents(items []*model.EstimateItem) error {
	tree, err := model.BuildTree(items)
	if err != nil {
		return err
	}

	// Children always follow their parent, so reverse index order visits
	// every child before its parent.
	for i := len(items) - 1; i >= 0; i-- {
		node := tree.Nodes[i]
		if len(node.Children) == 0 || items[i].Amount != nil {
			continue
		}
		sum := 0.0
		for _, c := range node.Children {
			sum += items[c].AmountOrZero()
		}
		if sum > 0 {
			items[i].Amount = &sum
		}
	}
	return nil
}

// RootTotal sums the amounts of level-0 items, skipping overhead items when
// excludeOverhead is set.
func RootTotal(items []*model.EstimateItem, excludeOverhead bool) float64 {
	total := 0.0
	for _, it := range items {
		if it.Level != 0 {
			continue
		}
		if excludeOverhead && it.CostType == model.CostTypeOverhead {
			continue
		}
		total += it.AmountOrZero()
	}
	return total
}
