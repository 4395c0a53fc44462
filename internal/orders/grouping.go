package orders

import (
	"slices"

	"github.com/samber/lo"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/payments"
)

// supplierGroup is every resolved line of one order owed to one supplier.
type supplierGroup struct {
	supplierID   string
	supplierName string
	lines        []resolvedLine
}

// groupBySupplier groups lines by supplier, ordered by supplier id so runs
// are reproducible.
func groupBySupplier(lines []resolvedLine) []supplierGroup {
	bySupplier := lo.GroupBy(lines, func(l resolvedLine) string { return l.binding.SupplierID })
	ids := lo.Keys(bySupplier)
	slices.Sort(ids)

	groups := make([]supplierGroup, 0, len(ids))
	for _, id := range ids {
		members := bySupplier[id]
		groups = append(groups, supplierGroup{
			supplierID:   id,
			supplierName: members[0].binding.SupplierName,
			lines:        members,
		})
	}
	return groups
}

// obligationLines maps a group to obligation lines priced at the supplier's
// production price.
func obligationLines(group supplierGroup) []payments.Line {
	return lo.Map(group.lines, func(l resolvedLine, _ int) payments.Line {
		return payments.Line{
			ProductID: l.productID,
			SKU:       l.line.SKU,
			Quantity:  l.line.Quantity,
			UnitPrice: l.binding.ProductionPrice,
			Image:     l.line.ImageURL,
		}
	})
}
