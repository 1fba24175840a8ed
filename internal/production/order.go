package production

import (
	"github.com/Simplici0/producao/internal/costing"
)

// OrderCosts is the cost snapshot stored with a production order.
type OrderCosts struct {
	ReferenceBom ReferenceBom
	Breakdown    CostBreakdown
	Projection   costing.ProjectionResult
	TotalCost    float64
	UnitCost     float64
}

// BuildOrderCosts projects the costs of an order planned from bom. A nil bom
// projects the order extras over no material lines.
func BuildOrderCosts(bom *BomRecord, in OrderInput) OrderCosts {
	costs := in.Costs
	costs.QuantityPlanned = in.QuantityPlanned

	var (
		lines []costing.BomLine
		out   OrderCosts
	)
	if bom != nil {
		lines = bom.Items
		out.ReferenceBom = ReferenceBom{
			ProductCode:  bom.ProductCode,
			Version:      bom.Version,
			LotSize:      bom.LotSize,
			ValidityDays: bom.ValidityDays,
		}

		def := bom.BomDefinition
		if in.QuantityPlanned > 0 {
			def.LotSize = in.QuantityPlanned
		}
		totals := costing.ComputeBomTotals(def)
		out.Breakdown = CostBreakdown{
			Ingredients: totals.Ingredients,
			Labor:       totals.Labor,
			Packaging:   totals.Packaging,
			Taxes:       totals.Taxes,
			Overhead:    totals.Overhead,
		}
	}

	out.Projection = costing.ComputeProductionProjection(lines, costs, in.Direction)
	out.TotalCost = out.Projection.TotalWithExtras
	out.UnitCost = out.Projection.ProductionUnitCost
	return out
}

// Apply copies the snapshot onto order and aligns the editable price pair with
// the projection.
func (c OrderCosts) Apply(order *ProductionOrder) {
	order.ReferenceBom = c.ReferenceBom
	order.Breakdown = c.Breakdown
	order.Projection = c.Projection
	order.TotalCost = c.TotalCost
	order.UnitCost = c.UnitCost
	order.Costs.SalePrice = c.Projection.SalePrice
	order.Costs.Markup = c.Projection.Markup
}

// LinesFromProjection rebuilds BOM lines from a stored projection snapshot.
func LinesFromProjection(p costing.ProjectionResult) []costing.BomLine {
	lines := make([]costing.BomLine, 0, len(p.Lines))
	for _, l := range p.Lines {
		lines = append(lines, costing.BomLine{
			ComponentCode: l.ComponentCode,
			Description:   l.Description,
			Quantity:      l.Quantity,
			UnitCost:      l.UnitCost,
		})
	}
	return lines
}

// SnapshotBom rebuilds the BOM an order was planned from out of its stored
// snapshot. It returns nil when the order carries no material lines.
func SnapshotBom(order ProductionOrder) *BomRecord {
	if len(order.Projection.Lines) == 0 {
		return nil
	}
	rec := BomRecord{
		ID: order.BomID,
		BomDefinition: costing.BomDefinition{
			ProductCode:  order.ReferenceBom.ProductCode,
			Version:      order.ReferenceBom.Version,
			LotSize:      order.ReferenceBom.LotSize,
			ValidityDays: order.ReferenceBom.ValidityDays,
			Items:        LinesFromProjection(order.Projection),
		},
	}
	return &rec
}
