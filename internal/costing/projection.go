package costing

// PriceDirection selects which of sale price or markup was edited last and
// therefore drives the other.
type PriceDirection int

const (
	// PriceFromMarkup derives the sale price from the markup.
	PriceFromMarkup PriceDirection = iota
	// PriceFromSalePrice derives the markup from the sale price.
	PriceFromSalePrice
)

func (d PriceDirection) String() string {
	if d == PriceFromSalePrice {
		return "sale_price"
	}
	return "markup"
}

// ProductionOrderCostInputs are the user-editable figures of a production order.
// Markup and PostSaleTax are percentages.
type ProductionOrderCostInputs struct {
	QuantityPlanned float64
	BoxesQty        float64
	BoxCost         float64
	LaborPerUnit    float64
	SalePrice       float64
	Markup          float64
	PostSaleTax     float64
}

// PlannedLine is a BOM line scaled to the planned quantity of an order.
type PlannedLine struct {
	ComponentCode   string
	Description     string
	Quantity        float64
	PlannedQuantity float64
	UnitCost        float64
	PlannedCost     float64
}

// ProjectionResult holds the unit and lot figures of a production order.
type ProjectionResult struct {
	Lines []PlannedLine

	TotalQuantity        float64
	TotalRawMaterialCost float64

	BaseUnitMaterialCost float64
	PackagingUnitCost    float64
	ProductionUnitCost   float64
	TotalWithExtras      float64

	SalePrice float64
	Markup    float64

	RevenueTotal     float64
	PostSaleTaxValue float64
	NetRevenueTotal  float64
	ProfitTotal      float64
}

// DeriveSalePrice returns the sale price obtained by applying markup (%) to unitCost.
func DeriveSalePrice(unitCost, markup float64) float64 {
	return unitCost * (1 + markup/100)
}

// DeriveMarkup returns the markup (%) that turns unitCost into salePrice.
// It is 0 when unitCost is not positive.
func DeriveMarkup(unitCost, salePrice float64) float64 {
	if unitCost <= 0 {
		return 0
	}
	return ((salePrice - unitCost) / unitCost) * 100
}

// ComputeProductionProjection scales BOM lines to the planned quantity, adds
// packaging and labor extras and derives sale price or markup according to dir.
//
// Line quantities are per unit of finished product. A planned quantity that is
// not positive yields a zero projection.
func ComputeProductionProjection(lines []BomLine, in ProductionOrderCostInputs, dir PriceDirection) ProjectionResult {
	qty := in.QuantityPlanned
	if !(qty > 0) {
		qty = 0
	}

	res := ProjectionResult{Lines: make([]PlannedLine, 0, len(lines))}
	for _, line := range lines {
		planned := PlannedLine{
			ComponentCode:   line.ComponentCode,
			Description:     line.Description,
			Quantity:        line.Quantity,
			PlannedQuantity: line.Quantity * qty,
			UnitCost:        line.UnitCost,
		}
		planned.PlannedCost = planned.PlannedQuantity * line.UnitCost

		res.TotalQuantity += planned.PlannedQuantity
		res.TotalRawMaterialCost += planned.PlannedCost
		res.Lines = append(res.Lines, planned)
	}

	if qty > 0 {
		res.BaseUnitMaterialCost = res.TotalRawMaterialCost / qty
		res.PackagingUnitCost = (in.BoxesQty * in.BoxCost) / qty
		res.ProductionUnitCost = res.BaseUnitMaterialCost + res.PackagingUnitCost + in.LaborPerUnit
		res.TotalWithExtras = res.ProductionUnitCost * qty
	}

	switch dir {
	case PriceFromSalePrice:
		res.SalePrice = in.SalePrice
		res.Markup = DeriveMarkup(res.ProductionUnitCost, in.SalePrice)
	default:
		res.Markup = in.Markup
		res.SalePrice = DeriveSalePrice(res.ProductionUnitCost, in.Markup)
	}

	res.RevenueTotal = res.SalePrice * qty
	res.PostSaleTaxValue = res.RevenueTotal * (in.PostSaleTax / 100)
	res.NetRevenueTotal = res.RevenueTotal - res.PostSaleTaxValue
	res.ProfitTotal = res.RevenueTotal - (res.TotalWithExtras + res.PostSaleTaxValue)

	return res
}
