package costing

// Fixed-ratio overhead model applied on top of ingredient cost.
const (
	LaborRatio     = 0.12
	PackagingRatio = 0.08
	TaxRatio       = 0.10
	OverheadRatio  = 0.05
)

// BomLine is one raw-material entry of a formula.
type BomLine struct {
	ComponentCode string
	Description   string
	Quantity      float64
	UnitCost      float64
}

// BomDefinition represents a bill of materials (ficha técnica) for one product version.
type BomDefinition struct {
	ProductCode    string
	Version        string
	LotSize        float64
	ValidityDays   int
	MarginTarget   float64
	MarginAchieved float64
	Items          []BomLine
	Notes          string
}

// BomTotals contains the cost breakdown derived from a BomDefinition.
//
// MarginAchieved is the percentage by which the unit cost sits below
// MarginTarget (negative when above). It is measured against a target cost,
// not against a sale price.
type BomTotals struct {
	Ingredients    float64
	Labor          float64
	Packaging      float64
	Taxes          float64
	Overhead       float64
	Total          float64
	Unit           float64
	MarginAchieved float64
}

// ComputeBomTotals computes the cost breakdown and achieved margin of a BOM.
func ComputeBomTotals(def BomDefinition) BomTotals {
	ingredients := 0.0
	for _, item := range def.Items {
		ingredients += item.Quantity * item.UnitCost
	}

	// lot size is never used as a divisor below 1
	lotSize := def.LotSize
	if !(lotSize >= 1) {
		lotSize = 1
	}

	labor := ingredients * LaborRatio
	packaging := ingredients * PackagingRatio
	taxes := ingredients * TaxRatio
	overhead := ingredients * OverheadRatio

	total := ingredients + labor + packaging + taxes + overhead
	unit := total / lotSize

	marginAchieved := 0.0
	if def.MarginTarget > 0 {
		marginAchieved = ((def.MarginTarget - unit) / def.MarginTarget) * 100
	}

	return BomTotals{
		Ingredients:    ingredients,
		Labor:          labor,
		Packaging:      packaging,
		Taxes:          taxes,
		Overhead:       overhead,
		Total:          total,
		Unit:           unit,
		MarginAchieved: marginAchieved,
	}
}
