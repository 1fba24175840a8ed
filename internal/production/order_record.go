package production

import (
	"errors"
	"strings"

	"github.com/Simplici0/producao/internal/costing"
)

var ErrUnknownDirection = errors.New("last_edited deve ser sale_price ou markup")

// ReferenceBomAPIRecord is the wire shape of ReferenceBom.
type ReferenceBomAPIRecord struct {
	ProductCode  string  `json:"product_code"`
	Version      string  `json:"version"`
	LotSize      float64 `json:"lot_size"`
	ValidityDays int     `json:"validity_days"`
}

// BomTotalsSummaryAPIRecord is the aggregate of an order's planned lines.
type BomTotalsSummaryAPIRecord struct {
	TotalQuantity float64 `json:"total_quantity"`
	TotalCost     float64 `json:"total_cost"`
}

// PlannedItemAPIRecord is the wire shape of costing.PlannedLine.
type PlannedItemAPIRecord struct {
	ComponentCode   string  `json:"component_code"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	PlannedQuantity float64 `json:"planned_quantity"`
	UnitCost        float64 `json:"unit_cost"`
	PlannedCost     float64 `json:"planned_cost"`
}

// CostBreakdownAPIRecord is the wire shape of CostBreakdown.
type CostBreakdownAPIRecord struct {
	Ingredients float64 `json:"ingredients"`
	Labor       float64 `json:"labor"`
	Packaging   float64 `json:"packaging"`
	Taxes       float64 `json:"taxes"`
	Overhead    float64 `json:"overhead"`
}

// ProjectionAPIRecord is the wire shape of costing.ProjectionResult.
type ProjectionAPIRecord struct {
	BomItems             []PlannedItemAPIRecord `json:"bom_items"`
	TotalQuantity        float64                `json:"total_quantity"`
	TotalRawMaterialCost float64                `json:"total_raw_material_cost"`
	BaseUnitMaterialCost float64                `json:"base_unit_material_cost"`
	PackagingUnitCost    float64                `json:"packaging_unit_cost"`
	ProductionUnitCost   float64                `json:"production_unit_cost"`
	TotalWithExtras      float64                `json:"total_with_extras"`
	SalePrice            float64                `json:"sale_price"`
	Markup               float64                `json:"markup"`
	RevenueTotal         float64                `json:"revenue_total"`
	PostSaleTaxValue     float64                `json:"post_sale_tax_value"`
	NetRevenueTotal      float64                `json:"net_revenue_total"`
	ProfitTotal          float64                `json:"profit_total"`
}

// OrderAPIRecord is the wire shape of a production order. Input-only fields
// (last_edited) and output-only fields (snapshot, history) share the record.
type OrderAPIRecord struct {
	ID              string  `json:"id,omitempty"`
	OP              string  `json:"OP,omitempty"`
	ExternalCode    *string `json:"external_code,omitempty"`
	ProductCode     *string `json:"product_code,omitempty"`
	QuantityPlanned Number  `json:"quantity_planned"`
	Unit            *string `json:"unit,omitempty"`
	StartDate       *string `json:"start_date,omitempty"`
	DueDate         *string `json:"due_date,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Status          string  `json:"status,omitempty"`
	IsComposed      *bool   `json:"is_composed,omitempty"`
	IsRawMaterial   *bool   `json:"is_raw_material,omitempty"`
	BomID           *string `json:"bom_id,omitempty"`
	Lote            *int    `json:"lote,omitempty"`
	Validate        *string `json:"validate,omitempty"`

	BoxesQty     Number `json:"boxes_qty"`
	BoxCost      Number `json:"box_cost"`
	LaborPerUnit Number `json:"labor_per_unit"`
	SalePrice    Number `json:"sale_price"`
	Markup       Number `json:"markup"`
	PostSaleTax  Number `json:"post_sale_tax"`
	LastEdited   string `json:"last_edited,omitempty"`

	ReferenceBom  *ReferenceBomAPIRecord     `json:"reference_bom,omitempty"`
	BomTotals     *BomTotalsSummaryAPIRecord `json:"bom_totals,omitempty"`
	BomItems      []PlannedItemAPIRecord     `json:"bom_items,omitempty"`
	CostBreakdown *CostBreakdownAPIRecord    `json:"cost_breakdown,omitempty"`
	Projection    *ProjectionAPIRecord       `json:"projection,omitempty"`
	TotalCost     Number                     `json:"total_cost"`
	UnitCost      Number                     `json:"unit_cost"`

	StatusHistory []StatusEventAPIRecord  `json:"status_history,omitempty"`
	FinishedGoods []FinishedGoodAPIRecord `json:"finished_goods,omitempty"`
	RawMaterials  []RawMaterialAPIRecord  `json:"raw_materials,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// StatusEventAPIRecord is the wire shape of StatusEvent. Clients may send the
// note as remarks.
type StatusEventAPIRecord struct {
	ID          string `json:"id,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	Status      string `json:"status"`
	EventTime   string `json:"event_time,omitempty"`
	Responsible string `json:"responsible,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Remarks     string `json:"remarks,omitempty"`
}

// FinishedGoodAPIRecord is the wire shape of FinishedGood.
type FinishedGoodAPIRecord struct {
	ID            string `json:"id,omitempty"`
	ProductCode   string `json:"product_code"`
	LotNumber     string `json:"lot_number,omitempty"`
	QuantityGood  Number `json:"quantity_good"`
	QuantityScrap Number `json:"quantity_scrap"`
	UnitCost      Number `json:"unit_cost"`
	PostedAt      string `json:"posted_at,omitempty"`
}

// RawMaterialAPIRecord is the wire shape of RawMaterial.
type RawMaterialAPIRecord struct {
	ID            string `json:"id,omitempty"`
	ComponentCode string `json:"component_code"`
	Description   string `json:"description,omitempty"`
	QuantityUsed  Number `json:"quantity_used"`
	Unit          string `json:"unit,omitempty"`
	UnitCost      Number `json:"unit_cost"`
	Warehouse     string `json:"warehouse,omitempty"`
	BatchNumber   string `json:"batch_number,omitempty"`
	ConsumedAt    string `json:"consumed_at,omitempty"`
}

// ParseDirection maps last_edited onto a price direction. An empty value
// picks the sale price only when it is the sole field sent.
func ParseDirection(lastEdited string, salePrice, markup Number) (costing.PriceDirection, error) {
	switch strings.TrimSpace(lastEdited) {
	case "sale_price", "salePrice":
		return costing.PriceFromSalePrice, nil
	case "markup":
		return costing.PriceFromMarkup, nil
	case "":
		if salePrice.Set && !markup.Set {
			return costing.PriceFromSalePrice, nil
		}
		return costing.PriceFromMarkup, nil
	}
	return costing.PriceFromMarkup, invalid("last_edited", ErrUnknownDirection)
}

// MapOrderInput converts a wire order into editable order fields.
func MapOrderInput(rec OrderAPIRecord) (OrderInput, error) {
	return ApplyOrderPatch(OrderInput{Unit: DefaultUnit}, rec)
}

// ApplyOrderPatch overlays the fields present in rec onto in.
func ApplyOrderPatch(in OrderInput, rec OrderAPIRecord) (OrderInput, error) {
	if rec.ExternalCode != nil {
		in.ExternalCode = strings.TrimSpace(*rec.ExternalCode)
	}
	if rec.ProductCode != nil {
		in.ProductCode = strings.TrimSpace(*rec.ProductCode)
	}
	if rec.QuantityPlanned.Set {
		in.QuantityPlanned = rec.QuantityPlanned.Value
	}
	if rec.Unit != nil {
		in.Unit = stringOr(rec.Unit, DefaultUnit)
	}
	if in.Unit == "" {
		in.Unit = DefaultUnit
	}
	if rec.StartDate != nil {
		in.StartDate = strings.TrimSpace(*rec.StartDate)
	}
	if rec.DueDate != nil {
		in.DueDate = strings.TrimSpace(*rec.DueDate)
	}
	if rec.Notes != nil {
		in.Notes = SanitizeNotes(*rec.Notes)
	}
	if rec.BomID != nil {
		in.BomID = strings.TrimSpace(*rec.BomID)
	}
	if rec.IsComposed != nil {
		in.IsComposed = *rec.IsComposed
	}
	if rec.IsRawMaterial != nil {
		in.IsRawMaterial = *rec.IsRawMaterial
	}
	if rec.Lote != nil {
		lot := *rec.Lote
		in.LotNumber = &lot
	}
	if rec.Validate != nil {
		validity := strings.TrimSpace(*rec.Validate)
		in.ValidityDate = &validity
	}

	for _, f := range []struct {
		src Number
		dst *float64
	}{
		{rec.BoxesQty, &in.Costs.BoxesQty},
		{rec.BoxCost, &in.Costs.BoxCost},
		{rec.LaborPerUnit, &in.Costs.LaborPerUnit},
		{rec.SalePrice, &in.Costs.SalePrice},
		{rec.Markup, &in.Costs.Markup},
		{rec.PostSaleTax, &in.Costs.PostSaleTax},
	} {
		if f.src.Set {
			*f.dst = f.src.Value
		}
	}
	in.Costs.QuantityPlanned = in.QuantityPlanned

	if rec.LastEdited == "" && !rec.SalePrice.Set && !rec.Markup.Set {
		return in, nil
	}
	dir, err := ParseDirection(rec.LastEdited, rec.SalePrice, rec.Markup)
	if err != nil {
		return in, err
	}
	in.Direction = dir
	return in, nil
}

// ProjectionToAPI converts a projection to its wire shape.
func ProjectionToAPI(p costing.ProjectionResult) ProjectionAPIRecord {
	return ProjectionAPIRecord{
		BomItems:             plannedItemsToAPI(p.Lines),
		TotalQuantity:        p.TotalQuantity,
		TotalRawMaterialCost: p.TotalRawMaterialCost,
		BaseUnitMaterialCost: p.BaseUnitMaterialCost,
		PackagingUnitCost:    p.PackagingUnitCost,
		ProductionUnitCost:   p.ProductionUnitCost,
		TotalWithExtras:      p.TotalWithExtras,
		SalePrice:            p.SalePrice,
		Markup:               p.Markup,
		RevenueTotal:         p.RevenueTotal,
		PostSaleTaxValue:     p.PostSaleTaxValue,
		NetRevenueTotal:      p.NetRevenueTotal,
		ProfitTotal:          p.ProfitTotal,
	}
}

func plannedItemsToAPI(lines []costing.PlannedLine) []PlannedItemAPIRecord {
	items := make([]PlannedItemAPIRecord, 0, len(lines))
	for _, l := range lines {
		items = append(items, PlannedItemAPIRecord{
			ComponentCode:   l.ComponentCode,
			Description:     l.Description,
			Quantity:        l.Quantity,
			PlannedQuantity: l.PlannedQuantity,
			UnitCost:        l.UnitCost,
			PlannedCost:     l.PlannedCost,
		})
	}
	return items
}

// OrderToAPI converts an order with its snapshot to the wire shape.
func OrderToAPI(o ProductionOrder) OrderAPIRecord {
	projection := ProjectionToAPI(o.Projection)
	reference := ReferenceToAPI(o.ReferenceBom)
	breakdown := BreakdownToAPI(o.Breakdown)
	rec := OrderAPIRecord{
		ID:              o.ID,
		OP:              o.OPNumber,
		ExternalCode:    strPtr(o.ExternalCode),
		ProductCode:     strPtr(o.ProductCode),
		QuantityPlanned: NewNumber(o.QuantityPlanned),
		Unit:            strPtr(o.Unit),
		StartDate:       strPtr(o.StartDate),
		DueDate:         strPtr(o.DueDate),
		Notes:           strPtr(o.Notes),
		Status:          string(o.Status),
		IsComposed:      &o.IsComposed,
		IsRawMaterial:   &o.IsRawMaterial,
		BomID:           strPtr(o.BomID),
		Lote:            o.LotNumber,
		Validate:        o.ValidityDate,
		BoxesQty:        NewNumber(o.Costs.BoxesQty),
		BoxCost:         NewNumber(o.Costs.BoxCost),
		LaborPerUnit:    NewNumber(o.Costs.LaborPerUnit),
		SalePrice:       NewNumber(o.Costs.SalePrice),
		Markup:          NewNumber(o.Costs.Markup),
		PostSaleTax:     NewNumber(o.Costs.PostSaleTax),
		LastEdited:      o.Direction.String(),
		ReferenceBom:    &reference,
		BomTotals: &BomTotalsSummaryAPIRecord{
			TotalQuantity: o.Projection.TotalQuantity,
			TotalCost:     o.Projection.TotalRawMaterialCost,
		},
		BomItems:      projection.BomItems,
		CostBreakdown: &breakdown,
		Projection:    &projection,
		TotalCost:     NewNumber(o.TotalCost),
		UnitCost:      NewNumber(o.UnitCost),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}

	for _, ev := range o.StatusHistory {
		rec.StatusHistory = append(rec.StatusHistory, StatusEventToAPI(ev))
	}
	for _, fg := range o.FinishedGoods {
		rec.FinishedGoods = append(rec.FinishedGoods, FinishedGoodToAPI(fg))
	}
	for _, rm := range o.RawMaterials {
		rec.RawMaterials = append(rec.RawMaterials, RawMaterialToAPI(rm))
	}
	return rec
}

// MapStatusEvent converts a wire status registration.
func MapStatusEvent(rec StatusEventAPIRecord) (StatusEvent, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(rec.Status)))
	if !status.Valid() {
		return StatusEvent{}, invalid("status", ErrUnknownStatus)
	}
	ev := StatusEvent{
		ID:          rec.ID,
		OrderID:     rec.OrderID,
		Status:      status,
		Timestamp:   strings.TrimSpace(rec.EventTime),
		Responsible: strings.TrimSpace(rec.Responsible),
		Notes:       SanitizeNotes(rec.Notes),
	}
	if ev.Responsible == "" {
		ev.Responsible = DefaultResponsible
	}
	if rec.Remarks != "" {
		ev.Notes = SanitizeNotes(rec.Remarks)
	}
	return ev, nil
}

// StatusEventToAPI converts a status event to its wire shape.
func StatusEventToAPI(ev StatusEvent) StatusEventAPIRecord {
	return StatusEventAPIRecord{
		ID:          ev.ID,
		OrderID:     ev.OrderID,
		Status:      string(ev.Status),
		EventTime:   ev.Timestamp,
		Responsible: ev.Responsible,
		Notes:       ev.Notes,
	}
}

func optionalNumber(n Number) *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

func numberFromPtr(v *float64) Number {
	if v == nil {
		return Number{}
	}
	return NewNumber(*v)
}

// MapFinishedGood converts and validates a wire finished-good posting.
func MapFinishedGood(rec FinishedGoodAPIRecord) (FinishedGood, error) {
	fg := FinishedGood{
		ID:            rec.ID,
		ProductCode:   strings.TrimSpace(rec.ProductCode),
		LotNumber:     strings.TrimSpace(rec.LotNumber),
		QuantityGood:  rec.QuantityGood.Or(0),
		QuantityScrap: rec.QuantityScrap.Or(0),
		UnitCost:      optionalNumber(rec.UnitCost),
		PostedAt:      strings.TrimSpace(rec.PostedAt),
	}
	if fg.ProductCode == "" {
		return fg, invalid("product_code", ErrProductCodeRequired)
	}
	if err := checkNonNegative("quantity_good", fg.QuantityGood); err != nil {
		return fg, err
	}
	if err := checkNonNegative("quantity_scrap", fg.QuantityScrap); err != nil {
		return fg, err
	}
	if fg.QuantityGood+fg.QuantityScrap <= 0 {
		return fg, invalid("quantity_good", ErrNotPositive)
	}
	if fg.UnitCost != nil {
		if err := checkNonNegative("unit_cost", *fg.UnitCost); err != nil {
			return fg, err
		}
	}
	return fg, nil
}

// FinishedGoodToAPI converts a finished-good posting to its wire shape.
func FinishedGoodToAPI(fg FinishedGood) FinishedGoodAPIRecord {
	return FinishedGoodAPIRecord{
		ID:            fg.ID,
		ProductCode:   fg.ProductCode,
		LotNumber:     fg.LotNumber,
		QuantityGood:  NewNumber(fg.QuantityGood),
		QuantityScrap: NewNumber(fg.QuantityScrap),
		UnitCost:      numberFromPtr(fg.UnitCost),
		PostedAt:      fg.PostedAt,
	}
}

// MapRawMaterial converts and validates a wire raw-material consumption.
func MapRawMaterial(rec RawMaterialAPIRecord) (RawMaterial, error) {
	rm := RawMaterial{
		ID:            rec.ID,
		ComponentCode: strings.TrimSpace(rec.ComponentCode),
		Description:   strings.TrimSpace(rec.Description),
		QuantityUsed:  rec.QuantityUsed.Or(0),
		Unit:          strings.TrimSpace(rec.Unit),
		UnitCost:      optionalNumber(rec.UnitCost),
		Warehouse:     strings.TrimSpace(rec.Warehouse),
		BatchNumber:   strings.TrimSpace(rec.BatchNumber),
		ConsumedAt:    strings.TrimSpace(rec.ConsumedAt),
	}
	if rm.Unit == "" {
		rm.Unit = DefaultUnit
	}
	if err := ValidateBomLine(costing.BomLine{
		ComponentCode: rm.ComponentCode,
		Quantity:      rm.QuantityUsed,
	}); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) && verr.Field == "quantity" {
			verr.Field = "quantity_used"
		}
		return rm, err
	}
	if rm.UnitCost != nil {
		if err := checkNonNegative("unit_cost", *rm.UnitCost); err != nil {
			return rm, err
		}
	}
	return rm, nil
}

// RawMaterialToAPI converts a raw-material consumption to its wire shape.
func RawMaterialToAPI(rm RawMaterial) RawMaterialAPIRecord {
	return RawMaterialAPIRecord{
		ID:            rm.ID,
		ComponentCode: rm.ComponentCode,
		Description:   rm.Description,
		QuantityUsed:  NewNumber(rm.QuantityUsed),
		Unit:          rm.Unit,
		UnitCost:      numberFromPtr(rm.UnitCost),
		Warehouse:     rm.Warehouse,
		BatchNumber:   rm.BatchNumber,
		ConsumedAt:    rm.ConsumedAt,
	}
}

// ProjectionFromAPI converts a stored projection snapshot back.
func ProjectionFromAPI(rec ProjectionAPIRecord) costing.ProjectionResult {
	lines := make([]costing.PlannedLine, 0, len(rec.BomItems))
	for _, item := range rec.BomItems {
		lines = append(lines, costing.PlannedLine{
			ComponentCode:   item.ComponentCode,
			Description:     item.Description,
			Quantity:        item.Quantity,
			PlannedQuantity: item.PlannedQuantity,
			UnitCost:        item.UnitCost,
			PlannedCost:     item.PlannedCost,
		})
	}
	return costing.ProjectionResult{
		Lines:                lines,
		TotalQuantity:        rec.TotalQuantity,
		TotalRawMaterialCost: rec.TotalRawMaterialCost,
		BaseUnitMaterialCost: rec.BaseUnitMaterialCost,
		PackagingUnitCost:    rec.PackagingUnitCost,
		ProductionUnitCost:   rec.ProductionUnitCost,
		TotalWithExtras:      rec.TotalWithExtras,
		SalePrice:            rec.SalePrice,
		Markup:               rec.Markup,
		RevenueTotal:         rec.RevenueTotal,
		PostSaleTaxValue:     rec.PostSaleTaxValue,
		NetRevenueTotal:      rec.NetRevenueTotal,
		ProfitTotal:          rec.ProfitTotal,
	}
}

// ReferenceToAPI converts a reference BOM to its wire shape.
func ReferenceToAPI(r ReferenceBom) ReferenceBomAPIRecord {
	return ReferenceBomAPIRecord{
		ProductCode:  r.ProductCode,
		Version:      r.Version,
		LotSize:      r.LotSize,
		ValidityDays: r.ValidityDays,
	}
}

// ReferenceFromAPI converts a stored reference BOM back.
func ReferenceFromAPI(rec ReferenceBomAPIRecord) ReferenceBom {
	return ReferenceBom{
		ProductCode:  rec.ProductCode,
		Version:      rec.Version,
		LotSize:      rec.LotSize,
		ValidityDays: rec.ValidityDays,
	}
}

// BreakdownToAPI converts a cost breakdown to its wire shape.
func BreakdownToAPI(c CostBreakdown) CostBreakdownAPIRecord {
	return CostBreakdownAPIRecord{
		Ingredients: c.Ingredients,
		Labor:       c.Labor,
		Packaging:   c.Packaging,
		Taxes:       c.Taxes,
		Overhead:    c.Overhead,
	}
}

// BreakdownFromAPI converts a stored cost breakdown back.
func BreakdownFromAPI(rec CostBreakdownAPIRecord) CostBreakdown {
	return CostBreakdown{
		Ingredients: rec.Ingredients,
		Labor:       rec.Labor,
		Packaging:   rec.Packaging,
		Taxes:       rec.Taxes,
		Overhead:    rec.Overhead,
	}
}
