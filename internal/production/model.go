package production

import (
	"github.com/Simplici0/producao/internal/costing"
)

const (
	DefaultVersion     = "1.0"
	DefaultUnit        = "UN"
	DefaultResponsible = "Sistema"

	maxNotesLength         = 2000
	maxComponentCodeLength = 80
)

// Status is the lifecycle state of a production order.
type Status string

const (
	StatusSeparacao Status = "SEPARACAO"
	StatusProducao  Status = "PRODUCAO"
	StatusConcluida Status = "CONCLUIDA"
	StatusCancelada Status = "CANCELADA"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSeparacao, StatusProducao, StatusConcluida, StatusCancelada:
		return true
	}
	return false
}

// Terminal reports whether no further status change is allowed after s.
func (s Status) Terminal() bool {
	return s == StatusConcluida || s == StatusCancelada
}

// BomRecord is a persisted BOM together with its derived cost figures.
type BomRecord struct {
	ID string
	costing.BomDefinition
	TotalCost float64
	UnitCost  float64
	CreatedAt string
	UpdatedAt string
}

// NewBomRecord recomputes the totals of def. A stored achieved margin of zero
// is replaced by the computed one.
func NewBomRecord(id string, def costing.BomDefinition) BomRecord {
	totals := costing.ComputeBomTotals(def)
	if def.MarginAchieved == 0 {
		def.MarginAchieved = totals.MarginAchieved
	}
	return BomRecord{
		ID:            id,
		BomDefinition: def,
		TotalCost:     totals.Total,
		UnitCost:      totals.Unit,
	}
}

// Totals returns the cost breakdown of the record's current lines.
func (b BomRecord) Totals() costing.BomTotals {
	return costing.ComputeBomTotals(b.BomDefinition)
}

// ReferenceBom identifies the BOM version an order was planned from.
type ReferenceBom struct {
	ProductCode  string
	Version      string
	LotSize      float64
	ValidityDays int
}

// CostBreakdown is the fixed-ratio breakdown snapshot of an order.
type CostBreakdown struct {
	Ingredients float64
	Labor       float64
	Packaging   float64
	Taxes       float64
	Overhead    float64
}

// OrderInput carries the editable fields of a production order.
type OrderInput struct {
	ExternalCode    string
	ProductCode     string
	QuantityPlanned float64
	Unit            string
	StartDate       string
	DueDate         string
	Notes           string
	BomID           string
	IsComposed      bool
	IsRawMaterial   bool
	LotNumber       *int
	ValidityDate    *string
	Costs           costing.ProductionOrderCostInputs
	Direction       costing.PriceDirection
}

// ProductionOrder (OP) is a planned production run with its cost snapshot.
type ProductionOrder struct {
	ID       string
	OPNumber string
	OrderInput
	Status       Status
	ReferenceBom ReferenceBom
	Breakdown    CostBreakdown
	Projection   costing.ProjectionResult
	TotalCost    float64
	UnitCost     float64

	StatusHistory []StatusEvent
	FinishedGoods []FinishedGood
	RawMaterials  []RawMaterial

	CreatedAt string
	UpdatedAt string
}

// StatusEvent records a status change of an order.
type StatusEvent struct {
	ID          string
	OrderID     string
	Status      Status
	Timestamp   string
	Responsible string
	Notes       string
}

// FinishedGood is a quantity of finished product posted against an order.
type FinishedGood struct {
	ID            string
	OrderID       string
	ProductCode   string
	LotNumber     string
	QuantityGood  float64
	QuantityScrap float64
	UnitCost      *float64
	PostedAt      string
}

// RawMaterial is a raw-material consumption posted against an order.
type RawMaterial struct {
	ID            string
	OrderID       string
	ComponentCode string
	Description   string
	QuantityUsed  float64
	Unit          string
	UnitCost      *float64
	Warehouse     string
	BatchNumber   string
	ConsumedAt    string
}
