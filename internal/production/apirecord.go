package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Simplici0/producao/internal/costing"
)

// Number is a numeric API field. The backend sends numbers either as JSON
// numbers or as numeric strings; null, absent and blank strings leave it unset.
type Number struct {
	Value float64
	Set   bool
}

// NewNumber returns a set Number.
func NewNumber(v float64) Number {
	return Number{Value: v, Set: true}
}

// Or returns the value, or fallback when unset.
func (n Number) Or(fallback float64) float64 {
	if !n.Set {
		return fallback
	}
	return n.Value
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*n = Number{}
			return nil
		}
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = NewNumber(v)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// BomItemAPIRecord is the wire shape of a formula line.
type BomItemAPIRecord struct {
	ComponentCode *string `json:"component_code,omitempty"`
	Description   *string `json:"description,omitempty"`
	Quantity      Number  `json:"quantity"`
	UnitCost      Number  `json:"unit_cost"`
}

// BomAPIRecord is the wire shape of a BOM. Absent fields are left untouched by
// ApplyBomPatch.
type BomAPIRecord struct {
	ID             string             `json:"id,omitempty"`
	ProductCode    *string            `json:"product_code,omitempty"`
	Version        *string            `json:"version,omitempty"`
	LotSize        Number             `json:"lot_size"`
	ValidityDays   Number             `json:"validity_days"`
	MarginTarget   Number             `json:"margin_target"`
	MarginAchieved Number             `json:"margin_achieved"`
	TotalCost      Number             `json:"total_cost"`
	UnitCost       Number             `json:"unit_cost"`
	Notes          *string            `json:"notes,omitempty"`
	Items          []BomItemAPIRecord `json:"items"`
	CreatedAt      string             `json:"created_at,omitempty"`
	UpdatedAt      string             `json:"updated_at,omitempty"`
}

// BomTotalsAPIRecord is the wire shape of costing.BomTotals.
type BomTotalsAPIRecord struct {
	Ingredients    float64 `json:"ingredients"`
	Labor          float64 `json:"labor"`
	Packaging      float64 `json:"packaging"`
	Taxes          float64 `json:"taxes"`
	Overhead       float64 `json:"overhead"`
	Total          float64 `json:"total"`
	Unit           float64 `json:"unit"`
	MarginAchieved float64 `json:"margin_achieved"`
}

func stringOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return strings.TrimSpace(*s)
}

func strPtr(s string) *string {
	return &s
}

func integerField(field string, n Number) (int, error) {
	if !n.Set {
		return 0, nil
	}
	if n.Value != math.Trunc(n.Value) {
		return 0, invalid(field, fmt.Errorf("%v não é inteiro", n.Value))
	}
	return int(n.Value), nil
}

// MapBomItem converts a wire formula line.
func MapBomItem(rec BomItemAPIRecord) costing.BomLine {
	return costing.BomLine{
		ComponentCode: stringOr(rec.ComponentCode, ""),
		Description:   stringOr(rec.Description, ""),
		Quantity:      rec.Quantity.Or(0),
		UnitCost:      rec.UnitCost.Or(0),
	}
}

func mapBomItems(recs []BomItemAPIRecord) []costing.BomLine {
	items := make([]costing.BomLine, 0, len(recs))
	for _, rec := range recs {
		items = append(items, MapBomItem(rec))
	}
	return items
}

// MapBom converts a wire BOM into a record with recomputed totals.
func MapBom(rec BomAPIRecord) (BomRecord, error) {
	validity, err := integerField("validity_days", rec.ValidityDays)
	if err != nil {
		return BomRecord{}, err
	}

	def := costing.BomDefinition{
		ProductCode:    stringOr(rec.ProductCode, ""),
		Version:        stringOr(rec.Version, DefaultVersion),
		LotSize:        rec.LotSize.Or(0),
		ValidityDays:   validity,
		MarginTarget:   rec.MarginTarget.Or(0),
		MarginAchieved: rec.MarginAchieved.Or(0),
		Notes:          SanitizeNotes(stringOr(rec.Notes, "")),
		Items:          mapBomItems(rec.Items),
	}
	if def.Version == "" {
		def.Version = DefaultVersion
	}

	out := NewBomRecord(rec.ID, def)
	out.CreatedAt = rec.CreatedAt
	out.UpdatedAt = rec.UpdatedAt
	return out, nil
}

// ApplyBomPatch overlays the fields present in rec onto def.
func ApplyBomPatch(def costing.BomDefinition, rec BomAPIRecord) (costing.BomDefinition, error) {
	if rec.ProductCode != nil {
		def.ProductCode = strings.TrimSpace(*rec.ProductCode)
	}
	if rec.Version != nil {
		def.Version = strings.TrimSpace(*rec.Version)
	}
	if rec.LotSize.Set {
		def.LotSize = rec.LotSize.Value
	}
	if rec.ValidityDays.Set {
		validity, err := integerField("validity_days", rec.ValidityDays)
		if err != nil {
			return def, err
		}
		def.ValidityDays = validity
	}
	if rec.MarginTarget.Set {
		def.MarginTarget = rec.MarginTarget.Value
	}
	if rec.MarginAchieved.Set {
		def.MarginAchieved = rec.MarginAchieved.Value
	}
	if rec.Notes != nil {
		def.Notes = SanitizeNotes(*rec.Notes)
	}
	if rec.Items != nil {
		def.Items = mapBomItems(rec.Items)
	}
	return def, nil
}

// BomToAPI converts a record to its wire shape.
func BomToAPI(b BomRecord) BomAPIRecord {
	items := make([]BomItemAPIRecord, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, BomItemAPIRecord{
			ComponentCode: strPtr(item.ComponentCode),
			Description:   strPtr(item.Description),
			Quantity:      NewNumber(item.Quantity),
			UnitCost:      NewNumber(item.UnitCost),
		})
	}
	return BomAPIRecord{
		ID:             b.ID,
		ProductCode:    strPtr(b.ProductCode),
		Version:        strPtr(b.Version),
		LotSize:        NewNumber(b.LotSize),
		ValidityDays:   NewNumber(float64(b.ValidityDays)),
		MarginTarget:   NewNumber(b.MarginTarget),
		MarginAchieved: NewNumber(b.MarginAchieved),
		TotalCost:      NewNumber(b.TotalCost),
		UnitCost:       NewNumber(b.UnitCost),
		Notes:          strPtr(b.Notes),
		Items:          items,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

// TotalsToAPI converts a cost breakdown to its wire shape.
func TotalsToAPI(t costing.BomTotals) BomTotalsAPIRecord {
	return BomTotalsAPIRecord{
		Ingredients:    t.Ingredients,
		Labor:          t.Labor,
		Packaging:      t.Packaging,
		Taxes:          t.Taxes,
		Overhead:       t.Overhead,
		Total:          t.Total,
		Unit:           t.Unit,
		MarginAchieved: t.MarginAchieved,
	}
}
