package production

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/Simplici0/producao/internal/costing"
)

var (
	ErrProductCodeRequired   = errors.New("código do produto é obrigatório")
	ErrVersionRequired       = errors.New("versão é obrigatória")
	ErrComponentCodeRequired = errors.New("código do componente é obrigatório")
	ErrComponentCodeTooLong  = errors.New("código do componente excede 80 caracteres")
	ErrNotFinite             = errors.New("valor numérico inválido")
	ErrNegative              = errors.New("valor deve ser maior ou igual a 0")
	ErrNotPositive           = errors.New("valor deve ser maior que 0")
	ErrDueBeforeStart        = errors.New("data de entrega anterior à data de início")
	ErrUnknownStatus         = errors.New("status desconhecido")
	ErrTerminalStatus        = errors.New("ordem já encerrada")
)

// ValidationError wraps a sentinel error with the offending field.
type ValidationError struct {
	Err   error
	Field string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Err: err, Field: field}
}

func checkNonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, ErrNotFinite)
	}
	if v < 0 {
		return invalid(field, ErrNegative)
	}
	return nil
}

func checkPositive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, ErrNotFinite)
	}
	if v <= 0 {
		return invalid(field, ErrNotPositive)
	}
	return nil
}

// ValidateBom checks a BOM definition before it is stored.
func ValidateBom(def costing.BomDefinition) error {
	if def.ProductCode == "" {
		return invalid("product_code", ErrProductCodeRequired)
	}
	if def.Version == "" {
		return invalid("version", ErrVersionRequired)
	}
	if err := checkNonNegative("lot_size", def.LotSize); err != nil {
		return err
	}
	if def.ValidityDays < 0 {
		return invalid("validity_days", ErrNegative)
	}
	if err := checkNonNegative("margin_target", def.MarginTarget); err != nil {
		return err
	}
	if math.IsNaN(def.MarginAchieved) || math.IsInf(def.MarginAchieved, 0) {
		return invalid("margin_achieved", ErrNotFinite)
	}

	for i, item := range def.Items {
		if err := ValidateBomLine(item); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Field = fmt.Sprintf("items[%d].%s", i, verr.Field)
			}
			return err
		}
	}
	return nil
}

// ValidateBomLine checks a single formula line.
func ValidateBomLine(line costing.BomLine) error {
	if line.ComponentCode == "" {
		return invalid("component_code", ErrComponentCodeRequired)
	}
	if utf8.RuneCountInString(line.ComponentCode) > maxComponentCodeLength {
		return invalid("component_code", ErrComponentCodeTooLong)
	}
	if err := checkPositive("quantity", line.Quantity); err != nil {
		return err
	}
	return checkNonNegative("unit_cost", line.UnitCost)
}

// ValidateOrderInput checks the editable fields of a production order.
func ValidateOrderInput(in OrderInput) error {
	if in.ProductCode == "" {
		return invalid("product_code", ErrProductCodeRequired)
	}
	if err := checkPositive("quantity_planned", in.QuantityPlanned); err != nil {
		return err
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"boxes_qty", in.Costs.BoxesQty},
		{"box_cost", in.Costs.BoxCost},
		{"labor_per_unit", in.Costs.LaborPerUnit},
		{"sale_price", in.Costs.SalePrice},
		{"post_sale_tax", in.Costs.PostSaleTax},
	} {
		if err := checkNonNegative(f.name, f.value); err != nil {
			return err
		}
	}

	// A sale price below cost derives a negative markup.
	if in.Direction == costing.PriceFromMarkup {
		if err := checkNonNegative("markup", in.Costs.Markup); err != nil {
			return err
		}
	} else if math.IsNaN(in.Costs.Markup) || math.IsInf(in.Costs.Markup, 0) {
		return invalid("markup", ErrNotFinite)
	}

	start, startErr := time.Parse(time.DateOnly, in.StartDate)
	due, dueErr := time.Parse(time.DateOnly, in.DueDate)
	if startErr == nil && dueErr == nil && due.Before(start) {
		return invalid("due_date", ErrDueBeforeStart)
	}
	return nil
}

// ValidateStatusChange checks that an order in status from may move to to.
func ValidateStatusChange(from, to Status) error {
	if !to.Valid() {
		return invalid("status", ErrUnknownStatus)
	}
	if from.Terminal() && from != to {
		return invalid("status", ErrTerminalStatus)
	}
	return nil
}

// SanitizeNotes truncates free-text notes to the stored limit.
func SanitizeNotes(notes string) string {
	if utf8.RuneCountInString(notes) <= maxNotesLength {
		return notes
	}
	return string([]rune(notes)[:maxNotesLength])
}
