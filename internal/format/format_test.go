package format

import (
	"math"
	"strings"
	"testing"

	"github.com/Simplici0/producao/internal/costing"
	"github.com/Simplici0/producao/internal/production"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		value float64
		code  string
		want  string
	}{
		{0, "BRL", "R$ 0,00"},
		{2.7, "", "R$ 2,70"},
		{1234.565, "BRL", "R$ 1.234,57"},
		{1234567.891, "brl", "R$ 1.234.567,89"},
		{-45.5, "BRL", "R$ -45,50"},
		{-0.001, "BRL", "R$ 0,00"},
		{10, "COP", "COP 10,00"},
		{math.NaN(), "BRL", "R$ --"},
	}

	for _, tt := range tests {
		if got := Currency(tt.value, tt.code); got != tt.want {
			t.Fatalf("Currency(%v, %q) = %q, want %q", tt.value, tt.code, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(12.5); got != "12,50%" {
		t.Fatalf("Percent(12.5) = %q", got)
	}
	if got := Percent(-35); got != "-35,00%" {
		t.Fatalf("Percent(-35) = %q", got)
	}
}

func TestOrderSummary(t *testing.T) {
	order := production.ProductionOrder{
		OPNumber: "OP-000001",
		OrderInput: production.OrderInput{
			ProductCode:     "PROD-1",
			QuantityPlanned: 100,
			Unit:            "UN",
			Costs:           costing.ProductionOrderCostInputs{QuantityPlanned: 100, Markup: 50, PostSaleTax: 10},
		},
		Status: production.StatusSeparacao,
	}
	order.Projection = costing.ComputeProductionProjection(
		[]costing.BomLine{{ComponentCode: "ING-001", Description: "Farinha", Quantity: 0.5, UnitCost: 4}},
		order.Costs,
		costing.PriceFromMarkup,
	)

	body := OrderSummary(order, "BRL")
	for _, expected := range []string{
		"Ordem de produção OP-000001",
		"Quantidade planejada: 100,00 UN",
		"- ING-001 Farinha: 50,000 x R$ 4,00 = R$ 200,00",
		"Custo unitário de produção: R$ 2,00",
		"Preço de venda: R$ 3,00",
		"Lucro total: R$ 70,00",
	} {
		if !strings.Contains(body, expected) {
			t.Fatalf("expected summary to contain %q, got:\n%s", expected, body)
		}
	}
}
