package format

import (
	"fmt"
	"strings"

	"github.com/Simplici0/producao/internal/production"
)

// OrderSummary renders a production order and its cost snapshot as plain text.
func OrderSummary(o production.ProductionOrder, currency string) string {
	money := func(v float64) string { return Currency(v, currency) }

	var b strings.Builder
	fmt.Fprintf(&b, "Ordem de produção %s\n", orDash(o.OPNumber))
	fmt.Fprintf(&b, "Código externo: %s\n", orDash(o.ExternalCode))
	fmt.Fprintf(&b, "Produto: %s\n", o.ProductCode)
	fmt.Fprintf(&b, "Quantidade planejada: %s %s\n", Decimal(o.QuantityPlanned, 2), o.Unit)
	fmt.Fprintf(&b, "Status: %s\n", o.Status)
	fmt.Fprintf(&b, "Início: %s  Entrega: %s\n", orDash(o.StartDate), orDash(o.DueDate))
	if o.ReferenceBom.ProductCode != "" {
		fmt.Fprintf(&b, "Ficha técnica: %s v%s (lote %s)\n",
			o.ReferenceBom.ProductCode, o.ReferenceBom.Version, Decimal(o.ReferenceBom.LotSize, 2))
	}

	p := o.Projection
	b.WriteString("\nMatérias-primas:\n")
	if len(p.Lines) == 0 {
		b.WriteString("- nenhuma\n")
	}
	for _, l := range p.Lines {
		fmt.Fprintf(&b, "- %s %s: %s x %s = %s\n",
			l.ComponentCode, l.Description, Decimal(l.PlannedQuantity, 3), money(l.UnitCost), money(l.PlannedCost))
	}

	b.WriteString("\nCustos:\n")
	fmt.Fprintf(&b, "Matéria-prima total: %s\n", money(p.TotalRawMaterialCost))
	fmt.Fprintf(&b, "Custo unitário de material: %s\n", money(p.BaseUnitMaterialCost))
	fmt.Fprintf(&b, "Embalagem por unidade: %s\n", money(p.PackagingUnitCost))
	fmt.Fprintf(&b, "Mão de obra por unidade: %s\n", money(o.Costs.LaborPerUnit))
	fmt.Fprintf(&b, "Custo unitário de produção: %s\n", money(p.ProductionUnitCost))
	fmt.Fprintf(&b, "Custo total: %s\n", money(p.TotalWithExtras))

	b.WriteString("\nPreço:\n")
	fmt.Fprintf(&b, "Markup: %s\n", Percent(p.Markup))
	fmt.Fprintf(&b, "Preço de venda: %s\n", money(p.SalePrice))
	fmt.Fprintf(&b, "Receita total: %s\n", money(p.RevenueTotal))
	fmt.Fprintf(&b, "Imposto pós-venda (%s): %s\n", Percent(o.Costs.PostSaleTax), money(p.PostSaleTaxValue))
	fmt.Fprintf(&b, "Receita líquida: %s\n", money(p.NetRevenueTotal))
	fmt.Fprintf(&b, "Lucro total: %s\n", money(p.ProfitTotal))

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "--"
	}
	return s
}
