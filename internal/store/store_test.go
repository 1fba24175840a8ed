package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Simplici0/producao/internal/costing"
	"github.com/Simplici0/producao/internal/db"
	"github.com/Simplici0/producao/internal/migrations"
	"github.com/Simplici0/producao/internal/production"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "store-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(ctx, database, nil); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	s := New(database)
	var mu sync.Mutex
	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func demoBom(productCode, version string) costing.BomDefinition {
	return costing.BomDefinition{
		ProductCode:  productCode,
		Version:      version,
		LotSize:      100,
		ValidityDays: 90,
		MarginTarget: 30,
		Items: []costing.BomLine{
			{ComponentCode: "ING-001", Description: "Farinha", Quantity: 0.5, UnitCost: 4},
			{ComponentCode: "EMB-010", Description: "Saco", Quantity: 1, UnitCost: 0.15},
		},
	}
}

func TestBomLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.CreateBom(ctx, demoBom("PROD-1", "1.0"))
	if err != nil {
		t.Fatalf("CreateBom: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if len(created.Items) != 2 || created.Items[0].ComponentCode != "ING-001" {
		t.Fatalf("unexpected items: %+v", created.Items)
	}
	if created.TotalCost <= 0 || created.UnitCost <= 0 {
		t.Fatalf("expected derived costs, got total=%v unit=%v", created.TotalCost, created.UnitCost)
	}

	if _, err := s.CreateBom(ctx, demoBom("PROD-1", "1.0")); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate product/version err = %v, want ErrConflict", err)
	}

	def := created.BomDefinition
	def.Items = def.Items[:1]
	def.Notes = "sem embalagem"
	updated, err := s.UpdateBom(ctx, created.ID, def)
	if err != nil {
		t.Fatalf("UpdateBom: %v", err)
	}
	if len(updated.Items) != 1 || updated.Notes != "sem embalagem" {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.CreatedAt != created.CreatedAt || updated.UpdatedAt == created.UpdatedAt {
		t.Fatalf("unexpected timestamps: created=%s/%s updated=%s/%s",
			created.CreatedAt, created.UpdatedAt, updated.CreatedAt, updated.UpdatedAt)
	}

	if _, err := s.UpdateBom(ctx, "missing", def); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}

	if err := s.DeleteBom(ctx, created.ID); err != nil {
		t.Fatalf("DeleteBom: %v", err)
	}
	if _, err := s.GetBom(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteBom(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice err = %v, want ErrNotFound", err)
	}
}

func TestLatestBomForProduct(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.CreateBom(ctx, demoBom("PROD-1", "1.0")); err != nil {
		t.Fatalf("CreateBom v1: %v", err)
	}
	second, err := s.CreateBom(ctx, demoBom("PROD-1", "2.0"))
	if err != nil {
		t.Fatalf("CreateBom v2: %v", err)
	}
	if _, err := s.CreateBom(ctx, demoBom("PROD-2", "1.0")); err != nil {
		t.Fatalf("CreateBom other product: %v", err)
	}

	latest, err := s.LatestBomForProduct(ctx, "PROD-1")
	if err != nil {
		t.Fatalf("LatestBomForProduct: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("latest = %s (v%s), want %s", latest.ID, latest.Version, second.ID)
	}

	if _, err := s.LatestBomForProduct(ctx, "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown product err = %v, want ErrNotFound", err)
	}

	all, err := s.ListBoms(ctx)
	if err != nil {
		t.Fatalf("ListBoms: %v", err)
	}
	if len(all) != 3 || all[0].ProductCode != "PROD-2" {
		t.Fatalf("expected 3 boms newest first, got %+v", all)
	}
}

func TestUpsertBom(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := production.NewBomRecord("erp-42", demoBom("PROD-9", "3.1"))
	inserted, err := s.UpsertBom(ctx, rec)
	if err != nil {
		t.Fatalf("UpsertBom insert: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first upsert to insert")
	}

	rec.LotSize = 250
	inserted, err = s.UpsertBom(ctx, rec)
	if err != nil {
		t.Fatalf("UpsertBom update: %v", err)
	}
	if inserted {
		t.Fatalf("expected second upsert to update")
	}

	got, err := s.GetBom(ctx, "erp-42")
	if err != nil {
		t.Fatalf("GetBom: %v", err)
	}
	if got.LotSize != 250 {
		t.Fatalf("LotSize = %v, want 250", got.LotSize)
	}
}

func newTestOrder(t *testing.T, s *Store, bom *production.BomRecord) production.ProductionOrder {
	t.Helper()

	order := production.ProductionOrder{
		OrderInput: production.OrderInput{
			ExternalCode:    "PED-77",
			ProductCode:     "PROD-1",
			QuantityPlanned: 100,
			Unit:            production.DefaultUnit,
			StartDate:       "2024-05-02",
			DueDate:         "2024-05-10",
			Costs:           costing.ProductionOrderCostInputs{BoxesQty: 10, BoxCost: 1.5, Markup: 50, PostSaleTax: 10},
		},
	}
	if bom != nil {
		order.BomID = bom.ID
	}
	production.BuildOrderCosts(bom, order.OrderInput).Apply(&order)

	if err := s.CreateOrder(context.Background(), &order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func TestCreateOrderSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bom, err := s.CreateBom(ctx, demoBom("PROD-1", "1.0"))
	if err != nil {
		t.Fatalf("CreateBom: %v", err)
	}

	first := newTestOrder(t, s, &bom)
	second := newTestOrder(t, s, &bom)
	if first.OPNumber != "OP-000001" || second.OPNumber != "OP-000002" {
		t.Fatalf("unexpected OP numbers %q, %q", first.OPNumber, second.OPNumber)
	}

	got, err := s.GetOrder(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != production.StatusSeparacao {
		t.Fatalf("status = %s, want SEPARACAO", got.Status)
	}
	if len(got.StatusHistory) != 1 || got.StatusHistory[0].Status != production.StatusSeparacao {
		t.Fatalf("expected opening status event, got %+v", got.StatusHistory)
	}
	if got.ReferenceBom.Version != "1.0" || got.ReferenceBom.LotSize != 100 {
		t.Fatalf("unexpected reference bom %+v", got.ReferenceBom)
	}
	if len(got.Projection.Lines) != 2 {
		t.Fatalf("expected 2 projected lines, got %d", len(got.Projection.Lines))
	}
	if got.Projection.ProductionUnitCost != first.Projection.ProductionUnitCost || got.UnitCost != first.UnitCost {
		t.Fatalf("snapshot changed on reload: %+v vs %+v", got.Projection, first.Projection)
	}

	// The snapshot must not follow later BOM edits.
	def := bom.BomDefinition
	def.Items[0].UnitCost = 40
	if _, err := s.UpdateBom(ctx, bom.ID, def); err != nil {
		t.Fatalf("UpdateBom: %v", err)
	}
	reloaded, err := s.GetOrder(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetOrder after bom edit: %v", err)
	}
	if reloaded.Projection.TotalRawMaterialCost != first.Projection.TotalRawMaterialCost {
		t.Fatalf("snapshot followed bom edit: %v != %v",
			reloaded.Projection.TotalRawMaterialCost, first.Projection.TotalRawMaterialCost)
	}
}

func TestListOrdersFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	newTestOrder(t, s, nil)
	other := production.ProductionOrder{
		OrderInput: production.OrderInput{ExternalCode: "PED-88", ProductCode: "PROD-2", QuantityPlanned: 5, Unit: "CX"},
	}
	if err := s.CreateOrder(ctx, &other); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	tests := []struct {
		name   string
		filter OrderFilter
		want   int
	}{
		{"all", OrderFilter{}, 2},
		{"external code", OrderFilter{ExternalCode: "PED-88"}, 1},
		{"product code", OrderFilter{ProductCode: "PROD-1"}, 1},
		{"both", OrderFilter{ExternalCode: "PED-77", ProductCode: "PROD-2"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := s.ListOrders(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListOrders: %v", err)
			}
			if len(orders) != tt.want {
				t.Fatalf("got %d orders, want %d", len(orders), tt.want)
			}
		})
	}

	all, _ := s.ListOrders(ctx, OrderFilter{})
	if all[0].OPNumber != "OP-000002" {
		t.Fatalf("expected newest order first, got %s", all[0].OPNumber)
	}
}

func TestUpdateOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	order := newTestOrder(t, s, nil)
	lot := 12
	order.LotNumber = &lot
	order.Notes = "urgente"
	order.Costs.SalePrice = 9
	order.Direction = costing.PriceFromSalePrice
	if err := s.UpdateOrder(ctx, &order); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}

	got, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.LotNumber == nil || *got.LotNumber != 12 || got.Notes != "urgente" {
		t.Fatalf("update not applied: %+v", got.OrderInput)
	}
	if got.Direction != costing.PriceFromSalePrice {
		t.Fatalf("direction = %v, want sale price", got.Direction)
	}
	if got.OPNumber != order.OPNumber {
		t.Fatalf("OP number changed: %s -> %s", order.OPNumber, got.OPNumber)
	}

	missing := production.ProductionOrder{ID: "missing"}
	if err := s.UpdateOrder(ctx, &missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestUpdateOrderRejectsTerminal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, status := range []production.Status{production.StatusConcluida, production.StatusCancelada} {
		order := newTestOrder(t, s, nil)
		if _, err := s.AddStatusEvent(ctx, order.ID, production.StatusEvent{Status: status}); err != nil {
			t.Fatalf("AddStatusEvent %s: %v", status, err)
		}

		order.Notes = "editada depois de encerrada"
		err := s.UpdateOrder(ctx, &order)
		if !errors.Is(err, production.ErrTerminalStatus) {
			t.Fatalf("%s: update err = %v, want ErrTerminalStatus", status, err)
		}
		var verr *production.ValidationError
		if !errors.As(err, &verr) || verr.Field != "status" {
			t.Fatalf("%s: expected status validation error, got %v", status, err)
		}

		got, err := s.GetOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
		if got.Notes != "" {
			t.Fatalf("%s: notes = %q, want unchanged", status, got.Notes)
		}
	}
}

func TestCreateOrderConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const workers = 16
	var (
		wg     sync.WaitGroup
		orders = make([]production.ProductionOrder, workers)
		errs   = make([]error, workers)
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order := production.ProductionOrder{
				OrderInput: production.OrderInput{ProductCode: "PROD-1", QuantityPlanned: 10},
			}
			errs[i] = s.CreateOrder(ctx, &order)
			orders[i] = order
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("worker %d: CreateOrder: %v", i, errs[i])
		}
		if seen[orders[i].OPNumber] {
			t.Fatalf("duplicate OP number %s", orders[i].OPNumber)
		}
		seen[orders[i].OPNumber] = true
	}

	list, err := s.ListOrders(ctx, OrderFilter{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(list) != workers || list[0].OPNumber != "OP-000016" {
		t.Fatalf("expected %d orders up to OP-000016, got %d", workers, len(list))
	}
}

func TestAddStatusEvent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	order := newTestOrder(t, s, nil)

	ev, err := s.AddStatusEvent(ctx, order.ID, production.StatusEvent{Status: production.StatusProducao, Notes: "linha 2"})
	if err != nil {
		t.Fatalf("AddStatusEvent: %v", err)
	}
	if ev.Responsible != production.DefaultResponsible || ev.Timestamp == "" {
		t.Fatalf("expected defaults, got %+v", ev)
	}

	if _, err := s.AddStatusEvent(ctx, order.ID, production.StatusEvent{Status: production.StatusConcluida}); err != nil {
		t.Fatalf("AddStatusEvent CONCLUIDA: %v", err)
	}
	_, err = s.AddStatusEvent(ctx, order.ID, production.StatusEvent{Status: production.StatusProducao})
	if !errors.Is(err, production.ErrTerminalStatus) {
		t.Fatalf("reopen err = %v, want ErrTerminalStatus", err)
	}

	got, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != production.StatusConcluida {
		t.Fatalf("status = %s, want CONCLUIDA", got.Status)
	}
	if len(got.StatusHistory) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(got.StatusHistory))
	}

	if _, err := s.AddStatusEvent(ctx, "missing", production.StatusEvent{Status: production.StatusProducao}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing order err = %v, want ErrNotFound", err)
	}
}

func TestOrderPostings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	order := newTestOrder(t, s, nil)

	unitCost := 2.5
	fg, err := s.AddFinishedGood(ctx, order.ID, production.FinishedGood{ProductCode: "PROD-1", QuantityGood: 95, QuantityScrap: 5, UnitCost: &unitCost})
	if err != nil {
		t.Fatalf("AddFinishedGood: %v", err)
	}
	if fg.ID == "" || fg.PostedAt == "" {
		t.Fatalf("expected id and posted_at, got %+v", fg)
	}
	if _, err := s.AddRawMaterial(ctx, order.ID, production.RawMaterial{ComponentCode: "ING-001", QuantityUsed: 51, Unit: "KG"}); err != nil {
		t.Fatalf("AddRawMaterial: %v", err)
	}

	goods, err := s.ListFinishedGoods(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListFinishedGoods: %v", err)
	}
	if len(goods) != 1 || goods[0].UnitCost == nil || *goods[0].UnitCost != 2.5 {
		t.Fatalf("unexpected finished goods %+v", goods)
	}

	materials, err := s.ListRawMaterials(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListRawMaterials: %v", err)
	}
	if len(materials) != 1 || materials[0].UnitCost != nil || materials[0].Unit != "KG" {
		t.Fatalf("unexpected raw materials %+v", materials)
	}

	if _, err := s.AddFinishedGood(ctx, "missing", production.FinishedGood{ProductCode: "X", QuantityGood: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing order err = %v, want ErrNotFound", err)
	}
}
