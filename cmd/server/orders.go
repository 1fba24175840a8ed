package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/producao/internal/costing"
	"github.com/Simplici0/producao/internal/erpclient"
	"github.com/Simplici0/producao/internal/format"
	"github.com/Simplici0/producao/internal/production"
	"github.com/Simplici0/producao/internal/store"
)

// projectionRequest is an order draft whose lines come from bom_id or from
// inline bom_items.
type projectionRequest struct {
	production.OrderAPIRecord
	BomItems []production.BomItemAPIRecord `json:"bom_items"`
}

type projectionResponse struct {
	ReferenceBom  production.ReferenceBomAPIRecord  `json:"reference_bom"`
	CostBreakdown production.CostBreakdownAPIRecord `json:"cost_breakdown"`
	Projection    production.ProjectionAPIRecord    `json:"projection"`
	SalePrice     float64                           `json:"sale_price"`
	Markup        float64                           `json:"markup"`
	LastEdited    string                            `json:"last_edited"`
	TotalCost     float64                           `json:"total_cost"`
	UnitCost      float64                           `json:"unit_cost"`
}

// loadOrderBom resolves the BOM an order is planned from: the given bom_id,
// else the latest local version of the product, else the latest upstream
// version, else none.
func (s *server) loadOrderBom(ctx context.Context, in *production.OrderInput) (*production.BomRecord, error) {
	if in.BomID != "" {
		bom, err := s.store.GetBom(ctx, in.BomID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &production.ValidationError{Err: store.ErrNotFound, Field: "bom_id"}
		}
		if err != nil {
			return nil, err
		}
		return &bom, nil
	}
	if in.ProductCode == "" {
		return nil, nil
	}

	bom, err := s.store.LatestBomForProduct(ctx, in.ProductCode)
	if errors.Is(err, store.ErrNotFound) {
		return s.fetchUpstreamBom(ctx, in)
	}
	if err != nil {
		return nil, err
	}
	in.BomID = bom.ID
	return &bom, nil
}

// fetchUpstreamBom pulls the latest BOM of the product from the ERP and keeps
// a local copy so later edits resolve its bom_id. Upstream failures leave the
// order without a BOM.
func (s *server) fetchUpstreamBom(ctx context.Context, in *production.OrderInput) (*production.BomRecord, error) {
	if s.upstream == nil {
		return nil, nil
	}

	log := s.logger.With(zap.String("product_code", in.ProductCode))
	bom, err := s.upstream.LatestBom(ctx, in.ProductCode)
	if errors.Is(err, erpclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Warn("upstream bom lookup failed", zap.Error(err))
		return nil, nil
	}
	if bom.ID == "" {
		log.Warn("upstream bom without id")
		return nil, nil
	}
	if err := production.ValidateBom(bom.BomDefinition); err != nil {
		log.Warn("invalid upstream bom", zap.String("bom_id", bom.ID), zap.Error(err))
		return nil, nil
	}

	if _, err := s.store.UpsertBom(ctx, bom); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		log.Warn("upstream bom conflicts with a local version", zap.String("bom_id", bom.ID))
		return nil, nil
	}
	stored, err := s.store.GetBom(ctx, bom.ID)
	if err != nil {
		return nil, err
	}
	log.Info("imported upstream bom", zap.String("bom_id", stored.ID), zap.String("version", stored.Version))
	in.BomID = stored.ID
	return &stored, nil
}

func (s *server) handleOrderProjection(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	in, err := production.MapOrderInput(req.OrderAPIRecord)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var bom *production.BomRecord
	if len(req.BomItems) > 0 {
		inline := production.BomRecord{BomDefinition: costing.BomDefinition{
			ProductCode: in.ProductCode,
			Version:     production.DefaultVersion,
		}}
		for i, item := range req.BomItems {
			line := production.MapBomItem(item)
			if err := production.ValidateBomLine(line); err != nil {
				var verr *production.ValidationError
				if errors.As(err, &verr) {
					verr.Field = fmt.Sprintf("bom_items[%d].%s", i, verr.Field)
				}
				s.writeError(w, r, err)
				return
			}
			inline.Items = append(inline.Items, line)
		}
		bom = &inline
	} else if bom, err = s.loadOrderBom(r.Context(), &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	costs := production.BuildOrderCosts(bom, in)
	writeJSON(w, http.StatusOK, projectionResponse{
		ReferenceBom:  production.ReferenceToAPI(costs.ReferenceBom),
		CostBreakdown: production.BreakdownToAPI(costs.Breakdown),
		Projection:    production.ProjectionToAPI(costs.Projection),
		SalePrice:     costs.Projection.SalePrice,
		Markup:        costs.Projection.Markup,
		LastEdited:    in.Direction.String(),
		TotalCost:     costs.TotalCost,
		UnitCost:      costs.UnitCost,
	})
}

func (s *server) handleOrderList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := s.store.ListOrders(r.Context(), store.OrderFilter{
		ExternalCode: q.Get("external_code"),
		ProductCode:  q.Get("product_code"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]production.OrderAPIRecord, 0, len(orders))
	for _, o := range orders {
		out = append(out, production.OrderToAPI(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	var rec production.OrderAPIRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	in, err := production.MapOrderInput(rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := production.ValidateOrderInput(in); err != nil {
		s.writeError(w, r, err)
		return
	}

	bom, err := s.loadOrderBom(r.Context(), &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	order := production.ProductionOrder{OrderInput: in}
	production.BuildOrderCosts(bom, in).Apply(&order)
	if err := s.store.CreateOrder(r.Context(), &order); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, production.OrderToAPI(order))
}

func (s *server) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, production.OrderToAPI(order))
}

// handleOrderUpdate patches an order and recomputes its snapshot. The stored
// lines are reused unless bom_id changes.
func (s *server) handleOrderUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var rec production.OrderAPIRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	order, err := s.store.GetOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if order.Status.Terminal() {
		s.writeError(w, r, &production.ValidationError{Err: production.ErrTerminalStatus, Field: "status"})
		return
	}

	previousBomID := order.BomID
	in, err := production.ApplyOrderPatch(order.OrderInput, rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := production.ValidateOrderInput(in); err != nil {
		s.writeError(w, r, err)
		return
	}

	bom := production.SnapshotBom(order)
	if in.BomID != previousBomID {
		if bom, err = s.loadOrderBom(r.Context(), &in); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	order.OrderInput = in
	production.BuildOrderCosts(bom, in).Apply(&order)
	if err := s.store.UpdateOrder(r.Context(), &order); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, production.OrderToAPI(order))
}

func (s *server) handleOrderText(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(format.OrderSummary(order, s.currency)))
}

func (s *server) handleStatusList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetOrder(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	events, err := s.store.ListStatusEvents(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]production.StatusEventAPIRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, production.StatusEventToAPI(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleStatusCreate(w http.ResponseWriter, r *http.Request) {
	var rec production.StatusEventAPIRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	ev, err := production.MapStatusEvent(rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ev, err = s.store.AddStatusEvent(r.Context(), chi.URLParam(r, "id"), ev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, production.StatusEventToAPI(ev))
}

func (s *server) handleFinishedGoodList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetOrder(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	goods, err := s.store.ListFinishedGoods(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]production.FinishedGoodAPIRecord, 0, len(goods))
	for _, fg := range goods {
		out = append(out, production.FinishedGoodToAPI(fg))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleFinishedGoodCreate(w http.ResponseWriter, r *http.Request) {
	var rec production.FinishedGoodAPIRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	fg, err := production.MapFinishedGood(rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fg, err = s.store.AddFinishedGood(r.Context(), chi.URLParam(r, "id"), fg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, production.FinishedGoodToAPI(fg))
}

func (s *server) handleRawMaterialList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetOrder(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	materials, err := s.store.ListRawMaterials(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]production.RawMaterialAPIRecord, 0, len(materials))
	for _, rm := range materials {
		out = append(out, production.RawMaterialToAPI(rm))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleRawMaterialCreate(w http.ResponseWriter, r *http.Request) {
	var rec production.RawMaterialAPIRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	rm, err := production.MapRawMaterial(rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rm, err = s.store.AddRawMaterial(r.Context(), chi.URLParam(r, "id"), rm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, production.RawMaterialToAPI(rm))
}
