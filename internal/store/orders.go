package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Simplici0/producao/internal/costing"
	"github.com/Simplici0/producao/internal/production"
)

// OrderFilter narrows ListOrders. Empty fields match everything.
type OrderFilter struct {
	ExternalCode string
	ProductCode  string
}

const orderColumns = `
	id, op_seq, external_code, product_code, quantity_planned, unit,
	start_date, due_date, notes, status, is_composed, is_raw_material,
	bom_id, lot_number, validity_date, boxes_qty, box_cost, labor_per_unit,
	sale_price, markup, post_sale_tax, last_edited, total_cost, unit_cost,
	reference_json, breakdown_json, projection_json, created_at, updated_at`

func opNumber(seq int64) string {
	return fmt.Sprintf("OP-%06d", seq)
}

type orderSnapshot struct {
	reference  string
	breakdown  string
	projection string
}

func encodeSnapshot(o production.ProductionOrder) (orderSnapshot, error) {
	reference, err := json.Marshal(production.ReferenceToAPI(o.ReferenceBom))
	if err != nil {
		return orderSnapshot{}, fmt.Errorf("encode reference bom: %w", err)
	}
	breakdown, err := json.Marshal(production.BreakdownToAPI(o.Breakdown))
	if err != nil {
		return orderSnapshot{}, fmt.Errorf("encode cost breakdown: %w", err)
	}
	projection, err := json.Marshal(production.ProjectionToAPI(o.Projection))
	if err != nil {
		return orderSnapshot{}, fmt.Errorf("encode projection: %w", err)
	}
	return orderSnapshot{
		reference:  string(reference),
		breakdown:  string(breakdown),
		projection: string(projection),
	}, nil
}

func decodeSnapshot(o *production.ProductionOrder, snap orderSnapshot) error {
	var reference production.ReferenceBomAPIRecord
	if err := json.Unmarshal([]byte(snap.reference), &reference); err != nil {
		return fmt.Errorf("decode reference bom: %w", err)
	}
	var breakdown production.CostBreakdownAPIRecord
	if err := json.Unmarshal([]byte(snap.breakdown), &breakdown); err != nil {
		return fmt.Errorf("decode cost breakdown: %w", err)
	}
	var projection production.ProjectionAPIRecord
	if err := json.Unmarshal([]byte(snap.projection), &projection); err != nil {
		return fmt.Errorf("decode projection: %w", err)
	}
	o.ReferenceBom = production.ReferenceFromAPI(reference)
	o.Breakdown = production.BreakdownFromAPI(breakdown)
	o.Projection = production.ProjectionFromAPI(projection)
	return nil
}

func directionFromColumn(v string) costing.PriceDirection {
	if v == costing.PriceFromSalePrice.String() {
		return costing.PriceFromSalePrice
	}
	return costing.PriceFromMarkup
}

func scanOrder(row rowScanner) (production.ProductionOrder, error) {
	var (
		o          production.ProductionOrder
		seq        int64
		status     string
		lastEdited string
		lot        sql.NullInt64
		validity   sql.NullString
		snap       orderSnapshot
	)
	if err := row.Scan(
		&o.ID,
		&seq,
		&o.ExternalCode,
		&o.ProductCode,
		&o.QuantityPlanned,
		&o.Unit,
		&o.StartDate,
		&o.DueDate,
		&o.Notes,
		&status,
		&o.IsComposed,
		&o.IsRawMaterial,
		&o.BomID,
		&lot,
		&validity,
		&o.Costs.BoxesQty,
		&o.Costs.BoxCost,
		&o.Costs.LaborPerUnit,
		&o.Costs.SalePrice,
		&o.Costs.Markup,
		&o.Costs.PostSaleTax,
		&lastEdited,
		&o.TotalCost,
		&o.UnitCost,
		&snap.reference,
		&snap.breakdown,
		&snap.projection,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return production.ProductionOrder{}, err
	}

	o.OPNumber = opNumber(seq)
	o.Status = production.Status(status)
	o.Direction = directionFromColumn(lastEdited)
	o.Costs.QuantityPlanned = o.QuantityPlanned
	if lot.Valid {
		n := int(lot.Int64)
		o.LotNumber = &n
	}
	if validity.Valid {
		v := validity.String
		o.ValidityDate = &v
	}
	if err := decodeSnapshot(&o, snap); err != nil {
		return production.ProductionOrder{}, err
	}
	return o, nil
}

// CreateOrder assigns an id and OP number to order, stores it with status
// SEPARACAO and records the opening status event.
func (s *Store) CreateOrder(ctx context.Context, order *production.ProductionOrder) error {
	snap, err := encodeSnapshot(*order)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(op_seq), 0) + 1 FROM production_orders`).Scan(&seq); err != nil {
		return fmt.Errorf("next op number: %w", err)
	}

	now := s.timestamp()
	order.ID = s.newID()
	order.OPNumber = opNumber(seq)
	order.Status = production.StatusSeparacao
	order.Notes = production.SanitizeNotes(order.Notes)
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO production_orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		order.ID,
		seq,
		order.ExternalCode,
		order.ProductCode,
		order.QuantityPlanned,
		order.Unit,
		order.StartDate,
		order.DueDate,
		order.Notes,
		string(order.Status),
		order.IsComposed,
		order.IsRawMaterial,
		order.BomID,
		nullableInt(order.LotNumber),
		nullableString(order.ValidityDate),
		order.Costs.BoxesQty,
		order.Costs.BoxCost,
		order.Costs.LaborPerUnit,
		order.Costs.SalePrice,
		order.Costs.Markup,
		order.Costs.PostSaleTax,
		order.Direction.String(),
		order.TotalCost,
		order.UnitCost,
		snap.reference,
		snap.breakdown,
		snap.projection,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	opening := production.StatusEvent{
		ID:          s.newID(),
		OrderID:     order.ID,
		Status:      production.StatusSeparacao,
		Timestamp:   now,
		Responsible: production.DefaultResponsible,
		Notes:       "Ordem criada",
	}
	if err := insertStatusEvent(ctx, tx, opening); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order transaction: %w", err)
	}
	order.StatusHistory = []production.StatusEvent{opening}
	return nil
}

// GetOrder returns an order with its status history and postings.
func (s *Store) GetOrder(ctx context.Context, id string) (production.ProductionOrder, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM production_orders
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return production.ProductionOrder{}, ErrNotFound
	}
	if err != nil {
		return production.ProductionOrder{}, fmt.Errorf("query order %s: %w", id, err)
	}

	if o.StatusHistory, err = s.ListStatusEvents(ctx, id); err != nil {
		return production.ProductionOrder{}, err
	}
	if o.FinishedGoods, err = s.ListFinishedGoods(ctx, id); err != nil {
		return production.ProductionOrder{}, err
	}
	if o.RawMaterials, err = s.ListRawMaterials(ctx, id); err != nil {
		return production.ProductionOrder{}, err
	}
	return o, nil
}

// ListOrders returns orders newest first, without history or postings.
func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]production.ProductionOrder, error) {
	var (
		where []string
		args  []any
	)
	if v := strings.TrimSpace(filter.ExternalCode); v != "" {
		where = append(where, "external_code = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.ProductCode); v != "" {
		where = append(where, "product_code = ?")
		args = append(args, v)
	}

	query := `SELECT ` + orderColumns + ` FROM production_orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY op_seq DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]production.ProductionOrder, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// UpdateOrder stores the editable fields and cost snapshot of order. Status,
// OP number and postings are left untouched. Concluded and cancelled orders
// are rejected with production.ErrTerminalStatus.
func (s *Store) UpdateOrder(ctx context.Context, order *production.ProductionOrder) error {
	snap, err := encodeSnapshot(*order)
	if err != nil {
		return err
	}

	order.Notes = production.SanitizeNotes(order.Notes)
	order.UpdatedAt = s.timestamp()

	result, err := s.db.ExecContext(ctx, `
		UPDATE production_orders
		SET
			external_code = ?,
			product_code = ?,
			quantity_planned = ?,
			unit = ?,
			start_date = ?,
			due_date = ?,
			notes = ?,
			is_composed = ?,
			is_raw_material = ?,
			bom_id = ?,
			lot_number = ?,
			validity_date = ?,
			boxes_qty = ?,
			box_cost = ?,
			labor_per_unit = ?,
			sale_price = ?,
			markup = ?,
			post_sale_tax = ?,
			last_edited = ?,
			total_cost = ?,
			unit_cost = ?,
			reference_json = ?,
			breakdown_json = ?,
			projection_json = ?,
			updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)
	`,
		order.ExternalCode,
		order.ProductCode,
		order.QuantityPlanned,
		order.Unit,
		order.StartDate,
		order.DueDate,
		order.Notes,
		order.IsComposed,
		order.IsRawMaterial,
		order.BomID,
		nullableInt(order.LotNumber),
		nullableString(order.ValidityDate),
		order.Costs.BoxesQty,
		order.Costs.BoxCost,
		order.Costs.LaborPerUnit,
		order.Costs.SalePrice,
		order.Costs.Markup,
		order.Costs.PostSaleTax,
		order.Direction.String(),
		order.TotalCost,
		order.UnitCost,
		snap.reference,
		snap.breakdown,
		snap.projection,
		order.UpdatedAt,
		order.ID,
		production.StatusConcluida,
		production.StatusCancelada,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if affected == 0 {
		if err := s.orderExists(ctx, order.ID); err != nil {
			return err
		}
		return &production.ValidationError{Err: production.ErrTerminalStatus, Field: "status"}
	}
	return nil
}

func insertStatusEvent(ctx context.Context, tx *sql.Tx, ev production.StatusEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO production_status_events (id, order_id, status, event_time, responsible, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.OrderID, string(ev.Status), ev.Timestamp, ev.Responsible, ev.Notes)
	if err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}
	return nil
}

// AddStatusEvent moves an order to ev.Status after checking the transition,
// and appends ev to its history.
func (s *Store) AddStatusEvent(ctx context.Context, orderID string, ev production.StatusEvent) (production.StatusEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return production.StatusEvent{}, fmt.Errorf("begin status transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM production_orders WHERE id = ?`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return production.StatusEvent{}, ErrNotFound
	}
	if err != nil {
		return production.StatusEvent{}, fmt.Errorf("query order status: %w", err)
	}
	if err := production.ValidateStatusChange(production.Status(current), ev.Status); err != nil {
		return production.StatusEvent{}, err
	}

	now := s.timestamp()
	ev.ID = s.newID()
	ev.OrderID = orderID
	if ev.Timestamp == "" {
		ev.Timestamp = now
	}
	if ev.Responsible == "" {
		ev.Responsible = production.DefaultResponsible
	}
	if err := insertStatusEvent(ctx, tx, ev); err != nil {
		return production.StatusEvent{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE production_orders SET status = ?, updated_at = ? WHERE id = ?
	`, string(ev.Status), now, orderID); err != nil {
		return production.StatusEvent{}, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return production.StatusEvent{}, fmt.Errorf("commit status transaction: %w", err)
	}
	return ev, nil
}

// ListStatusEvents returns the status history of an order, oldest first.
func (s *Store) ListStatusEvents(ctx context.Context, orderID string) ([]production.StatusEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, status, event_time, responsible, notes
		FROM production_status_events
		WHERE order_id = ?
		ORDER BY event_time, rowid
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status events: %w", err)
	}
	defer rows.Close()

	events := make([]production.StatusEvent, 0)
	for rows.Next() {
		var (
			ev     production.StatusEvent
			status string
		)
		if err := rows.Scan(&ev.ID, &ev.OrderID, &status, &ev.Timestamp, &ev.Responsible, &ev.Notes); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		ev.Status = production.Status(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status events: %w", err)
	}
	return events, nil
}

func (s *Store) orderExists(ctx context.Context, orderID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM production_orders WHERE id = ?`, orderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query order %s: %w", orderID, err)
	}
	return nil
}

// AddFinishedGood posts finished product against an order.
func (s *Store) AddFinishedGood(ctx context.Context, orderID string, fg production.FinishedGood) (production.FinishedGood, error) {
	if err := s.orderExists(ctx, orderID); err != nil {
		return production.FinishedGood{}, err
	}

	fg.ID = s.newID()
	fg.OrderID = orderID
	if fg.PostedAt == "" {
		fg.PostedAt = s.timestamp()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_finished_goods (id, order_id, product_code, lot_number, quantity_good, quantity_scrap, unit_cost, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fg.ID, fg.OrderID, fg.ProductCode, fg.LotNumber, fg.QuantityGood, fg.QuantityScrap, nullableFloat(fg.UnitCost), fg.PostedAt)
	if err != nil {
		return production.FinishedGood{}, fmt.Errorf("insert finished good: %w", err)
	}
	return fg, nil
}

// ListFinishedGoods returns the finished-good postings of an order.
func (s *Store) ListFinishedGoods(ctx context.Context, orderID string) ([]production.FinishedGood, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_code, lot_number, quantity_good, quantity_scrap, unit_cost, posted_at
		FROM order_finished_goods
		WHERE order_id = ?
		ORDER BY posted_at, rowid
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query finished goods: %w", err)
	}
	defer rows.Close()

	goods := make([]production.FinishedGood, 0)
	for rows.Next() {
		var (
			fg       production.FinishedGood
			unitCost sql.NullFloat64
		)
		if err := rows.Scan(&fg.ID, &fg.OrderID, &fg.ProductCode, &fg.LotNumber, &fg.QuantityGood, &fg.QuantityScrap, &unitCost, &fg.PostedAt); err != nil {
			return nil, fmt.Errorf("scan finished good: %w", err)
		}
		fg.UnitCost = floatPtr(unitCost)
		goods = append(goods, fg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finished goods: %w", err)
	}
	return goods, nil
}

// AddRawMaterial posts a raw-material consumption against an order.
func (s *Store) AddRawMaterial(ctx context.Context, orderID string, rm production.RawMaterial) (production.RawMaterial, error) {
	if err := s.orderExists(ctx, orderID); err != nil {
		return production.RawMaterial{}, err
	}

	rm.ID = s.newID()
	rm.OrderID = orderID
	if rm.ConsumedAt == "" {
		rm.ConsumedAt = s.timestamp()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_raw_materials (id, order_id, component_code, description, quantity_used, unit, unit_cost, warehouse, batch_number, consumed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rm.ID, rm.OrderID, rm.ComponentCode, rm.Description, rm.QuantityUsed, rm.Unit, nullableFloat(rm.UnitCost), rm.Warehouse, rm.BatchNumber, rm.ConsumedAt)
	if err != nil {
		return production.RawMaterial{}, fmt.Errorf("insert raw material: %w", err)
	}
	return rm, nil
}

// ListRawMaterials returns the raw-material consumptions of an order.
func (s *Store) ListRawMaterials(ctx context.Context, orderID string) ([]production.RawMaterial, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, component_code, description, quantity_used, unit, unit_cost, warehouse, batch_number, consumed_at
		FROM order_raw_materials
		WHERE order_id = ?
		ORDER BY consumed_at, rowid
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query raw materials: %w", err)
	}
	defer rows.Close()

	materials := make([]production.RawMaterial, 0)
	for rows.Next() {
		var (
			rm       production.RawMaterial
			unitCost sql.NullFloat64
		)
		if err := rows.Scan(&rm.ID, &rm.OrderID, &rm.ComponentCode, &rm.Description, &rm.QuantityUsed, &rm.Unit, &unitCost, &rm.Warehouse, &rm.BatchNumber, &rm.ConsumedAt); err != nil {
			return nil, fmt.Errorf("scan raw material: %w", err)
		}
		rm.UnitCost = floatPtr(unitCost)
		materials = append(materials, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw materials: %w", err)
	}
	return materials, nil
}
