package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/producao/internal/costing"
	"github.com/Simplici0/producao/internal/production"
)

const bomColumns = `id, product_code, version, lot_size, validity_days, margin_target, margin_achieved, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBomHeader(row rowScanner) (production.BomRecord, error) {
	var (
		id, createdAt, updatedAt string
		def                      costing.BomDefinition
	)
	if err := row.Scan(
		&id,
		&def.ProductCode,
		&def.Version,
		&def.LotSize,
		&def.ValidityDays,
		&def.MarginTarget,
		&def.MarginAchieved,
		&def.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return production.BomRecord{}, err
	}
	rec := production.BomRecord{ID: id, BomDefinition: def, CreatedAt: createdAt, UpdatedAt: updatedAt}
	return rec, nil
}

// ListBoms returns every BOM with its lines, newest first.
func (s *Store) ListBoms(ctx context.Context) ([]production.BomRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bomColumns+`
		FROM boms
		ORDER BY created_at DESC, product_code, version DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query boms: %w", err)
	}
	defer rows.Close()

	boms := make([]production.BomRecord, 0)
	for rows.Next() {
		rec, err := scanBomHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bom: %w", err)
		}
		boms = append(boms, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boms: %w", err)
	}

	for i := range boms {
		if boms[i], err = s.withItems(ctx, boms[i]); err != nil {
			return nil, err
		}
	}
	return boms, nil
}

// GetBom returns a BOM by id.
func (s *Store) GetBom(ctx context.Context, id string) (production.BomRecord, error) {
	rec, err := scanBomHeader(s.db.QueryRowContext(ctx, `
		SELECT `+bomColumns+`
		FROM boms
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return production.BomRecord{}, ErrNotFound
	}
	if err != nil {
		return production.BomRecord{}, fmt.Errorf("query bom %s: %w", id, err)
	}
	return s.withItems(ctx, rec)
}

// LatestBomForProduct returns the most recently created BOM of a product.
func (s *Store) LatestBomForProduct(ctx context.Context, productCode string) (production.BomRecord, error) {
	rec, err := scanBomHeader(s.db.QueryRowContext(ctx, `
		SELECT `+bomColumns+`
		FROM boms
		WHERE product_code = ?
		ORDER BY created_at DESC, version DESC
		LIMIT 1
	`, productCode))
	if errors.Is(err, sql.ErrNoRows) {
		return production.BomRecord{}, ErrNotFound
	}
	if err != nil {
		return production.BomRecord{}, fmt.Errorf("query latest bom for %s: %w", productCode, err)
	}
	return s.withItems(ctx, rec)
}

func (s *Store) withItems(ctx context.Context, rec production.BomRecord) (production.BomRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT component_code, description, quantity, unit_cost
		FROM bom_items
		WHERE bom_id = ?
		ORDER BY position
	`, rec.ID)
	if err != nil {
		return rec, fmt.Errorf("query bom items: %w", err)
	}
	defer rows.Close()

	items := make([]costing.BomLine, 0)
	for rows.Next() {
		var line costing.BomLine
		if err := rows.Scan(&line.ComponentCode, &line.Description, &line.Quantity, &line.UnitCost); err != nil {
			return rec, fmt.Errorf("scan bom item: %w", err)
		}
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		return rec, fmt.Errorf("iterate bom items: %w", err)
	}

	rec.Items = items
	out := production.NewBomRecord(rec.ID, rec.BomDefinition)
	out.CreatedAt = rec.CreatedAt
	out.UpdatedAt = rec.UpdatedAt
	return out, nil
}

// CreateBom stores a new BOM and returns it with its totals.
func (s *Store) CreateBom(ctx context.Context, def costing.BomDefinition) (production.BomRecord, error) {
	now := s.timestamp()
	rec := production.BomRecord{ID: s.newID(), BomDefinition: def, CreatedAt: now, UpdatedAt: now}
	if err := s.insertBom(ctx, rec); err != nil {
		return production.BomRecord{}, err
	}
	return s.GetBom(ctx, rec.ID)
}

func (s *Store) insertBom(ctx context.Context, rec production.BomRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bom transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO boms (`+bomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.ProductCode,
		rec.Version,
		rec.LotSize,
		rec.ValidityDays,
		rec.MarginTarget,
		rec.MarginAchieved,
		production.SanitizeNotes(rec.Notes),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert bom: %w", err)
	}

	if err := replaceItems(ctx, tx, rec.ID, rec.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bom transaction: %w", err)
	}
	return nil
}

func replaceItems(ctx context.Context, tx *sql.Tx, bomID string, items []costing.BomLine) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM bom_items WHERE bom_id = ?`, bomID); err != nil {
		return fmt.Errorf("delete bom items: %w", err)
	}
	for i, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bom_items (bom_id, position, component_code, description, quantity, unit_cost)
			VALUES (?, ?, ?, ?, ?, ?)
		`, bomID, i, item.ComponentCode, item.Description, item.Quantity, item.UnitCost)
		if err != nil {
			return fmt.Errorf("insert bom item %d: %w", i, err)
		}
	}
	return nil
}

// UpdateBom replaces the definition of an existing BOM.
func (s *Store) UpdateBom(ctx context.Context, id string, def costing.BomDefinition) (production.BomRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return production.BomRecord{}, fmt.Errorf("begin bom transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE boms
		SET
			product_code = ?,
			version = ?,
			lot_size = ?,
			validity_days = ?,
			margin_target = ?,
			margin_achieved = ?,
			notes = ?,
			updated_at = ?
		WHERE id = ?
	`,
		def.ProductCode,
		def.Version,
		def.LotSize,
		def.ValidityDays,
		def.MarginTarget,
		def.MarginAchieved,
		production.SanitizeNotes(def.Notes),
		s.timestamp(),
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return production.BomRecord{}, ErrConflict
		}
		return production.BomRecord{}, fmt.Errorf("update bom: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return production.BomRecord{}, fmt.Errorf("update bom: %w", err)
	}
	if affected == 0 {
		return production.BomRecord{}, ErrNotFound
	}

	if err := replaceItems(ctx, tx, id, def.Items); err != nil {
		return production.BomRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return production.BomRecord{}, fmt.Errorf("commit bom transaction: %w", err)
	}
	return s.GetBom(ctx, id)
}

// UpsertBom stores rec under its own id, inserting or replacing it. It
// reports whether a new row was created.
func (s *Store) UpsertBom(ctx context.Context, rec production.BomRecord) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("upsert bom: missing id")
	}

	_, err := s.UpdateBom(ctx, rec.ID, rec.BomDefinition)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	now := s.timestamp()
	if rec.CreatedAt == "" {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if err := s.insertBom(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteBom removes a BOM and its lines.
func (s *Store) DeleteBom(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM boms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bom: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bom: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
