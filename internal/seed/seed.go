package seed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/producao/internal/costing"
	"github.com/Simplici0/producao/internal/production"
)

const (
	demoProductCode = "PROD-DEMO"
	demoVersion     = production.DefaultVersion
)

var demoBom = costing.BomDefinition{
	ProductCode:  demoProductCode,
	Version:      demoVersion,
	LotSize:      100,
	ValidityDays: 180,
	MarginTarget: 30,
	Notes:        "Ficha técnica de demonstração",
	Items: []costing.BomLine{
		{ComponentCode: "MP-FARINHA", Description: "Farinha de trigo (kg)", Quantity: 0.5, UnitCost: 4.2},
		{ComponentCode: "EMB-SACO", Description: "Saco plástico", Quantity: 1, UnitCost: 0.15},
	},
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, db *sql.DB) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensureDemoBom(ctx, tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureDemoBom(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM boms
			WHERE product_code = ? AND version = ?
			LIMIT 1
		)
	`, demoProductCode, demoVersion).Scan(&exists); err != nil {
		return fmt.Errorf("check demo bom existence: %w", err)
	}
	if exists {
		return nil
	}

	rec := production.NewBomRecord(uuid.NewString(), demoBom)
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO boms (
			id,
			product_code,
			version,
			lot_size,
			validity_days,
			margin_target,
			margin_achieved,
			notes,
			created_at,
			updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ProductCode, rec.Version, rec.LotSize, rec.ValidityDays, rec.MarginTarget, rec.MarginAchieved, rec.Notes, now, now); err != nil {
		return fmt.Errorf("insert demo bom: %w", err)
	}
	stats.Inserts++

	for i, item := range rec.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bom_items (bom_id, position, component_code, description, quantity, unit_cost)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, i, item.ComponentCode, item.Description, item.Quantity, item.UnitCost); err != nil {
			return fmt.Errorf("insert demo bom item %s: %w", item.ComponentCode, err)
		}
		stats.Inserts++
	}
	return nil
}
