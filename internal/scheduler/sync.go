package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Simplici0/producao/internal/production"
	"github.com/Simplici0/producao/internal/store"
)

// BomSource lists the BOMs owned by the upstream ERP.
type BomSource interface {
	ListBoms(ctx context.Context) ([]production.BomAPIRecord, error)
}

// BomSink stores a BOM under its upstream id.
type BomSink interface {
	UpsertBom(ctx context.Context, rec production.BomRecord) (bool, error)
}

// SyncStats counts the outcome of one sync run.
type SyncStats struct {
	Fetched  int
	Upserted int
	Skipped  int
}

// Syncer copies upstream BOMs into the local store.
type Syncer struct {
	source BomSource
	sink   BomSink
	logger *zap.Logger
}

// NewSyncer wires a source to a sink.
func NewSyncer(source BomSource, sink BomSink, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{source: source, sink: sink, logger: logger}
}

// Run performs one sync pass. Records without an id, failing validation or
// clashing with a local product/version are skipped. Any other store failure
// aborts the run.
func (s *Syncer) Run(ctx context.Context) (SyncStats, error) {
	records, err := s.source.ListBoms(ctx)
	if err != nil {
		return SyncStats{}, fmt.Errorf("fetch boms: %w", err)
	}

	stats := SyncStats{Fetched: len(records)}
	for _, rec := range records {
		bom, err := production.MapBom(rec)
		if err == nil && bom.ID == "" {
			err = errors.New("missing id")
		}
		if err == nil {
			err = production.ValidateBom(bom.BomDefinition)
		}
		if err != nil {
			stats.Skipped++
			s.logger.Warn("skipping upstream bom",
				zap.String("id", rec.ID),
				zap.String("product_code", bom.ProductCode),
				zap.Error(err))
			continue
		}

		if _, err := s.sink.UpsertBom(ctx, bom); err != nil {
			if errors.Is(err, store.ErrConflict) {
				stats.Skipped++
				s.logger.Warn("upstream bom clashes with a local version",
					zap.String("id", bom.ID),
					zap.String("product_code", bom.ProductCode),
					zap.String("version", bom.Version))
				continue
			}
			return stats, fmt.Errorf("store bom %s: %w", bom.ID, err)
		}
		stats.Upserted++
	}

	s.logger.Info("bom sync finished",
		zap.Int("fetched", stats.Fetched),
		zap.Int("upserted", stats.Upserted),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}
