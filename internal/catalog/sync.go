package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grill-backend/internal/models"
	"grill-backend/internal/square"
)

const batchSize = 100

type Lister interface {
	ListCatalogVariations(ctx context.Context) ([]square.CatalogVariation, error)
}

// Syncer mirrors Square catalog variations into catalog_variations so recipes
// can be mapped without calling Square.
type Syncer struct {
	db     *gorm.DB
	source Lister
	logger *zap.Logger
}

func NewSyncer(db *gorm.DB, source Lister, log *zap.Logger) *Syncer {
	return &Syncer{db: db, source: source, logger: log}
}

func (s *Syncer) Sync(ctx context.Context) (int, error) {
	vars, err := s.source.ListCatalogVariations(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch catalog: %w", err)
	}
	if len(vars) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]models.CatalogVariation, 0, len(vars))
	for _, v := range vars {
		if v.VariationID == "" {
			continue
		}
		rows = append(rows, models.CatalogVariation{
			VariationID:   v.VariationID,
			ItemName:      v.ItemName,
			VariationName: v.VariationName,
			SKU:           v.SKU,
			SyncedAt:      now,
		})
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "variation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"item_name", "variation_name", "sku", "synced_at"}),
	}).CreateInBatches(&rows, batchSize).Error
	if err != nil {
		return 0, fmt.Errorf("store catalog variations: %w", err)
	}

	s.logger.Info("catalog synced", zap.Int("variations", len(rows)))
	return len(rows), nil
}

// List returns stored variations, optionally filtered by a case-insensitive
// match on item name, variation name or SKU.
func (s *Syncer) List(ctx context.Context, search string) ([]models.CatalogVariation, error) {
	q := s.db.WithContext(ctx).Model(&models.CatalogVariation{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(item_name) LIKE ? OR LOWER(variation_name) LIKE ? OR LOWER(sku) LIKE ?", like, like, like)
	}

	var rows []models.CatalogVariation
	if err := q.Order("item_name ASC, variation_name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list catalog variations: %w", err)
	}
	return rows, nil
}
