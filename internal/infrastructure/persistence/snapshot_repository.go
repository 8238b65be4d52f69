package persistence

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// GormSnapshotRepository implements sync.SnapshotCache using GORM
type GormSnapshotRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository
func NewGormSnapshotRepository(db *gorm.DB, logger *zap.Logger) *GormSnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormSnapshotRepository{db: db, logger: logger}
}

// SaveSnapshot upserts the snapshot row for an order. A row is only
// replaced by a fresher snapshot; a stale write after restart cannot
// roll the cache backwards.
func (r *GormSnapshotRepository) SaveSnapshot(ctx context.Context, o order.Order) error {
	var model OrderSnapshotModel
	if err := model.FromDomain(o); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id", "restaurant_id", "items_json", "total_amount",
			"status", "payment_status", "created_at", "updated_at",
		}),
		Where: clause.Where{
			Exprs: []clause.Expression{
				clause.Lt{
					Column: clause.Column{Table: "order_snapshots", Name: "updated_at"},
					Value:  o.UpdatedAt,
				},
			},
		},
	}).Create(&model).Error
}

// LoadAll returns every cached snapshot. Rows that no longer decode are
// skipped with a warning rather than failing the whole warm start.
func (r *GormSnapshotRepository) LoadAll(ctx context.Context) ([]order.Order, error) {
	var rows []OrderSnapshotModel
	if err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.ToDomain()
		if err != nil {
			r.logger.Warn("skipping corrupt cached snapshot",
				zap.String("order_id", row.OrderID),
				zap.Error(err),
			)
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// DeleteSnapshot removes one cached row.
func (r *GormSnapshotRepository) DeleteSnapshot(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&OrderSnapshotModel{}).Error
}
