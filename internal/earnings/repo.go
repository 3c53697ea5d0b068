package earnings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/pagination"
)

// Repository persists settlement entries. The unique shipment_id index
// backs the settle-at-most-once guarantee.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.EarningsEntry) error
	FindByShipment(ctx context.Context, shipmentID uuid.UUID) (*models.EarningsEntry, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.EarningsEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an earnings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.EarningsEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByShipment(ctx context.Context, shipmentID uuid.UUID) (*models.EarningsEntry, error) {
	var entry models.EarningsEntry
	err := r.db.WithContext(ctx).Where("shipment_id = ?", shipmentID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByAgent(ctx context.Context, agentID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.EarningsEntry, error) {
	query := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit))
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.EarningsEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
