package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/infrastructure/postgres/mappers"
	"github.com/peerdeal/order-engine/internal/infrastructure/postgres/models"
)

type DefaultDisputeRepository struct {
	DB *gorm.DB
}

func NewDefaultDisputeRepository(db *gorm.DB) *DefaultDisputeRepository {
	return &DefaultDisputeRepository{DB: db}
}

func (r *DefaultDisputeRepository) CreateDispute(dispute *domain.Dispute) error {
	model := mappers.ToGORMDispute(dispute)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}
	return r.DB.Create(model).Error
}

func (r *DefaultDisputeRepository) UpdateDispute(dispute *domain.Dispute) error {
	model := mappers.ToGORMDispute(dispute)
	model.UpdatedAt = time.Now()
	return r.DB.Save(model).Error
}

func (r *DefaultDisputeRepository) GetDisputeByID(disputeID string) (*domain.Dispute, error) {
	var model models.DisputeModel
	if err := r.DB.First(&model, "id = ?", disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDisputeNotFound
		}
		return nil, err
	}
	return mappers.ToDomainDispute(&model), nil
}

func (r *DefaultDisputeRepository) GetDisputeByOrderID(orderID string) (*domain.Dispute, error) {
	var model models.DisputeModel
	if err := r.DB.Order("created_at DESC").First(&model, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDisputeNotFound
		}
		return nil, err
	}
	return mappers.ToDomainDispute(&model), nil
}

func (r *DefaultDisputeRepository) FindExpiredProposals() ([]*domain.Dispute, error) {
	var disputeModels []models.DisputeModel
	err := r.DB.
		Where("status = ?", string(domain.DisputeResolutionProposed)).
		Where("auto_finalize_at < ?", time.Now()).
		Find(&disputeModels).Error
	if err != nil {
		return nil, err
	}

	disputes := make([]*domain.Dispute, 0, len(disputeModels))
	for i := range disputeModels {
		disputes = append(disputes, mappers.ToDomainDispute(&disputeModels[i]))
	}
	return disputes, nil
}
