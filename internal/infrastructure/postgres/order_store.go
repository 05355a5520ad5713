package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/infrastructure/postgres/mappers"
	"github.com/peerdeal/order-engine/internal/infrastructure/postgres/models"
)

// DefaultOrderStore is the authoritative order store backed by Postgres.
// Every applied mutation bumps the row version inside the same transaction.
type DefaultOrderStore struct {
	DB *gorm.DB
}

func NewDefaultOrderStore(db *gorm.DB) *DefaultOrderStore {
	return &DefaultOrderStore{DB: db}
}

func (s *DefaultOrderStore) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	idGenerator, err := nanoid.Standard(15)
	if err != nil {
		return nil, err
	}

	model := mappers.ToGORMOrder(order)
	model.ID = uuid.New().String()
	model.SequenceID = idGenerator()
	if model.Status == "" {
		model.Status = domain.StatusOpen
	}
	model.Version = 0
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}

	if err := s.DB.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return mappers.ToDomainOrder(model), nil
}

func (s *DefaultOrderStore) Fetch(ctx context.Context, orderID string) (*domain.Order, error) {
	var model models.OrderModel
	if err := s.DB.WithContext(ctx).First(&model, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return mappers.ToDomainOrder(&model), nil
}

func (s *DefaultOrderStore) FetchMany(ctx context.Context, filters domain.OrderFilters) ([]*domain.Order, error) {
	query := s.DB.WithContext(ctx).Model(&models.OrderModel{})
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if !filters.ExpiresBefore.IsZero() {
		query = query.Where("expires_at < ?", filters.ExpiresBefore)
	}
	if filters.Participant != "" {
		query = query.Where(
			"user_id = ? OR merchant_id = ? OR counter_merchant_id = ?",
			filters.Participant, filters.Participant, filters.Participant,
		)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var orderModels []models.OrderModel
	if err := query.Order("created_at ASC").Find(&orderModels).Error; err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(orderModels))
	for i := range orderModels {
		orders = append(orders, mappers.ToDomainOrder(&orderModels[i]))
	}
	return orders, nil
}

// Mutate applies a patch under a row lock and bumps the version. The
// crypto rate is frozen once a counterparty committed: a rate patch on
// an order past OPEN fails with ErrRateLocked.
func (s *DefaultOrderStore) Mutate(ctx context.Context, orderID string, patch domain.Patch, actor string) (*domain.Order, error) {
	var updated *domain.Order

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.OrderModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}

		if patch.CryptoRate != nil {
			if model.Status != domain.StatusOpen && *patch.CryptoRate != model.CryptoRate {
				return domain.ErrRateLocked
			}
			model.CryptoRate = *patch.CryptoRate
		}

		applyPatch(&model, patch)
		model.Version++
		model.UpdatedAt = time.Now()

		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		updated = mappers.ToDomainOrder(&model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyPatch(model *models.OrderModel, patch domain.Patch) {
	if patch.Status != nil {
		model.Status = *patch.Status
	}
	if patch.Escrow != nil {
		model.EscrowTxHash = patch.Escrow.TxHash
		model.EscrowTradeID = patch.Escrow.TradeID
		model.EscrowProgramAddress = patch.Escrow.ProgramAddress
		model.EscrowCreatorWallet = patch.Escrow.CreatorWallet
		model.EscrowCounterpartyWallet = patch.Escrow.CounterpartyWallet
	}
	if patch.Extension != nil {
		model.ExtensionCount = patch.Extension.Count
		model.ExtensionMax = patch.Extension.Max
		model.ExtensionState = string(patch.Extension.State)
		model.ExtensionRequestedByID = patch.Extension.RequestedByID
		model.ExtensionMinutes = patch.Extension.Minutes
	}
	if patch.ExpiresAt != nil {
		model.ExpiresAt = *patch.ExpiresAt
	}
	if patch.ReclaimAvailable != nil {
		model.ReclaimAvailable = *patch.ReclaimAvailable
	}

	// Lifecycle timestamps are set once and never rewritten.
	if patch.AcceptedAt != nil && model.AcceptedAt == nil {
		model.AcceptedAt = patch.AcceptedAt
	}
	if patch.EscrowedAt != nil && model.EscrowedAt == nil {
		model.EscrowedAt = patch.EscrowedAt
	}
	if patch.PaymentSentAt != nil && model.PaymentSentAt == nil {
		model.PaymentSentAt = patch.PaymentSentAt
	}
	if patch.CompletedAt != nil && model.CompletedAt == nil {
		model.CompletedAt = patch.CompletedAt
	}
	if patch.CancelledAt != nil && model.CancelledAt == nil {
		model.CancelledAt = patch.CancelledAt
	}
}
