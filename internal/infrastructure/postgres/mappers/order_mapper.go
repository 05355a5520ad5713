package mappers

import (
	"encoding/json"

	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/infrastructure/postgres/models"
)

func ToDomainOrder(model *models.OrderModel) *domain.Order {
	var roleHints map[string]domain.Role
	if model.RoleHints != "" {
		_ = json.Unmarshal([]byte(model.RoleHints), &roleHints)
	}
	return &domain.Order{
		ID:         model.ID,
		SequenceID: model.SequenceID,
		Parties: domain.Parties{
			UserID:            model.UserID,
			MerchantID:        model.MerchantID,
			CounterMerchantID: model.CounterMerchantID,
		},
		Direction:     domain.Direction(model.Direction),
		PaymentMethod: domain.PaymentMethod(model.PaymentMethod),
		Amount: domain.AmountInfo{
			AmountCrypto: model.AmountCrypto,
			AmountFiat:   model.AmountFiat,
			CryptoRate:   model.CryptoRate,
			Currency:     model.Currency,
		},
		Status:  model.Status,
		Version: model.Version,
		Origin:  domain.OriginAuthoritative,
		Escrow: domain.EscrowInfo{
			TxHash:             model.EscrowTxHash,
			TradeID:            model.EscrowTradeID,
			ProgramAddress:     model.EscrowProgramAddress,
			CreatorWallet:      model.EscrowCreatorWallet,
			CounterpartyWallet: model.EscrowCounterpartyWallet,
		},
		RoleHints: roleHints,
		Extension: domain.ExtensionInfo{
			Count:         model.ExtensionCount,
			Max:           model.ExtensionMax,
			State:         domain.ExtensionState(model.ExtensionState),
			RequestedByID: model.ExtensionRequestedByID,
			Minutes:       model.ExtensionMinutes,
		},
		Timestamps: domain.Timestamps{
			CreatedAt:     model.CreatedAt,
			AcceptedAt:    model.AcceptedAt,
			EscrowedAt:    model.EscrowedAt,
			PaymentSentAt: model.PaymentSentAt,
			CompletedAt:   model.CompletedAt,
			CancelledAt:   model.CancelledAt,
		},
		ExpiresAt:        model.ExpiresAt,
		ReclaimAvailable: model.ReclaimAvailable,
	}
}

func ToGORMOrder(order *domain.Order) *models.OrderModel {
	roleHints := ""
	if len(order.RoleHints) > 0 {
		raw, err := json.Marshal(order.RoleHints)
		if err == nil {
			roleHints = string(raw)
		}
	}
	return &models.OrderModel{
		ID:                       order.ID,
		SequenceID:               order.SequenceID,
		UserID:                   order.Parties.UserID,
		MerchantID:               order.Parties.MerchantID,
		CounterMerchantID:        order.Parties.CounterMerchantID,
		Direction:                string(order.Direction),
		PaymentMethod:            string(order.PaymentMethod),
		AmountCrypto:             order.Amount.AmountCrypto,
		AmountFiat:               order.Amount.AmountFiat,
		CryptoRate:               order.Amount.CryptoRate,
		Currency:                 order.Amount.Currency,
		Status:                   order.Status,
		Version:                  order.Version,
		EscrowTxHash:             order.Escrow.TxHash,
		EscrowTradeID:            order.Escrow.TradeID,
		EscrowProgramAddress:     order.Escrow.ProgramAddress,
		EscrowCreatorWallet:      order.Escrow.CreatorWallet,
		EscrowCounterpartyWallet: order.Escrow.CounterpartyWallet,
		RoleHints:                roleHints,
		ExtensionCount:           order.Extension.Count,
		ExtensionMax:             order.Extension.Max,
		ExtensionState:           string(order.Extension.State),
		ExtensionRequestedByID:   order.Extension.RequestedByID,
		ExtensionMinutes:         order.Extension.Minutes,
		ExpiresAt:                order.ExpiresAt,
		ReclaimAvailable:         order.ReclaimAvailable,
		AcceptedAt:               order.Timestamps.AcceptedAt,
		EscrowedAt:               order.Timestamps.EscrowedAt,
		PaymentSentAt:            order.Timestamps.PaymentSentAt,
		CompletedAt:              order.Timestamps.CompletedAt,
		CancelledAt:              order.Timestamps.CancelledAt,
		CreatedAt:                order.Timestamps.CreatedAt,
	}
}
