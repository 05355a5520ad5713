package mappers

import (
	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/infrastructure/postgres/models"
)

func ToDomainDispute(model *models.DisputeModel) *domain.Dispute {
	return &domain.Dispute{
		ID:                       model.ID,
		OrderID:                  model.OrderID,
		Reason:                   domain.DisputeReason(model.Reason),
		Description:              model.Description,
		ProofURL:                 model.ProofUrl,
		OpenedBy:                 model.OpenedBy,
		Status:                   domain.DisputeStatus(model.Status),
		Proposed:                 domain.Resolution(model.Proposed),
		SplitUserPct:             model.SplitUserPct,
		Notes:                    model.Notes,
		UserVote:                 domain.Vote(model.UserVote),
		MerchantVote:             domain.Vote(model.MerchantVote),
		ProposalTTL:              model.Ttl,
		AutoFinalizeAt:           model.AutoFinalizeAt,
		RequiresManualProcessing: model.RequiresManualProcessing,
		ResolvedAt:               model.ResolvedAt,
		CreatedAt:                model.CreatedAt,
		UpdatedAt:                model.UpdatedAt,
	}
}

func ToGORMDispute(dispute *domain.Dispute) *models.DisputeModel {
	return &models.DisputeModel{
		ID:                       dispute.ID,
		OrderID:                  dispute.OrderID,
		Reason:                   string(dispute.Reason),
		Description:              dispute.Description,
		ProofUrl:                 dispute.ProofURL,
		OpenedBy:                 dispute.OpenedBy,
		Status:                   string(dispute.Status),
		Proposed:                 string(dispute.Proposed),
		SplitUserPct:             dispute.SplitUserPct,
		Notes:                    dispute.Notes,
		UserVote:                 string(dispute.UserVote),
		MerchantVote:             string(dispute.MerchantVote),
		Ttl:                      dispute.ProposalTTL,
		AutoFinalizeAt:           dispute.AutoFinalizeAt,
		RequiresManualProcessing: dispute.RequiresManualProcessing,
		ResolvedAt:               dispute.ResolvedAt,
		CreatedAt:                dispute.CreatedAt,
		UpdatedAt:                dispute.UpdatedAt,
	}
}
