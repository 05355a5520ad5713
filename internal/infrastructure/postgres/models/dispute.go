package models

import (
	"time"
)

type DisputeModel struct {
	ID          string `gorm:"primaryKey"`
	OrderID     string `gorm:"index"`
	Reason      string
	Description string
	ProofUrl    string
	OpenedBy    string
	Status      string `gorm:"index:idx_dispute_status_finalize"`

	Proposed     string
	SplitUserPct float64
	Notes        string

	UserVote     string
	MerchantVote string

	Ttl            time.Duration
	AutoFinalizeAt time.Time `gorm:"index:idx_dispute_status_finalize"`

	RequiresManualProcessing bool

	Order OrderModel `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`

	ResolvedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
