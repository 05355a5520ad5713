package domain

import "time"

type DisputeStatus string

const (
	DisputeOpen               DisputeStatus = "OPEN"
	DisputeInvestigating      DisputeStatus = "INVESTIGATING"
	DisputeResolutionProposed DisputeStatus = "RESOLUTION_PROPOSED"
	DisputeResolvedUser       DisputeStatus = "RESOLVED_USER"
	DisputeResolvedMerchant   DisputeStatus = "RESOLVED_MERCHANT"
	DisputeResolvedSplit      DisputeStatus = "RESOLVED_SPLIT"
	DisputeFinalized          DisputeStatus = "FINALIZED"
)

type DisputeReason string

const (
	ReasonPaymentNotReceived DisputeReason = "PAYMENT_NOT_RECEIVED"
	ReasonCryptoNotReceived  DisputeReason = "CRYPTO_NOT_RECEIVED"
	ReasonWrongAmount        DisputeReason = "WRONG_AMOUNT"
	ReasonFraud              DisputeReason = "FRAUD"
	ReasonExpired            DisputeReason = "DEADLINE_EXPIRED"
	ReasonOther              DisputeReason = "OTHER"
)

type Resolution string

const (
	ResolutionFavorUser     Resolution = "FAVOR_USER"
	ResolutionFavorMerchant Resolution = "FAVOR_MERCHANT"
	ResolutionSplit         Resolution = "SPLIT"
)

type Vote string

const (
	VoteNone      Vote = ""
	VoteConfirmed Vote = "CONFIRMED"
	VoteRejected  Vote = "REJECTED"
)

// Dispute is attached to at most one order once its status reaches DISPUTED.
type Dispute struct {
	ID          string
	OrderID     string
	Reason      DisputeReason
	Description string
	ProofURL    string
	OpenedBy    string
	Status      DisputeStatus

	// Proposal fields, set by compliance when Status reaches
	// RESOLUTION_PROPOSED. SplitUserPct is the user share in percent and
	// only meaningful for ResolutionSplit.
	Proposed     Resolution
	SplitUserPct float64
	Notes        string

	UserVote     Vote
	MerchantVote Vote

	// Unanswered proposals auto-finalize once AutoFinalizeAt passes.
	ProposalTTL    time.Duration
	AutoFinalizeAt time.Time

	// RequiresManualProcessing flags a finalized dispute whose custody
	// action could not be performed for lack of trade identifiers.
	RequiresManualProcessing bool

	ResolvedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type DisputeRepository interface {
	CreateDispute(dispute *Dispute) error
	UpdateDispute(dispute *Dispute) error
	GetDisputeByID(disputeID string) (*Dispute, error)
	GetDisputeByOrderID(orderID string) (*Dispute, error)
	FindExpiredProposals() ([]*Dispute, error)
}
