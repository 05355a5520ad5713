// Package handlers exposes the engine over HTTP. Authentication is done
// upstream at the gateway; the actor arrives in trusted headers.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/reconcile"
	disputeuc "github.com/peerdeal/order-engine/internal/usecase/dispute"
	escrowuc "github.com/peerdeal/order-engine/internal/usecase/escrow"
	extensionuc "github.com/peerdeal/order-engine/internal/usecase/extension"
)

type EngineHandler struct {
	store      domain.OrderStore
	syncer     *reconcile.Syncer
	escrow     escrowuc.EscrowUsecase
	extensions extensionuc.ExtensionUsecase
	disputes   disputeuc.DisputeUsecase

	// OpenTTL is the default deadline for freshly created orders when the
	// request carries none. Zero means domain.DefaultOpenTTL.
	OpenTTL time.Duration
}

func NewEngineHandler(
	store domain.OrderStore,
	syncer *reconcile.Syncer,
	escrow escrowuc.EscrowUsecase,
	extensions extensionuc.ExtensionUsecase,
	disputes disputeuc.DisputeUsecase) *EngineHandler {

	return &EngineHandler{
		store:      store,
		syncer:     syncer,
		escrow:     escrow,
		extensions: extensions,
		disputes:   disputes,
	}
}

func (h *EngineHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/orders/:id/dispute", h.GetOrderDispute)

	r.POST("/orders/:id/escrow/lock", h.LockEscrow)
	r.POST("/orders/:id/escrow/join", h.JoinEscrow)
	r.POST("/orders/:id/payment-sent", h.MarkPaymentSent)
	r.POST("/orders/:id/release", h.Release)
	r.POST("/orders/:id/refund", h.Refund)

	r.POST("/orders/:id/extension/request", h.RequestExtension)
	r.POST("/orders/:id/extension/respond", h.RespondExtension)

	r.POST("/orders/:id/disputes", h.OpenDispute)
	r.GET("/disputes/:id", h.GetDispute)
	r.POST("/disputes/:id/investigate", h.Investigate)
	r.POST("/disputes/:id/propose", h.Propose)
	r.POST("/disputes/:id/confirm", h.Confirm)
	r.POST("/disputes/:id/finalize", h.ForceFinalize)
}

func actorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:         c.GetHeader("X-Actor-ID"),
		Wallet:     c.GetHeader("X-Actor-Wallet"),
		Compliance: c.GetHeader("X-Actor-Compliance") == "true",
	}
}

type createOrderRequest struct {
	UserID            string  `json:"user_id" binding:"required"`
	MerchantID        string  `json:"merchant_id" binding:"required"`
	CounterMerchantID string  `json:"counter_merchant_id"`
	Direction         string  `json:"direction" binding:"required"`
	PaymentMethod     string  `json:"payment_method"`
	AmountCrypto      float64 `json:"amount_crypto" binding:"required"`
	AmountFiat        float64 `json:"amount_fiat" binding:"required"`
	CryptoRate        float64 `json:"crypto_rate"`
	Currency          string  `json:"currency" binding:"required"`
	TTLMinutes        int     `json:"ttl_minutes"`
}

func (h *EngineHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	ttl := time.Duration(req.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = h.OpenTTL
	}
	if ttl <= 0 {
		ttl = domain.DefaultOpenTTL
	}

	order := &domain.Order{
		Parties: domain.Parties{
			UserID:            req.UserID,
			MerchantID:        req.MerchantID,
			CounterMerchantID: req.CounterMerchantID,
		},
		Direction:     domain.Direction(req.Direction),
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Amount: domain.AmountInfo{
			AmountCrypto: req.AmountCrypto,
			AmountFiat:   req.AmountFiat,
			CryptoRate:   req.CryptoRate,
			Currency:     req.Currency,
		},
		Status:    domain.StatusOpen,
		ExpiresAt: time.Now().Add(ttl),
	}

	created, err := h.store.Create(c.Request.Context(), order)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetOrder refetches from the authoritative store and serves the merged
// snapshot, so a read is never older than the store's current version.
func (h *EngineHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("id")

	order, err := h.syncer.Refresh(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, reconcile.ErrSuperseded) {
			c.JSON(http.StatusConflict, gin.H{"error": "superseded", "message": "a newer fetch is in flight, retry"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *EngineHandler) LockEscrow(c *gin.Context) {
	order, err := h.escrow.Lock(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *EngineHandler) JoinEscrow(c *gin.Context) {
	order, err := h.escrow.Join(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *EngineHandler) MarkPaymentSent(c *gin.Context) {
	order, err := h.escrow.MarkPaymentSent(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *EngineHandler) Release(c *gin.Context) {
	order, err := h.escrow.Release(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *EngineHandler) Refund(c *gin.Context) {
	order, err := h.escrow.Refund(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type extensionRequest struct {
	Minutes int `json:"minutes" binding:"required"`
}

func (h *EngineHandler) RequestExtension(c *gin.Context) {
	var req extensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	order, err := h.extensions.Request(c.Request.Context(), c.Param("id"), actorFrom(c), req.Minutes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type extensionResponse struct {
	Accept bool `json:"accept"`
}

func (h *EngineHandler) RespondExtension(c *gin.Context) {
	var req extensionResponse
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	order, err := h.extensions.Respond(c.Request.Context(), c.Param("id"), actorFrom(c), req.Accept)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type openDisputeRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
}

func (h *EngineHandler) OpenDispute(c *gin.Context) {
	var req openDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	dispute, err := h.disputes.Open(c.Request.Context(), c.Param("id"), actorFrom(c), domain.DisputeReason(req.Reason), req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dispute)
}

func (h *EngineHandler) GetDispute(c *gin.Context) {
	dispute, err := h.disputes.GetDisputeByID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

func (h *EngineHandler) GetOrderDispute(c *gin.Context) {
	dispute, err := h.disputes.GetDisputeByOrderID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

func (h *EngineHandler) Investigate(c *gin.Context) {
	dispute, err := h.disputes.Investigate(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

type proposeRequest struct {
	Resolution   string  `json:"resolution" binding:"required"`
	SplitUserPct float64 `json:"split_user_pct"`
	Notes        string  `json:"notes"`
}

func (h *EngineHandler) Propose(c *gin.Context) {
	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	dispute, err := h.disputes.Propose(c.Request.Context(), c.Param("id"), actorFrom(c), domain.Resolution(req.Resolution), req.SplitUserPct, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

func (h *EngineHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	dispute, err := h.disputes.Confirm(c.Request.Context(), c.Param("id"), actorFrom(c), req.Confirmed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

func (h *EngineHandler) ForceFinalize(c *gin.Context) {
	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	dispute, err := h.disputes.ForceFinalize(c.Request.Context(), c.Param("id"), actorFrom(c), domain.Resolution(req.Resolution), req.SplitUserPct, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// writeError maps domain errors to transport status codes. Custody error
// text is passed through verbatim: wording is the caller's concern.
func writeError(c *gin.Context, err error) {
	var custodyErr *domain.CustodyCallFailed
	var bookkeepingErr *domain.BookkeepingSyncFailed
	var preconditionErr *domain.PreconditionViolation

	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrDisputeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, domain.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient_balance", "message": err.Error()})
	case errors.Is(err, domain.ErrRecipientUnresolved):
		c.JSON(http.StatusConflict, gin.H{"error": "recipient_unresolved", "message": err.Error()})
	case errors.Is(err, domain.ErrRateLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "rate_locked", "message": err.Error()})
	case errors.As(err, &preconditionErr):
		c.JSON(http.StatusConflict, gin.H{"error": "precondition_violation", "message": err.Error()})
	case errors.As(err, &custodyErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "custody_call_failed", "message": custodyErr.Reason})
	case errors.As(err, &bookkeepingErr):
		// Custody succeeded, order record lags. Transient, not a failure.
		c.JSON(http.StatusAccepted, gin.H{"error": "bookkeeping_pending", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
	}
}
