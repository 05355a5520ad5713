package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/reconcile"
)

// --- fakes ---

type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemOrderStore(orders ...*domain.Order) *memOrderStore {
	s := &memOrderStore{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memOrderStore) Create(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return o.Clone(), nil
}

func (s *memOrderStore) Fetch(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *memOrderStore) FetchMany(ctx context.Context, filters domain.OrderFilters) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Order
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	return out, nil
}

func (s *memOrderStore) Mutate(ctx context.Context, orderID string, patch domain.Patch, actor string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.ReclaimAvailable != nil {
		o.ReclaimAvailable = *patch.ReclaimAvailable
	}
	if patch.CompletedAt != nil && o.Timestamps.CompletedAt == nil {
		o.Timestamps.CompletedAt = patch.CompletedAt
	}
	if patch.CancelledAt != nil && o.Timestamps.CancelledAt == nil {
		o.Timestamps.CancelledAt = patch.CancelledAt
	}
	o.Version++
	return o.Clone(), nil
}

type memDisputeRepo struct {
	mu       sync.Mutex
	disputes map[string]*domain.Dispute
}

func newMemDisputeRepo() *memDisputeRepo {
	return &memDisputeRepo{disputes: make(map[string]*domain.Dispute)}
}

func (r *memDisputeRepo) CreateDispute(d *domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.disputes[d.ID] = &cp
	return nil
}

func (r *memDisputeRepo) UpdateDispute(d *domain.Dispute) error {
	return r.CreateDispute(d)
}

func (r *memDisputeRepo) GetDisputeByID(disputeID string) (*domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[disputeID]
	if !ok {
		return nil, domain.ErrDisputeNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memDisputeRepo) GetDisputeByOrderID(orderID string) (*domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disputes {
		if d.OrderID == orderID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrDisputeNotFound
}

func (r *memDisputeRepo) FindExpiredProposals() ([]*domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Dispute
	now := time.Now()
	for _, d := range r.disputes {
		if d.Status == domain.DisputeResolutionProposed && !d.AutoFinalizeAt.IsZero() && d.AutoFinalizeAt.Before(now) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeCustody struct {
	mu           sync.Mutex
	calls        []string
	failReleases int
}

func (f *fakeCustody) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeCustody) Lock(ctx context.Context, amountCrypto float64, creatorWallet, recipientWallet string) (*domain.LockResult, error) {
	f.record("lock")
	return &domain.LockResult{TxHash: "0xlock", TradeID: "trade-1"}, nil
}

func (f *fakeCustody) Join(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string) (string, error) {
	f.record("join")
	return "0xjoin", nil
}

func (f *fakeCustody) Release(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string) (string, error) {
	f.record("release")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReleases > 0 {
		f.failReleases--
		return "", &domain.CustodyCallFailed{Op: "release", Reason: "node timeout"}
	}
	return "0xrelease", nil
}

func (f *fakeCustody) Refund(ctx context.Context, tradeID, creatorWallet string) (string, error) {
	f.record("refund")
	return "0xrefund", nil
}

func (f *fakeCustody) Split(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string, creatorPct float64) (string, error) {
	f.record("split")
	return "0xsplit", nil
}

func (f *fakeCustody) OpenDisputeMarker(ctx context.Context, tradeID, creatorWallet string) (string, error) {
	f.record("dispute_marker")
	return "0xdispute", nil
}

// --- fixtures ---

const (
	userID       = "user-1"
	merchantID   = "merchant-1"
	userWallet   = "wallet-user"
	merchWallet  = "wallet-merchant"
	complianceID = "ops-1"
)

// disputedOrder is a user-sells trade with funded escrow: the user is the
// escrow creator.
func disputedOrder() *domain.Order {
	return &domain.Order{
		ID:        "ord-1",
		Parties:   domain.Parties{UserID: userID, MerchantID: merchantID},
		Direction: domain.DirectionSell,
		Status:    domain.StatusDisputed,
		Version:   3,
		Escrow: domain.EscrowInfo{
			TxHash:             "0xlock",
			TradeID:            "trade-1",
			CreatorWallet:      userWallet,
			CounterpartyWallet: merchWallet,
		},
	}
}

func newDisputeFixture(order *domain.Order) (*DefaultDisputeUsecase, *memOrderStore, *memDisputeRepo, *fakeCustody) {
	store := newMemOrderStore(order)
	repo := newMemDisputeRepo()
	custody := &fakeCustody{}
	uc := NewDefaultDisputeUsecase(repo, store, custody, nil, reconcile.NewStore(nil), nil, nil, time.Hour)
	return uc, store, repo, custody
}

func compliance() domain.Actor {
	return domain.Actor{ID: complianceID, Compliance: true}
}

// openDispute drives the fixture order into an OPEN dispute.
func openDispute(t *testing.T, uc *DefaultDisputeUsecase, order *domain.Order) *domain.Dispute {
	t.Helper()
	order.Status = domain.StatusPaymentSent
	dispute, err := uc.OpenForOrder(context.Background(), order, domain.Actor{ID: userID, Wallet: userWallet}, domain.ReasonPaymentNotReceived, "no fiat received")
	require.NoError(t, err)
	return dispute
}

// --- open ---

func TestOpen_CreatesDisputeAndMarksOrder(t *testing.T) {
	order := disputedOrder()
	order.Status = domain.StatusPaymentSent
	uc, store, _, custody := newDisputeFixture(order)

	dispute, err := uc.Open(context.Background(), "ord-1", domain.Actor{ID: userID, Wallet: userWallet}, domain.ReasonPaymentNotReceived, "no fiat received")
	require.NoError(t, err)

	assert.Equal(t, domain.DisputeOpen, dispute.Status)
	assert.Equal(t, "ord-1", dispute.OrderID)
	assert.Equal(t, userID, dispute.OpenedBy)
	assert.Contains(t, custody.calls, "dispute_marker")

	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusDisputed, persisted.Status)
}

func TestOpen_TerminalOrderRejected(t *testing.T) {
	order := disputedOrder()
	order.Status = domain.StatusCompleted
	uc, _, _, _ := newDisputeFixture(order)

	_, err := uc.Open(context.Background(), "ord-1", domain.Actor{ID: userID}, domain.ReasonOther, "")
	assert.True(t, domain.IsPrecondition(err))
}

func TestOpen_AlreadyDisputedReturnsExisting(t *testing.T) {
	order := disputedOrder()
	order.Status = domain.StatusPaymentSent
	uc, _, _, _ := newDisputeFixture(order)

	first, err := uc.Open(context.Background(), "ord-1", domain.Actor{ID: userID}, domain.ReasonPaymentNotReceived, "")
	require.NoError(t, err)

	second, err := uc.Open(context.Background(), "ord-1", domain.Actor{ID: merchantID}, domain.ReasonOther, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestOpen_NoWalletSkipsOnChainMarker(t *testing.T) {
	order := disputedOrder()
	order.Status = domain.StatusPaymentSent
	uc, _, _, custody := newDisputeFixture(order)

	_, err := uc.Open(context.Background(), "ord-1", domain.Actor{ID: userID}, domain.ReasonPaymentNotReceived, "")
	require.NoError(t, err)
	assert.NotContains(t, custody.calls, "dispute_marker")
}

// --- workflow transitions ---

func TestWorkflow_InvestigateRequiresCompliance(t *testing.T) {
	order := disputedOrder()
	uc, _, _, _ := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)

	_, err := uc.Investigate(context.Background(), dispute.ID, domain.Actor{ID: userID})
	assert.True(t, domain.IsPrecondition(err))

	updated, err := uc.Investigate(context.Background(), dispute.ID, compliance())
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeInvestigating, updated.Status)
}

func TestWorkflow_ProposeOnlyFromInvestigation(t *testing.T) {
	order := disputedOrder()
	uc, _, _, _ := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)

	_, err := uc.Propose(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorUser, 0, "")
	assert.True(t, domain.IsPrecondition(err), "must investigate before proposing")

	_, err = uc.Investigate(context.Background(), dispute.ID, compliance())
	require.NoError(t, err)

	updated, err := uc.Propose(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorUser, 0, "refund the user")
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeResolutionProposed, updated.Status)
	assert.False(t, updated.AutoFinalizeAt.IsZero())
}

func TestWorkflow_SplitPercentageValidated(t *testing.T) {
	order := disputedOrder()
	uc, _, _, _ := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)
	_, err := uc.Investigate(context.Background(), dispute.ID, compliance())
	require.NoError(t, err)

	for _, pct := range []float64{0, -5, 100, 130} {
		_, err := uc.Propose(context.Background(), dispute.ID, compliance(), domain.ResolutionSplit, pct, "")
		assert.True(t, domain.IsPrecondition(err), "pct=%v", pct)
	}
}

func TestWorkflow_BothConfirmationsFinalize(t *testing.T) {
	order := disputedOrder()
	uc, store, _, custody := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)
	_, err := uc.Investigate(context.Background(), dispute.ID, compliance())
	require.NoError(t, err)
	_, err = uc.Propose(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorUser, 0, "")
	require.NoError(t, err)

	partial, err := uc.Confirm(context.Background(), dispute.ID, domain.Actor{ID: userID}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeResolutionProposed, partial.Status, "one vote is not enough")

	final, err := uc.Confirm(context.Background(), dispute.ID, domain.Actor{ID: merchantID}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeFinalized, final.Status)
	assert.NotNil(t, final.ResolvedAt)

	// User sold and funded escrow; favoring the user means a refund.
	assert.Contains(t, custody.calls, "refund")
	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusCancelled, persisted.Status)
}

func TestWorkflow_RejectionReturnsToInvestigation(t *testing.T) {
	order := disputedOrder()
	uc, _, _, custody := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)
	_, err := uc.Investigate(context.Background(), dispute.ID, compliance())
	require.NoError(t, err)
	_, err = uc.Propose(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorMerchant, 0, "")
	require.NoError(t, err)

	_, err = uc.Confirm(context.Background(), dispute.ID, domain.Actor{ID: merchantID}, true)
	require.NoError(t, err)

	rejected, err := uc.Confirm(context.Background(), dispute.ID, domain.Actor{ID: userID}, false)
	require.NoError(t, err)

	assert.Equal(t, domain.DisputeInvestigating, rejected.Status)
	assert.Empty(t, string(rejected.Proposed), "voided proposal must not linger")
	assert.Equal(t, domain.VoteNone, rejected.MerchantVote, "votes reset with the proposal")
	assert.NotContains(t, custody.calls, "release")
	assert.NotContains(t, custody.calls, "refund")
}

func TestWorkflow_SettlementFailureLeavesDisputeRetryable(t *testing.T) {
	order := disputedOrder()
	uc, store, repo, custody := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)
	_, err := uc.Investigate(context.Background(), dispute.ID, compliance())
	require.NoError(t, err)
	_, err = uc.Propose(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorMerchant, 0, "")
	require.NoError(t, err)
	_, err = uc.Confirm(context.Background(), dispute.ID, domain.Actor{ID: userID}, true)
	require.NoError(t, err)

	custody.failReleases = 1
	_, err = uc.Confirm(context.Background(), dispute.ID, domain.Actor{ID: merchantID}, true)
	var custodyErr *domain.CustodyCallFailed
	require.ErrorAs(t, err, &custodyErr)

	// The failed settlement persisted nothing: the dispute still awaits
	// confirmation and the order is untouched.
	stored, err := repo.GetDisputeByID(dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeResolutionProposed, stored.Status)
	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusDisputed, persisted.Status)

	// Custody recovered: the same confirmation now settles and finalizes.
	final, err := uc.Confirm(context.Background(), dispute.ID, domain.Actor{ID: merchantID}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeFinalized, final.Status)
	persisted, _ = store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusCompleted, persisted.Status)
}

func TestWorkflow_StrangerCannotVote(t *testing.T) {
	order := disputedOrder()
	uc, _, _, _ := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)
	_, err := uc.Investigate(context.Background(), dispute.ID, compliance())
	require.NoError(t, err)
	_, err = uc.Propose(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorUser, 0, "")
	require.NoError(t, err)

	_, err = uc.Confirm(context.Background(), dispute.ID, domain.Actor{ID: "stranger"}, true)
	assert.True(t, domain.IsPrecondition(err))
}

// --- settlement paths ---

func TestForceFinalize_FavorMerchantReleases(t *testing.T) {
	order := disputedOrder()
	uc, store, _, custody := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)

	final, err := uc.ForceFinalize(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorMerchant, 0, "payment verified")
	require.NoError(t, err)

	assert.Equal(t, domain.DisputeFinalized, final.Status)
	assert.Contains(t, custody.calls, "release")
	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusCompleted, persisted.Status)
}

func TestForceFinalize_SplitUsesCreatorShare(t *testing.T) {
	order := disputedOrder()
	uc, store, _, custody := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)

	final, err := uc.ForceFinalize(context.Background(), dispute.ID, compliance(), domain.ResolutionSplit, 60, "")
	require.NoError(t, err)

	assert.Equal(t, domain.DisputeFinalized, final.Status)
	assert.Contains(t, custody.calls, "split")
	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusCompleted, persisted.Status)
}

func TestForceFinalize_RequiresCompliance(t *testing.T) {
	order := disputedOrder()
	uc, _, _, _ := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)

	_, err := uc.ForceFinalize(context.Background(), dispute.ID, domain.Actor{ID: userID}, domain.ResolutionFavorUser, 0, "")
	assert.True(t, domain.IsPrecondition(err))
}

func TestForceFinalize_MissingCustodyIDsFlagsManual(t *testing.T) {
	order := disputedOrder()
	order.Escrow = domain.EscrowInfo{}
	uc, store, _, custody := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)

	final, err := uc.ForceFinalize(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorUser, 0, "")
	require.NoError(t, err)

	assert.Equal(t, domain.DisputeFinalized, final.Status)
	assert.True(t, final.RequiresManualProcessing)
	assert.Empty(t, custody.calls, "no custody ids, no custody calls")
	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusCancelled, persisted.Status)
}

// --- auto finalize ---

func TestFinalizeExpiredProposals(t *testing.T) {
	order := disputedOrder()
	uc, store, repo, _ := newDisputeFixture(order)
	dispute := openDispute(t, uc, order)
	_, err := uc.Investigate(context.Background(), dispute.ID, compliance())
	require.NoError(t, err)
	_, err = uc.Propose(context.Background(), dispute.ID, compliance(), domain.ResolutionFavorMerchant, 0, "")
	require.NoError(t, err)

	// Age the proposal past its TTL.
	stored, err := repo.GetDisputeByID(dispute.ID)
	require.NoError(t, err)
	stored.AutoFinalizeAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.UpdateDispute(stored))

	require.NoError(t, uc.FinalizeExpiredProposals(context.Background()))

	final, err := uc.GetDisputeByID(dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeFinalized, final.Status)
	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusCompleted, persisted.Status)
}
