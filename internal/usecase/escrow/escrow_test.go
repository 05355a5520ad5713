package usecase

import (
	"context"
	"errors"
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
	mu          sync.Mutex
	orders      map[string]*domain.Order
	failMutates int
	mutateCalls int
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
	s.mutateCalls++
	if s.failMutates > 0 {
		s.failMutates--
		return nil, errors.New("store unavailable")
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.Escrow != nil {
		o.Escrow = *patch.Escrow
	}
	if patch.Extension != nil {
		o.Extension = *patch.Extension
	}
	if patch.ExpiresAt != nil {
		o.ExpiresAt = *patch.ExpiresAt
	}
	if patch.ReclaimAvailable != nil {
		o.ReclaimAvailable = *patch.ReclaimAvailable
	}
	if patch.AcceptedAt != nil && o.Timestamps.AcceptedAt == nil {
		o.Timestamps.AcceptedAt = patch.AcceptedAt
	}
	if patch.EscrowedAt != nil && o.Timestamps.EscrowedAt == nil {
		o.Timestamps.EscrowedAt = patch.EscrowedAt
	}
	if patch.PaymentSentAt != nil && o.Timestamps.PaymentSentAt == nil {
		o.Timestamps.PaymentSentAt = patch.PaymentSentAt
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

type fakeCustody struct {
	mu         sync.Mutex
	calls      []string
	lockErr    error
	releaseErr error
	lockDelay  time.Duration
}

func (f *fakeCustody) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeCustody) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCustody) Lock(ctx context.Context, amountCrypto float64, creatorWallet, recipientWallet string) (*domain.LockResult, error) {
	f.record("lock")
	if f.lockDelay > 0 {
		time.Sleep(f.lockDelay)
	}
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return &domain.LockResult{TxHash: "0xlock", TradeID: "trade-1", ProgramAddress: "prog-1"}, nil
}

func (f *fakeCustody) Join(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string) (string, error) {
	f.record("join")
	return "0xjoin", nil
}

func (f *fakeCustody) Release(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string) (string, error) {
	f.record("release")
	if f.releaseErr != nil {
		return "", f.releaseErr
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

type fakeBalance struct {
	mu        sync.Mutex
	balances  map[string]float64
	stale     bool
	refreshes int
}

func (f *fakeBalance) Get(ctx context.Context, wallet string) (*domain.Balance, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.Balance{Crypto: f.balances[wallet]}, !f.stale, nil
}

func (f *fakeBalance) Refresh(ctx context.Context, wallet string) (*domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return &domain.Balance{Crypto: f.balances[wallet]}, nil
}

// --- fixtures ---

const (
	sellerID     = "user-seller"
	buyerID      = "merchant-buyer"
	sellerWallet = "wallet-seller"
	buyerWallet  = "wallet-buyer"
)

// sellListing is a user selling crypto to a merchant: the user funds escrow.
func sellListing(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:        "ord-1",
		Parties:   domain.Parties{UserID: sellerID, MerchantID: buyerID},
		Direction: domain.DirectionSell,
		Amount:    domain.AmountInfo{AmountCrypto: 10, AmountFiat: 900, Currency: "EUR"},
		Status:    status,
		Version:   1,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func fundedOrder(status domain.OrderStatus) *domain.Order {
	o := sellListing(status)
	o.Escrow = domain.EscrowInfo{
		TxHash:             "0xlock",
		TradeID:            "trade-1",
		ProgramAddress:     "prog-1",
		CreatorWallet:      sellerWallet,
		CounterpartyWallet: buyerWallet,
	}
	return o
}

func newEscrowFixture(order *domain.Order, funds float64) (*DefaultEscrowUsecase, *memOrderStore, *fakeCustody, *fakeBalance) {
	store := newMemOrderStore(order)
	custody := &fakeCustody{}
	balances := &fakeBalance{balances: map[string]float64{sellerWallet: funds, buyerWallet: funds}}
	uc := NewDefaultEscrowUsecase(store, custody, balances, reconcile.NewStore(nil), nil, nil)
	return uc, store, custody, balances
}

// --- lock ---

func TestLock_OpenRecipientMode(t *testing.T) {
	uc, store, custody, _ := newEscrowFixture(sellListing(domain.StatusOpen), 100)

	updated, err := uc.Lock(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEscrowed, updated.Status)
	assert.Equal(t, "trade-1", updated.Escrow.TradeID)
	assert.Equal(t, sellerWallet, updated.Escrow.CreatorWallet)
	assert.Empty(t, updated.Escrow.CounterpartyWallet, "open listing funds without a recipient")
	assert.Equal(t, 1, custody.callCount())

	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusEscrowed, persisted.Status)
	assert.Greater(t, persisted.Version, int64(1))
}

func TestLock_BuyerRejected(t *testing.T) {
	uc, _, custody, _ := newEscrowFixture(sellListing(domain.StatusOpen), 100)

	_, err := uc.Lock(context.Background(), "ord-1", domain.Actor{ID: buyerID, Wallet: buyerWallet})
	require.True(t, domain.IsPrecondition(err))
	assert.Zero(t, custody.callCount(), "precondition failures must not reach custody")
}

func TestLock_AcceptedWithoutRecipient(t *testing.T) {
	uc, _, custody, _ := newEscrowFixture(sellListing(domain.StatusAccepted), 100)

	_, err := uc.Lock(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	assert.ErrorIs(t, err, domain.ErrRecipientUnresolved)
	assert.Zero(t, custody.callCount())
}

func TestLock_InsufficientBalance(t *testing.T) {
	uc, _, custody, _ := newEscrowFixture(sellListing(domain.StatusOpen), 5)

	_, err := uc.Lock(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Zero(t, custody.callCount())
}

func TestLock_StaleBalanceRefreshedBeforeDecision(t *testing.T) {
	uc, _, _, balances := newEscrowFixture(sellListing(domain.StatusOpen), 100)
	balances.stale = true

	_, err := uc.Lock(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, balances.refreshes, 1)
}

func TestLock_CustodyFailureLeavesOrderUntouched(t *testing.T) {
	uc, store, custody, _ := newEscrowFixture(sellListing(domain.StatusOpen), 100)
	custody.lockErr = &domain.CustodyCallFailed{Op: "lock", Reason: "program rejected transaction"}

	_, err := uc.Lock(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})

	var custodyErr *domain.CustodyCallFailed
	require.True(t, errors.As(err, &custodyErr))
	assert.Equal(t, "program rejected transaction", custodyErr.Reason)
	assert.Equal(t, 1, custody.callCount(), "custody is never retried")

	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusOpen, persisted.Status)
	assert.Empty(t, persisted.Escrow.TradeID)
}

func TestLock_BookkeepingRetriedThenReported(t *testing.T) {
	uc, store, custody, _ := newEscrowFixture(sellListing(domain.StatusOpen), 100)
	store.failMutates = 10 // more than the retry budget

	_, err := uc.Lock(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})

	var syncErr *domain.BookkeepingSyncFailed
	require.True(t, errors.As(err, &syncErr))
	assert.True(t, syncErr.Transient())
	assert.Equal(t, 1, custody.callCount(), "custody succeeded once, never retried")
	assert.Equal(t, bookkeepingAttempts, store.mutateCalls)
}

func TestLock_BookkeepingRecoversMidRetry(t *testing.T) {
	uc, store, _, _ := newEscrowFixture(sellListing(domain.StatusOpen), 100)
	store.failMutates = 1

	updated, err := uc.Lock(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscrowed, updated.Status)
	assert.Equal(t, 2, store.mutateCalls)
}

func TestLock_ConcurrentCallsFundOnce(t *testing.T) {
	uc, store, custody, _ := newEscrowFixture(sellListing(domain.StatusOpen), 100)
	custody.lockDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Lock(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
		}(i)
	}
	wg.Wait()

	// One caller funds, the loser re-reads the escrowed order and fails
	// its precondition check without reaching custody.
	assert.Equal(t, 1, custody.callCount(), "escrow must be funded exactly once")
	var funded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			funded++
		case domain.IsPrecondition(err):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, funded)
	assert.Equal(t, 1, rejected)

	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.Equal(t, domain.StatusEscrowed, persisted.Status)
}

// --- join ---

func TestJoin_ResolvesOpenRecipient(t *testing.T) {
	order := fundedOrder(domain.StatusEscrowed)
	order.Escrow.CounterpartyWallet = ""
	uc, store, _, _ := newEscrowFixture(order, 100)

	updated, err := uc.Join(context.Background(), "ord-1", domain.Actor{ID: buyerID, Wallet: buyerWallet})
	require.NoError(t, err)
	assert.Equal(t, buyerWallet, updated.Escrow.CounterpartyWallet)

	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.NotNil(t, persisted.Timestamps.AcceptedAt)
	// Acceptance restarts the deadline on the working window.
	assert.WithinDuration(t, time.Now().Add(domain.DefaultInProgressTTL), persisted.ExpiresAt, time.Minute)
}

func TestJoin_CreatorCannotJoinOwnTrade(t *testing.T) {
	order := fundedOrder(domain.StatusEscrowed)
	order.Escrow.CounterpartyWallet = ""
	uc, _, custody, _ := newEscrowFixture(order, 100)

	_, err := uc.Join(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	require.True(t, domain.IsPrecondition(err))
	assert.Zero(t, custody.callCount())
}

func TestJoin_RequiresFundedEscrow(t *testing.T) {
	uc, _, custody, _ := newEscrowFixture(sellListing(domain.StatusOpen), 100)

	_, err := uc.Join(context.Background(), "ord-1", domain.Actor{ID: buyerID, Wallet: buyerWallet})
	require.True(t, domain.IsPrecondition(err))
	assert.Zero(t, custody.callCount())
}

// --- payment sent ---

func TestMarkPaymentSent(t *testing.T) {
	uc, _, custody, _ := newEscrowFixture(fundedOrder(domain.StatusEscrowed), 100)

	updated, err := uc.MarkPaymentSent(context.Background(), "ord-1", domain.Actor{ID: buyerID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaymentSent, updated.Status)
	assert.Zero(t, custody.callCount(), "fiat leg never touches custody")
}

func TestMarkPaymentSent_SellerRejected(t *testing.T) {
	uc, _, _, _ := newEscrowFixture(fundedOrder(domain.StatusEscrowed), 100)

	_, err := uc.MarkPaymentSent(context.Background(), "ord-1", domain.Actor{ID: sellerID})
	assert.True(t, domain.IsPrecondition(err))
}

// --- release ---

func TestRelease_HappyPath(t *testing.T) {
	uc, store, custody, _ := newEscrowFixture(fundedOrder(domain.StatusPaymentSent), 100)

	updated, err := uc.Release(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, []string{"release"}, custody.calls)

	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.NotNil(t, persisted.Timestamps.CompletedAt)
}

func TestRelease_MissingTradeIDIsPrecondition(t *testing.T) {
	order := sellListing(domain.StatusPaymentSent)
	order.Escrow.CreatorWallet = sellerWallet
	order.Escrow.CounterpartyWallet = buyerWallet
	// TradeID never recorded: bookkeeping drifted.
	uc, _, custody, _ := newEscrowFixture(order, 100)

	_, err := uc.Release(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	require.True(t, domain.IsPrecondition(err))
	assert.Zero(t, custody.callCount(), "incomplete custody ids must never reach the chain")
}

func TestRelease_ComplianceOnDisputedOrder(t *testing.T) {
	uc, _, _, _ := newEscrowFixture(fundedOrder(domain.StatusDisputed), 100)

	updated, err := uc.Release(context.Background(), "ord-1", domain.Actor{ID: "ops-1", Compliance: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
}

func TestRelease_BuyerRejected(t *testing.T) {
	uc, _, custody, _ := newEscrowFixture(fundedOrder(domain.StatusPaymentSent), 100)

	_, err := uc.Release(context.Background(), "ord-1", domain.Actor{ID: buyerID, Wallet: buyerWallet})
	require.True(t, domain.IsPrecondition(err))
	assert.Zero(t, custody.callCount())
}

// --- refund ---

func TestRefund_CreatorCancelsOrder(t *testing.T) {
	uc, store, custody, _ := newEscrowFixture(fundedOrder(domain.StatusEscrowed), 100)

	updated, err := uc.Refund(context.Background(), "ord-1", domain.Actor{ID: sellerID, Wallet: sellerWallet})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, updated.Status)
	assert.Equal(t, []string{"refund"}, custody.calls)

	persisted, _ := store.Fetch(context.Background(), "ord-1")
	assert.NotNil(t, persisted.Timestamps.CancelledAt)
}

func TestRefund_StrangerRejected(t *testing.T) {
	uc, _, custody, _ := newEscrowFixture(fundedOrder(domain.StatusEscrowed), 100)

	_, err := uc.Refund(context.Background(), "ord-1", domain.Actor{ID: "stranger", Wallet: "wallet-x"})
	require.True(t, domain.IsPrecondition(err))
	assert.Zero(t, custody.callCount())
}
