package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-market/internal/services/gateway"
	"ticket-market/internal/status"
	"ticket-market/models"
)

type MockTicketStore struct {
	mock.Mock
}

func (m *MockTicketStore) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketStore) Reserve(ctx context.Context, ticketID string) error {
	return m.Called(ctx, ticketID).Error(0)
}

func (m *MockTicketStore) Commit(ctx context.Context, ticketID string) error {
	return m.Called(ctx, ticketID).Error(0)
}

func (m *MockTicketStore) Release(ctx context.Context, ticketID string) error {
	return m.Called(ctx, ticketID).Error(0)
}

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionStore) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionStore) MarkSettled(ctx context.Context, id string, outcome models.TransactionStatus, gatewayRef string) (bool, error) {
	args := m.Called(ctx, id, outcome, gatewayRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionStore) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.Transaction, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

type MockPaymentStore struct {
	mock.Mock
}

func (m *MockPaymentStore) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) MarkSucceeded(ctx context.Context, id, gatewayRef string) (bool, error) {
	args := m.Called(ctx, id, gatewayRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentStore) MarkFailed(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentStore) SetGatewayReference(ctx context.Context, id, gatewayRef string) error {
	return m.Called(ctx, id, gatewayRef).Error(0)
}

type MockEarningRecorder struct {
	mock.Mock
}

func (m *MockEarningRecorder) Calculate(amount float64) *EarningBreakdown {
	args := m.Called(amount)
	return args.Get(0).(*EarningBreakdown)
}

func (m *MockEarningRecorder) Record(ctx context.Context, sellerID string, amount float64, transactionID string) (*models.Earning, error) {
	args := m.Called(ctx, sellerID, amount, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Earning), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PaymentSettled(ctx context.Context, tx *models.Transaction, success bool) {
	m.Called(ctx, tx, success)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) SaleSettled(ctx context.Context, tx *models.Transaction) {
	m.Called(ctx, tx)
}

func (m *MockEventPublisher) EarningRecordingFailed(ctx context.Context, tx *models.Transaction, cause error) {
	m.Called(ctx, tx, cause)
}

// stubProcessor returns a canned result for a method, standing in for both
// synchronous processors and the wallet gateway.
type stubProcessor struct {
	method models.PaymentMethod
	result *gateway.ProcessResult
	err    error
}

func (p *stubProcessor) Method() models.PaymentMethod { return p.method }

func (p *stubProcessor) Process(context.Context, *gateway.ProcessRequest) (*gateway.ProcessResult, error) {
	return p.result, p.err
}

type engineFixture struct {
	tickets      *MockTicketStore
	transactions *MockTransactionStore
	payments     *MockPaymentStore
	earnings     *MockEarningRecorder
	notifier     *MockNotifier
	events       *MockEventPublisher
	svc          *PurchaseService
}

func newEngineFixture(procs ...gateway.Processor) *engineFixture {
	f := &engineFixture{
		tickets:      new(MockTicketStore),
		transactions: new(MockTransactionStore),
		payments:     new(MockPaymentStore),
		earnings:     new(MockEarningRecorder),
		notifier:     new(MockNotifier),
		events:       new(MockEventPublisher),
	}
	f.svc = NewPurchaseService(
		f.tickets, f.transactions, f.payments, f.earnings,
		gateway.NewRegistry(procs...), f.notifier, f.events,
		nil, 10*time.Minute,
	)
	return f
}

func testTicket() *models.Ticket {
	return &models.Ticket{
		ID:        "ticket1",
		EventName: "Concert",
		Price:     50.0,
		OwnerID:   "seller1",
		Status:    models.TicketAvailable,
	}
}

func breakdown50() *EarningBreakdown {
	return &EarningBreakdown{
		TransactionAmount: 50.0,
		CommissionRate:    0.05,
		CommissionAmount:  2.5,
		SellerEarnings:    47.5,
		NetPercentage:     95.0,
	}
}

func TestInitiatePurchaseRejectsSelfPurchase(t *testing.T) {
	f := newEngineFixture()
	f.tickets.On("GetByID", mock.Anything, "ticket1").Return(testTicket(), nil)

	_, err := f.svc.InitiatePurchase(context.Background(), "ticket1", "seller1", models.MethodCash)

	assert.ErrorIs(t, err, status.ErrSelfPurchase)
	f.tickets.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestInitiatePurchaseUnavailableTicket(t *testing.T) {
	f := newEngineFixture()
	f.tickets.On("GetByID", mock.Anything, "ticket1").Return(testTicket(), nil)
	f.tickets.On("Reserve", mock.Anything, "ticket1").Return(status.ErrTicketUnavailable)

	_, err := f.svc.InitiatePurchase(context.Background(), "ticket1", "buyer1", models.MethodCash)

	assert.ErrorIs(t, err, status.ErrTicketUnavailable)
	f.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitiatePurchaseCreditCardSettlesInline(t *testing.T) {
	f := newEngineFixture(&stubProcessor{
		method: models.MethodCreditCard,
		result: &gateway.ProcessResult{Outcome: gateway.OutcomeSuccess, Reference: "CARD_AB12CD34"},
	})

	pendingTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", BuyerID: "buyer1", SellerID: "seller1",
		Amount: 50.0, PaymentMethod: models.MethodCreditCard, Status: models.TransactionPending,
	}
	settledTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", BuyerID: "buyer1", SellerID: "seller1",
		Amount: 50.0, PaymentMethod: models.MethodCreditCard, Status: models.TransactionSuccess,
		GatewayReference: "CARD_AB12CD34",
	}
	payment := &models.Payment{ID: "pay1", TransactionID: "tx1", Amount: 50.0}

	f.tickets.On("GetByID", mock.Anything, "ticket1").Return(testTicket(), nil)
	f.tickets.On("Reserve", mock.Anything, "ticket1").Return(nil)
	f.transactions.On("Create", mock.Anything, mock.Anything).Return(pendingTx, nil)
	f.payments.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.TransactionID == "tx1" && strings.Contains(p.Title, "Concert")
	})).Return(payment, nil)
	f.earnings.On("Calculate", 50.0).Return(breakdown50())
	f.transactions.On("MarkSettled", mock.Anything, "tx1", models.TransactionSuccess, "CARD_AB12CD34").Return(true, nil)
	f.transactions.On("GetByID", mock.Anything, "tx1").Return(settledTx, nil)
	f.tickets.On("Commit", mock.Anything, "ticket1").Return(nil)
	f.payments.On("GetByTransactionID", mock.Anything, "tx1").Return(payment, nil)
	f.payments.On("MarkSucceeded", mock.Anything, "pay1", "CARD_AB12CD34").Return(true, nil)
	f.earnings.On("Record", mock.Anything, "seller1", 50.0, "tx1").Return(&models.Earning{ID: "e1", Amount: 47.5}, nil)
	f.notifier.On("PaymentSettled", mock.Anything, settledTx, true).Return()
	f.events.On("SaleSettled", mock.Anything, settledTx).Return()
	f.payments.On("GetByID", mock.Anything, "pay1").Return(payment, nil)

	result, err := f.svc.InitiatePurchase(context.Background(), "ticket1", "buyer1", models.MethodCreditCard)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, result.Transaction.Status)
	assert.Equal(t, 2.5, result.Breakdown.CommissionAmount)
	assert.Equal(t, 47.5, result.Breakdown.SellerEarnings)
	assert.Empty(t, result.RedirectURL)
	f.tickets.AssertExpectations(t)
	f.transactions.AssertExpectations(t)
	f.payments.AssertExpectations(t)
	f.earnings.AssertExpectations(t)
}

func TestInitiatePurchaseWalletStaysPending(t *testing.T) {
	f := newEngineFixture(&stubProcessor{
		method: models.MethodWallet,
		result: &gateway.ProcessResult{
			Outcome:     gateway.OutcomePending,
			Reference:   "ORDER_pay1_ABC",
			RedirectURL: "https://pay.example/abc",
		},
	})

	pendingTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", BuyerID: "buyer1", SellerID: "seller1",
		Amount: 50.0, PaymentMethod: models.MethodWallet, Status: models.TransactionPending,
	}
	payment := &models.Payment{ID: "pay1", TransactionID: "tx1"}

	f.tickets.On("GetByID", mock.Anything, "ticket1").Return(testTicket(), nil)
	f.tickets.On("Reserve", mock.Anything, "ticket1").Return(nil)
	f.transactions.On("Create", mock.Anything, mock.Anything).Return(pendingTx, nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(payment, nil)
	f.earnings.On("Calculate", 50.0).Return(breakdown50())
	f.payments.On("SetGatewayReference", mock.Anything, "pay1", "ORDER_pay1_ABC").Return(nil)

	result, err := f.svc.InitiatePurchase(context.Background(), "ticket1", "buyer1", models.MethodWallet)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, result.Transaction.Status)
	assert.Equal(t, "https://pay.example/abc", result.RedirectURL)
	f.payments.AssertCalled(t, "SetGatewayReference", mock.Anything, "pay1", "ORDER_pay1_ABC")
	f.transactions.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.tickets.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
}

func TestInitiatePurchasePaymentCreateFailureRollsBack(t *testing.T) {
	f := newEngineFixture()

	pendingTx := &models.Transaction{ID: "tx1", TicketID: "ticket1", Status: models.TransactionPending}

	f.tickets.On("GetByID", mock.Anything, "ticket1").Return(testTicket(), nil)
	f.tickets.On("Reserve", mock.Anything, "ticket1").Return(nil)
	f.transactions.On("Create", mock.Anything, mock.Anything).Return(pendingTx, nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	f.transactions.On("MarkSettled", mock.Anything, "tx1", models.TransactionFailed, "").Return(true, nil)
	f.tickets.On("Release", mock.Anything, "ticket1").Return(nil)

	_, err := f.svc.InitiatePurchase(context.Background(), "ticket1", "buyer1", models.MethodCash)

	require.Error(t, err)
	f.tickets.AssertCalled(t, "Release", mock.Anything, "ticket1")
	f.transactions.AssertCalled(t, "MarkSettled", mock.Anything, "tx1", models.TransactionFailed, "")
}

func TestInitiatePurchaseGatewayErrorKeepsReservation(t *testing.T) {
	f := newEngineFixture(&stubProcessor{
		method: models.MethodWallet,
		err:    status.ErrGatewayUnavailable,
	})

	pendingTx := &models.Transaction{ID: "tx1", TicketID: "ticket1", Status: models.TransactionPending}
	payment := &models.Payment{ID: "pay1", TransactionID: "tx1"}

	f.tickets.On("GetByID", mock.Anything, "ticket1").Return(testTicket(), nil)
	f.tickets.On("Reserve", mock.Anything, "ticket1").Return(nil)
	f.transactions.On("Create", mock.Anything, mock.Anything).Return(pendingTx, nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(payment, nil)
	f.earnings.On("Calculate", 50.0).Return(breakdown50())

	_, err := f.svc.InitiatePurchase(context.Background(), "ticket1", "buyer1", models.MethodWallet)

	assert.ErrorIs(t, err, status.ErrGatewayUnavailable)
	f.tickets.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	f.transactions.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSettleFailureReleasesTicket(t *testing.T) {
	f := newEngineFixture()

	failedTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", BuyerID: "buyer1", SellerID: "seller1",
		Status: models.TransactionFailed,
	}
	payment := &models.Payment{ID: "pay1", TransactionID: "tx1"}

	f.transactions.On("MarkSettled", mock.Anything, "tx1", models.TransactionFailed, "").Return(true, nil)
	f.transactions.On("GetByID", mock.Anything, "tx1").Return(failedTx, nil)
	f.tickets.On("Release", mock.Anything, "ticket1").Return(nil)
	f.payments.On("GetByTransactionID", mock.Anything, "tx1").Return(payment, nil)
	f.payments.On("MarkFailed", mock.Anything, "pay1").Return(true, nil)
	f.notifier.On("PaymentSettled", mock.Anything, failedTx, false).Return()
	f.events.On("SaleSettled", mock.Anything, failedTx).Return()

	tx, err := f.svc.Settle(context.Background(), "tx1", gateway.OutcomeFailed, "")

	require.NoError(t, err)
	assert.Equal(t, models.TransactionFailed, tx.Status)
	f.earnings.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.tickets.AssertExpectations(t)
}

func TestSettleReplayIsNoOp(t *testing.T) {
	f := newEngineFixture()

	settledTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", Status: models.TransactionSuccess,
	}

	f.transactions.On("MarkSettled", mock.Anything, "tx1", models.TransactionSuccess, "ref2").Return(false, nil)
	f.transactions.On("GetByID", mock.Anything, "tx1").Return(settledTx, nil)

	tx, err := f.svc.Settle(context.Background(), "tx1", gateway.OutcomeSuccess, "ref2")

	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, tx.Status)
	f.tickets.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "MarkSucceeded", mock.Anything, mock.Anything, mock.Anything)
	f.earnings.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "PaymentSettled", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettleConflictingOutcomeKeepsFirst(t *testing.T) {
	f := newEngineFixture()

	settledTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", Status: models.TransactionSuccess,
	}

	f.transactions.On("MarkSettled", mock.Anything, "tx1", models.TransactionFailed, "").Return(false, nil)
	f.transactions.On("GetByID", mock.Anything, "tx1").Return(settledTx, nil)

	tx, err := f.svc.Settle(context.Background(), "tx1", gateway.OutcomeFailed, "")

	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, tx.Status)
	f.tickets.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
}

func TestSettleEarningFailureDoesNotReverseSale(t *testing.T) {
	f := newEngineFixture()

	settledTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", BuyerID: "buyer1", SellerID: "seller1",
		Amount: 50.0, Status: models.TransactionSuccess,
	}
	payment := &models.Payment{ID: "pay1", TransactionID: "tx1"}
	recordErr := errors.New("insert failed")

	f.transactions.On("MarkSettled", mock.Anything, "tx1", models.TransactionSuccess, "ref1").Return(true, nil)
	f.transactions.On("GetByID", mock.Anything, "tx1").Return(settledTx, nil)
	f.tickets.On("Commit", mock.Anything, "ticket1").Return(nil)
	f.payments.On("GetByTransactionID", mock.Anything, "tx1").Return(payment, nil)
	f.payments.On("MarkSucceeded", mock.Anything, "pay1", "ref1").Return(true, nil)
	f.earnings.On("Record", mock.Anything, "seller1", 50.0, "tx1").Return(nil, recordErr)
	f.events.On("EarningRecordingFailed", mock.Anything, settledTx, recordErr).Return()
	f.notifier.On("PaymentSettled", mock.Anything, settledTx, true).Return()
	f.events.On("SaleSettled", mock.Anything, settledTx).Return()

	tx, err := f.svc.Settle(context.Background(), "tx1", gateway.OutcomeSuccess, "ref1")

	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, tx.Status)
	f.tickets.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	f.events.AssertCalled(t, "EarningRecordingFailed", mock.Anything, settledTx, recordErr)
}

func TestSettleRejectsNonTerminalOutcome(t *testing.T) {
	f := newEngineFixture()

	_, err := f.svc.Settle(context.Background(), "tx1", gateway.OutcomePending, "")

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestPreviewReturnsBreakdownWithoutReserving(t *testing.T) {
	f := newEngineFixture()
	f.tickets.On("GetByID", mock.Anything, "ticket1").Return(testTicket(), nil)
	f.earnings.On("Calculate", 50.0).Return(breakdown50())

	ticket, b, err := f.svc.Preview(context.Background(), "ticket1")

	require.NoError(t, err)
	assert.Equal(t, "ticket1", ticket.ID)
	assert.Equal(t, 47.5, b.SellerEarnings)
	f.tickets.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestSettleReadFailureLeavesTransactionPending(t *testing.T) {
	f := newEngineFixture()

	f.transactions.On("GetByID", mock.Anything, "tx1").Return(nil, errors.New("db busy"))

	_, err := f.svc.Settle(context.Background(), "tx1", gateway.OutcomeSuccess, "ref1")

	require.Error(t, err)
	f.transactions.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.tickets.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "MarkSucceeded", mock.Anything, mock.Anything, mock.Anything)
	f.earnings.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSettleWonTransitionRunsSideEffectsWithoutRereading(t *testing.T) {
	f := newEngineFixture()

	pendingTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", BuyerID: "buyer1", SellerID: "seller1",
		Amount: 50.0, Status: models.TransactionPending,
	}
	payment := &models.Payment{ID: "pay1", TransactionID: "tx1"}

	f.transactions.On("GetByID", mock.Anything, "tx1").Return(pendingTx, nil).Once()
	f.transactions.On("MarkSettled", mock.Anything, "tx1", models.TransactionSuccess, "ref1").Return(true, nil)
	f.tickets.On("Commit", mock.Anything, "ticket1").Return(nil)
	f.payments.On("GetByTransactionID", mock.Anything, "tx1").Return(payment, nil)
	f.payments.On("MarkSucceeded", mock.Anything, "pay1", "ref1").Return(true, nil)
	f.earnings.On("Record", mock.Anything, "seller1", 50.0, "tx1").Return(&models.Earning{ID: "e1"}, nil)
	f.notifier.On("PaymentSettled", mock.Anything, mock.Anything, true).Return()
	f.events.On("SaleSettled", mock.Anything, mock.Anything).Return()

	tx, err := f.svc.Settle(context.Background(), "tx1", gateway.OutcomeSuccess, "ref1")

	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, tx.Status)
	assert.Equal(t, "ref1", tx.GatewayReference)
	require.NotNil(t, tx.SettledAt)
	f.transactions.AssertNumberOfCalls(t, "GetByID", 1)
	f.tickets.AssertCalled(t, "Commit", mock.Anything, "ticket1")
	f.payments.AssertCalled(t, "MarkSucceeded", mock.Anything, "pay1", "ref1")
	f.earnings.AssertCalled(t, "Record", mock.Anything, "seller1", 50.0, "tx1")
}

// casTicketStore holds the ticket behind a mutex so concurrent reservations
// contend the same way they do against the store's conditional UPDATE.
type casTicketStore struct {
	mu     sync.Mutex
	ticket *models.Ticket
}

func (s *casTicketStore) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := *s.ticket
	return &snapshot, nil
}

func (s *casTicketStore) Reserve(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket.Status != models.TicketAvailable {
		return status.ErrTicketUnavailable
	}
	s.ticket.Status = models.TicketReserved
	return nil
}

func (s *casTicketStore) Commit(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket.Status != models.TicketReserved {
		return status.ErrInvalidTransition
	}
	s.ticket.Status = models.TicketSold
	return nil
}

func (s *casTicketStore) Release(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket.Status == models.TicketReserved {
		s.ticket.Status = models.TicketAvailable
	}
	return nil
}

func (s *casTicketStore) status() models.TicketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticket.Status
}

func TestInitiatePurchaseConcurrentBuyersExactlyOneWins(t *testing.T) {
	tickets := &casTicketStore{ticket: testTicket()}
	transactions := new(MockTransactionStore)
	payments := new(MockPaymentStore)
	earnings := new(MockEarningRecorder)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)

	svc := NewPurchaseService(
		tickets, transactions, payments, earnings,
		gateway.NewRegistry(&stubProcessor{
			method: models.MethodWallet,
			result: &gateway.ProcessResult{Outcome: gateway.OutcomePending, RedirectURL: "https://pay.example/abc"},
		}),
		notifier, events,
		nil, 10*time.Minute,
	)

	pendingTx := &models.Transaction{
		ID: "tx1", TicketID: "ticket1", Status: models.TransactionPending,
	}
	transactions.On("Create", mock.Anything, mock.Anything).Return(pendingTx, nil)
	payments.On("Create", mock.Anything, mock.Anything).Return(&models.Payment{ID: "pay1", TransactionID: "tx1"}, nil)
	earnings.On("Calculate", 50.0).Return(breakdown50())

	const buyers = 32

	var wg sync.WaitGroup
	var wins, unavailable, unexpected int64

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.InitiatePurchase(context.Background(), "ticket1", fmt.Sprintf("buyer%d", n), models.MethodWallet)
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
			case errors.Is(err, status.ErrTicketUnavailable):
				atomic.AddInt64(&unavailable, 1)
			default:
				atomic.AddInt64(&unexpected, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, buyers-1, unavailable)
	assert.EqualValues(t, 0, unexpected)
	assert.Equal(t, models.TicketReserved, tickets.status())
	transactions.AssertNumberOfCalls(t, "Create", 1)
	payments.AssertNumberOfCalls(t, "Create", 1)
}
