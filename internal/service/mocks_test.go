package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/archive"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/lifecycle"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/signature"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testKeySecret     = "key_secret_test"
	testWebhookSecret = "whsec_test"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// MockGateway is a mock implementation of gateway.Client.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, req model.GatewayOrderRequest) (*model.GatewayOrderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GatewayOrderResponse), args.Error(1)
}

func (m *MockGateway) RefundPayment(ctx context.Context, paymentID string, amount int64) (*gateway.Refund, error) {
	args := m.Called(ctx, paymentID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Refund), args.Error(1)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// recordingArchiver keeps archived webhook records in memory.
type recordingArchiver struct {
	mu      sync.Mutex
	records []archive.Record
}

func (r *recordingArchiver) Archive(_ context.Context, rec archive.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingArchiver) all() []archive.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]archive.Record(nil), r.records...)
}

// testEnv wires every service over one in-memory store.
type testEnv struct {
	repo     repository.OrderRepository
	gateway  *MockGateway
	archiver *recordingArchiver
	orders   OrderService
	payments PaymentService
	admin    AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	repo := repository.NewMemoryOrderRepository(logger)
	publisher := events.NewNoopPublisher()
	machine := lifecycle.NewMachine(repo, publisher, logger, lifecycle.WithClock(func() time.Time { return fixedNow }))
	gw := new(MockGateway)
	arch := &recordingArchiver{}
	verifier := signature.NewVerifier(testKeySecret, testWebhookSecret)

	return &testEnv{
		repo:     repo,
		gateway:  gw,
		archiver: arch,
		orders:   NewOrderService(repo, publisher, logger),
		payments: NewPaymentService(repo, machine, gw, verifier, arch, logger),
		admin:    NewAdminService(repo, machine, gw, logger),
	}
}

func validCreateRequest(mode model.PaymentMode, gatewayRef string) *model.CreateOrderRequest {
	req := &model.CreateOrderRequest{
		UserID:   "user-1",
		Amount:   50000,
		Currency: "INR",
		Mode:     mode,
		CartItems: []model.LineItem{
			{ProductID: "P001", Name: "Kurta", UnitPrice: 30000, Quantity: 1},
			{ProductID: "P002", Name: "Dupatta", UnitPrice: 10000, Quantity: 2},
		},
		AddressData: &model.Address{FullName: "Asha Rao", Phone: "9999999999", Street: "1 MG Road", City: "Pune"},
	}
	if gatewayRef != "" {
		req.RazorpayOrder = &model.GatewayOrder{RazorpayOrderID: gatewayRef}
	}
	return req
}

func (e *testEnv) createOrder(t *testing.T, mode model.PaymentMode, gatewayRef string) *model.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), validCreateRequest(mode, gatewayRef))
	require.NoError(t, err)
	return order
}

func (e *testEnv) verify(t *testing.T, gatewayRef, paymentID string) *model.Order {
	t.Helper()
	sig := signature.Compute([]byte(testKeySecret), signature.PaymentMessage(gatewayRef, paymentID))
	order, err := e.payments.VerifyPayment(context.Background(), "", &model.VerifyPaymentRequest{
		RazorpayOrderID:   gatewayRef,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: sig,
	})
	require.NoError(t, err)
	return order
}

func signedDelivery(body string) model.WebhookDelivery {
	return model.WebhookDelivery{
		Body:       []byte(body),
		Signature:  signature.Compute([]byte(testWebhookSecret), []byte(body)),
		RequestID:  "req-1",
		ReceivedAt: fixedNow,
	}
}
