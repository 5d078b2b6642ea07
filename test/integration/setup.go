package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"storefront/internal/archive"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/lifecycle"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/signature"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAPIKey        = "test-api-key"
	testKeySecret     = "key_secret_test"
	testWebhookSecret = "whsec_test"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
}

// SetupTestDB creates a PostgreSQL test container, a connection pool built
// from application config and the migrated schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dbConfig := config.DatabaseConfig{
		Driver:          config.StoreDriverPostgres,
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
		ConnectTimeout:  10,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPool(ctx, dbConfig, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	migrator, err := database.NewMigrator(pool, logger)
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = migrator.Close()
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
	}
}

// CleanupDB removes all orders.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	if _, err := pool.Exec(context.Background(), "TRUNCATE orders"); err != nil {
		t.Logf("failed to clean orders: %v", err)
	}
}

// fakeGateway stands in for Razorpay. Gateway order ids are handed out in
// sequence so several orders can be created in one test.
type fakeGateway struct {
	mu      sync.Mutex
	next    int
	refunds int
}

func (g *fakeGateway) CreateOrder(_ context.Context, req model.GatewayOrderRequest) (*model.GatewayOrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return &model.GatewayOrderResponse{
		ID:       fmt.Sprintf("order_test_%d", g.next),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) RefundPayment(_ context.Context, paymentID string, amount int64) (*gateway.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return &gateway.Refund{ID: "rfnd_test", PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

// testApp bundles the services and the HTTP handler over one pool.
type testApp struct {
	Repo     repository.OrderRepository
	Orders   service.OrderService
	Payments service.PaymentService
	Admin    service.AdminService
	Gateway  *fakeGateway
	Handler  http.Handler
}

func newTestApp(t *testing.T, testDB *TestDB) *testApp {
	t.Helper()

	logger := zerolog.Nop()
	repo := repository.NewOrderRepository(testDB.Pool, logger)
	publisher := events.NewNoopPublisher()
	machine := lifecycle.NewMachine(repo, publisher, logger)
	gw := &fakeGateway{}
	verifier := signature.NewVerifier(testKeySecret, testWebhookSecret)

	orders := service.NewOrderService(repo, publisher, logger)
	payments := service.NewPaymentService(repo, machine, gw, verifier, archive.NewNoopArchiver(), logger)
	admin := service.NewAdminService(repo, machine, gw, logger)

	return &testApp{
		Repo:     repo,
		Orders:   orders,
		Payments: payments,
		Admin:    admin,
		Gateway:  gw,
		Handler: router.New(router.Handlers{
			Orders:   handler.NewOrderHandler(orders, payments, logger),
			Payments: handler.NewPaymentHandler(payments, 1<<20, logger),
			Admin:    handler.NewAdminHandler(admin, logger),
		}, testAPIKey, logger),
	}
}
