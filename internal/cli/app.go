package cli

import (
	"context"
	"fmt"
	"net/http"

	"storefront/internal/archive"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/lifecycle"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/signature"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// app holds the wired dependencies of a running server.
type app struct {
	handler   http.Handler
	pool      *pgxpool.Pool
	publisher events.Publisher
	archiver  *archive.Async
	logger    zerolog.Logger
}

// newApp wires the store, event publisher, webhook archive, gateway client
// and HTTP stack from configuration.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, migrate bool) (*app, error) {
	a := &app{logger: logger}

	orderRepo, err := a.openStore(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}

	if cfg.Events.Enabled {
		publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:  cfg.Events.Brokers,
			Topic:    cfg.Events.Topic,
			ClientID: cfg.Events.ClientID,
		}, logger)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
		}
		a.publisher = publisher
	} else {
		logger.Info().Msg("order events disabled, using noop publisher")
		a.publisher = events.NewNoopPublisher()
	}

	var sink archive.Archiver
	if cfg.S3.Enabled {
		s3Archiver, err := archive.NewS3Archiver(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 archiver, webhook bodies will not be archived")
			sink = archive.NewNoopArchiver()
		} else {
			sink = s3Archiver
		}
	} else {
		logger.Info().Msg("webhook archive disabled (S3 disabled)")
		sink = archive.NewNoopArchiver()
	}
	a.archiver = archive.NewAsync(sink, cfg.S3.Timeout, logger)

	gatewayClient, err := gateway.NewRazorpayClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, logger)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize payment gateway: %w", err)
	}
	verifier := signature.NewVerifier(cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)

	// Initialize services
	machine := lifecycle.NewMachine(orderRepo, a.publisher, logger)
	orderService := service.NewOrderService(orderRepo, a.publisher, logger, service.WithTrackLimit(cfg.Orders.TrackLimit))
	paymentService := service.NewPaymentService(orderRepo, machine, gatewayClient, verifier, a.archiver, logger)
	adminService := service.NewAdminService(orderRepo, machine, gatewayClient, logger)

	// Initialize HTTP handlers and router
	a.handler = router.New(router.Handlers{
		Orders:   handler.NewOrderHandler(orderService, paymentService, logger),
		Payments: handler.NewPaymentHandler(paymentService, cfg.Orders.WebhookMaxBodyBytes, logger),
		Admin:    handler.NewAdminHandler(adminService, logger),
	}, cfg.Auth.APIKey, logger)

	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.Config, migrate bool) (repository.OrderRepository, error) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		a.logger.Warn().Msg("using in-memory order store, data is lost on restart")
		return repository.NewMemoryOrderRepository(a.logger), nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.pool = pool

	if migrate {
		migrator, err := database.NewMigrator(pool, a.logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize migrator: %w", err)
		}
		defer migrator.Close()

		if err := migrator.Up(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	return repository.NewOrderRepository(pool, a.logger), nil
}

// close drains the webhook archive, flushes pending events and closes the
// database pool, in that order.
func (a *app) close(ctx context.Context) {
	if a.archiver != nil {
		if err := a.archiver.Close(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("webhook archive did not drain before shutdown")
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close event publisher")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
