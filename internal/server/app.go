// Package server wires configuration, storage, the payment processor and
// the HTTP API together and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/market/internal/dbx"
	"github.com/dmitrijs2005/market/internal/logging"
	"github.com/dmitrijs2005/market/internal/server/archive"
	"github.com/dmitrijs2005/market/internal/server/auth"
	"github.com/dmitrijs2005/market/internal/server/config"
	"github.com/dmitrijs2005/market/internal/server/payment"
	"github.com/dmitrijs2005/market/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/market/internal/server/rest"
	"github.com/dmitrijs2005/market/internal/server/services"
	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *rest.Server
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// NewApp opens the database, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	if c.PaymentProvider != "stripe" {
		return nil, fmt.Errorf("unsupported payment provider %q", c.PaymentProvider)
	}

	codec, err := auth.NewCodec([]byte(c.SecretKey), c.Issuer, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := archive.New(ctx, archive.S3Config{
		Region:       c.S3Region,
		RootUser:     c.S3RootUser,
		RootPassword: c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("webhook archive: %w", err)
	}

	provider := payment.NewStripeProvider(payment.StripeConfig{
		APIKey:            c.StripeAPIKey,
		WebhookSecret:     c.StripeWebhookSecret,
		Currency:          c.Currency,
		FrontendURL:       c.FrontendURL,
		ShippingCountries: c.ShippingCountries,
		Timeout:           c.GatewayTimeout,
	}, logger)

	tx := dbx.NewSQLTransactor(db)
	as := services.NewAuthService(tx, rm, codec, logger)
	ors := services.NewOrderService(tx, rm, logger)
	ps := services.NewPaymentService(tx, rm, provider, ors, store, logger)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		server: rest.NewServer(c.EndpointAddrHTTP, logger, as, ps, ors),
	}, nil
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests and
// closes the database.
func (app *App) Run(ctx context.Context) error {

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(ctx)
	})

	err := g.Wait()

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(context.Background(), "db close error", "error", cerr)
	}

	app.logger.Info(context.Background(), "App stopped")
	return err
}
