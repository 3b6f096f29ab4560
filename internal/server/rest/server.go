// Package rest exposes the auth and payment services over HTTP.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/logging"
	"github.com/dmitrijs2005/market/internal/server/auth"
	"github.com/dmitrijs2005/market/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// AuthService is the part of services.AuthService the handlers use.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Register(ctx context.Context, r services.Registration) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
	Authenticate(accessToken string) (*auth.Principal, error)
}

// PaymentService is the part of services.PaymentService the handlers use.
type PaymentService interface {
	CreatePayment(ctx context.Context, principal auth.Principal, orderID int64) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error
	ConfirmPayment(ctx context.Context, paymentIntentID string) (bool, error)
}

// OrderService is the part of services.OrderService the handlers use.
type OrderService interface {
	UpdateTrackingStatus(ctx context.Context, orderID int64, status string) error
}

type Server struct {
	address  string
	auth     AuthService
	payments PaymentService
	orders   OrderService
	logger   logging.Logger
	now      func() time.Time
}

func NewServer(a string, l logging.Logger, as AuthService, ps PaymentService, ors OrderService) *Server {
	return &Server{
		address:  a,
		logger:   l.With("module", "http_server"),
		auth:     as,
		payments: ps,
		orders:   ors,
		now:      time.Now,
	}
}

// Handler builds the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.bearer)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/refresh", s.refresh)
			r.Post("/logout", s.logout)
			r.With(s.requireAuth).Post("/logout-all", s.logoutAll)
		})

		r.Route("/payment", func(r chi.Router) {
			r.Post("/webhook", s.webhook)
			r.With(s.requireAuth).Post("/create", s.createPayment)
			r.With(s.requireAuth).Get("/confirm/{paymentIntentID}", s.confirmPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAuth, s.requireRole(common.RoleAdmin))
			r.Patch("/orders/{orderID}/status", s.updateTrackingStatus)
		})
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
