package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/logging"
	"github.com/dmitrijs2005/market/internal/server/auth"
	"github.com/dmitrijs2005/market/internal/server/services"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var testPair = &auth.TokenPair{AccessToken: "acc", RefreshToken: "ref"}

type fakeAuth struct {
	pair *auth.TokenPair
	err  error

	gotEmail        string
	gotPassword     string
	gotRegistration services.Registration
	gotRefresh      string
	gotLogoutAll    string
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	f.gotEmail, f.gotPassword = email, password
	return f.pair, f.err
}

func (f *fakeAuth) Register(ctx context.Context, r services.Registration) (*auth.TokenPair, error) {
	f.gotRegistration = r
	return f.pair, f.err
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	f.gotRefresh = refreshToken
	return f.pair, f.err
}

func (f *fakeAuth) Logout(ctx context.Context, refreshToken string) error {
	f.gotRefresh = refreshToken
	return f.err
}

func (f *fakeAuth) LogoutAll(ctx context.Context, userID string) (int64, error) {
	f.gotLogoutAll = userID
	return 2, f.err
}

// Authenticate knows two access tokens: "user-token" and "admin-token".
func (f *fakeAuth) Authenticate(accessToken string) (*auth.Principal, error) {
	switch accessToken {
	case "user-token":
		return &auth.Principal{UserID: "u1", Roles: []string{common.RoleUser}}, nil
	case "admin-token":
		return &auth.Principal{UserID: "a1", Roles: []string{common.RoleUser, common.RoleAdmin}}, nil
	case "expired-token":
		return nil, common.ErrTokenExpired
	}
	return nil, common.ErrInvalidToken
}

type fakePayments struct {
	url  string
	paid bool
	err  error

	gotPrincipal auth.Principal
	gotOrderID   int64
	gotPayload   []byte
	gotHeaders   http.Header
	gotIntentID  string
}

func (f *fakePayments) CreatePayment(ctx context.Context, principal auth.Principal, orderID int64) (string, error) {
	f.gotPrincipal, f.gotOrderID = principal, orderID
	return f.url, f.err
}

func (f *fakePayments) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	f.gotPayload, f.gotHeaders = payload, headers
	return f.err
}

func (f *fakePayments) ConfirmPayment(ctx context.Context, paymentIntentID string) (bool, error) {
	f.gotIntentID = paymentIntentID
	return f.paid, f.err
}

type fakeOrders struct {
	err error

	gotOrderID int64
	gotStatus  string
}

func (f *fakeOrders) UpdateTrackingStatus(ctx context.Context, orderID int64, status string) error {
	f.gotOrderID, f.gotStatus = orderID, status
	return f.err
}

func newTestServer(a *fakeAuth, p *fakePayments, o *fakeOrders) *Server {
	if a == nil {
		a = &fakeAuth{pair: testPair}
	}
	if p == nil {
		p = &fakePayments{}
	}
	if o == nil {
		o = &fakeOrders{}
	}
	s := NewServer("127.0.0.1:0", logging.Nop{}, a, p, o)
	s.now = func() time.Time { return testNow }
	return s
}
