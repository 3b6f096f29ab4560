package services

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/dbx"
	"github.com/dmitrijs2005/market/internal/server/models"
	"github.com/dmitrijs2005/market/internal/server/payment"
	"github.com/dmitrijs2005/market/internal/server/repositories/locations"
	"github.com/dmitrijs2005/market/internal/server/repositories/orders"
	"github.com/dmitrijs2005/market/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/market/internal/server/repositories/users"
)

// memStore is an in-memory stand-in for the database. Transactions hold
// refresh-token row locks until they end and undo their writes on error,
// which is all the services rely on.
type memStore struct {
	mu       sync.Mutex
	rowLocks map[string]*sync.Mutex
	nextID   int64

	users     map[string]*models.User
	roles     map[string][]string
	tokens    map[string]*models.RefreshToken
	orders    map[int64]*models.Order
	items     map[int64][]models.OrderItem
	locations []*models.Location

	// failure injection and hooks
	usersErr       error
	markPaidErr    error
	afterRowLock   func(token string)
	beforeMarkPaid func(orderID int64)
}

func newMemStore() *memStore {
	return &memStore{
		rowLocks: map[string]*sync.Mutex{},
		users:    map[string]*models.User{},
		roles:    map[string][]string{},
		tokens:   map[string]*models.RefreshToken{},
		orders:   map[int64]*models.Order{},
		items:    map[int64][]models.OrderItem{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Conn() dbx.DBTX {
	return &memTx{store: s, auto: true}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	tx := &memTx{store: s, heldKeys: map[string]bool{}}
	err := fn(ctx, tx)
	if err != nil {
		tx.rollback()
	}
	tx.release()
	return err
}

func (s *memStore) addOrder(o *models.Order, items ...models.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	s.items[o.ID] = items
}

func (s *memStore) order(id int64) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *memStore) locationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locations)
}

func (s *memStore) tokenRow(token string) *models.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[token]
}

func (s *memStore) tokenCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

type memTx struct {
	dbx.DBTX
	store    *memStore
	auto     bool
	held     []*sync.Mutex
	heldKeys map[string]bool
	undo     []func()
}

func txOf(db dbx.DBTX) *memTx {
	tx, _ := db.(*memTx)
	return tx
}

func (tx *memTx) lockRow(token string) {
	s := tx.store
	s.mu.Lock()
	l, ok := s.rowLocks[token]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[token] = l
	}
	s.mu.Unlock()

	if tx.auto {
		l.Lock()
		l.Unlock()
		return
	}
	if tx.heldKeys[token] {
		return
	}
	l.Lock()
	tx.held = append(tx.held, l)
	tx.heldKeys[token] = true
}

func (tx *memTx) onRollback(fn func()) {
	if tx != nil && !tx.auto {
		tx.undo = append(tx.undo, fn)
	}
}

func (tx *memTx) rollback() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) release() {
	for _, l := range tx.held {
		l.Unlock()
	}
	tx.held = nil
}

type memRepoManager struct{ store *memStore }

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) users.Repository {
	return &memUsers{s: m.store, tx: txOf(db)}
}
func (m *memRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return &memRefreshTokens{s: m.store, tx: txOf(db)}
}
func (m *memRepoManager) Orders(db dbx.DBTX) orders.Repository {
	return &memOrders{s: m.store, tx: txOf(db)}
}
func (m *memRepoManager) Locations(db dbx.DBTX) locations.Repository {
	return &memLocations{s: m.store, tx: txOf(db)}
}

type memUsers struct {
	s  *memStore
	tx *memTx
}

func (r *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	for _, existing := range s.users {
		if existing.UserName == u.UserName {
			return nil, common.ErrDuplicateUsername
		}
		if existing.Email == u.Email {
			return nil, common.ErrDuplicateEmail
		}
	}
	u.ID = "user-" + strconv.FormatInt(s.id(), 10)
	cp := *u
	s.users[u.ID] = &cp
	id := u.ID
	r.tx.onRollback(func() { delete(s.users, id) })
	return u, nil
}

func (r *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.UserName == login })
}

func (r *memUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memUsers) AddRole(ctx context.Context, userID string, role string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.roles[userID]
	for _, have := range prev {
		if have == role {
			return nil
		}
	}
	s.roles[userID] = append(append([]string{}, prev...), role)
	r.tx.onRollback(func() { s.roles[userID] = prev })
	return nil
}

func (r *memUsers) Roles(ctx context.Context, userID string) ([]string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string{}, s.roles[userID]...)
	sort.Strings(out)
	return out, nil
}

type memRefreshTokens struct {
	s  *memStore
	tx *memTx
}

func (r *memRefreshTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[t.Token]; ok {
		return errors.New("duplicate refresh token")
	}
	t.ID = strconv.FormatInt(s.id(), 10)
	cp := *t
	s.tokens[t.Token] = &cp
	token := t.Token
	r.tx.onRollback(func() { delete(s.tokens, token) })
	return nil
}

func (r *memRefreshTokens) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRefreshTokens) FindForUpdate(ctx context.Context, token string) (*models.RefreshToken, error) {
	if r.tx == nil {
		return nil, errors.New("FindForUpdate outside a transaction")
	}
	r.tx.lockRow(token)
	if hook := r.s.afterRowLock; hook != nil {
		hook(token)
	}
	return r.Find(ctx, token)
}

func (r *memRefreshTokens) Delete(ctx context.Context, token string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[token]; ok {
		delete(s.tokens, token)
		r.tx.onRollback(func() { s.tokens[token] = t })
	}
	return nil
}

func (r *memRefreshTokens) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, k)
			n++
		}
	}
	return n, nil
}

func (r *memRefreshTokens) Revoke(ctx context.Context, token string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return common.ErrorNotFound
	}
	t.Revoked = true
	return nil
}

type memOrders struct {
	s  *memStore
	tx *memTx
}

func (r *memOrders) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *o
	cp.Items = nil
	return &cp, nil
}

func (r *memOrders) Items(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderItem{}, s.items[orderID]...), nil
}

func (r *memOrders) MarkPaid(ctx context.Context, orderID int64, locationID *int64, promotion *string) (bool, error) {
	if hook := r.s.beforeMarkPaid; hook != nil {
		hook(orderID)
	}

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markPaidErr != nil {
		return false, s.markPaidErr
	}
	o, ok := s.orders[orderID]
	if !ok || o.PaymentStatus != models.PaymentUnpaid {
		return false, nil
	}
	prev := *o
	o.PaymentStatus = models.PaymentPaid
	if locationID != nil {
		o.ShipmentLocationID = locationID
	}
	if promotion != nil {
		o.PromotionCode = promotion
	}
	r.tx.onRollback(func() { *o = prev })
	return true, nil
}

func (r *memOrders) UpdateTrackingStatus(ctx context.Context, orderID int64, status models.TrackingStatus) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return common.ErrorNotFound
	}
	o.TrackingStatus = status
	return nil
}

type memLocations struct {
	s  *memStore
	tx *memTx
}

func (r *memLocations) FindByLookupKey(ctx context.Context, userID, lookupKey string) (*models.Location, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if l.UserID == userID && l.LookupKey == lookupKey {
			cp := *l
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memLocations) Create(ctx context.Context, loc *models.Location) (*models.Location, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	loc.ID = s.id()
	cp := *loc
	s.locations = append(s.locations, &cp)
	n := len(s.locations)
	r.tx.onRollback(func() { s.locations = s.locations[:n-1] })
	return loc, nil
}

// fakeProvider records calls and returns canned results.
type fakeProvider struct {
	mu sync.Mutex

	createURL  string
	createErr  error
	created    []*models.Order
	event      *payment.VerifiedEvent
	verifyErr  error
	confirmed  bool
	confirmErr error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CreatePayment(ctx context.Context, order *models.Order) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, order)
	if p.createErr != nil {
		return "", p.createErr
	}
	return p.createURL, nil
}

func (p *fakeProvider) ConfirmPayment(ctx context.Context, paymentIntentID string) (bool, error) {
	return p.confirmed, p.confirmErr
}

func (p *fakeProvider) VerifyAndParseWebhook(payload []byte, headers http.Header) (*payment.VerifiedEvent, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	ev := *p.event
	return &ev, nil
}

// fakeArchive records stored event ids.
type fakeArchive struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (a *fakeArchive) Store(ctx context.Context, eventID string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, eventID)
	return a.err
}
