//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

var errProviderDown = domain.ErrProviderUnavailable

func timeNow() time.Time { return time.Now() }

// MockOrderRepo is a small in-memory implementation used by unit tests.
type MockOrderRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Order
	SaveFunc func(ctx context.Context, o *model.Order) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{store: make(map[string]*model.Order)}
}

func (m *MockOrderRepo) Save(ctx context.Context, o *model.Order) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, o); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.OrderID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.store[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) FindPending(ctx context.Context, handle, planID string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.store {
		if o.UserHandle == handle && o.PlanID == planID && o.Status == model.OrderStatusPending {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[orderID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = model.OrderStatusPaid
	o.PaidAt = &paidAt
	return true, nil
}

func (m *MockOrderRepo) MarkFailed(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.store[orderID]; ok && o.Status == model.OrderStatusPending {
		o.Status = model.OrderStatusFailed
	}
	return nil
}

func (m *MockOrderRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// MockPlanRepo serves a fixed catalog.
type MockPlanRepo struct {
	mu    sync.RWMutex
	plans map[string]*model.Plan
}

func NewMockPlanRepo(plans ...*model.Plan) *MockPlanRepo {
	m := &MockPlanRepo{plans: make(map[string]*model.Plan)}
	for _, p := range plans {
		m.plans[p.ID] = p
	}
	return m
}

func (m *MockPlanRepo) List(ctx context.Context) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.plans {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// MockSubscriberRepo upserts by handle like the real store.
type MockSubscriberRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscriber
}

func NewMockSubscriberRepo() *MockSubscriberRepo {
	return &MockSubscriberRepo{store: make(map[string]*model.Subscriber)}
}

func (m *MockSubscriberRepo) Upsert(ctx context.Context, s *model.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.Handle] = &cp
	return nil
}

func (m *MockSubscriberRepo) FindByHandle(ctx context.Context, handle string) (*model.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[handle]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriberRepo) Activate(ctx context.Context, handle, planID string, expiresOn *time.Time, needsReview bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[handle]
	if !ok {
		return domain.ErrNotFound
	}
	s.PlanID = planID
	s.Status = model.SubscriptionStatusActive
	s.ExpiresOn = expiresOn
	s.NeedsReview = needsReview
	return nil
}

func (m *MockSubscriberRepo) ListExpirable(ctx context.Context, asOf time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.ExpiresOn != nil && s.ExpiresOn.Before(asOf) {
			out = append(out, s.Handle)
		}
	}
	return out, nil
}

func (m *MockSubscriberRepo) MarkExpired(ctx context.Context, handles []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for _, h := range handles {
		s, ok := m.store[h]
		if !ok || s.Status != model.SubscriptionStatusActive {
			continue
		}
		if s.ExpiresOn == nil || !s.ExpiresOn.Before(time.Now()) {
			continue
		}
		s.Status = model.SubscriptionStatusExpired
		expired = append(expired, h)
	}
	return expired, nil
}

// MockSessionRepo is the in-memory stand-in for the Redis session store.
type MockSessionRepo struct {
	mu    sync.RWMutex
	store map[int64]*model.Session
}

func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{store: make(map[int64]*model.Session)}
}

func (m *MockSessionRepo) Get(ctx context.Context, chatID int64) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSessionRepo) Set(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ChatID] = &cp
	return nil
}

func (m *MockSessionRepo) Clear(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, chatID)
	return nil
}

// MockPaymentGateway lets tests script provider behavior.
type MockPaymentGateway struct {
	CreateErr error
	Created   *adapter.CreatedPayment
	Status    string
	StatusErr error
	SigOK     bool
	Calls     int
}

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreatePayment(ctx context.Context, amountUSD float64, payCurrency, orderID, description string) (*adapter.CreatedPayment, error) {
	m.Calls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.Created != nil {
		return m.Created, nil
	}
	return &adapter.CreatedPayment{
		ProviderPaymentID: "prov-1",
		PayAddress:        "addr-xyz",
		PayAmount:         amountUSD,
		PayCurrency:       payCurrency,
	}, nil
}

func (m *MockPaymentGateway) GetStatus(ctx context.Context, providerPaymentID string) (string, error) {
	return m.Status, m.StatusErr
}

func (m *MockPaymentGateway) VerifySignature(rawBody []byte, signature string) bool { return m.SigOK }

// MockInviteIssuer returns a fixed link or a scripted error.
type MockInviteIssuer struct {
	Link string
	Err  error
}

func (m *MockInviteIssuer) CreateInviteLink(ctx context.Context) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Link == "" {
		return "https://t.me/+invite", nil
	}
	return m.Link, nil
}
