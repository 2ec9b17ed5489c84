package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ErrInjected is the store failure used by error-injection tests.
var ErrInjected = errors.New("injected store failure")

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[int64]*domain.Order
	nextID int64

	// Counters for verification
	ListPendingCallCount  int32
	ListHistoryCallCount  int32
	InsertManyCallCount   int32
	UpdateStatusCallCount int32

	// Error injection
	ListPendingError  error
	ListHistoryError  error
	InsertManyError   error
	UpdateStatusError error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[int64]*domain.Order),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	if order.ID > m.nextID {
		m.nextID = order.ID
	}
}

func (m *MockOrderRepository) ListPending(ctx context.Context) ([]*domain.Order, error) {
	atomic.AddInt32(&m.ListPendingCallCount, 1)
	if m.ListPendingError != nil {
		return nil, m.ListPendingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Order
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusPending {
			copy := *o
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MockOrderRepository) ListHistory(ctx context.Context, driverID string) ([]*domain.Order, error) {
	atomic.AddInt32(&m.ListHistoryCallCount, 1)
	if m.ListHistoryError != nil {
		return nil, m.ListHistoryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Order
	for _, o := range m.orders {
		if o.Status.IsDecision() && o.DriverID == driverID {
			copy := *o
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result, nil
}

func (m *MockOrderRepository) InsertMany(ctx context.Context, orders []*domain.Order) error {
	atomic.AddInt32(&m.InsertManyCallCount, 1)
	if m.InsertManyError != nil {
		return m.InsertManyError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range orders {
		m.nextID++
		o.ID = m.nextID
		copy := *o
		m.orders[o.ID] = &copy
	}
	return nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, driverID string, at time.Time) (*domain.Order, error) {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return nil, m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	order.Status = status
	order.DriverID = driverID
	order.UpdatedAt = at
	copy := *order
	return &copy, nil
}

// GetOrder returns order for test assertions.
func (m *MockOrderRepository) GetOrder(id int64) *domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

// Count returns the number of stored orders.
func (m *MockOrderRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

// ──────────────────────────────────────────────
// MOCK PROFILE REPOSITORY
// ──────────────────────────────────────────────

// MockProfileRepository is a mock implementation of ProfileRepository.
type MockProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile

	// Counters for verification
	GetCallCount       int32
	IncrementCallCount int32

	// Error injection
	CreateError    error
	GetError       error
	IncrementError error
}

// NewMockProfileRepository creates a new mock profile repository.
func NewMockProfileRepository() *MockProfileRepository {
	return &MockProfileRepository{
		profiles: make(map[string]*domain.Profile),
	}
}

// AddProfile adds a profile to the mock repository.
func (m *MockProfileRepository) AddProfile(profile *domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = profile
}

func (m *MockProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *profile
	m.profiles[profile.UserID] = &copy
	return nil
}

func (m *MockProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *profile
	return &copy, nil
}

func (m *MockProfileRepository) IncrementOrdersToday(ctx context.Context, userID string, delta int, at time.Time) error {
	atomic.AddInt32(&m.IncrementCallCount, 1)
	if m.IncrementError != nil {
		return m.IncrementError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	profile.OrdersToday += delta
	profile.UpdatedAt = at
	return nil
}

// GetProfile returns profile for test assertions.
func (m *MockProfileRepository) GetProfile(userID string) *domain.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[userID]
}

// ──────────────────────────────────────────────
// MOCK COUNTER BACKLOG
// ──────────────────────────────────────────────

// MockCounterBacklog is a mock implementation of the counter backlog.
type MockCounterBacklog struct {
	mu    sync.Mutex
	debts []domain.CounterDebt

	PushError error
}

// NewMockCounterBacklog creates a new mock backlog.
func NewMockCounterBacklog() *MockCounterBacklog {
	return &MockCounterBacklog{}
}

func (m *MockCounterBacklog) Push(ctx context.Context, debt domain.CounterDebt) error {
	if m.PushError != nil {
		return m.PushError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debts = append(m.debts, debt)
	return nil
}

// Debts returns the recorded debts.
func (m *MockCounterBacklog) Debts() []domain.CounterDebt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CounterDebt(nil), m.debts...)
}
