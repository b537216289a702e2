package account_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockIdentityProvider implements account.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identity, password string) (*account.User, error) {
	args := m.Called(ctx, identity, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentity(ctx context.Context, identity string) (*account.User, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

// MockUserStore implements account.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByIdentity(ctx context.Context, identity string) (*account.User, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func (m *MockUserStore) Create(ctx context.Context, record *account.User) (*account.User, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func (m *MockUserStore) UpdateByIdentity(ctx context.Context, identity string, record *account.User) (*account.User, error) {
	args := m.Called(ctx, identity, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func (m *MockUserStore) DeleteByIdentity(ctx context.Context, identity string) (int64, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(int64), args.Error(1)
}

// MockIdentityResolver implements account.IdentityResolver
type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) Resolve(ctx context.Context, token string) (*account.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []account.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event account.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Types() []account.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]account.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *recordingSink) Last() account.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return account.ActivityEvent{}
	}
	return r.events[len(r.events)-1]
}

// testConfig implements account.Config
type testConfig struct {
	key     string
	method  string
	access  int
	refresh int
}

func newTestConfig() testConfig {
	return testConfig{key: "test-signing-key", method: "HS256", access: 30, refresh: 60}
}

func (c testConfig) GetSigningKey() string         { return c.key }
func (c testConfig) GetSigningMethod() string      { return c.method }
func (c testConfig) GetAccessTokenExpiration() int { return c.access }
func (c testConfig) GetRefreshTokenExpiration() int {
	return c.refresh
}

var testHasher = account.NewBcryptHasher(bcrypt.MinCost)

// memoryStore is a map backed account.UserStore
type memoryStore struct {
	mu    sync.Mutex
	users map[string]account.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[string]account.User{}}
}

func (s *memoryStore) GetByIdentity(_ context.Context, identity string) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[identity]
	if !ok {
		return nil, account.ErrIdentityNotFound
	}
	return &u, nil
}

func (s *memoryStore) Create(_ context.Context, record *account.User) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[record.Email]; ok {
		return nil, account.ErrIdentityExists
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.users[record.Email] = *record
	out := *record
	return &out, nil
}

func (s *memoryStore) UpdateByIdentity(_ context.Context, identity string, record *account.User) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[identity]; !ok {
		return nil, account.ErrIdentityNotFound
	}
	s.users[identity] = *record
	out := *record
	return &out, nil
}

func (s *memoryStore) DeleteByIdentity(_ context.Context, identity string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[identity]; !ok {
		return 0, nil
	}
	delete(s.users, identity)
	return 1, nil
}
