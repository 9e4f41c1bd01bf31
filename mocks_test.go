package identity_test

import (
	"context"
	"database/sql"
	"sync"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	identity "github.com/goliatone/go-identity"
)

// MockUsers implements identity.Users for the methods the tests exercise.
// The embedded interface satisfies the rest; calling an unmocked method
// panics, which is exactly what we want in a test.
type MockUsers struct {
	mock.Mock
	identity.Users
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	if user, ok := args.Get(0).(*identity.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) FindByAnyHandle(ctx context.Context, email, username, countryCode, mobileNumber string) (*identity.User, error) {
	args := m.Called(ctx, email, username, countryCode, mobileNumber)
	if user, ok := args.Get(0).(*identity.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateTx echoes the inserted record back when the expectation returns
// (nil, nil), mimicking what the real store does on success.
func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *identity.User, criteria ...repository.InsertCriteria) (*identity.User, error) {
	args := m.Called(ctx, tx, record)
	if user, ok := args.Get(0).(*identity.User); ok {
		return user, args.Error(1)
	}
	if args.Error(1) == nil {
		return record, nil
	}
	return nil, args.Error(1)
}

// MockRepositoryManager wires a MockUsers behind the manager interface and
// runs transactions inline against a zero tx.
type MockRepositoryManager struct {
	UsersRepo *MockUsers
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{UsersRepo: &MockUsers{}}
}

func (m *MockRepositoryManager) Users() identity.Users {
	return m.UsersRepo
}

func (m *MockRepositoryManager) Validate() error {
	return nil
}

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

var _ identity.RepositoryManager = (*MockRepositoryManager)(nil)

// MockTracker implements identity.UserTracker.
type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) GetByIdentifier(ctx context.Context, identifier string) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	if user, ok := args.Get(0).(*identity.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// testIdentity is a plain Identity fixture.
type testIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (t testIdentity) ID() string       { return t.id }
func (t testIdentity) Username() string { return t.username }
func (t testIdentity) Email() string    { return t.email }
func (t testIdentity) Role() string     { return t.role }

var (
	testHashOnce sync.Once
	testHash     string
)

// passwordHash returns a bcrypt hash of "secret123", computed once because
// the production cost factor is deliberately slow.
func passwordHash() string {
	testHashOnce.Do(func() {
		hash, err := identity.HashPassword("secret123")
		if err != nil {
			panic(err)
		}
		testHash = hash
	})
	return testHash
}

func testConfig() *identity.Config {
	return &identity.Config{
		Port:            3000,
		Host:            "127.0.0.1",
		Environment:     identity.EnvTest,
		DatabaseURL:     "file::memory:?cache=shared",
		JWTSecret:       "test-signing-secret",
		CORSOrigin:      "*",
		TokenExpiration: 1,
		Issuer:          "go-identity-test",
	}
}
