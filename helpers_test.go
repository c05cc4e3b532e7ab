package acorn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// Shared test types and constructors used across test files.

// mustProvide calls t.Fatal if registering a factory fails.
func mustProvide(t *testing.T, c Container, tok Token, factory any, opts ...Option) {
	t.Helper()
	require.NoError(t, c.RegisterFactory(tok, factory, opts...), "RegisterFactory(%s)", tok)
}

// mustSupply calls t.Fatal if registering an instance fails.
func mustSupply(t *testing.T, c Container, tok Token, value any, opts ...Option) {
	t.Helper()
	require.NoError(t, c.RegisterInstance(tok, value, opts...), "RegisterInstance(%s)", tok)
}

type testLogger struct{ Prefix string }
type testConfig struct{ DSN string }

type testDatabase struct {
	Config *testConfig
	Logger *testLogger
}

type testUserRepo struct {
	DB     *testDatabase
	Logger *testLogger
}

type testService interface {
	Name() string
}

type testUserService struct {
	Repo   *testUserRepo
	Logger *testLogger
}

func (s *testUserService) Name() string { return "user" }

type testOrderService struct{ Logger *testLogger }

func (s *testOrderService) Name() string { return "order" }

// testStore is an abstraction no test registers by default, so fields of
// this type are unresolvable unless a test binds it.
type testStore interface {
	Get(key string) (string, error)
}

type memStore struct{ data map[string]string }

func (m *memStore) Get(key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("no key %q", key)
	}
	return v, nil
}

type testCircA struct{ B *testCircB }
type testCircB struct{ C *testCircC }
type testCircC struct{ A *testCircA }

func newTestLogger() *testLogger           { return &testLogger{Prefix: "app"} }
func newTestConfig() *testConfig           { return &testConfig{DSN: "postgres://localhost"} }
func newTestCircA(b *testCircB) *testCircA { return &testCircA{B: b} }
func newTestCircB(c *testCircC) *testCircB { return &testCircB{C: c} }
func newTestCircC(a *testCircA) *testCircC { return &testCircC{A: a} }

func newTestDatabase(cfg *testConfig, log *testLogger) *testDatabase {
	return &testDatabase{Config: cfg, Logger: log}
}

func newTestUserRepo(db *testDatabase, log *testLogger) *testUserRepo {
	return &testUserRepo{DB: db, Logger: log}
}

func newTestUserService(repo *testUserRepo, log *testLogger) *testUserService {
	return &testUserService{Repo: repo, Logger: log}
}

func newTestOrderService(log *testLogger) *testOrderService {
	return &testOrderService{Logger: log}
}

// Struct-autowiring fixtures.

type testServer struct {
	Logger  *testLogger
	Port    int         `default:"8080"`
	Host    string      `inject:"host" default:"localhost"`
	Store   testStore   `inject:",optional"`
	Ignored *testConfig `inject:"-"`
	private *testLogger
}

func (s *testServer) hasPrivate() bool { return s.private != nil }

type testNeedsDSN struct {
	DSN string
}

type testNeedsStore struct {
	Store testStore
}

// testClosable is a singleton that implements io.Closer for shutdown tests.
type testClosable struct {
	Name   string
	Closed bool
	Order  *[]string // shared slice to record close order
}

func (c *testClosable) Close() error {
	c.Closed = true
	if c.Order != nil {
		*c.Order = append(*c.Order, c.Name)
	}
	return nil
}

// valueError is an error type that cannot be nil.
type valueError struct{}

func (valueError) Error() string { return "value error" }

// testFailCloser implements io.Closer but returns an error.
type testFailCloser struct{}

func (f *testFailCloser) Close() error {
	return errors.New("close failed")
}

// Conformance fixtures.

type testRenderer interface {
	Render() string
}

type htmlRenderer struct{}

func (htmlRenderer) Render() string { return "<p/>" }

type silentWidget struct{}

type wrongRenderer struct{}

func (wrongRenderer) Render(indent int) string { return "" }
