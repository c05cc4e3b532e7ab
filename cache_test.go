package acorn

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// lifetimeCache
// ---------------------------------------------------------------------------

func TestLifetimeCache(t *testing.T) {
	k := TypeOf[*testLogger]().key()

	t.Run("create runs once", func(t *testing.T) {
		lc := newLifetimeCache()
		calls := 0
		create := func() (any, error) {
			calls++
			return &testLogger{}, nil
		}

		a, created, err := lc.getOrCreate(k, create)
		require.NoError(t, err)
		assert.True(t, created)

		b, created, err := lc.getOrCreate(k, create)
		require.NoError(t, err)
		assert.False(t, created)

		assert.Same(t, a, b)
		assert.Equal(t, 1, calls)
	})

	t.Run("failed create stores nothing", func(t *testing.T) {
		lc := newLifetimeCache()
		_, _, err := lc.getOrCreate(k, func() (any, error) { return nil, errors.New("fail") })
		require.Error(t, err)
		assert.False(t, lc.contains(k))
	})

	t.Run("drain returns closers newest first", func(t *testing.T) {
		lc := newLifetimeCache()
		var order []string
		for _, name := range []string{"a", "b", "c"} {
			key := Named[*testClosable](name).key()
			_, _, err := lc.getOrCreate(key, func() (any, error) {
				return &testClosable{Name: name, Order: &order}, nil
			})
			require.NoError(t, err)
		}
		_, _, err := lc.getOrCreate(k, func() (any, error) { return &testLogger{}, nil })
		require.NoError(t, err)

		closers := lc.drain()
		require.Len(t, closers, 3)
		for _, cl := range closers {
			require.NoError(t, cl.Close())
		}
		assert.Equal(t, []string{"c", "b", "a"}, order)
		assert.Empty(t, lc.drain())
	})
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestResolve_ConcurrentSingleton(t *testing.T) {
	var calls atomic.Int32
	c := New()
	mustProvide(t, c, TypeOf[*testLogger](), func() *testLogger {
		calls.Add(1)
		// Widen the window in which a racing resolver could construct twice.
		time.Sleep(5 * time.Millisecond)
		return &testLogger{Prefix: "app"}
	})

	const goroutines = 100
	var wg sync.WaitGroup
	results := make([]*testLogger, goroutines)
	errs := make(chan error, goroutines)

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			logger, err := Resolve[*testLogger](c)
			if err != nil {
				errs <- err
				return
			}
			results[i] = logger
		}(i)
	}
	close(start)

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent error: %v", err)
	}
	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestResolve_Concurrent(t *testing.T) {
	c := New()
	mustProvide(t, c, TypeOf[*testLogger](), newTestLogger)
	mustProvide(t, c, TypeOf[*testConfig](), newTestConfig)
	mustProvide(t, c, TypeOf[*testDatabase](), newTestDatabase)
	mustProvide(t, c, TypeOf[*testOrderService](), newTestOrderService, WithLifetime(Transient))

	const goroutines = 100
	var wg sync.WaitGroup
	errs := make(chan error, goroutines*2)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			db, err := Resolve[*testDatabase](c)
			if err != nil {
				errs <- fmt.Errorf("Database: %w", err)
				return
			}
			if db.Config.DSN != "postgres://localhost" {
				errs <- fmt.Errorf("Database.Config.DSN = %q", db.Config.DSN)
				return
			}

			svc, err := Resolve[*testOrderService](c, WithOverride(TypeOf[*testLogger](), &testLogger{Prefix: "req"}))
			if err != nil {
				errs <- fmt.Errorf("OrderService: %w", err)
				return
			}
			if svc.Logger.Prefix != "req" {
				errs <- fmt.Errorf("OrderService.Logger.Prefix = %q", svc.Logger.Prefix)
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent error: %v", err)
	}
}

func TestResolve_ConcurrentScopes(t *testing.T) {
	var calls atomic.Int32
	root := New()
	mustProvide(t, root, TypeOf[*testLogger](), func() *testLogger {
		calls.Add(1)
		return &testLogger{}
	})

	const goroutines = 50
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			scope := root.NewScope()
			if err := scope.RegisterInstance(Key("request"), i); err != nil {
				errs <- err
				return
			}
			v, err := scope.Resolve(Key("request"))
			if err != nil {
				errs <- err
				return
			}
			if v != i {
				errs <- fmt.Errorf("request = %v, want %d", v, i)
				return
			}
			if _, err := Resolve[*testOrderService](scope); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent error: %v", err)
	}
	assert.Equal(t, int32(1), calls.Load())
}
