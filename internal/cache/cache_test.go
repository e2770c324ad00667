package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 30*time.Second))
	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))

	now = now.Add(30 * time.Second)
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "forever", []byte("x"), 0))
	now = now.Add(24 * time.Hour)
	_, found, _ = s.Get(ctx, "forever")
	assert.True(t, found)

	require.NoError(t, s.Delete(ctx, "forever"))
	_, found, _ = s.Get(ctx, "forever")
	assert.False(t, found)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	s := NewRedisStore(client, "bm:")
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("bm:k"))

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))

	mr.FastForward(2 * time.Minute)
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetOrComputeCachesValue(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), nil)
	var calls int32
	fn := func(context.Context) ([]payload, error) {
		atomic.AddInt32(&calls, 1)
		return []payload{{Name: "a", Score: 0.9}}, nil
	}

	first, err := GetOrCompute(ctx, c, "k", time.Minute, fn)
	require.NoError(t, err)
	second, err := GetOrCompute(ctx, c, "k", time.Minute, fn)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrComputeZeroTTLBypasses(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), nil)
	var calls int32
	fn := func(context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}
	_, _ = GetOrCompute(ctx, c, "k", 0, fn)
	_, _ = GetOrCompute(ctx, c, "k", 0, fn)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), nil)
	boom := errors.New("boom")
	_, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("store down") }

func TestGetOrComputeStoreFailureFallsBack(t *testing.T) {
	c := New(failingStore{}, nil)
	v, err := GetOrCompute(context.Background(), c, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{Name: "live"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "live", v.Name)
	c.Invalidate(context.Background(), "k")
}

func TestGetOrComputeCoalesces(t *testing.T) {
	c := New(NewMemoryStore(), nil)
	var calls int32
	release := make(chan struct{})
	fn := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = GetOrCompute(context.Background(), c, "hot", time.Minute, fn)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(8))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))

	_, found, _ := c.Store.Get(context.Background(), "hot")
	assert.True(t, found)
}
