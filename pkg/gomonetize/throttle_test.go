package gomonetize

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStorage is an in-package Storage fake shared by the core tests.
type fakeStorage struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{data: make(map[string]string)}
}

func (s *fakeStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) SetDay(day string) {
	t, err := time.ParseInLocation("2006-01-02", day, time.Local)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.Add(12 * time.Hour)
}

func newTestThrottle(t *testing.T, storage Storage, clock Clock) *AdThrottle {
	t.Helper()
	throttle, err := NewAdThrottle(storage, AdThrottleConfig{Clock: clock})
	require.NoError(t, err)
	return throttle
}

func TestNewAdThrottle_NilStorage(t *testing.T) {
	_, err := NewAdThrottle(nil, AdThrottleConfig{})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestAdThrottle_FirstCallGrantsAndPersists(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	clock := newFakeClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local))
	throttle := newTestThrottle(t, storage, clock)

	assert.True(t, throttle.CanShow(ctx))

	raw, err := storage.Get(ctx, StorageKeyAdMeta)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"day":"2024-01-01","count":1,"last":`+
			jsonInt(clock.Now().UnixMilli())+`}`, raw)
}

func TestAdThrottle_Cooldown(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	clock := newFakeClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local))
	throttle := newTestThrottle(t, storage, clock)

	require.True(t, throttle.CanShow(ctx))
	stored, _ := storage.Get(ctx, StorageKeyAdMeta)

	// 30s later: denied, state unchanged.
	clock.Advance(30 * time.Second)
	assert.False(t, throttle.CanShow(ctx))
	after, _ := storage.Get(ctx, StorageKeyAdMeta)
	assert.Equal(t, stored, after)

	// 95s after the first grant: allowed again.
	clock.Advance(65 * time.Second)
	assert.True(t, throttle.CanShow(ctx))
}

func TestAdThrottle_DailyCap(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local))
	throttle := newTestThrottle(t, storage, clock)

	for i := 0; i < maxInterstitialsPerDay; i++ {
		require.True(t, throttle.CanShow(ctx), "grant %d", i+1)
		clock.Advance(2 * time.Minute)
	}

	// Cap reached: denied even after a full cooldown.
	clock.Advance(time.Hour)
	assert.False(t, throttle.CanShow(ctx))
}

func TestAdThrottle_DayRolloverResets(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local))
	throttle := newTestThrottle(t, storage, clock)

	for i := 0; i < maxInterstitialsPerDay; i++ {
		require.True(t, throttle.CanShow(ctx))
		clock.Advance(2 * time.Minute)
	}
	require.False(t, throttle.CanShow(ctx))

	clock.SetDay("2024-01-02")
	assert.True(t, throttle.CanShow(ctx))

	raw, err := storage.Get(ctx, StorageKeyAdMeta)
	require.NoError(t, err)
	assert.Contains(t, raw, `"day":"2024-01-02"`)
	assert.Contains(t, raw, `"count":1`)
}

func TestAdThrottle_StorageReadFailureResets(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	storage.getErr = errors.New("disk on fire")
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local))
	throttle := newTestThrottle(t, storage, clock)

	// Persistence failure behaves as if no prior state existed.
	assert.True(t, throttle.CanShow(ctx))
}

func TestAdThrottle_CorruptStateResets(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	require.NoError(t, storage.Set(ctx, StorageKeyAdMeta, "{not json"))
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local))
	throttle := newTestThrottle(t, storage, clock)

	assert.True(t, throttle.CanShow(ctx))
}

func TestAdThrottle_WriteFailureStillDecides(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	storage.setErr = errors.New("read-only fs")
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local))
	throttle := newTestThrottle(t, storage, clock)

	assert.True(t, throttle.CanShow(ctx))
}

func TestAdThrottle_ConcurrentChecksSerialized(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local))
	throttle := newTestThrottle(t, storage, clock)

	// Many simultaneous callers on a fixed clock: the mutex serializes the
	// read-modify-write, so exactly one grant is possible (the rest hit the
	// cooldown against the first grant's timestamp).
	const callers = 16
	var wg sync.WaitGroup
	granted := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted <- throttle.CanShow(ctx)
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for ok := range granted {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAdThrottle_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local))

	first := newTestThrottle(t, storage, clock)
	for i := 0; i < maxInterstitialsPerDay; i++ {
		require.True(t, first.CanShow(ctx))
		clock.Advance(2 * time.Minute)
	}

	// A new throttle over the same storage sees the exhausted cap.
	second := newTestThrottle(t, storage, clock)
	clock.Advance(time.Hour)
	assert.False(t, second.CanShow(ctx))
}

func jsonInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
