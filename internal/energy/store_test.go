package energy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lazylmf-ai/powersched/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreatesDefaultsOnFirstUse(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemKV())

	p := s.PatternFor(ctx, "u1")
	assert.Equal(t, "u1", p.UserID)
	assert.InDelta(t, 0.30, p.AverageDailyUsage, 0.001)
	assert.InDelta(t, 0.005, p.ReminderBatteryImpact, 0.0001)
	assert.InDelta(t, 1.0, p.HealthScore, 0.001)

	m := s.ModelFor(ctx, "u1")
	assert.Equal(t, "u1", m.UserID)
	assert.Equal(t, AlgoTimeSeries, m.Algorithm)
	assert.InDelta(t, 0.5, m.Accuracy, 0.001)
	assert.NotEmpty(t, m.Features)
}

func TestStore_RoundTripThroughKV(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemKV()

	s := NewStore(kv)
	obs := Observation{Actual: 0.06, TimeFrameHours: 1, ReminderCount: 2, At: time.Now().UTC()}
	pattern, model := s.RecordObservedUsage(ctx, "u1", obs)
	require.False(t, s.Dirty())

	// A fresh store over the same KV sees the learned state.
	s2 := NewStore(kv)
	p2 := s2.PatternFor(ctx, "u1")
	m2 := s2.ModelFor(ctx, "u1")
	assert.InDelta(t, pattern.AverageDailyUsage, p2.AverageDailyUsage, 1e-9)
	assert.InDelta(t, model.NextHourUsage, m2.NextHourUsage, 1e-9)
	assert.Equal(t, model.Algorithm, m2.Algorithm)
}

func TestStore_RepeatedObservationsStayBounded(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemKV())

	var last PredictionModel
	at := time.Now()
	for i := 0; i < 100; i++ {
		_, last = s.RecordObservedUsage(ctx, "u1", Observation{
			Actual: 0.04, TimeFrameHours: 1, ReminderCount: 1,
			At: at.Add(time.Duration(i) * time.Hour),
		})
	}
	assert.LessOrEqual(t, last.Confidence, 1.0)
	assert.LessOrEqual(t, last.Accuracy, 1.0)
	assert.InDelta(t, 0.04, last.NextHourUsage, 0.01)
}

func TestStore_ConcurrentUsersDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemKV())

	var wg sync.WaitGroup
	users := []string{"u1", "u2", "u3", "u4"}
	for _, userID := range users {
		userID := userID
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.RecordObservedUsage(ctx, userID, Observation{
					Actual: 0.02, TimeFrameHours: 1, ReminderCount: 1, At: time.Now(),
				})
			}
		}()
	}
	wg.Wait()

	for _, userID := range users {
		m := s.ModelFor(ctx, userID)
		assert.Equal(t, userID, m.UserID)
		assert.InDelta(t, 20, m.feature(featSamples, 0), 0.001, "user %s sample count", userID)
	}
}

// brokenKV fails every write, for exercising the dirty-retry path.
type brokenKV struct {
	inner  store.KV
	broken bool
}

func (b *brokenKV) Get(ctx context.Context, key string) ([]byte, error) {
	return b.inner.Get(ctx, key)
}

func (b *brokenKV) Set(ctx context.Context, key string, value []byte) error {
	if b.broken {
		return errors.New("disk full")
	}
	return b.inner.Set(ctx, key, value)
}

func (b *brokenKV) Remove(ctx context.Context, key string) error {
	return b.inner.Remove(ctx, key)
}

func TestStore_PersistFailureMarksDirtyAndRetries(t *testing.T) {
	ctx := context.Background()
	kv := &brokenKV{inner: store.NewMemKV(), broken: true}
	s := NewStore(kv)

	// Learning still succeeds in memory when the write fails.
	pattern, _ := s.RecordObservedUsage(ctx, "u1", Observation{
		Actual: 0.05, TimeFrameHours: 1, ReminderCount: 1, At: time.Now(),
	})
	require.True(t, s.Dirty())
	assert.Greater(t, pattern.AverageDailyUsage, 0.30)

	// Flush retries once the store recovers.
	kv.broken = false
	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Dirty())

	s2 := NewStore(kv)
	p2 := s2.PatternFor(ctx, "u1")
	assert.InDelta(t, pattern.AverageDailyUsage, p2.AverageDailyUsage, 1e-9)
}

func TestStore_ReadFailureDegradesToDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewStore(failingReadKV{})

	p := s.PatternFor(ctx, "u1")
	assert.InDelta(t, 0.30, p.AverageDailyUsage, 0.001, "read failure should yield defaults")
}

type failingReadKV struct{}

func (failingReadKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("db locked")
}
func (failingReadKV) Set(context.Context, string, []byte) error { return nil }
func (failingReadKV) Remove(context.Context, string) error      { return nil }
