package energy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lazylmf-ai/powersched/internal/store"
)

// Store owns per-user usage patterns and prediction models, persisting
// them through the injected key/value store. Learning updates for the
// same user are serialized; each record update is applied as a whole.
type Store struct {
	kv store.KV

	mu        sync.Mutex
	patterns  map[string]UsagePattern
	models    map[string]PredictionModel
	userLocks map[string]*sync.Mutex
	loaded    bool
	dirty     bool // a persist failed; retry on the next learning cycle
}

// NewStore creates a Store over the given key/value persistence.
func NewStore(kv store.KV) *Store {
	return &Store{
		kv:        kv,
		patterns:  make(map[string]UsagePattern),
		models:    make(map[string]PredictionModel),
		userLocks: make(map[string]*sync.Mutex),
	}
}

// load pulls the persisted collections on first access. Read failures
// degrade to empty collections; they are not fatal.
func (s *Store) load(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true

	if data, err := s.kv.Get(ctx, store.KeyUsagePatterns); err == nil && data != nil {
		var patterns map[string]UsagePattern
		if json.Unmarshal(data, &patterns) == nil {
			s.patterns = patterns
		}
	}
	if data, err := s.kv.Get(ctx, store.KeyPredictionModels); err == nil && data != nil {
		var models map[string]PredictionModel
		if json.Unmarshal(data, &models) == nil {
			s.models = models
		}
	}
}

// persist writes both collections back. Returns the first error; the
// caller marks the store dirty and retries on the next cycle.
func (s *Store) persist(ctx context.Context) error {
	patterns, err := json.Marshal(s.patterns)
	if err != nil {
		return fmt.Errorf("encoding patterns: %w", err)
	}
	models, err := json.Marshal(s.models)
	if err != nil {
		return fmt.Errorf("encoding models: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeyUsagePatterns, patterns); err != nil {
		return fmt.Errorf("persisting patterns: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeyPredictionModels, models); err != nil {
		return fmt.Errorf("persisting models: %w", err)
	}
	return nil
}

// lockFor returns the serialization lock for a user.
func (s *Store) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// PatternFor returns the user's usage pattern, creating the default
// pattern on first use.
func (s *Store) PatternFor(ctx context.Context, userID string) UsagePattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(ctx)
	p, ok := s.patterns[userID]
	if !ok {
		p = NewUsagePattern(userID)
		s.patterns[userID] = p
	}
	return p
}

// ModelFor returns the user's prediction model, creating the default
// model on first use.
func (s *Store) ModelFor(ctx context.Context, userID string) PredictionModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(ctx)
	m, ok := s.models[userID]
	if !ok {
		m = NewPredictionModel(userID)
		s.models[userID] = m
	}
	return m
}

// RecordObservedUsage runs the learning step for one observation and
// returns the updated records. Persistence failures do not fail the
// call; the write is retried on the next learning cycle.
func (s *Store) RecordObservedUsage(ctx context.Context, userID string, obs Observation) (UsagePattern, PredictionModel) {
	userLock := s.lockFor(userID)
	userLock.Lock()
	defer userLock.Unlock()

	pattern := s.PatternFor(ctx, userID)
	model := s.ModelFor(ctx, userID)
	pattern, model = ApplyObservation(pattern, model, obs)

	s.mu.Lock()
	s.patterns[userID] = pattern
	s.models[userID] = model
	err := s.persist(ctx)
	s.dirty = err != nil
	s.mu.Unlock()

	return pattern, model
}

// Dirty reports whether the last persist attempt failed.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Flush retries persistence if a previous attempt failed.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	err := s.persist(ctx)
	s.dirty = err != nil
	return err
}
