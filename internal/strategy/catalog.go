package strategy

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lazylmf-ai/powersched/internal/store"
)

// Catalog holds the strategy set and answers selection queries. Entries
// are read-mostly; only performance fields change, via RecordOutcome.
type Catalog struct {
	kv store.KV

	mu         sync.Mutex
	strategies []Strategy
}

// NewCatalog creates a catalog with the built-in strategies, overlaying
// any persisted performance records from the key/value store. A nil kv
// disables persistence.
func NewCatalog(ctx context.Context, kv store.KV) *Catalog {
	c := &Catalog{kv: kv, strategies: Builtin()}
	if kv == nil {
		return c
	}

	// Persisted state carries only observed performance; the catalog
	// definitions themselves always come from code.
	data, err := kv.Get(ctx, store.KeyStrategies)
	if err != nil || data == nil {
		return c
	}
	var perf map[string]Performance
	if json.Unmarshal(data, &perf) != nil {
		return c
	}
	for i := range c.strategies {
		if p, ok := perf[c.strategies[i].Name]; ok {
			c.strategies[i].Performance = p
		}
	}
	return c
}

// Strategies returns a copy of the catalog in declaration order.
func (c *Catalog) Strategies() []Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Strategy, len(c.strategies))
	copy(out, c.strategies)
	return out
}

// ByName returns the named strategy, if present.
func (c *Catalog) ByName(name string) (Strategy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.strategies {
		if s.Name == name {
			return s, true
		}
	}
	return Strategy{}, false
}

// outcomeDecay is the EMA weight kept from prior performance records.
const outcomeDecay = 0.8

// RecordOutcome blends an observed optimization outcome into the named
// strategy's performance record and persists it best-effort.
func (c *Catalog) RecordOutcome(ctx context.Context, name string, batteryReductionPct, adherenceImpactPct, satisfaction float64) {
	c.mu.Lock()
	for i := range c.strategies {
		if c.strategies[i].Name != name {
			continue
		}
		p := &c.strategies[i].Performance
		p.BatteryReductionPct = p.BatteryReductionPct*outcomeDecay + batteryReductionPct*(1-outcomeDecay)
		p.AdherenceImpactPct = p.AdherenceImpactPct*outcomeDecay + adherenceImpactPct*(1-outcomeDecay)
		p.UserSatisfaction = p.UserSatisfaction*outcomeDecay + satisfaction*(1-outcomeDecay)
		break
	}
	perf := make(map[string]Performance, len(c.strategies))
	for _, s := range c.strategies {
		perf[s.Name] = s.Performance
	}
	kv := c.kv
	c.mu.Unlock()

	if kv == nil {
		return
	}
	// Persist failures are tolerated; performance is advisory state.
	if data, err := json.Marshal(perf); err == nil {
		_ = kv.Set(ctx, store.KeyStrategies, data)
	}
}
