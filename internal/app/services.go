package app

import (
	"context"
	"fmt"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/config"
	"github.com/lazylmf-ai/powersched/internal/doze"
	"github.com/lazylmf-ai/powersched/internal/energy"
	"github.com/lazylmf-ai/powersched/internal/optimizer"
	"github.com/lazylmf-ai/powersched/internal/output"
	"github.com/lazylmf-ai/powersched/internal/store"
	"github.com/lazylmf-ai/powersched/internal/strategy"
)

// services wires the scheduler components for one command invocation.
// Everything is constructed explicitly here and passed by reference;
// there is no ambient global state.
type services struct {
	cfg        *config.Config
	db         *store.DB
	probe      *battery.SimProbe
	supervisor *battery.Supervisor
	gate       *doze.Gate
	energy     *energy.Store
	catalog    *strategy.Catalog
	optimizer  *optimizer.Optimizer
}

// buildServices loads config, opens the database, and constructs the
// component graph around a simulated battery probe seeded with the
// given reading.
func buildServices(ctx context.Context, level float64, state battery.ChargeState, lowPower bool) (*services, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flagNoColor {
		output.SetNoColor(true)
	}

	db, err := store.Open(config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	probe := battery.NewSimProbe(level, state, lowPower)
	supervisor := battery.NewSupervisor(cfg.Battery, probe, cfg.History.Limit)
	supervisor.OnTransition(func(t battery.Transition) {
		_ = db.InsertLevelTransition(&store.LevelTransition{
			ChangedAt: t.At,
			FromLevel: string(t.From),
			ToLevel:   string(t.To),
			Reason:    t.Reason,
		})
	})

	gate := doze.NewGate(ctx, cfg.Doze, db)
	energyStore := energy.NewStore(db)
	catalog := strategy.NewCatalog(ctx, db)

	opt := optimizer.New(cfg.Scheduler, catalog, energyStore, supervisor).
		WithIdleSource(gate).
		WithOracle(optimizer.FixedRiskOracle(optimizer.DefaultRisk))

	return &services{
		cfg:        cfg,
		db:         db,
		probe:      probe,
		supervisor: supervisor,
		gate:       gate,
		energy:     energyStore,
		catalog:    catalog,
		optimizer:  opt,
	}, nil
}

// Close releases the services' resources.
func (s *services) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}
