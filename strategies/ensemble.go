package strategies

import (
	"github.com/lzjiangjeff/automated-trader/market"
)

// EnsembleConfig parameterizes the weighted strategy ensemble.
type EnsembleConfig struct {
	Enabled bool `yaml:"enabled"`

	// Weights by strategy name ("trend_ema", "breakout_momentum", ...).
	Weights map[string]float64 `yaml:"weights"`

	// ConsensusThreshold is the normalized weighted sum a bar must exceed
	// before the ensemble commits to a direction.
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
}

func defaultEnsemble() EnsembleConfig {
	return EnsembleConfig{ConsensusThreshold: 0.2}
}

// Ensemble combines member strategies' signals by weighted sum. Weights are
// normalized across the members that actually produced a series, then the
// continuous belief is collapsed back to ternary at the consensus threshold.
type Ensemble struct {
	cfg     EnsembleConfig
	members []Strategy
}

func NewEnsemble(cfg EnsembleConfig, members []Strategy) *Ensemble {
	if cfg.ConsensusThreshold <= 0 {
		cfg.ConsensusThreshold = 0.2
	}
	return &Ensemble{cfg: cfg, members: members}
}

func (s *Ensemble) Name() string { return "ensemble" }

func (s *Ensemble) GenerateSignals(t *market.Table, ctx market.Context) ([]Signal, error) {
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	combined := make([]float64, t.Len())
	totalWeight := 0.0

	for _, m := range s.members {
		if IsOverlay(m) {
			continue
		}
		w := s.cfg.Weights[m.Name()]
		if w <= 0 {
			continue
		}
		sigs, err := m.GenerateSignals(t, ctx)
		if err != nil {
			// A failing member drops out of this run; the rest still vote.
			continue
		}
		for i, sig := range sigs {
			combined[i] += float64(sig) * w
		}
		totalWeight += w
	}

	out := neutralSeries(t.Len())
	if totalWeight == 0 {
		return out, nil
	}
	for i := range combined {
		belief := combined[i] / totalWeight
		switch {
		case belief > s.cfg.ConsensusThreshold:
			out[i] = Long
		case belief < -s.cfg.ConsensusThreshold:
			out[i] = Short
		}
	}
	return out, nil
}
