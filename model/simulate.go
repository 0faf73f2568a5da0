package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

// Simulate draws n events from the model. The first block samples the deep
// truth; every later block, in order, adds its columns and may lower the
// acceptance probability. Rejection happens once, at the end, so each block
// works on a table of fixed size. The current data is left untouched.
func (s *Source) Simulate(n int, p Params, fix FixTruth) (*EventTable, error) {
	if n <= 0 {
		return nil, fmt.Errorf("number of events to simulate must be positive, got %d", n)
	}
	if err := checkParams(s.cfg.defaults, p); err != nil {
		return nil, err
	}
	t, err := s.RandomTruth(n, fix)
	if err != nil {
		return nil, err
	}

	t.Fill(AcceptanceColumn, 1)
	for i, bb := range s.blocks[1:] {
		sc := &SimContext{Table: t, Params: p, Rand: s.rng.ForSubsystem(SubsystemBlock(i + 1)), src: s}
		if err := bb.simulate(sc); err != nil {
			return nil, err
		}
	}

	kept, err := FilterAccepted(t, s.rng.ForSubsystem(SubsystemAcceptance))
	if err != nil {
		return nil, err
	}
	if kept.Len() == 0 {
		logrus.Warnf("simulation rejected all %d events", n)
	} else {
		logrus.Debugf("simulation kept %d of %d events", kept.Len(), n)
	}
	return kept, nil
}

// RandomTruth asks the first block for n events of deep truth, honouring
// fix for the dimensions it pins.
func (s *Source) RandomTruth(n int, fix FixTruth) (*EventTable, error) {
	first := s.blocks[0]
	sampler, ok := first.block.(TruthSampler)
	if !ok {
		return nil, configErrorf("first block %s cannot sample the initial dimensions", first.name)
	}
	if len(fix) > 0 {
		if v, ok := first.block.(TruthValidator); ok {
			if err := v.ValidateFixTruth(fix); err != nil {
				return nil, fmt.Errorf("fix truth for %s: %w", first.name, err)
			}
		}
	}
	t, err := sampler.RandomTruth(n, fix, s.rng.ForSubsystem(SubsystemTruth))
	if err != nil {
		return nil, fmt.Errorf("random truth of %s: %w", first.name, err)
	}
	if t == nil || t.Len() != n {
		return nil, contractErrorf(first.name, "simulate", "random truth must hold %d events", n)
	}
	if err := first.checkSimulated(t); err != nil {
		return nil, err
	}
	return t, nil
}

// FilterAccepted keeps the rows whose uniform draw from rng is below their
// acceptance probability. One draw is consumed per row, in row order.
func FilterAccepted(t *EventTable, rng *rand.Rand) (*EventTable, error) {
	acc, err := t.MustColumn(AcceptanceColumn)
	if err != nil {
		return nil, err
	}
	keep := make([]bool, len(acc))
	for i, p := range acc {
		keep[i] = rng.Float64() < p
	}
	return t.Filter(keep)
}
