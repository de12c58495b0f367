package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nathoo/ifkit/engine/constraints"
	"github.com/nathoo/ifkit/engine/events"
	"github.com/nathoo/ifkit/engine/save"
	"github.com/nathoo/ifkit/engine/state"
)

// Snapshot captures the session for saving.
func (s *Session) Snapshot() *save.Data {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &save.Data{
		Version:    save.Version,
		Session:    s.id,
		Moves:      s.moves,
		Instances:  []save.Instance{},
		Facts:      s.world.Facts(),
		CommandLog: append([]string{}, s.cmdLog...),
		RNG:        &save.RNG{Seed: s.rng.Seed(), Position: s.rng.Position()},
	}
	for _, id := range s.world.Instances() {
		typ, _ := s.world.TypeOf(id)
		d.Instances = append(d.Instances, save.Instance{ID: id, Type: typ})
	}
	return d
}

// Restore replaces the session state with a snapshot. The snapshot is
// checked against the model first; on any error the session is unchanged.
func (s *Session) Restore(d *save.Data) error {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	w := state.New()
	for _, in := range d.Instances {
		if err := s.declare(w, in.ID, in.Type); err != nil {
			return fmt.Errorf("restoring: %w", err)
		}
	}
	for _, f := range d.Facts {
		if err := s.checkFact(w, f); err != nil {
			return fmt.Errorf("restoring: %w", err)
		}
		w.Add(f)
	}
	if vs := constraints.CheckAll(s.m, w); len(vs) > 0 {
		return fmt.Errorf("restoring: %w: %s", ErrIllegalWorld, describeViolations(vs))
	}

	s.world = w
	s.moves = d.Moves
	s.cmdLog = append([]string{}, d.CommandLog...)
	s.last = nil
	if d.Session != "" && d.Session != s.id {
		s.id = d.Session
		s.logger = s.logger.With(zap.String("restored_session", d.Session))
	}
	if d.RNG != nil {
		s.rng = RestoreRNG(d.RNG.Seed, d.RNG.Position)
	}
	s.metrics.SetWorldFacts(w.Len())
	s.publish(events.Event{Kind: events.Restored, Added: w.Facts()})
	return nil
}
