package engine

import "math/rand/v2"

// drawCounter is a PCG source that counts the values it has produced, so
// a generator can be rebuilt at the same point from its seed.
type drawCounter struct {
	pcg   *rand.PCG
	drawn int64
}

func (d *drawCounter) Uint64() uint64 {
	d.drawn++
	return d.pcg.Uint64()
}

// RNG picks commands for the random agent. Its state is fully described by
// (Seed, Position).
type RNG struct {
	seed int64
	src  *drawCounter
	r    *rand.Rand
}

// NewRNG returns a generator seeded with seed.
func NewRNG(seed int64) *RNG {
	src := &drawCounter{pcg: rand.NewPCG(uint64(seed), 0)}
	return &RNG{seed: seed, src: src, r: rand.New(src)}
}

// RestoreRNG rebuilds the generator that was at position after starting
// from seed.
func RestoreRNG(seed, position int64) *RNG {
	g := NewRNG(seed)
	for g.src.drawn < position {
		g.src.Uint64()
	}
	return g
}

// Intn returns a value in [0, n). It panics if n <= 0.
func (r *RNG) Intn(n int) int { return r.r.IntN(n) }

// Seed reports the starting seed.
func (r *RNG) Seed() int64 { return r.seed }

// Position reports how many source values have been drawn.
func (r *RNG) Position() int64 { return r.src.drawn }
