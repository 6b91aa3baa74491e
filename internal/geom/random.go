package geom

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// DefaultSeed is the root seed used when the configuration leaves it empty.
const DefaultSeed = "lobby"

// DeterministicSeedValue derives a stable per-subsystem seed from the root seed.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG returns an RNG seeded from rootSeed and label so every
// subsystem (and every agent) draws from an independent, reproducible stream.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

var (
	sharedMu  sync.Mutex
	sharedRNG = NewDeterministicRNG(DefaultSeed, "geom")
)

// RandomFloat draws from rng. A nil rng draws from one shared seeded stream.
func RandomFloat(rng *rand.Rand) float64 {
	if rng == nil {
		sharedMu.Lock()
		defer sharedMu.Unlock()
		return sharedRNG.Float64()
	}
	return rng.Float64()
}

// RandomRange draws uniformly from [min, max).
func RandomRange(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + RandomFloat(rng)*(max-min)
}
