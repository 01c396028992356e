package sim

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/aead/chacha20/chacha"
	"github.com/hhcho/frand"
	"gonum.org/v1/gonum/floats"
)

// Random is a table of independent, seeded PRG streams. Stream GlobalPRG
// draws shared quantities such as the founder panel; stream i belongs to
// individual i, so a population does not depend on how its individuals are
// scheduled.
type Random struct {
	mu       sync.Mutex
	seed     uint64
	prgTable map[int]*frand.RNG
}

const (
	bufferSize int = 1024
	GlobalPRG  int = -1
)

func InitializePRG(seed uint64) *Random {
	return &Random{
		seed:     seed,
		prgTable: make(map[int]*frand.RNG),
	}
}

// PRG returns stream id, creating it on first use. A stream must not be used
// from two goroutines at once.
func (rand *Random) PRG(id int) *frand.RNG {
	rand.mu.Lock()
	defer rand.mu.Unlock()
	if rng, ok := rand.prgTable[id]; ok {
		return rng
	}
	key := make([]byte, chacha.KeySize)
	binary.LittleEndian.PutUint64(key[0:], rand.seed)
	binary.LittleEndian.PutUint64(key[8:], uint64(int64(id)))
	rng := frand.NewCustom(key, bufferSize, 20)
	rand.prgTable[id] = rng
	return rng
}

// uniform draws from [0, 1) with 53 bits of precision.
func uniform(rng *frand.RNG) float64 {
	return float64(rng.Uint64n(1<<53)) / (1 << 53)
}

func bernoulli(rng *frand.RNG, p float64) bool {
	return uniform(rng) < p
}

// permutation returns a uniformly random ordering of 1..n.
func permutation(rng *frand.RNG, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// categorical draws an index with probability proportional to exp(logw).
// It returns -1 if every weight is zero.
func categorical(rng *frand.RNG, logw []float64) int {
	total := floats.LogSumExp(logw)
	if math.IsInf(total, -1) {
		return -1
	}
	u := uniform(rng)
	var acc float64
	last := -1
	for i, lw := range logw {
		if math.IsInf(lw, -1) {
			continue
		}
		acc += math.Exp(lw - total)
		last = i
		if u < acc {
			return i
		}
	}
	return last
}
