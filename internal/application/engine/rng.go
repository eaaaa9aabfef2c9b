package engine

import "math/rand"

// rng.go — aleatoriedad explícita e inyectable.
//
// Toda función no determinista del engine recibe un *rand.Rand sembrado en
// vez de usar el RNG global: runs con el mismo seed son reproducibles en
// tests y en la CLI (-seed).

// NewRNG crea un generador sembrado. Seed 0 es válido y determinista.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Uniform devuelve un valor uniforme en [lo, hi).
func Uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// Chance devuelve true con probabilidad p.
func Chance(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}
