// Package channel simulates an additive white Gaussian noise channel.
package channel

import (
	"math"
)

// Source is a uniform random source returning values in [0, 1).
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// LinearSNR converts a signal-to-noise ratio in dB to a power ratio.
func LinearSNR(snrDB float64) float64 {
	return math.Pow(10, snrDB/10)
}

// NoiseAmplitude returns the per-component standard deviation for the given
// SNR, assuming unit signal power: sqrt((1/snr) / 2).
func NoiseAmplitude(snrDB float64) float64 {
	noisePower := 1 / LinearSNR(snrDB)
	return math.Sqrt(noisePower / 2)
}

// BoxMuller draws one standard normal deviate from two uniform draws. The
// draws are mapped to (0, 1] so the logarithm never sees zero.
func BoxMuller(rng Source) float64 {
	u1 := 1.0 - rng.Float64()
	u2 := 1.0 - rng.Float64()
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// AddNoise returns a copy of signal with Gaussian noise added independently
// to the real and imaginary part of every symbol. The input is not modified.
// Results are reproducible for a given seeded rng; rng must not be shared
// with other goroutines during the call.
func AddNoise(signal []complex128, snrDB float64, rng Source) []complex128 {
	amplitude := NoiseAmplitude(snrDB)
	noisy := make([]complex128, len(signal))

	for i, symbol := range signal {
		noiseI := amplitude * BoxMuller(rng)
		noiseQ := amplitude * BoxMuller(rng)
		noisy[i] = complex(real(symbol)+noiseI, imag(symbol)+noiseQ)
	}

	return noisy
}
