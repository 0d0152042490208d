// Package analysis computes quality metrics for modulated signals.
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/dougsko/qamd/pkg/qam"
)

// spectrumFloorDB is reported for bins with zero energy.
const spectrumFloorDB = -200.0

// Stats describes a signal on its own.
type Stats struct {
	Symbols         int     `json:"symbols"`
	AveragePower    float64 `json:"average_power"`
	PeakAmplitude   float64 `json:"peak_amplitude"`
	PeakToAverageDB float64 `json:"peak_to_average_db"`
}

// Summarize computes Stats for signal.
func Summarize(signal []complex128) Stats {
	stats := Stats{
		Symbols:       len(signal),
		AveragePower:  AveragePower(signal),
		PeakAmplitude: PeakAmplitude(signal),
	}
	if stats.AveragePower > 0 {
		stats.PeakToAverageDB = 10 * math.Log10(stats.PeakAmplitude*stats.PeakAmplitude/stats.AveragePower)
	}
	return stats
}

// AveragePower returns the mean of |s|^2.
func AveragePower(signal []complex128) float64 {
	if len(signal) == 0 {
		return 0
	}
	var sum float64
	for _, s := range signal {
		sum += power(s)
	}
	return sum / float64(len(signal))
}

// PeakAmplitude returns the largest |s|.
func PeakAmplitude(signal []complex128) float64 {
	var peak float64
	for _, s := range signal {
		if a := cmplx.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

func checkLengths(ref, rx []complex128) error {
	if len(ref) != len(rx) {
		return fmt.Errorf("%w: signal lengths differ (%d vs %d)", qam.ErrInvalidParameter, len(ref), len(rx))
	}
	if len(ref) == 0 {
		return fmt.Errorf("%w: empty signal", qam.ErrInvalidParameter)
	}
	return nil
}

// MeanSquaredError returns the mean of |rx-ref|^2.
func MeanSquaredError(ref, rx []complex128) (float64, error) {
	if err := checkLengths(ref, rx); err != nil {
		return 0, err
	}
	var sum float64
	for i := range ref {
		sum += power(rx[i] - ref[i])
	}
	return sum / float64(len(ref)), nil
}

// AmplitudeMSE returns the mean squared difference of symbol magnitudes.
func AmplitudeMSE(ref, rx []complex128) (float64, error) {
	if err := checkLengths(ref, rx); err != nil {
		return 0, err
	}
	var sum float64
	for i := range ref {
		d := cmplx.Abs(rx[i]) - cmplx.Abs(ref[i])
		sum += d * d
	}
	return sum / float64(len(ref)), nil
}

// EVM returns the RMS error vector magnitude in percent of the reference RMS.
func EVM(ref, rx []complex128) (float64, error) {
	mse, err := MeanSquaredError(ref, rx)
	if err != nil {
		return 0, err
	}
	refPower := AveragePower(ref)
	if refPower == 0 {
		return 0, fmt.Errorf("%w: reference signal has no power", qam.ErrInvalidParameter)
	}
	return math.Sqrt(mse/refPower) * 100, nil
}

// EffectiveSNR returns the SNR in dB seen by rx relative to unit signal
// power, the convention channel.AddNoise uses.
func EffectiveSNR(ref, rx []complex128) (float64, error) {
	mse, err := MeanSquaredError(ref, rx)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return -10 * math.Log10(mse), nil
}

// PowerSpectrum returns the Hann-windowed power spectrum in dB of the first
// size symbols. size <= 0 or larger than the signal uses the whole signal.
func PowerSpectrum(signal []complex128, size int) []float64 {
	if size <= 0 || size > len(signal) {
		size = len(signal)
	}
	if size == 0 {
		return nil
	}

	win := window.Hann(size)
	frame := make([]complex128, size)
	for i := range frame {
		frame[i] = signal[i] * complex(win[i], 0)
	}

	bins := fft.FFT(frame)
	spectrum := make([]float64, size)
	for i, b := range bins {
		p := power(b) / float64(size)
		if p > 0 {
			spectrum[i] = 10 * math.Log10(p)
		} else {
			spectrum[i] = spectrumFloorDB
		}
	}
	return spectrum
}

// PeakBin returns the index of the strongest spectrum bin, or -1.
func PeakBin(spectrum []float64) int {
	peak := -1
	for i, v := range spectrum {
		if peak < 0 || v > spectrum[peak] {
			peak = i
		}
	}
	return peak
}

func power(s complex128) float64 {
	return real(s)*real(s) + imag(s)*imag(s)
}
