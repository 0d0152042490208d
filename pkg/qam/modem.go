package qam

import (
	"golang.org/x/sync/errgroup"
)

// minParallelSymbols is the smallest signal worth splitting across workers.
const minParallelSymbols = 4096

type options struct {
	rotationDegrees float64
	saturate        bool
	workers         int
}

func defaultOptions() options {
	return options{
		rotationDegrees: DefaultRotationDegrees,
		workers:         1,
	}
}

// Option configures a Modulator or Demodulator.
type Option func(*options)

// WithRotation sets the constellation rotation in degrees.
func WithRotation(degrees float64) Option {
	return func(o *options) {
		o.rotationDegrees = degrees
	}
}

// WithSaturation clamps out-of-lattice points to the nearest edge point on
// decode. Off by default.
func WithSaturation(enabled bool) Option {
	return func(o *options) {
		o.saturate = enabled
	}
}

// WithWorkers processes symbols in up to n parallel batches. Output order is
// always the input order.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.workers = n
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Modulator turns byte buffers into sequences of constellation points.
type Modulator struct {
	opts options
}

// NewModulator creates a modulator
func NewModulator(opts ...Option) *Modulator {
	return &Modulator{opts: buildOptions(opts)}
}

// Constellation returns the constellation used for bitsPerSymbol.
func (m *Modulator) Constellation(bitsPerSymbol int) (*Constellation, error) {
	return Lookup(bitsPerSymbol, m.opts.rotationDegrees, false)
}

// Modulate packs data into bitsPerSymbol-bit groups and maps each group to a
// point. The result has ceil(len(data)*8/bitsPerSymbol) symbols.
func (m *Modulator) Modulate(data []byte, bitsPerSymbol int) ([]complex128, error) {
	c, err := m.Constellation(bitsPerSymbol)
	if err != nil {
		return nil, err
	}

	buffer := defaultSymbolPool.get(SymbolCount(len(data), bitsPerSymbol))
	defer buffer.Release()
	values := buffer.values
	packInto(values, data, bitsPerSymbol)

	signal := make([]complex128, len(values))
	forEachBatch(len(values), m.opts.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			signal[i] = c.Encode(values[i])
		}
	})

	return signal, nil
}

// Demodulator recovers byte buffers from sequences of points.
type Demodulator struct {
	opts options
}

// NewDemodulator creates a demodulator
func NewDemodulator(opts ...Option) *Demodulator {
	return &Demodulator{opts: buildOptions(opts)}
}

// Constellation returns the constellation used for bitsPerSymbol.
func (d *Demodulator) Constellation(bitsPerSymbol int) (*Constellation, error) {
	return Lookup(bitsPerSymbol, d.opts.rotationDegrees, d.opts.saturate)
}

// Symbols decodes every point to its symbol value.
func (d *Demodulator) Symbols(signal []complex128, bitsPerSymbol int) ([]int, error) {
	c, err := d.Constellation(bitsPerSymbol)
	if err != nil {
		return nil, err
	}

	values := make([]int, len(signal))
	d.decodeInto(values, signal, c)
	return values, nil
}

// Demodulate decodes every point and unpacks the values into bytes. When
// len(signal)*bitsPerSymbol is not a multiple of 8 the last byte is zero
// filled, and padding bits added on modulation come back as trailing zeros.
func (d *Demodulator) Demodulate(signal []complex128, bitsPerSymbol int) ([]byte, error) {
	c, err := d.Constellation(bitsPerSymbol)
	if err != nil {
		return nil, err
	}

	buffer := defaultSymbolPool.get(len(signal))
	defer buffer.Release()
	d.decodeInto(buffer.values, signal, c)

	return Unpack(buffer.values, bitsPerSymbol)
}

func (d *Demodulator) decodeInto(values []int, signal []complex128, c *Constellation) {
	forEachBatch(len(signal), d.opts.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			values[i] = c.Decode(signal[i])
		}
	})
}

// forEachBatch calls fn over contiguous [lo, hi) ranges covering [0, n).
func forEachBatch(n, workers int, fn func(lo, hi int)) {
	if workers <= 1 || n < minParallelSymbols {
		fn(0, n)
		return
	}

	batch := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += batch {
		lo, hi := lo, min(lo+batch, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	// Batches never fail.
	_ = g.Wait()
}
