package qam

import (
	"fmt"
	"math"
	"math/cmplx"
)

// DefaultRotationDegrees is the historical rotation applied to every point
// on encode. Decode applies the inverse rotation before lattice recovery.
const DefaultRotationDegrees = 10.0

// Constellation maps symbol values in [0, Order()) onto a centered square
// lattice with unit spacing, rotated by a fixed angle.
//
// Before rotation both coordinates lie in {-side/2+0.5, ..., side/2-0.5}.
// A Constellation is immutable and safe for concurrent use.
type Constellation struct {
	bitsPerSymbol   int
	side            int
	offset          float64 // side/2 - 0.5
	rotationDegrees float64
	forward         complex128
	inverse         complex128
	saturate        bool
}

// NewConstellation builds the square constellation for bitsPerSymbol bits.
// bitsPerSymbol must be positive and even so that the order is a perfect
// square. When saturate is set, Decode clamps lattice coordinates into range
// instead of letting out-of-lattice points produce out-of-range values.
func NewConstellation(bitsPerSymbol int, rotationDegrees float64, saturate bool) (*Constellation, error) {
	if err := checkWidth(bitsPerSymbol); err != nil {
		return nil, err
	}
	if bitsPerSymbol%2 != 0 {
		return nil, fmt.Errorf("%w: bits per symbol must be even for a square constellation, got %d", ErrInvalidParameter, bitsPerSymbol)
	}
	if math.IsNaN(rotationDegrees) || math.IsInf(rotationDegrees, 0) {
		return nil, fmt.Errorf("%w: rotation must be finite, got %v", ErrInvalidParameter, rotationDegrees)
	}

	side := 1 << uint(bitsPerSymbol/2)
	radians := rotationDegrees * math.Pi / 180

	return &Constellation{
		bitsPerSymbol:   bitsPerSymbol,
		side:            side,
		offset:          float64(side)/2 - 0.5,
		rotationDegrees: rotationDegrees,
		forward:         cmplx.Rect(1, radians),
		inverse:         cmplx.Rect(1, -radians),
		saturate:        saturate,
	}, nil
}

// BitsPerSymbol returns the number of bits carried by each point.
func (c *Constellation) BitsPerSymbol() int {
	return c.bitsPerSymbol
}

// Order returns the number of points, 2^BitsPerSymbol.
func (c *Constellation) Order() int {
	return c.side * c.side
}

// Side returns the number of lattice columns (and rows).
func (c *Constellation) Side() int {
	return c.side
}

// RotationDegrees returns the rotation applied on encode.
func (c *Constellation) RotationDegrees() float64 {
	return c.rotationDegrees
}

// Encode maps a symbol value in [0, Order()) to its rotated lattice point.
// The low coordinate comes from value mod side, the high one from value / side.
func (c *Constellation) Encode(value int) complex128 {
	re := float64(value%c.side) - c.offset
	im := float64(value/c.side) - c.offset
	return complex(re, im) * c.forward
}

// Decode undoes the rotation and returns the value of the nearest lattice
// point. Without saturation a point far outside the lattice decodes to a
// value outside [0, Order()); that value is returned as is.
func (c *Constellation) Decode(point complex128) int {
	p := point * c.inverse
	re := math.Round(real(p) + c.offset)
	im := math.Round(imag(p) + c.offset)

	if c.saturate {
		re = clamp(re, 0, float64(c.side-1))
		im = clamp(im, 0, float64(c.side-1))
	}

	return int(im)*c.side + int(re)
}

// Points returns every constellation point indexed by symbol value.
func (c *Constellation) Points() []complex128 {
	points := make([]complex128, c.Order())
	for v := range points {
		points[v] = c.Encode(v)
	}
	return points
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
