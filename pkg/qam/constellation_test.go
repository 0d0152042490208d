package qam

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstellationLattice(t *testing.T) {
	c, err := NewConstellation(4, 0, false)
	require.NoError(t, err)

	assert.Equal(t, 16, c.Order())
	assert.Equal(t, 4, c.Side())

	assert.Equal(t, complex(-1.5, -1.5), c.Encode(0))
	assert.Equal(t, complex(-0.5, -1.5), c.Encode(1))
	assert.Equal(t, complex(-1.5, -0.5), c.Encode(4))
	assert.Equal(t, complex(1.5, 1.5), c.Encode(15))
}

func TestConstellationRotation(t *testing.T) {
	plain, err := NewConstellation(4, 0, false)
	require.NoError(t, err)
	rotated, err := NewConstellation(4, DefaultRotationDegrees, false)
	require.NoError(t, err)

	want := DefaultRotationDegrees * math.Pi / 180
	for v := 0; v < 16; v++ {
		p, r := plain.Encode(v), rotated.Encode(v)
		assert.InDelta(t, cmplx.Abs(p), cmplx.Abs(r), 1e-12, "value %d magnitude", v)

		delta := math.Remainder(cmplx.Phase(r)-cmplx.Phase(p), 2*math.Pi)
		assert.InDelta(t, want, delta, 1e-12, "value %d rotation", v)
	}
}

func TestConstellationBijection(t *testing.T) {
	for bits := 2; bits <= 12; bits += 2 {
		c, err := NewConstellation(bits, DefaultRotationDegrees, false)
		require.NoError(t, err)
		for v := 0; v < c.Order(); v++ {
			if got := c.Decode(c.Encode(v)); got != v {
				t.Fatalf("%d bits: decode(encode(%d)) = %d", bits, v, got)
			}
		}
	}

	// Large orders are sampled with a stride that still hits both edges.
	for _, bits := range []int{16, 20, 32} {
		c, err := NewConstellation(bits, DefaultRotationDegrees, false)
		require.NoError(t, err)
		order := c.Order()
		stride := order/4093 + 1
		for v := 0; v < order; v += stride {
			if got := c.Decode(c.Encode(v)); got != v {
				t.Fatalf("%d bits: decode(encode(%d)) = %d", bits, v, got)
			}
		}
		last := order - 1
		assert.Equal(t, last, c.Decode(c.Encode(last)), "%d bits last point", bits)
	}
}

func TestConstellationDecodeNearest(t *testing.T) {
	c, err := NewConstellation(4, DefaultRotationDegrees, false)
	require.NoError(t, err)

	for v := 0; v < c.Order(); v++ {
		nudged := c.Encode(v) + complex(0.3, -0.3)
		assert.Equal(t, v, c.Decode(nudged), "value %d", v)
	}
}

func TestConstellationOutOfLattice(t *testing.T) {
	t.Run("Not Clamped By Default", func(t *testing.T) {
		c, err := NewConstellation(4, DefaultRotationDegrees, false)
		require.NoError(t, err)

		// Unrotated (10.2, 0.3) lands on column 12, row 2.
		point := complex(10.2, 0.3) * cmplx.Rect(1, DefaultRotationDegrees*math.Pi/180)
		got := c.Decode(point)
		assert.Equal(t, 2*4+12, got)
		assert.GreaterOrEqual(t, got, c.Order())
	})

	t.Run("Saturated", func(t *testing.T) {
		c, err := NewConstellation(4, DefaultRotationDegrees, true)
		require.NoError(t, err)

		point := complex(10.2, 0.3) * cmplx.Rect(1, DefaultRotationDegrees*math.Pi/180)
		assert.Equal(t, 2*4+3, c.Decode(point))

		far := complex(-40.2, -40.3) * cmplx.Rect(1, DefaultRotationDegrees*math.Pi/180)
		assert.Equal(t, 0, c.Decode(far))
	})
}

func TestNewConstellationInvalid(t *testing.T) {
	tests := []struct {
		name     string
		bits     int
		rotation float64
	}{
		{"zero bits", 0, 10},
		{"negative bits", -4, 10},
		{"odd bits", 3, 10},
		{"too many bits", MaxBitsPerSymbol + 2, 10},
		{"nan rotation", 4, math.NaN()},
		{"infinite rotation", 4, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConstellation(tt.bits, tt.rotation, false)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestConstellationPoints(t *testing.T) {
	c, err := NewConstellation(2, DefaultRotationDegrees, false)
	require.NoError(t, err)

	points := c.Points()
	require.Len(t, points, 4)
	for v, p := range points {
		assert.Equal(t, c.Encode(v), p)
		assert.InDelta(t, math.Sqrt(0.5), cmplx.Abs(p), 1e-12)
	}
}

func TestLookupCachesInstances(t *testing.T) {
	a, err := Lookup(6, DefaultRotationDegrees, false)
	require.NoError(t, err)
	b, err := Lookup(6, DefaultRotationDegrees, false)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := Lookup(6, DefaultRotationDegrees, true)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	_, err = Lookup(5, DefaultRotationDegrees, false)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
