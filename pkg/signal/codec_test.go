package signal

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dougsko/qamd/pkg/qam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSignal() []complex128 {
	return []complex128{
		complex(1, -2),
		complex(0.5, 0.25),
		complex(math.Copysign(0, -1), 1e-300),
		complex(-1234567.891, math.MaxFloat64),
		complex(math.SmallestNonzeroFloat64, -0.1),
	}
}

func sameBits(t *testing.T, want, got []complex128) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.Float64bits(real(want[i])) != math.Float64bits(real(got[i])) ||
			math.Float64bits(imag(want[i])) != math.Float64bits(imag(got[i])) {
			t.Errorf("symbol %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestBinaryLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Codec{}.Write(&buf, []complex128{complex(1, -2)}))

	want := []byte{
		0, 0, 0, 0, 0, 0, 0xF0, 0x3F, // 1.0
		0, 0, 0, 0, 0, 0, 0x00, 0xC0, // -2.0
	}
	assert.Equal(t, want, buf.Bytes())
	assert.Equal(t, want, Codec{}.Encode([]complex128{complex(1, -2)}))
}

func TestBinaryRoundTrip(t *testing.T) {
	signal := sampleSignal()
	signal = append(signal, complex(math.NaN(), math.Inf(-1)))

	var buf bytes.Buffer
	require.NoError(t, Codec{}.Write(&buf, signal))
	assert.Equal(t, len(signal)*RecordSize, buf.Len())

	got, err := Codec{}.Read(&buf)
	require.NoError(t, err)
	sameBits(t, signal, got)
}

func TestCorruptSignal(t *testing.T) {
	data := Codec{}.Encode(sampleSignal()[:2])
	data = append(data, 0x01, 0x02, 0x03)

	t.Run("Strict", func(t *testing.T) {
		_, err := Codec{}.Decode(data)
		assert.ErrorIs(t, err, qam.ErrCorruptSignal)
	})

	t.Run("Drop Partial Record", func(t *testing.T) {
		got, err := Codec{DropPartialRecord: true}.Decode(data)
		require.NoError(t, err)
		sameBits(t, sampleSignal()[:2], got)
	})

	t.Run("Empty Stream", func(t *testing.T) {
		got, err := Codec{}.Decode(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSignalFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signal_modulated.bin")

	require.NoError(t, Codec{}.SaveFile(path, sampleSignal()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(sampleSignal())*RecordSize), info.Size())

	got, err := Codec{}.LoadFile(path)
	require.NoError(t, err)
	sameBits(t, sampleSignal(), got)

	_, err = Codec{}.LoadFile(filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, qam.ErrMissingInput)
}

func TestWriteCSV(t *testing.T) {
	signal := []complex128{complex(3, 4), complex(-1, 0), complex(0, -2)}

	t.Run("Rows", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Codec{}.WriteCSV(&buf, signal, 500))

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "Amplitude,Phase", lines[0])
		assert.Equal(t, "5,0.9272952180016122", lines[1])
		assert.Equal(t, "1,3.141592653589793", lines[2])
		assert.Equal(t, "2,-1.5707963267948966", lines[3])
	})

	t.Run("Capped", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Codec{}.WriteCSV(&buf, signal, 2))
		assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

		buf.Reset()
		require.NoError(t, Codec{}.WriteCSV(&buf, signal, 0))
		assert.Equal(t, "Amplitude,Phase\n", buf.String())
	})

	t.Run("Idempotent", func(t *testing.T) {
		var a, b bytes.Buffer
		require.NoError(t, Codec{}.WriteCSV(&a, sampleSignal(), 3))
		require.NoError(t, Codec{}.WriteCSV(&b, sampleSignal(), 3))
		assert.Equal(t, a.Bytes(), b.Bytes())
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "params.csv")
		require.NoError(t, Codec{}.SaveCSV(path, signal, 1))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "Amplitude,Phase\n5,0.9272952180016122\n", string(data))
	})
}
