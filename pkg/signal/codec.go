// Package signal reads and writes modulated signals.
//
// The binary container is a headerless sequence of 16-byte records, one per
// symbol: the real part then the imaginary part, each an IEEE-754 double in
// little-endian byte order. The symbol count is the stream length / 16.
package signal

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"strconv"

	"github.com/dougsko/qamd/pkg/qam"
)

// RecordSize is the size in bytes of one encoded symbol.
const RecordSize = 16

// CSVHeader is the header row of the parameter export.
var CSVHeader = []string{"Amplitude", "Phase"}

// Codec serializes signals. The zero value rejects streams whose length is
// not a whole number of records.
type Codec struct {
	// DropPartialRecord ignores a trailing incomplete record instead of
	// failing with qam.ErrCorruptSignal.
	DropPartialRecord bool
}

// Write encodes every symbol of signal to w in order.
func (c Codec) Write(w io.Writer, signal []complex128) error {
	bw := bufio.NewWriter(w)
	var record [RecordSize]byte

	for _, s := range signal {
		binary.LittleEndian.PutUint64(record[0:8], math.Float64bits(real(s)))
		binary.LittleEndian.PutUint64(record[8:16], math.Float64bits(imag(s)))
		if _, err := bw.Write(record[:]); err != nil {
			return fmt.Errorf("failed to write symbol: %w", err)
		}
	}

	return bw.Flush()
}

// Read decodes records from r until end of stream.
func (c Codec) Read(r io.Reader) ([]complex128, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read signal: %w", err)
	}
	return c.Decode(data)
}

// Decode decodes an in-memory binary container.
func (c Codec) Decode(data []byte) ([]complex128, error) {
	if extra := len(data) % RecordSize; extra != 0 {
		if !c.DropPartialRecord {
			return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d (%d trailing bytes)",
				qam.ErrCorruptSignal, len(data), RecordSize, extra)
		}
		data = data[:len(data)-extra]
	}

	signal := make([]complex128, len(data)/RecordSize)
	for i := range signal {
		record := data[i*RecordSize : (i+1)*RecordSize]
		re := math.Float64frombits(binary.LittleEndian.Uint64(record[0:8]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(record[8:16]))
		signal[i] = complex(re, im)
	}

	return signal, nil
}

// Encode returns the binary container for signal.
func (c Codec) Encode(signal []complex128) []byte {
	data := make([]byte, len(signal)*RecordSize)
	for i, s := range signal {
		binary.LittleEndian.PutUint64(data[i*RecordSize:], math.Float64bits(real(s)))
		binary.LittleEndian.PutUint64(data[i*RecordSize+8:], math.Float64bits(imag(s)))
	}
	return data
}

// SaveFile writes signal to path, replacing any existing file.
func (c Codec) SaveFile(path string, signal []complex128) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create signal file: %w", err)
	}

	if err := c.Write(f, signal); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads the signal stored at path.
func (c Codec) LoadFile(path string) ([]complex128, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: signal file %s does not exist", qam.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to open signal file: %w", err)
	}
	defer f.Close()

	return c.Read(f)
}

// WriteCSV writes an Amplitude,Phase row for each of the first maxSymbols
// symbols. Phase is in radians. Numbers use the shortest representation that
// round-trips, always with a period as decimal separator.
func (c Codec) WriteCSV(w io.Writer, signal []complex128, maxSymbols int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := 0; i < maxSymbols && i < len(signal); i++ {
		amplitude := cmplx.Abs(signal[i])
		phase := math.Atan2(imag(signal[i]), real(signal[i]))
		row := []string{formatFloat(amplitude), formatFloat(phase)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the parameter export to path.
func (c Codec) SaveCSV(path string, signal []complex128, maxSymbols int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}

	if err := c.WriteCSV(f, signal, maxSymbols); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
