package qam

import "fmt"

// MaxBitsPerSymbol is the widest symbol the packer and constellation accept.
const MaxBitsPerSymbol = 32

func checkWidth(width int) error {
	if width <= 0 || width > MaxBitsPerSymbol {
		return fmt.Errorf("%w: bits per symbol must be in [1, %d], got %d", ErrInvalidParameter, MaxBitsPerSymbol, width)
	}
	return nil
}

// SymbolCount returns ceil(len(data)*8 / width).
func SymbolCount(byteCount, width int) int {
	if width <= 0 {
		return 0
	}
	return (byteCount*8 + width - 1) / width
}

// Pack splits data into width-bit groups, most significant bit first.
// A final group that runs past the end of data is zero padded on the right.
func Pack(data []byte, width int) ([]int, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}

	values := make([]int, SymbolCount(len(data), width))
	packInto(values, data, width)
	return values, nil
}

// packInto fills values, which must hold SymbolCount(len(data), width)
// entries, with the groups of data.
func packInto(values []int, data []byte, width int) {
	totalBits := len(data) * 8
	for i := range values {
		start := i * width
		value := 0
		for j := 0; j < width; j++ {
			value <<= 1
			pos := start + j
			if pos < totalBits {
				value |= int(data[pos/8]>>(7-pos%8)) & 1
			}
		}
		values[i] = value
	}
}

// Unpack expands every value into exactly width bits, most significant bit
// first, and packs the concatenated bits 8 per byte. Unused low-order bits of
// the last byte are zero. Only the low width bits of a value are used, so
// out-of-range values decoded under noise still produce width bits each.
func Unpack(values []int, width int) ([]byte, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}

	totalBits := len(values) * width
	out := make([]byte, (totalBits+7)/8)

	pos := 0
	for _, v := range values {
		for i := width - 1; i >= 0; i-- {
			if (v>>uint(i))&1 == 1 {
				out[pos/8] |= 1 << uint(7-pos%8)
			}
			pos++
		}
	}

	return out, nil
}
