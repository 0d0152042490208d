package qam

import (
	"fmt"
	"sort"
	"strings"
)

// namedModes maps QAM mode names to bits per symbol.
var namedModes = map[string]int{
	"qpsk":       2,
	"4qam":       2,
	"16qam":      4,
	"64qam":      6,
	"256qam":     8,
	"1024qam":    10,
	"4096qam":    12,
	"65536qam":   16,
	"1048576qam": 20,
}

// ParseQAMMode converts a mode name such as "1024qam" to bits per symbol.
func ParseQAMMode(name string) (int, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	bits, ok := namedModes[key]
	if !ok {
		return 0, fmt.Errorf("%w: QAM mode %q is not supported", ErrInvalidParameter, name)
	}
	return bits, nil
}

// QAMModes returns the supported mode names ordered by size.
func QAMModes() []string {
	names := make([]string, 0, len(namedModes))
	for name := range namedModes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		bi, bj := namedModes[names[i]], namedModes[names[j]]
		if bi != bj {
			return bi < bj
		}
		return names[i] < names[j]
	})
	return names
}

// Operation selects the direction of a codec run.
type Operation int

const (
	OpModulate Operation = iota
	OpDemodulate
)

// String returns the canonical operation keyword
func (o Operation) String() string {
	switch o {
	case OpModulate:
		return "modulate"
	case OpDemodulate:
		return "demodulate"
	default:
		return "unknown"
	}
}

// ParseOperation accepts "modular"/"modulate" and "demodular"/"demodulate",
// ignoring case.
func ParseOperation(keyword string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(keyword)) {
	case "modular", "modulate":
		return OpModulate, nil
	case "demodular", "demodulate":
		return OpDemodulate, nil
	default:
		return 0, fmt.Errorf("%w: %q, choose 'modular' or 'demodular'", ErrUnsupportedMode, keyword)
	}
}
