package qam

import (
	"errors"
	"testing"
)

func TestParseQAMMode(t *testing.T) {
	tests := map[string]int{
		"qpsk":       2,
		"16qam":      4,
		"16-QAM":     4,
		"1024qam":    10,
		"4096QAM":    12,
		"65536qam":   16,
		"1048576qam": 20,
	}

	for name, want := range tests {
		got, err := ParseQAMMode(name)
		if err != nil {
			t.Errorf("ParseQAMMode(%q) failed: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ParseQAMMode(%q) = %d, expected %d", name, got, want)
		}
	}

	if _, err := ParseQAMMode("8psk"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for unknown mode, got %v", err)
	}
}

func TestQAMModesOrdered(t *testing.T) {
	modes := QAMModes()
	if len(modes) != len(namedModes) {
		t.Fatalf("Expected %d modes, got %d", len(namedModes), len(modes))
	}
	for i := 1; i < len(modes); i++ {
		if namedModes[modes[i-1]] > namedModes[modes[i]] {
			t.Errorf("Modes out of order: %s before %s", modes[i-1], modes[i])
		}
	}
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		keyword string
		want    Operation
	}{
		{"modular", OpModulate},
		{"Modulate", OpModulate},
		{" demodular ", OpDemodulate},
		{"DEMODULATE", OpDemodulate},
	}

	for _, tt := range tests {
		got, err := ParseOperation(tt.keyword)
		if err != nil {
			t.Errorf("ParseOperation(%q) failed: %v", tt.keyword, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOperation(%q) = %v, expected %v", tt.keyword, got, tt.want)
		}
	}

	if _, err := ParseOperation("encode"); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("Expected ErrUnsupportedMode, got %v", err)
	}
}
