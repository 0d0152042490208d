package compare

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name       string
		original   []byte
		recovered  []byte
		mismatches int
		percentage string
	}{
		{"one differing byte", []byte{1, 2, 3}, []byte{1, 2, 4}, 1, "66.67%"},
		{"recovered longer", []byte{1, 2}, []byte{1, 2, 3}, 1, "66.67%"},
		{"recovered shorter", []byte{1, 2, 3, 4}, []byte{1, 2}, 2, "50.00%"},
		{"identical", []byte("hello"), []byte("hello"), 0, "100.00%"},
		{"all different", []byte{0, 0}, []byte{1, 1}, 2, "0.00%"},
		{"both empty", nil, nil, 0, "0.00%"},
		{"original empty", nil, []byte{9}, 1, "0.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Compare(tt.original, tt.recovered)
			if r.Mismatches != tt.mismatches {
				t.Errorf("Expected %d mismatches, got %d", tt.mismatches, r.Mismatches)
			}
			if r.String() != tt.percentage {
				t.Errorf("Expected %s, got %s", tt.percentage, r.String())
			}
			if r.OriginalLength != len(tt.original) || r.RecoveredLength != len(tt.recovered) {
				t.Errorf("Unexpected lengths %d/%d", r.OriginalLength, r.RecoveredLength)
			}
		})
	}
}

func TestReportMatches(t *testing.T) {
	if !Compare([]byte{1, 2}, []byte{1, 2}).Matches() {
		t.Error("Identical buffers should match")
	}
	if Compare([]byte{1, 2}, []byte{1, 2, 0}).Matches() {
		t.Error("Length difference should not match")
	}
}

func TestReportWriteTo(t *testing.T) {
	var buf bytes.Buffer
	r := Compare([]byte{1, 2, 3}, []byte{1, 2, 4})
	if _, err := r.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	want := "Data Comparison Report\n" +
		"Original Data Length: 3\n" +
		"Recovered Data Length: 3\n" +
		"Number of Mismatches: 1\n" +
		"Match Percentage: 66.67%\n"
	if buf.String() != want {
		t.Errorf("Unexpected report:\n%s", buf.String())
	}
}

func TestSaveReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	r := Compare([]byte{1, 2}, []byte{1, 2, 3})
	if err := r.SaveReport(path); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !bytes.Contains(data, []byte("Number of Mismatches: 1\n")) {
		t.Errorf("Report missing mismatch line:\n%s", data)
	}
	if !bytes.Contains(data, []byte("Match Percentage: 66.67%\n")) {
		t.Errorf("Report missing percentage line:\n%s", data)
	}
}
