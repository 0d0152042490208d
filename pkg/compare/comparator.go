// Package compare measures how faithfully a byte buffer was recovered.
package compare

import (
	"fmt"
	"io"
	"os"
)

// Report summarizes a byte-wise comparison between an original buffer and a
// recovered one.
type Report struct {
	OriginalLength  int     `json:"original_length"`
	RecoveredLength int     `json:"recovered_length"`
	Mismatches      int     `json:"mismatches"`
	MatchPercentage float64 `json:"match_percentage"`
}

// Compare counts differing bytes over the common prefix and treats every
// byte past the shorter buffer as a mismatch. The match percentage is
// relative to the longer buffer; it is 0 when both buffers are empty.
func Compare(original, recovered []byte) Report {
	minLen, maxLen := len(original), len(recovered)
	if minLen > maxLen {
		minLen, maxLen = maxLen, minLen
	}

	mismatches := 0
	for i := 0; i < minLen; i++ {
		if original[i] != recovered[i] {
			mismatches++
		}
	}
	mismatches += maxLen - minLen

	report := Report{
		OriginalLength:  len(original),
		RecoveredLength: len(recovered),
		Mismatches:      mismatches,
	}
	if maxLen > 0 {
		report.MatchPercentage = float64(maxLen-mismatches) / float64(maxLen) * 100
	}
	return report
}

// Matches reports whether the buffers were identical.
func (r Report) Matches() bool {
	return r.Mismatches == 0 && r.OriginalLength == r.RecoveredLength
}

// String returns the percentage with two decimals, e.g. "66.67%".
func (r Report) String() string {
	return fmt.Sprintf("%.2f%%", r.MatchPercentage)
}

// WriteTo writes the plain text report.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"Data Comparison Report\n"+
			"Original Data Length: %d\n"+
			"Recovered Data Length: %d\n"+
			"Number of Mismatches: %d\n"+
			"Match Percentage: %s\n",
		r.OriginalLength, r.RecoveredLength, r.Mismatches, r.String())
	return int64(n), err
}

// SaveReport writes the report to path.
func (r Report) SaveReport(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
