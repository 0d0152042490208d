package engine

import (
	"path/filepath"
	"strings"
)

// Paths are the files written next to an input file
type Paths struct {
	Signal      string // <stem>_modulated.bin
	Parameters  string // <stem>_modulatedSignalParameters.csv
	Demodulated string // <stem>_demodulated<ext>
	Report      string // <stem>_comparisonReport.txt
}

// OutputPaths derives the output file names for input
func OutputPaths(input string) Paths {
	dir := filepath.Dir(input)
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)

	return Paths{
		Signal:      filepath.Join(dir, stem+"_modulated.bin"),
		Parameters:  filepath.Join(dir, stem+"_modulatedSignalParameters.csv"),
		Demodulated: filepath.Join(dir, stem+"_demodulated"+ext),
		Report:      filepath.Join(dir, stem+"_comparisonReport.txt"),
	}
}
