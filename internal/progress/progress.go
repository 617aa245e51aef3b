// Package progress recognizes the progress lines of the synchronization tool,
// e.g. rsync --info=progress2 output:
//
//	1.2MB  45%  3.4MB/s  0:00:12
package progress

import (
	"strconv"
	"strings"
)

type Progress struct {
	Size       string  // transferred so far, as printed
	Percentage float64 // 0.0 - 1.0
	Speed      string
	ETA        string
}

// Parse returns a progress and true if line is a progress line.
// It's pure, so it is safe for every output line and every goroutine.
func Parse(line string) (Progress, bool) {
	tokens := strings.Fields(line)
	if len(tokens) < 4 {
		return Progress{}, false
	}
	if !strings.Contains(tokens[1], "%") ||
		!strings.Contains(tokens[2], "/") ||
		!strings.Contains(tokens[3], ":") {
		return Progress{}, false
	}

	before, _, _ := strings.Cut(tokens[1], "%")
	pct, err := strconv.Atoi(before)
	if err != nil {
		return Progress{}, false
	}

	return Progress{
		Size:       tokens[0],
		Percentage: float64(pct) / 100.0,
		Speed:      tokens[2],
		ETA:        tokens[3],
	}, true
}
