// Package sizeutil provides a human-readable byte-size type used when
// rendering aggregator entries, adapted from the teacher repository's
// generic memory-size formatter for the estimated sizes slurp produces.
package sizeutil

import "fmt"

// Bytes is a size in bytes with a human-readable String().
type Bytes int64

const (
	B  Bytes = 1
	KB Bytes = 1024 * B
	MB Bytes = 1024 * KB
	GB Bytes = 1024 * MB
)

// String renders b using the largest unit that keeps the value >= 1, e.g.
// "1.50KB". Negative values (the aggregator's "unknown size" sentinel) print
// as "unknown".
func (b Bytes) String() string {
	if b < 0 {
		return "unknown"
	}
	if b == 0 {
		return "0B"
	}

	format := func(val float64, unit string) string {
		if val == float64(int64(val)) {
			return fmt.Sprintf("%.0f%s", val, unit)
		}
		return fmt.Sprintf("%.2f%s", val, unit)
	}

	switch {
	case b >= GB:
		return format(float64(b)/float64(GB), "GB")
	case b >= MB:
		return format(float64(b)/float64(MB), "MB")
	case b >= KB:
		return format(float64(b)/float64(KB), "KB")
	default:
		return fmt.Sprintf("%dB", int64(b))
	}
}
