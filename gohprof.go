// Package gohprof is a streaming decoder for the HPROF binary heap-dump
// format produced by the Java HotSpot VM. It never materializes the object
// graph: callers either drive their own Visitor over the record stream, or
// use Slurp to build a per-class/per-array-type size histogram in memory
// bounded by the number of distinct classes, not the number of objects.
package gohprof

import (
	"io"

	"github.com/go-kit/log"

	"github.com/mabhi256/gohprof/internal/hprof/decode"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
	"github.com/mabhi256/gohprof/slurp"
)

// Re-exported so callers never need to import the internal packages
// directly: Go's internal/ visibility rules would forbid it anyway.
type (
	Visitor = decode.Visitor
	Stats   = decode.Stats
	Flags   = tag.Flags
	Option  = decode.Option
	Entry   = slurp.Entry
)

// SkipValues makes the decoder read structural skeletons (ids, types,
// lengths) but discard field/element payload bytes.
const SkipValues Flags = tag.SkipValues

// ErrEndOfStream marks a source that ran out before a read completed. Read
// translates a clean end-of-stream at a record boundary into a nil error
// (spec §7); a stream that ends inside a record makes Read return an error
// that matches ErrEndOfStream under errors.Is.
var ErrEndOfStream = decode.ErrEndOfStream

// WithLogger routes decode-time diagnostics through logger.
func WithLogger(logger log.Logger) Option { return decode.WithLogger(logger) }

// WithStats populates s with per-tag record and heap sub-record counts as
// decoding progresses.
func WithStats(s *Stats) Option { return decode.WithStats(s) }

// Read decodes an HPROF stream from r, delivering events to v. It returns
// nil on clean end-of-stream and propagates any other error, including one
// returned from a Visitor callback, unchanged.
func Read(r io.Reader, v *Visitor, flags Flags, opts ...Option) error {
	return decode.Read(r, v, flags, opts...)
}

// Slurp decodes an HPROF stream from r and returns a size histogram: one
// Entry per distinct class (INSTANCE), per distinct object-array element
// class (OBJ_ARRAY), and per distinct primitive-array element type
// (PRIM_ARRAY), each with an instance count and a Shipilev-style retained
// size estimate.
func Slurp(r io.Reader, opts ...Option) ([]Entry, error) {
	agg := slurp.New()
	if err := decode.Read(r, agg.Visitor(), 0, opts...); err != nil {
		return nil, err
	}
	return agg.Entries(), nil
}
