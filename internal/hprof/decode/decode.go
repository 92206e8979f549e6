// Package decode implements the streaming HPROF record decoder: the header
// reader, the top-level record dispatcher (spec §4.3), and the heap-dump
// sub-record decoder (spec §4.4). Decoded events are delivered to a
// caller-supplied Visitor; nothing here materializes the whole dump.
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mabhi256/gohprof/internal/hprof/buffer"
	"github.com/mabhi256/gohprof/internal/hprof/model"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

// Stats accumulates per-tag counters as a side effect of decoding — pure
// bookkeeping alongside the Visitor's own callbacks, not part of the
// aggregation logic itself (SPEC_FULL.md §4, "supplemented features").
type Stats struct {
	Records    map[tag.Record]int
	SubRecords map[tag.SubRecord]int
}

func newStats() *Stats {
	return &Stats{
		Records:    make(map[tag.Record]int),
		SubRecords: make(map[tag.SubRecord]int),
	}
}

type config struct {
	logger log.Logger
	stats  *Stats
	flags  tag.Flags
}

// Option configures a Read call.
type Option func(*config)

// WithLogger routes decode-time diagnostics through logger instead of
// discarding them. A nil logger keeps the default no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStats populates s with per-tag record and heap sub-record counts as
// decoding progresses. Nil maps in s are allocated on first use.
func WithStats(s *Stats) Option {
	return func(c *config) {
		if s != nil {
			if s.Records == nil {
				s.Records = make(map[tag.Record]int)
			}
			if s.SubRecords == nil {
				s.SubRecords = make(map[tag.SubRecord]int)
			}
		}
		c.stats = s
	}
}

// Read drives a full decode of an HPROF stream: it reads the fixed header,
// then loops over top-level records until end-of-stream, dispatching each
// to v per spec §4.3/§4.4. flags is a tag.Flags bitmask (currently only
// tag.SkipValues is defined).
//
// Read returns nil on a clean end-of-stream at a record boundary (spec
// §7/§8 scenario 6). Any other error — including one returned by a Visitor
// callback — propagates unchanged.
func Read(r io.Reader, v *Visitor, flags tag.Flags, opts ...Option) error {
	cfg := &config{logger: log.NewNopLogger(), flags: flags}
	for _, opt := range opts {
		opt(cfg)
	}
	if v == nil {
		v = &Visitor{}
	}

	buf := buffer.New(r)

	hdr, err := readHeader(buf)
	if err != nil {
		return fmt.Errorf("hprof: reading header: %w", err)
	}
	if hdr.IdentifierSize != 1 && hdr.IdentifierSize != 2 && hdr.IdentifierSize != 4 && hdr.IdentifierSize != 8 {
		return &UnsupportedIdSizeError{Size: hdr.IdentifierSize}
	}
	level.Debug(cfg.logger).Log("msg", "header", "format", hdr.Format, "idSize", hdr.IdentifierSize)

	if v.Header != nil {
		if err := v.Header(hdr.Format, hdr.IdentifierSize, hdr.TimestampMillis); err != nil {
			return err
		}
	}

	idSize := hdr.IdentifierSize

	for {
		tagByte, err := buf.U8()
		if err != nil {
			if errors.Is(err, buffer.ErrEndOfStream) {
				return nil // spec §7: normal termination, no partial record started
			}
			return err
		}
		tsDelta, err := buf.U32()
		if err != nil {
			return fmt.Errorf("hprof: truncated record frame (tsDelta): %w", err)
		}
		length, err := buf.U32()
		if err != nil {
			return fmt.Errorf("hprof: truncated record frame (length): %w", err)
		}
		t := tag.Record(tagByte)
		recordEnd := buf.TotalConsumed() + int64(length)

		if cfg.stats != nil {
			cfg.stats.Records[t]++
		}
		level.Debug(cfg.logger).Log("msg", "record", "tag", t, "tsDelta", tsDelta, "length", length)

		if !v.wantsRecord(t, tsDelta, length) {
			if err := buf.Skip(int(length)); err != nil {
				return err
			}
		} else if err := dispatchRecord(buf, v, cfg, idSize, t, tsDelta, length); err != nil {
			return fmt.Errorf("hprof: parsing %s record: %w", t, err)
		}

		if got := buf.TotalConsumed(); got != recordEnd {
			return &PositionMismatchError{Tag: t, Expected: recordEnd, Actual: got}
		}
	}
}

func readHeader(buf *buffer.Buffer) (model.Header, error) {
	banner, err := buf.Take(0)
	if err != nil {
		return model.Header{}, err
	}
	idSize, err := buf.U32()
	if err != nil {
		return model.Header{}, err
	}
	tsMillis, err := buf.U64()
	if err != nil {
		return model.Header{}, err
	}
	return model.Header{
		Format:          string(banner),
		IdentifierSize:  idSize,
		TimestampMillis: tsMillis,
	}, nil
}
