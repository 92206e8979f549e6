package decode

import (
	"fmt"

	"github.com/mabhi256/gohprof/internal/hprof/buffer"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

// ErrEndOfStream is the normal termination sentinel: the buffer source was
// exhausted exactly at a top-level record boundary (spec §7). errors.Is
// against this to distinguish clean termination from a truncated stream.
//
// This is buffer.ErrEndOfStream itself, not a wrapper: Read turns it into a
// nil error at a clean record boundary (spec §7), and when a partial record
// was in flight lets it propagate, either as is or wrapped via %w, so
// errors.Is works either way against this single sentinel.
var ErrEndOfStream = buffer.ErrEndOfStream

// UnsupportedIdSizeError is raised when the header declares an identifier
// width outside {1, 2, 4, 8} (spec §3, §4.2).
type UnsupportedIdSizeError struct {
	Size uint32
}

func (e *UnsupportedIdSizeError) Error() string {
	return fmt.Sprintf("hprof: unsupported identifier size: %d", e.Size)
}

// UnsupportedTypeError is raised when a field/element/value type code is
// not one of the ten defined codes (spec §4.2, §6).
type UnsupportedTypeError struct {
	Type tag.FieldType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("hprof: unsupported value type: 0x%02x", byte(e.Type))
}

// UnsupportedHeapSubRecordError is raised when a heap-dump body contains a
// sub-record tag outside the closed set in spec §6.
type UnsupportedHeapSubRecordError struct {
	Tag    tag.SubRecord
	Offset int64
}

func (e *UnsupportedHeapSubRecordError) Error() string {
	return fmt.Sprintf("hprof: unsupported heap sub-record %s at offset %d", e.Tag, e.Offset)
}

// BufferUnderflowError is raised when the running sum of consumed
// sub-record bytes inside a HEAP_DUMP/HEAP_DUMP_SEGMENT body does not equal
// the record's declared length exactly (spec §4.4, §7).
type BufferUnderflowError struct {
	Declared int64
	Consumed int64
}

func (e *BufferUnderflowError) Error() string {
	if e.Consumed > e.Declared {
		return fmt.Sprintf("hprof: buffer underflow: sub-records overshot declared length %d by %d bytes",
			e.Declared, e.Consumed-e.Declared)
	}
	return fmt.Sprintf("hprof: buffer underflow: sub-records undershot declared length %d, consumed %d",
		e.Declared, e.Consumed)
}

// PositionMismatchError guards the supplemented invariant that the cursor
// after parsing a record must land exactly length bytes past the end of the
// record frame (mirrors the teacher's own post-record cursor assertion).
type PositionMismatchError struct {
	Tag      tag.Record
	Expected int64
	Actual   int64
}

func (e *PositionMismatchError) Error() string {
	return fmt.Sprintf("hprof: position mismatch after %s record: expected %d, got %d",
		e.Tag, e.Expected, e.Actual)
}
