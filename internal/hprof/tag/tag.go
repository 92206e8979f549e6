// Package tag defines the closed tag spaces, element-type codes, and
// configuration flags that make up the HPROF wire format.
package tag

import "fmt"

// Record identifies a top-level HPROF record.
type Record byte

const (
	UTF8             Record = 0x01
	LoadClass        Record = 0x02
	UnloadClass      Record = 0x03
	Frame            Record = 0x04
	Trace            Record = 0x05
	AllocSites       Record = 0x06
	HeapSummary      Record = 0x07
	StartThread      Record = 0x0A
	EndThread        Record = 0x0B
	HeapDump         Record = 0x0C
	CPUSamples       Record = 0x0D
	ControlSettings  Record = 0x0E
	HeapDumpSegment  Record = 0x1C
	HeapDumpEnd      Record = 0x2C
)

func (r Record) String() string {
	switch r {
	case UTF8:
		return "UTF8"
	case LoadClass:
		return "LOAD_CLASS"
	case UnloadClass:
		return "UNLOAD_CLASS"
	case Frame:
		return "FRAME"
	case Trace:
		return "TRACE"
	case AllocSites:
		return "ALLOC_SITES"
	case HeapSummary:
		return "HEAP_SUMMARY"
	case StartThread:
		return "START_THREAD"
	case EndThread:
		return "END_THREAD"
	case HeapDump:
		return "HEAP_DUMP"
	case CPUSamples:
		return "CPU_SAMPLES"
	case ControlSettings:
		return "CONTROL_SETTINGS"
	case HeapDumpSegment:
		return "HEAP_DUMP_SEGMENT"
	case HeapDumpEnd:
		return "HEAP_DUMP_END"
	default:
		return fmt.Sprintf("Record(0x%02X)", byte(r))
	}
}

// SubRecord identifies a sub-record inside a HEAP_DUMP/HEAP_DUMP_SEGMENT body.
type SubRecord byte

const (
	GCRootUnknown     SubRecord = 0xFF
	GCRootJNIGlobal   SubRecord = 0x01
	GCRootJNILocal    SubRecord = 0x02
	GCRootJavaFrame   SubRecord = 0x03
	GCRootNativeStack SubRecord = 0x04
	GCRootStickyClass SubRecord = 0x05
	GCRootThreadBlock SubRecord = 0x06
	GCRootMonitorUsed SubRecord = 0x07
	GCRootThreadObj   SubRecord = 0x08
	GCClassDump       SubRecord = 0x20
	GCInstanceDump    SubRecord = 0x21
	GCObjArrayDump    SubRecord = 0x22
	GCPrimArrayDump   SubRecord = 0x23
)

func (s SubRecord) String() string {
	switch s {
	case GCRootUnknown:
		return "GC_ROOT_UNKNOWN"
	case GCRootJNIGlobal:
		return "GC_ROOT_JNI_GLOBAL"
	case GCRootJNILocal:
		return "GC_ROOT_JNI_LOCAL"
	case GCRootJavaFrame:
		return "GC_ROOT_JAVA_FRAME"
	case GCRootNativeStack:
		return "GC_ROOT_NATIVE_STACK"
	case GCRootStickyClass:
		return "GC_ROOT_STICKY_CLASS"
	case GCRootThreadBlock:
		return "GC_ROOT_THREAD_BLOCK"
	case GCRootMonitorUsed:
		return "GC_ROOT_MONITOR_USED"
	case GCRootThreadObj:
		return "GC_ROOT_THREAD_OBJ"
	case GCClassDump:
		return "GC_CLASS_DUMP"
	case GCInstanceDump:
		return "GC_INSTANCE_DUMP"
	case GCObjArrayDump:
		return "GC_OBJ_ARRAY_DUMP"
	case GCPrimArrayDump:
		return "GC_PRIM_ARRAY_DUMP"
	default:
		return fmt.Sprintf("SubRecord(0x%02X)", byte(s))
	}
}

// IsConstantWidthRoot reports whether s is one of the nine GC-root
// sub-records whose consumed length depends only on idSize and can be
// computed from a static table without reading any fields (§4.4 fast path).
func (s SubRecord) IsConstantWidthRoot() bool {
	switch s {
	case GCRootUnknown, GCRootJNIGlobal, GCRootJNILocal, GCRootJavaFrame,
		GCRootNativeStack, GCRootStickyClass, GCRootThreadBlock,
		GCRootMonitorUsed, GCRootThreadObj:
		return true
	default:
		return false
	}
}

// ConstantRootLen returns the total consumed bytes (including the tag byte)
// for a constant-width GC-root sub-record, given the dump's identifier
// width. It is only meaningful when IsConstantWidthRoot is true.
func (s SubRecord) ConstantRootLen(idSize uint32) int {
	id := int(idSize)
	switch s {
	case GCRootUnknown, GCRootStickyClass, GCRootMonitorUsed:
		return 1 + id
	case GCRootJNIGlobal:
		return 1 + 2*id
	case GCRootJNILocal, GCRootJavaFrame, GCRootThreadObj:
		return 1 + id + 8
	case GCRootNativeStack, GCRootThreadBlock:
		return 1 + id + 4
	default:
		return 0
	}
}

// FieldType identifies the element/value type carried by a class field,
// array element, or constant-pool entry.
type FieldType byte

const (
	ArrayObject  FieldType = 0x01
	NormalObject FieldType = 0x02
	Boolean      FieldType = 0x04
	Char         FieldType = 0x05
	Float        FieldType = 0x06
	Double       FieldType = 0x07
	Byte         FieldType = 0x08
	Short        FieldType = 0x09
	Int          FieldType = 0x0A
	Long         FieldType = 0x0B
)

// Size returns the on-wire byte width of a value of type ft, given the
// dump's identifier size. Returns 0 for an unrecognized type code; callers
// distinguish that from UnsupportedType at the point they know the tag.
func (ft FieldType) Size(idSize uint32) int {
	switch ft {
	case Boolean, Byte:
		return 1
	case Char, Short:
		return 2
	case Int, Float:
		return 4
	case Long, Double:
		return 8
	case NormalObject, ArrayObject:
		return int(idSize)
	default:
		return 0
	}
}

// JNICode returns the single-letter JNI-style type code used to synthesize
// primitive array names ("[I", "[Z", ...). ok is false for non-primitive or
// unrecognized types.
func (ft FieldType) JNICode() (code byte, ok bool) {
	switch ft {
	case Boolean:
		return 'Z', true
	case Char:
		return 'C', true
	case Float:
		return 'F', true
	case Double:
		return 'D', true
	case Byte:
		return 'B', true
	case Short:
		return 'S', true
	case Int:
		return 'I', true
	case Long:
		return 'J', true
	default:
		return 0, false
	}
}

func (ft FieldType) String() string {
	switch ft {
	case ArrayObject:
		return "ARRAY_OBJECT"
	case NormalObject:
		return "NORMAL_OBJECT"
	case Boolean:
		return "BOOLEAN"
	case Char:
		return "CHAR"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case Byte:
		return "BYTE"
	case Short:
		return "SHORT"
	case Int:
		return "INT"
	case Long:
		return "LONG"
	default:
		return fmt.Sprintf("FieldType(0x%02X)", byte(ft))
	}
}

// Flags is the configuration bitmask accepted by decode.Read (§6).
type Flags uint32

const (
	// SkipValues makes the heap sub-record decoder read structural
	// skeletons (ids, types, lengths) but discard field/element payload
	// bytes without materializing them (§4.4).
	SkipValues Flags = 1 << 0
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }
