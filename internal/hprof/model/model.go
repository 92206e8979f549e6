// Package model holds the plain data structures decoded from an HPROF
// stream: the file header, top-level record frames, and the heap-dump
// sub-record bodies.
package model

import (
	"time"

	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

// ID is a dump-local object handle, widened to 64 bits regardless of the
// dump's declared identifier width (§3 "Identifier").
type ID uint64

// SerialNum is a u32 serial number (class, stack, or thread).
type SerialNum uint32

// Header is the fixed HPROF file preamble (§3 "Header").
type Header struct {
	Format         string // e.g. "JAVA PROFILE 1.0.2", without the trailing NUL
	IdentifierSize uint32 // idSize: 1, 2, 4, or 8
	TimestampMillis uint64 // absolute ms since the Unix epoch
}

func (h Header) Timestamp() time.Time {
	return time.UnixMilli(int64(h.TimestampMillis))
}

// RecordFrame is the fixed part of every top-level record: tag, timestamp
// delta from the header timestamp, and declared body length (§3 "Record").
type RecordFrame struct {
	Tag     tag.Record
	TSDelta uint32
	Length  uint32
}

// AllocSite is one entry of an ALLOC_SITES record.
type AllocSite struct {
	IsArray            uint8
	ClassSerial        SerialNum
	StackSerial        SerialNum
	LiveBytes          uint32
	LiveInstances      uint32
	AllocBytes         uint32
	AllocInstances     uint32
}

// CPUSample is one entry of a CPU_SAMPLES record.
type CPUSample struct {
	NumSamples  uint32
	StackSerial SerialNum
}

// ConstantPoolEntry is one entry of a GC_CLASS_DUMP constant pool.
type ConstantPoolEntry struct {
	Index uint16
	Type  tag.FieldType
	Value []byte // absent (nil) when decoded with tag.SkipValues
}

// StaticField is one entry of a GC_CLASS_DUMP static field table.
type StaticField struct {
	NameID ID
	Type   tag.FieldType
	Value  []byte // absent (nil) when decoded with tag.SkipValues
}

// InstanceField is one entry of a GC_CLASS_DUMP instance field table.
// Instance fields carry no value in CLASS_DUMP; the values live in the
// corresponding GC_INSTANCE_DUMP's opaque instance-data blob.
type InstanceField struct {
	NameID ID
	Type   tag.FieldType
}

// ClassDump is a fully decoded GC_CLASS_DUMP sub-record body.
//
// The two reserved ids present on the wire right after
// ProtectionDomainID are surfaced as Reserved1/Reserved2 (spec.md §9 open
// question, "expose" branch — see DESIGN.md).
type ClassDump struct {
	ClassObjectID      ID
	StackTraceSerial   SerialNum
	SuperClassID       ID
	ClassLoaderID      ID
	SignerID           ID
	ProtectionDomainID ID
	Reserved1          ID
	Reserved2          ID
	InstanceSize       uint32
	ConstantPool       []ConstantPoolEntry
	StaticFields       []StaticField
	InstanceFields     []InstanceField
}

// InstanceDump is a GC_INSTANCE_DUMP sub-record body. InstanceData is the
// opaque per-object field bytes; this parser never interprets it.
type InstanceDump struct {
	ObjectID         ID
	StackTraceSerial SerialNum
	ClassObjectID    ID
	InstanceData     []byte // absent (nil) when decoded with tag.SkipValues
}

// ObjArrayDump is a GC_OBJ_ARRAY_DUMP sub-record body.
type ObjArrayDump struct {
	ArrayObjectID    ID
	StackTraceSerial SerialNum
	ArrayClassID     ID
	Elements         []ID // absent (nil) when decoded with tag.SkipValues; ElementCount always holds the real count
	ElementCount     int
}

// PrimArrayDump is a GC_PRIM_ARRAY_DUMP sub-record body.
type PrimArrayDump struct {
	ArrayObjectID    ID
	StackTraceSerial SerialNum
	ElementType      tag.FieldType
	Elements         []byte // absent (nil) when decoded with tag.SkipValues
	ElementCount     int
}

// GCRootUnknown, ... mirror the nine GC_ROOT_* sub-record bodies (§4.4).
type (
	GCRootUnknown struct {
		ObjectID ID
	}
	GCRootJNIGlobal struct {
		ObjectID  ID
		JNIGlobalRefID ID
	}
	GCRootJNILocal struct {
		ObjectID     ID
		ThreadSerial SerialNum
		FrameNumber  uint32
	}
	GCRootJavaFrame struct {
		ObjectID     ID
		ThreadSerial SerialNum
		FrameNumber  uint32
	}
	GCRootNativeStack struct {
		ObjectID     ID
		ThreadSerial SerialNum
	}
	GCRootStickyClass struct {
		ObjectID ID
	}
	GCRootThreadBlock struct {
		ObjectID     ID
		ThreadSerial SerialNum
	}
	GCRootMonitorUsed struct {
		ObjectID ID
	}
	GCRootThreadObj struct {
		ObjectID        ID
		ThreadSerial    SerialNum
		StackTraceSerial SerialNum
	}
)

// EntryKind discriminates the three shapes of aggregator output (§3 "Entry").
type EntryKind int

const (
	KindInstance EntryKind = iota
	KindObjArray
	KindPrimArray
)

func (k EntryKind) String() string {
	switch k {
	case KindInstance:
		return "INSTANCE"
	case KindObjArray:
		return "OBJ_ARRAY"
	case KindPrimArray:
		return "PRIM_ARRAY"
	default:
		return "UNKNOWN"
	}
}
