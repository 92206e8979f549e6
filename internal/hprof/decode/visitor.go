package decode

import (
	"github.com/mabhi256/gohprof/internal/hprof/model"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

// Visitor is a capability object: every field is an optional callback, and
// a nil field means "not interested" (spec §9's "variant set of interested
// vs not interested per record tag"). This mirrors the teacher corpus's own
// struct-of-optional-callbacks shape (prateek-heaplens's StreamCallbacks)
// rather than a Go interface with dozens of no-op methods to implement.
//
// Every callback that returns an error aborts the decode; the error
// propagates out of Read unchanged (spec §7).
type Visitor struct {
	// Record gates whether a top-level record's body is parsed at all. If
	// nil, a record is parsed iff some other relevant callback below (the
	// tag-specific one, or Raw) is non-nil. Returning false skips exactly
	// Length bytes without invoking any other callback for this record.
	Record func(t tag.Record, tsDelta, length uint32) bool

	// Raw receives the untouched body bytes of a record whose tag has no
	// specific callback registered below, when the record was not skipped
	// by Record. The slice is an owned copy, safe to retain. A HEAP_DUMP_END
	// record, whose body is empty, is never forwarded to Raw.
	Raw func(t tag.Record, tsDelta, length uint32, body []byte) error

	Header func(format string, idSize uint32, timestampMillis uint64) error

	UTF8            func(id model.ID, s string) error
	LoadClass       func(classSerial model.SerialNum, classObjID model.ID, stackSerial model.SerialNum, nameID model.ID) error
	UnloadClass     func(classSerial model.SerialNum) error
	Frame           func(frameID, methodNameID, methodSigID, sourceFileID model.ID, classSerial model.SerialNum, lineNumber int32) error
	Trace           func(stackSerial, threadSerial model.SerialNum, frameIDs []model.ID) error
	AllocSites      func(flags uint16, cutoffRatio, liveBytes, liveInstances uint32, allocBytes, allocInstances uint64, sites []model.AllocSite) error
	StartThread     func(threadSerial model.SerialNum, threadObjID model.ID, stackSerial model.SerialNum, nameID, groupNameID, groupParentID model.ID) error
	EndThread       func(threadSerial model.SerialNum) error
	HeapSummary     func(liveBytes, liveInstances uint32, allocBytes, allocInstances uint64) error
	CPUSamples      func(totalSamples uint32, samples []model.CPUSample) error
	ControlSettings func(flags uint32, stackTraceDepth uint16) error

	// HeapDump fires once, before sub-record decoding begins, for each
	// HEAP_DUMP or HEAP_DUMP_SEGMENT record (tsDelta/length describe the
	// containing record, not any sub-record).
	HeapDump func(tsDelta, length uint32) error
	// HeapDumpEnd fires for a HEAP_DUMP_END record (always empty-bodied).
	HeapDumpEnd func() error

	GCRootUnknown     func(model.GCRootUnknown) error
	GCRootJNIGlobal   func(model.GCRootJNIGlobal) error
	GCRootJNILocal    func(model.GCRootJNILocal) error
	GCRootJavaFrame   func(model.GCRootJavaFrame) error
	GCRootNativeStack func(model.GCRootNativeStack) error
	GCRootStickyClass func(model.GCRootStickyClass) error
	GCRootThreadBlock func(model.GCRootThreadBlock) error
	GCRootMonitorUsed func(model.GCRootMonitorUsed) error
	GCRootThreadObj   func(model.GCRootThreadObj) error

	GCClassDump    func(model.ClassDump) error
	GCInstanceDump func(model.InstanceDump) error
	GCObjArrayDump func(model.ObjArrayDump) error
	GCPrimArrayDump func(model.PrimArrayDump) error
}

// wantsRecord decides whether a top-level record's body should be parsed
// rather than skipped whole, applying the default described on Record.
func (v *Visitor) wantsRecord(t tag.Record, tsDelta, length uint32) bool {
	if v.Record != nil {
		return v.Record(t, tsDelta, length)
	}
	return v.hasCallbackFor(t) || v.Raw != nil
}

func (v *Visitor) hasCallbackFor(t tag.Record) bool {
	switch t {
	case tag.UTF8:
		return v.UTF8 != nil
	case tag.LoadClass:
		return v.LoadClass != nil
	case tag.UnloadClass:
		return v.UnloadClass != nil
	case tag.Frame:
		return v.Frame != nil
	case tag.Trace:
		return v.Trace != nil
	case tag.AllocSites:
		return v.AllocSites != nil
	case tag.StartThread:
		return v.StartThread != nil
	case tag.EndThread:
		return v.EndThread != nil
	case tag.HeapSummary:
		return v.HeapSummary != nil
	case tag.HeapDump, tag.HeapDumpSegment:
		return v.HeapDump != nil || v.hasAnyHeapSubCallback()
	case tag.CPUSamples:
		return v.CPUSamples != nil
	case tag.ControlSettings:
		return v.ControlSettings != nil
	case tag.HeapDumpEnd:
		return v.HeapDumpEnd != nil
	default:
		return false
	}
}

func (v *Visitor) hasAnyHeapSubCallback() bool {
	return v.GCRootUnknown != nil || v.GCRootJNIGlobal != nil || v.GCRootJNILocal != nil ||
		v.GCRootJavaFrame != nil || v.GCRootNativeStack != nil || v.GCRootStickyClass != nil ||
		v.GCRootThreadBlock != nil || v.GCRootMonitorUsed != nil || v.GCRootThreadObj != nil ||
		v.GCClassDump != nil || v.GCInstanceDump != nil || v.GCObjArrayDump != nil || v.GCPrimArrayDump != nil
}
