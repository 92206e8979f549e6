package decode

import (
	"fmt"

	"github.com/mabhi256/gohprof/internal/hprof/buffer"
	"github.com/mabhi256/gohprof/internal/hprof/model"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

// readID reads one identifier, widened to model.ID regardless of idSize
// (spec §4.2 "readId() branches once on idSize").
func readID(buf *buffer.Buffer, idSize uint32) (model.ID, error) {
	switch idSize {
	case 1:
		v, err := buf.U8()
		return model.ID(v), err
	case 2:
		v, err := buf.U16()
		return model.ID(v), err
	case 4:
		v, err := buf.U32()
		return model.ID(v), err
	case 8:
		v, err := buf.U64()
		return model.ID(v), err
	default:
		return 0, &UnsupportedIdSizeError{Size: idSize}
	}
}

// readValueBytes reads a value of type t as its raw big-endian bytes
// (spec §4.2 valueSize/readValue). When skipValues is set the bytes are
// skipped instead of materialized and a nil slice is returned, with the
// byte length still fully accounted for.
func readValueBytes(buf *buffer.Buffer, idSize uint32, t tag.FieldType, skipValues bool) ([]byte, error) {
	size := t.Size(idSize)
	if size == 0 {
		return nil, &UnsupportedTypeError{Type: t}
	}
	if skipValues {
		return nil, buf.Skip(size)
	}
	return buf.GetCopy(size)
}

// dispatchRecord parses the body of a record the visitor is interested in
// and invokes the appropriate callback. Precondition: v.wantsRecord(t, ...)
// was already true. A custom Record gate can pass a record for which no
// callback is set; the per-tag dispatchers then fall back to rawOrSkip.
func dispatchRecord(buf *buffer.Buffer, v *Visitor, cfg *config, idSize uint32, t tag.Record, tsDelta, length uint32) error {
	switch t {
	case tag.UTF8:
		return dispatchUTF8(buf, v, idSize, tsDelta, length)
	case tag.LoadClass:
		return dispatchLoadClass(buf, v, idSize, tsDelta, length)
	case tag.UnloadClass:
		return dispatchUnloadClass(buf, v, tsDelta, length)
	case tag.Frame:
		return dispatchFrame(buf, v, idSize, tsDelta, length)
	case tag.Trace:
		return dispatchTrace(buf, v, idSize, tsDelta, length)
	case tag.AllocSites:
		return dispatchAllocSites(buf, v, tsDelta, length)
	case tag.StartThread:
		return dispatchStartThread(buf, v, idSize, tsDelta, length)
	case tag.EndThread:
		return dispatchEndThread(buf, v, tsDelta, length)
	case tag.HeapSummary:
		return dispatchHeapSummary(buf, v, tsDelta, length)
	case tag.CPUSamples:
		return dispatchCPUSamples(buf, v, tsDelta, length)
	case tag.ControlSettings:
		return dispatchControlSettings(buf, v, tsDelta, length)
	case tag.HeapDump, tag.HeapDumpSegment:
		return dispatchHeapDump(buf, v, cfg, idSize, t, tsDelta, length)
	case tag.HeapDumpEnd:
		return dispatchHeapDumpEnd(buf, v, length)
	default:
		return rawOrSkip(buf, v, t, tsDelta, length)
	}
}

// rawOrSkip forwards the untouched body to v.Raw, or skips it if even that
// is absent. It handles tags outside the closed set and every known tag
// whose specific callback is nil.
func rawOrSkip(buf *buffer.Buffer, v *Visitor, t tag.Record, tsDelta, length uint32) error {
	if v.Raw != nil {
		body, err := buf.GetCopy(int(length))
		if err != nil {
			return err
		}
		return v.Raw(t, tsDelta, length, body)
	}
	return buf.Skip(int(length))
}

func dispatchUTF8(buf *buffer.Buffer, v *Visitor, idSize uint32, tsDelta, length uint32) error {
	if v.UTF8 == nil {
		return rawOrSkip(buf, v, tag.UTF8, tsDelta, length)
	}
	id, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	strLen := int(length) - int(idSize)
	if strLen < 0 {
		return fmt.Errorf("UTF8 record shorter than idSize: length=%d idSize=%d", length, idSize)
	}
	strBytes, err := buf.Get(strLen)
	if err != nil {
		return err
	}
	return v.UTF8(id, string(strBytes))
}

func dispatchLoadClass(buf *buffer.Buffer, v *Visitor, idSize uint32, tsDelta, length uint32) error {
	if v.LoadClass == nil {
		return rawOrSkip(buf, v, tag.LoadClass, tsDelta, length)
	}
	classSerial, err := buf.U32()
	if err != nil {
		return err
	}
	classObjID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	stackSerial, err := buf.U32()
	if err != nil {
		return err
	}
	nameID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	return v.LoadClass(model.SerialNum(classSerial), classObjID, model.SerialNum(stackSerial), nameID)
}

func dispatchUnloadClass(buf *buffer.Buffer, v *Visitor, tsDelta, length uint32) error {
	if v.UnloadClass == nil {
		return rawOrSkip(buf, v, tag.UnloadClass, tsDelta, length)
	}
	serial, err := buf.U32()
	if err != nil {
		return err
	}
	return v.UnloadClass(model.SerialNum(serial))
}

func dispatchFrame(buf *buffer.Buffer, v *Visitor, idSize uint32, tsDelta, length uint32) error {
	if v.Frame == nil {
		return rawOrSkip(buf, v, tag.Frame, tsDelta, length)
	}
	frameID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	methodNameID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	methodSigID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	sourceFileID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	classSerial, err := buf.U32()
	if err != nil {
		return err
	}
	lineNumber, err := buf.I32()
	if err != nil {
		return err
	}
	return v.Frame(frameID, methodNameID, methodSigID, sourceFileID, model.SerialNum(classSerial), lineNumber)
}

func dispatchTrace(buf *buffer.Buffer, v *Visitor, idSize uint32, tsDelta, length uint32) error {
	if v.Trace == nil {
		return rawOrSkip(buf, v, tag.Trace, tsDelta, length)
	}
	stackSerial, err := buf.U32()
	if err != nil {
		return err
	}
	threadSerial, err := buf.U32()
	if err != nil {
		return err
	}
	frameCount, err := buf.U32()
	if err != nil {
		return err
	}
	frames := make([]model.ID, frameCount)
	for i := range frames {
		frames[i], err = readID(buf, idSize)
		if err != nil {
			return err
		}
	}
	return v.Trace(model.SerialNum(stackSerial), model.SerialNum(threadSerial), frames)
}

// dispatchAllocSites implements spec.md §9's second open question verbatim:
// each site carries four u32 counters, even though the record header
// declares its alloc bytes/instances totals as 64-bit fields.
func dispatchAllocSites(buf *buffer.Buffer, v *Visitor, tsDelta, length uint32) error {
	if v.AllocSites == nil {
		return rawOrSkip(buf, v, tag.AllocSites, tsDelta, length)
	}
	flags, err := buf.U16()
	if err != nil {
		return err
	}
	cutoffRatio, err := buf.U32()
	if err != nil {
		return err
	}
	liveBytes, err := buf.U32()
	if err != nil {
		return err
	}
	liveInstances, err := buf.U32()
	if err != nil {
		return err
	}
	allocBytes, err := buf.U64()
	if err != nil {
		return err
	}
	allocInstances, err := buf.U64()
	if err != nil {
		return err
	}
	siteCount, err := buf.U32()
	if err != nil {
		return err
	}
	sites := make([]model.AllocSite, siteCount)
	for i := range sites {
		isArray, err := buf.U8()
		if err != nil {
			return err
		}
		classSerial, err := buf.U32()
		if err != nil {
			return err
		}
		stackSerial, err := buf.U32()
		if err != nil {
			return err
		}
		siteLiveBytes, err := buf.U32()
		if err != nil {
			return err
		}
		siteLiveInstances, err := buf.U32()
		if err != nil {
			return err
		}
		siteAllocBytes, err := buf.U32()
		if err != nil {
			return err
		}
		siteAllocInstances, err := buf.U32()
		if err != nil {
			return err
		}
		sites[i] = model.AllocSite{
			IsArray:        isArray,
			ClassSerial:    model.SerialNum(classSerial),
			StackSerial:    model.SerialNum(stackSerial),
			LiveBytes:      siteLiveBytes,
			LiveInstances:  siteLiveInstances,
			AllocBytes:     siteAllocBytes,
			AllocInstances: siteAllocInstances,
		}
	}
	return v.AllocSites(flags, cutoffRatio, liveBytes, liveInstances, allocBytes, allocInstances, sites)
}

func dispatchStartThread(buf *buffer.Buffer, v *Visitor, idSize uint32, tsDelta, length uint32) error {
	if v.StartThread == nil {
		return rawOrSkip(buf, v, tag.StartThread, tsDelta, length)
	}
	threadSerial, err := buf.U32()
	if err != nil {
		return err
	}
	threadObjID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	stackSerial, err := buf.U32()
	if err != nil {
		return err
	}
	nameID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	groupNameID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	groupParentID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	return v.StartThread(model.SerialNum(threadSerial), threadObjID, model.SerialNum(stackSerial), nameID, groupNameID, groupParentID)
}

func dispatchEndThread(buf *buffer.Buffer, v *Visitor, tsDelta, length uint32) error {
	if v.EndThread == nil {
		return rawOrSkip(buf, v, tag.EndThread, tsDelta, length)
	}
	serial, err := buf.U32()
	if err != nil {
		return err
	}
	return v.EndThread(model.SerialNum(serial))
}

func dispatchHeapSummary(buf *buffer.Buffer, v *Visitor, tsDelta, length uint32) error {
	if v.HeapSummary == nil {
		return rawOrSkip(buf, v, tag.HeapSummary, tsDelta, length)
	}
	liveBytes, err := buf.U32()
	if err != nil {
		return err
	}
	liveInstances, err := buf.U32()
	if err != nil {
		return err
	}
	allocBytes, err := buf.U64()
	if err != nil {
		return err
	}
	allocInstances, err := buf.U64()
	if err != nil {
		return err
	}
	return v.HeapSummary(liveBytes, liveInstances, allocBytes, allocInstances)
}

func dispatchCPUSamples(buf *buffer.Buffer, v *Visitor, tsDelta, length uint32) error {
	if v.CPUSamples == nil {
		return rawOrSkip(buf, v, tag.CPUSamples, tsDelta, length)
	}
	total, err := buf.U32()
	if err != nil {
		return err
	}
	traceCount, err := buf.U32()
	if err != nil {
		return err
	}
	samples := make([]model.CPUSample, traceCount)
	for i := range samples {
		numSamples, err := buf.U32()
		if err != nil {
			return err
		}
		stackSerial, err := buf.U32()
		if err != nil {
			return err
		}
		samples[i] = model.CPUSample{NumSamples: numSamples, StackSerial: model.SerialNum(stackSerial)}
	}
	return v.CPUSamples(total, samples)
}

func dispatchControlSettings(buf *buffer.Buffer, v *Visitor, tsDelta, length uint32) error {
	if v.ControlSettings == nil {
		return rawOrSkip(buf, v, tag.ControlSettings, tsDelta, length)
	}
	flags, err := buf.U32()
	if err != nil {
		return err
	}
	depth, err := buf.U16()
	if err != nil {
		return err
	}
	return v.ControlSettings(flags, depth)
}

func dispatchHeapDumpEnd(buf *buffer.Buffer, v *Visitor, length uint32) error {
	if length != 0 {
		return fmt.Errorf("HEAP_DUMP_END must have zero length, got %d", length)
	}
	if v.HeapDumpEnd != nil {
		return v.HeapDumpEnd()
	}
	return nil
}
