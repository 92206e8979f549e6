package decode

import (
	"github.com/mabhi256/gohprof/internal/hprof/buffer"
	"github.com/mabhi256/gohprof/internal/hprof/model"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

// dispatchHeapDump handles a HEAP_DUMP or HEAP_DUMP_SEGMENT record: it fires
// Visitor.HeapDump once, then runs the sub-record decoder over exactly
// length bytes (spec §4.4).
func dispatchHeapDump(buf *buffer.Buffer, v *Visitor, cfg *config, idSize uint32, t tag.Record, tsDelta, length uint32) error {
	if v.HeapDump == nil && !v.hasAnyHeapSubCallback() {
		return rawOrSkip(buf, v, t, tsDelta, length)
	}
	if v.HeapDump != nil {
		if err := v.HeapDump(tsDelta, length); err != nil {
			return err
		}
	}
	return decodeHeapBody(buf, v, cfg, idSize, int64(length))
}

// decodeHeapBody iterates sub-records until exactly length bytes have been
// consumed, tracking a running count that includes each sub-record's tag
// byte (spec §4.4). Any overshoot or a final undershoot is BufferUnderflow.
func decodeHeapBody(buf *buffer.Buffer, v *Visitor, cfg *config, idSize uint32, length int64) error {
	var consumed int64
	for consumed < length {
		mark := buf.TotalConsumed()

		subByte, err := buf.U8()
		if err != nil {
			return err
		}
		st := tag.SubRecord(subByte)
		if cfg.stats != nil {
			cfg.stats.SubRecords[st]++
		}

		if err := decodeSubRecordBody(buf, v, idSize, st, cfg.flags); err != nil {
			return err
		}

		consumed += buf.TotalConsumed() - mark
		if consumed > length {
			return &BufferUnderflowError{Declared: length, Consumed: consumed}
		}
	}
	if consumed != length {
		return &BufferUnderflowError{Declared: length, Consumed: consumed}
	}
	return nil
}

// decodeSubRecordBody reads the fields (or fast-skips) of one sub-record
// whose tag byte has already been consumed by the caller.
func decodeSubRecordBody(buf *buffer.Buffer, v *Visitor, idSize uint32, st tag.SubRecord, flags tag.Flags) error {
	if st.IsConstantWidthRoot() {
		return decodeGCRoot(buf, v, idSize, st)
	}
	switch st {
	case tag.GCClassDump:
		return decodeClassDump(buf, v, idSize, flags)
	case tag.GCInstanceDump:
		return decodeInstanceDump(buf, v, idSize, flags)
	case tag.GCObjArrayDump:
		return decodeObjArrayDump(buf, v, idSize, flags)
	case tag.GCPrimArrayDump:
		return decodePrimArrayDump(buf, v, idSize, flags)
	default:
		return &UnsupportedHeapSubRecordError{Tag: st, Offset: buf.TotalConsumed()}
	}
}

// decodeGCRoot handles all nine constant-width GC-root sub-records. When no
// callback is registered for st, it fast-skips using the static length
// table with a single Skip call — no field-by-field reads (spec §4.4).
func decodeGCRoot(buf *buffer.Buffer, v *Visitor, idSize uint32, st tag.SubRecord) error {
	if !wantsGCRoot(v, st) {
		return buf.Skip(st.ConstantRootLen(idSize) - 1)
	}

	id, err := readID(buf, idSize)
	if err != nil {
		return err
	}

	switch st {
	case tag.GCRootUnknown:
		return callIf(v.GCRootUnknown, model.GCRootUnknown{ObjectID: id})
	case tag.GCRootStickyClass:
		return callIf(v.GCRootStickyClass, model.GCRootStickyClass{ObjectID: id})
	case tag.GCRootMonitorUsed:
		return callIf(v.GCRootMonitorUsed, model.GCRootMonitorUsed{ObjectID: id})
	case tag.GCRootJNIGlobal:
		refID, err := readID(buf, idSize)
		if err != nil {
			return err
		}
		return callIf(v.GCRootJNIGlobal, model.GCRootJNIGlobal{ObjectID: id, JNIGlobalRefID: refID})
	case tag.GCRootJNILocal:
		threadSerial, err := buf.U32()
		if err != nil {
			return err
		}
		frameNum, err := buf.U32()
		if err != nil {
			return err
		}
		return callIf(v.GCRootJNILocal, model.GCRootJNILocal{ObjectID: id, ThreadSerial: model.SerialNum(threadSerial), FrameNumber: frameNum})
	case tag.GCRootJavaFrame:
		threadSerial, err := buf.U32()
		if err != nil {
			return err
		}
		frameNum, err := buf.U32()
		if err != nil {
			return err
		}
		return callIf(v.GCRootJavaFrame, model.GCRootJavaFrame{ObjectID: id, ThreadSerial: model.SerialNum(threadSerial), FrameNumber: frameNum})
	case tag.GCRootNativeStack:
		threadSerial, err := buf.U32()
		if err != nil {
			return err
		}
		return callIf(v.GCRootNativeStack, model.GCRootNativeStack{ObjectID: id, ThreadSerial: model.SerialNum(threadSerial)})
	case tag.GCRootThreadBlock:
		threadSerial, err := buf.U32()
		if err != nil {
			return err
		}
		return callIf(v.GCRootThreadBlock, model.GCRootThreadBlock{ObjectID: id, ThreadSerial: model.SerialNum(threadSerial)})
	case tag.GCRootThreadObj:
		threadSerial, err := buf.U32()
		if err != nil {
			return err
		}
		stackSerial, err := buf.U32()
		if err != nil {
			return err
		}
		return callIf(v.GCRootThreadObj, model.GCRootThreadObj{ObjectID: id, ThreadSerial: model.SerialNum(threadSerial), StackTraceSerial: model.SerialNum(stackSerial)})
	default:
		return &UnsupportedHeapSubRecordError{Tag: st, Offset: buf.TotalConsumed()}
	}
}

func wantsGCRoot(v *Visitor, st tag.SubRecord) bool {
	switch st {
	case tag.GCRootUnknown:
		return v.GCRootUnknown != nil
	case tag.GCRootJNIGlobal:
		return v.GCRootJNIGlobal != nil
	case tag.GCRootJNILocal:
		return v.GCRootJNILocal != nil
	case tag.GCRootJavaFrame:
		return v.GCRootJavaFrame != nil
	case tag.GCRootNativeStack:
		return v.GCRootNativeStack != nil
	case tag.GCRootStickyClass:
		return v.GCRootStickyClass != nil
	case tag.GCRootThreadBlock:
		return v.GCRootThreadBlock != nil
	case tag.GCRootMonitorUsed:
		return v.GCRootMonitorUsed != nil
	case tag.GCRootThreadObj:
		return v.GCRootThreadObj != nil
	default:
		return false
	}
}

func callIf[T any](fn func(T) error, val T) error {
	if fn == nil {
		return nil
	}
	return fn(val)
}

// decodeClassDump reads a GC_CLASS_DUMP body (spec §4.4). The two reserved
// ids that follow ProtectionDomainID are read and surfaced as
// Reserved1/Reserved2 (spec.md §9 open question, "expose" branch — see
// DESIGN.md).
func decodeClassDump(buf *buffer.Buffer, v *Visitor, idSize uint32, flags tag.Flags) error {
	classObjID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	stackSerial, err := buf.U32()
	if err != nil {
		return err
	}
	superClassID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	classLoaderID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	signerID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	protectionDomainID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	reserved1, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	reserved2, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	instanceSize, err := buf.U32()
	if err != nil {
		return err
	}

	poolCount, err := buf.U16()
	if err != nil {
		return err
	}
	pool := make([]model.ConstantPoolEntry, poolCount)
	for i := range pool {
		idx, err := buf.U16()
		if err != nil {
			return err
		}
		ft, err := buf.U8()
		if err != nil {
			return err
		}
		val, err := readValueBytes(buf, idSize, tag.FieldType(ft), flags.Has(tag.SkipValues))
		if err != nil {
			return err
		}
		pool[i] = model.ConstantPoolEntry{Index: idx, Type: tag.FieldType(ft), Value: val}
	}

	staticCount, err := buf.U16()
	if err != nil {
		return err
	}
	statics := make([]model.StaticField, staticCount)
	for i := range statics {
		nameID, err := readID(buf, idSize)
		if err != nil {
			return err
		}
		ft, err := buf.U8()
		if err != nil {
			return err
		}
		val, err := readValueBytes(buf, idSize, tag.FieldType(ft), flags.Has(tag.SkipValues))
		if err != nil {
			return err
		}
		statics[i] = model.StaticField{NameID: nameID, Type: tag.FieldType(ft), Value: val}
	}

	instCount, err := buf.U16()
	if err != nil {
		return err
	}
	instFields := make([]model.InstanceField, instCount)
	for i := range instFields {
		nameID, err := readID(buf, idSize)
		if err != nil {
			return err
		}
		ft, err := buf.U8()
		if err != nil {
			return err
		}
		instFields[i] = model.InstanceField{NameID: nameID, Type: tag.FieldType(ft)}
	}

	if v.GCClassDump == nil {
		return nil
	}
	return v.GCClassDump(model.ClassDump{
		ClassObjectID:      classObjID,
		StackTraceSerial:   model.SerialNum(stackSerial),
		SuperClassID:       superClassID,
		ClassLoaderID:      classLoaderID,
		SignerID:           signerID,
		ProtectionDomainID: protectionDomainID,
		Reserved1:          reserved1,
		Reserved2:          reserved2,
		InstanceSize:       instanceSize,
		ConstantPool:       pool,
		StaticFields:       statics,
		InstanceFields:     instFields,
	})
}

func decodeInstanceDump(buf *buffer.Buffer, v *Visitor, idSize uint32, flags tag.Flags) error {
	objID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	stackSerial, err := buf.U32()
	if err != nil {
		return err
	}
	classObjID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	dataSize, err := buf.U32()
	if err != nil {
		return err
	}

	var data []byte
	if flags.Has(tag.SkipValues) {
		err = buf.Skip(int(dataSize))
	} else {
		data, err = buf.GetCopy(int(dataSize))
	}
	if err != nil {
		return err
	}

	if v.GCInstanceDump == nil {
		return nil
	}
	return v.GCInstanceDump(model.InstanceDump{
		ObjectID:         objID,
		StackTraceSerial: model.SerialNum(stackSerial),
		ClassObjectID:    classObjID,
		InstanceData:     data,
	})
}

func decodeObjArrayDump(buf *buffer.Buffer, v *Visitor, idSize uint32, flags tag.Flags) error {
	arrayObjID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	stackSerial, err := buf.U32()
	if err != nil {
		return err
	}
	n, err := buf.U32()
	if err != nil {
		return err
	}
	arrayClassID, err := readID(buf, idSize)
	if err != nil {
		return err
	}

	var elems []model.ID
	if flags.Has(tag.SkipValues) {
		err = buf.Skip(int(n) * int(idSize))
	} else {
		elems = make([]model.ID, n)
		for i := range elems {
			elems[i], err = readID(buf, idSize)
			if err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}

	if v.GCObjArrayDump == nil {
		return nil
	}
	return v.GCObjArrayDump(model.ObjArrayDump{
		ArrayObjectID:    arrayObjID,
		StackTraceSerial: model.SerialNum(stackSerial),
		ArrayClassID:     arrayClassID,
		Elements:         elems,
		ElementCount:     int(n),
	})
}

func decodePrimArrayDump(buf *buffer.Buffer, v *Visitor, idSize uint32, flags tag.Flags) error {
	arrayObjID, err := readID(buf, idSize)
	if err != nil {
		return err
	}
	stackSerial, err := buf.U32()
	if err != nil {
		return err
	}
	n, err := buf.U32()
	if err != nil {
		return err
	}
	elemTypeByte, err := buf.U8()
	if err != nil {
		return err
	}
	elemType := tag.FieldType(elemTypeByte)
	elemSize := elemType.Size(idSize)
	if elemSize == 0 {
		return &UnsupportedTypeError{Type: elemType}
	}

	var elems []byte
	if flags.Has(tag.SkipValues) {
		err = buf.Skip(int(n) * elemSize)
	} else {
		elems, err = buf.GetCopy(int(n) * elemSize)
	}
	if err != nil {
		return err
	}

	if v.GCPrimArrayDump == nil {
		return nil
	}
	return v.GCPrimArrayDump(model.PrimArrayDump{
		ArrayObjectID:    arrayObjID,
		StackTraceSerial: model.SerialNum(stackSerial),
		ElementType:      elemType,
		Elements:         elems,
		ElementCount:     int(n),
	})
}
