// Package slurp implements the aggregator visitor (spec §4.5): a
// decode.Visitor that never materializes the object graph, only running
// per-class and per-array-type counts and Shipilev-style retained-size
// estimates, in bounded memory regardless of dump size.
package slurp

import (
	"fmt"

	"github.com/mabhi256/gohprof/internal/hprof/decode"
	"github.com/mabhi256/gohprof/internal/hprof/model"
	"github.com/mabhi256/gohprof/internal/hprof/sizeutil"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

// unknownSize is the sentinel reported for an INSTANCE entry whose class
// was never seen via GC_CLASS_DUMP (spec §4.5).
const unknownSize = -1

// Entry is one line of aggregator output: a class (INSTANCE), an object
// array element type (OBJ_ARRAY), or a primitive array element type
// (PRIM_ARRAY), with its instance count and estimated sizes.
type Entry struct {
	Kind model.EntryKind
	// ID discriminates entries of the same Kind: a class-object id for
	// INSTANCE and OBJ_ARRAY, the FieldType code for PRIM_ARRAY.
	ID   uint64
	Name string // class name if resolved via LOAD_CLASS, else "" (or "[X" for PRIM_ARRAY)

	Count       int64
	LargestSize int64 // size of the single largest instance/array of this entry, or unknownSize
	TotalSize   int64 // sum of sizes across all instances/arrays of this entry, or unknownSize
}

func (e Entry) String() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("<0x%x>", e.ID)
	}
	if e.TotalSize < 0 {
		return fmt.Sprintf("%s %s x%d (size unknown)", e.Kind, name, e.Count)
	}
	return fmt.Sprintf("%s %s x%d, largest=%s, total=%s",
		e.Kind, name, e.Count, sizeutil.Bytes(e.LargestSize), sizeutil.Bytes(e.TotalSize))
}

type classInfo struct {
	instanceSize uint32
	superID      model.ID
}

type instanceAgg struct {
	count int64
}

type arrayAgg struct {
	count     int64
	elemTotal int64
	elemMax   int64
}

// Aggregator is a decode.Visitor-driven, streaming heap-histogram builder.
// It holds three kinds of state (spec §4.5): a scratch UTF8-string table
// that is dropped at each HEAP_DUMP/HEAP_DUMP_SEGMENT boundary, a permanent
// class table (object id -> instance size and super id), and running
// per-class/per-array-type counters. None of it grows with the number of
// objects in the dump, only with the number of distinct classes and
// primitive types.
type Aggregator struct {
	idSize uint32

	strings    map[model.ID]string
	classNames *store[model.ID, string]
	classes    *store[model.ID, classInfo]

	instances *store[model.ID, *instanceAgg]
	objArrays *store[model.ID, *arrayAgg]
	primArrays *store[tag.FieldType, *arrayAgg]
}

// New returns an empty Aggregator ready to be driven via Visitor.
func New() *Aggregator {
	return &Aggregator{
		strings:    make(map[model.ID]string),
		classNames: newStore[model.ID, string](),
		classes:    newStore[model.ID, classInfo](),
		instances:  newStore[model.ID, *instanceAgg](),
		objArrays:  newStore[model.ID, *arrayAgg](),
		primArrays: newStore[tag.FieldType, *arrayAgg](),
	}
}

// Visitor returns a decode.Visitor wired to this aggregator's callbacks.
// The gate (Record) is left nil: the default "interested iff a relevant
// callback is set" already selects exactly HEADER, UTF8, LOAD_CLASS, and
// the heap-dump family, which is everything the aggregator needs.
func (a *Aggregator) Visitor() *decode.Visitor {
	return &decode.Visitor{
		Header:         a.onHeader,
		UTF8:           a.onUTF8,
		LoadClass:      a.onLoadClass,
		HeapDump:       a.onHeapDump,
		GCClassDump:    a.onClassDump,
		GCInstanceDump: a.onInstanceDump,
		GCObjArrayDump: a.onObjArray,
		GCPrimArrayDump: a.onPrimArray,
	}
}

func (a *Aggregator) onHeader(_ string, idSize uint32, _ uint64) error {
	a.idSize = idSize
	return nil
}

func (a *Aggregator) onUTF8(id model.ID, s string) error {
	a.strings[id] = s
	return nil
}

// onLoadClass resolves a class name if the referenced UTF8 string has
// already been seen; if not, the name is dropped silently (spec §4.5) and
// the class stays unnamed rather than aborting the decode.
func (a *Aggregator) onLoadClass(_ model.SerialNum, classObjID model.ID, _ model.SerialNum, nameID model.ID) error {
	if name, ok := a.strings[nameID]; ok {
		a.classNames.Add(classObjID, name)
	}
	return nil
}

// onHeapDump drops the scratch string table at each heap-dump segment
// boundary (spec §4.5): string ids are only ever referenced by LOAD_CLASS
// records, which all precede the heap dump.
func (a *Aggregator) onHeapDump(_, _ uint32) error {
	a.strings = make(map[model.ID]string)
	return nil
}

func (a *Aggregator) onClassDump(cd model.ClassDump) error {
	a.classes.Add(cd.ClassObjectID, classInfo{instanceSize: cd.InstanceSize, superID: cd.SuperClassID})
	return nil
}

func (a *Aggregator) onInstanceDump(d model.InstanceDump) error {
	agg, ok := a.instances.Get(d.ClassObjectID)
	if !ok {
		agg = &instanceAgg{}
		a.instances.Add(d.ClassObjectID, agg)
	}
	agg.count++
	return nil
}

func (a *Aggregator) onObjArray(d model.ObjArrayDump) error {
	agg, ok := a.objArrays.Get(d.ArrayClassID)
	if !ok {
		agg = &arrayAgg{}
		a.objArrays.Add(d.ArrayClassID, agg)
	}
	n := int64(d.ElementCount)
	agg.count++
	agg.elemTotal += n
	if n > agg.elemMax {
		agg.elemMax = n
	}
	return nil
}

func (a *Aggregator) onPrimArray(d model.PrimArrayDump) error {
	agg, ok := a.primArrays.Get(d.ElementType)
	if !ok {
		agg = &arrayAgg{}
		a.primArrays.Add(d.ElementType, agg)
	}
	n := int64(d.ElementCount)
	agg.count++
	agg.elemTotal += n
	if n > agg.elemMax {
		agg.elemMax = n
	}
	return nil
}

// align implements the header-alignment formula used throughout spec §4.5:
// align(x, a) = x + (x mod a). This is the dump's own convention, not
// standard round-up-to-multiple alignment, and must match it exactly for
// the size estimates to agree with a real analyzer's numbers.
func align(x, a int64) int64 {
	if a == 0 {
		return x
	}
	return x + x%a
}

func objectHeader(idSize uint32) int64 {
	return align(int64(idSize)+4, int64(idSize))
}

func arrayHeader(idSize uint32) int64 {
	return int64(idSize) + 8
}

// instanceFieldTotal sums instanceSize across classObjID and every ancestor
// reachable via SuperClassID that is present in the class table. A missing
// ancestor simply truncates the chain (spec §4.5) rather than failing: the
// dump may have skipped classes the decoder had no callback interest in.
func (a *Aggregator) instanceFieldTotal(classObjID model.ID) (int64, bool) {
	info, ok := a.classes.Get(classObjID)
	if !ok {
		return 0, false
	}
	total := int64(info.instanceSize)
	for cur := info.superID; cur != 0; {
		parent, ok := a.classes.Get(cur)
		if !ok {
			break
		}
		total += int64(parent.instanceSize)
		cur = parent.superID
	}
	return total, true
}

// Entries computes the final histogram. It may be called at any point
// after the decode completes; calling it mid-decode returns a snapshot of
// counts observed so far.
func (a *Aggregator) Entries() []Entry {
	out := make([]Entry, 0, a.instances.Count()+a.objArrays.Count()+a.primArrays.Count())
	header := objectHeader(a.idSize)
	arrHeader := arrayHeader(a.idSize)

	for classObjID, agg := range a.instances.All() {
		e := Entry{Kind: model.KindInstance, ID: uint64(classObjID), Count: agg.count}
		if name, ok := a.classNames.Get(classObjID); ok {
			e.Name = name
		}
		if fieldTotal, ok := a.instanceFieldTotal(classObjID); ok {
			size := align(header+fieldTotal, int64(a.idSize))
			e.LargestSize = size
			e.TotalSize = size * agg.count
		} else {
			e.LargestSize = unknownSize
			e.TotalSize = unknownSize
		}
		out = append(out, e)
	}

	for classObjID, agg := range a.objArrays.All() {
		e := Entry{Kind: model.KindObjArray, ID: uint64(classObjID), Count: agg.count}
		if name, ok := a.classNames.Get(classObjID); ok {
			e.Name = name
		}
		e.LargestSize = arrHeader + int64(a.idSize)*agg.elemMax
		e.TotalSize = arrHeader*agg.count + int64(a.idSize)*agg.elemTotal
		out = append(out, e)
	}

	for elemType, agg := range a.primArrays.All() {
		v := int64(elemType.Size(a.idSize))
		e := Entry{Kind: model.KindPrimArray, ID: uint64(elemType), Count: agg.count}
		if code, ok := elemType.JNICode(); ok {
			e.Name = "[" + string(code)
		}
		e.LargestSize = align(arrHeader+v*agg.elemMax, int64(a.idSize))
		e.TotalSize = arrHeader*agg.count + v*agg.elemTotal + 4*agg.count
		out = append(out, e)
	}

	return out
}
