package slurp

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/gohprof/internal/hprof/decode"
	"github.com/mabhi256/gohprof/internal/hprof/model"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

func header(idSize uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("JAVA PROFILE 1.0.2")
	buf.WriteByte(0)
	binary.Write(&buf, binary.BigEndian, idSize)
	binary.Write(&buf, binary.BigEndian, uint64(0))
	return buf.Bytes()
}

func frame(t tag.Record, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(t))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, uint32(len(body)))
	buf.Write(body)
	return buf.Bytes()
}

func id8(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// classDumpBody builds a GC_CLASS_DUMP sub-record (tag byte included) with
// an empty constant pool and no static/instance fields, for an 8-byte
// identifier width.
func classDumpBody(classObjID, superID uint64, instanceSize uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(byte(tag.GCClassDump))
	b.Write(id8(classObjID))
	b.Write(u32(0)) // stack trace serial
	b.Write(id8(superID))
	b.Write(id8(0)) // class loader id
	b.Write(id8(0)) // signer id
	b.Write(id8(0)) // protection domain id
	b.Write(id8(0)) // reserved 1
	b.Write(id8(0)) // reserved 2
	b.Write(u32(instanceSize))
	b.Write(u16(0)) // constant pool count
	b.Write(u16(0)) // static field count
	b.Write(u16(0)) // instance field count
	return b.Bytes()
}

func instanceDumpBody(objID, classObjID uint64) []byte {
	var b bytes.Buffer
	b.WriteByte(byte(tag.GCInstanceDump))
	b.Write(id8(objID))
	b.Write(u32(0)) // stack trace serial
	b.Write(id8(classObjID))
	b.Write(u32(0)) // instance data length
	return b.Bytes()
}

func primArrayDumpBody(arrayObjID uint64, elemType tag.FieldType, elems []byte, elemCount uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(byte(tag.GCPrimArrayDump))
	b.Write(id8(arrayObjID))
	b.Write(u32(0)) // stack trace serial
	b.Write(u32(elemCount))
	b.WriteByte(byte(elemType))
	b.Write(elems)
	return b.Bytes()
}

// Scenario 4: a single INT[3] primitive array, idSize 8.
// arrayHeader = 8+8 = 16, v = 4, largest = align(16+4*3,8) = align(28,8) = 32,
// total = 16*1 + 4*3 + 4*1 = 32.
func TestPrimArrayHistogramMatchesShipilevEstimate(t *testing.T) {
	sub := primArrayDumpBody(0x1, tag.Int, make([]byte, 12), 3)
	data := append(header(8), frame(tag.HeapDumpSegment, sub)...)

	agg := New()
	require.NoError(t, decode.Read(bytes.NewReader(data), agg.Visitor(), 0))

	entries := agg.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, model.KindPrimArray, e.Kind)
	assert.Equal(t, "[I", e.Name)
	assert.EqualValues(t, 1, e.Count)
	assert.EqualValues(t, 32, e.LargestSize)
	assert.EqualValues(t, 32, e.TotalSize)
}

// Scenario 5: class B extends class A, instanceSize(A)=8, instanceSize(B)=16,
// two instances of B, idSize 8.
// objectHeader = align(8+4,8) = 16, size(B) = align(16+16+8,8) = 40,
// largest = 40, total = 80.
func TestInstanceHistogramWalksSuperChain(t *testing.T) {
	const classA, classB = 0xA, 0xB
	body := append(classDumpBody(classA, 0, 8), classDumpBody(classB, classA, 16)...)
	body = append(body, instanceDumpBody(0x100, classB)...)
	body = append(body, instanceDumpBody(0x101, classB)...)

	data := append(header(8), frame(tag.HeapDumpSegment, body)...)

	agg := New()
	require.NoError(t, decode.Read(bytes.NewReader(data), agg.Visitor(), 0))

	entries := agg.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, model.KindInstance, e.Kind)
	assert.EqualValues(t, classB, e.ID)
	assert.EqualValues(t, 2, e.Count)
	assert.EqualValues(t, 40, e.LargestSize)
	assert.EqualValues(t, 80, e.TotalSize)
}

func TestInstanceOfUnknownClassReportsUnknownSize(t *testing.T) {
	body := instanceDumpBody(0x1, 0xDEAD)
	data := append(header(8), frame(tag.HeapDumpSegment, body)...)

	agg := New()
	require.NoError(t, decode.Read(bytes.NewReader(data), agg.Visitor(), 0))

	entries := agg.Entries()
	require.Len(t, entries, 1)
	assert.EqualValues(t, -1, entries[0].LargestSize)
	assert.EqualValues(t, -1, entries[0].TotalSize)
}

func TestClassNameResolvedFromLoadClass(t *testing.T) {
	utf8Body := append(id8(1), []byte("com/example/Widget")...)
	loadClassBody := append(append(u32(1), id8(0x55)...), append(u32(0), id8(1)...)...)

	data := header(8)
	data = append(data, frame(tag.UTF8, utf8Body)...)
	data = append(data, frame(tag.LoadClass, loadClassBody)...)
	data = append(data, frame(tag.HeapDumpSegment, instanceDumpBody(0x1, 0x55))...)

	agg := New()
	require.NoError(t, decode.Read(bytes.NewReader(data), agg.Visitor(), 0))

	entries := agg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "com/example/Widget", entries[0].Name)
}
