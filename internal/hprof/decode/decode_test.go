package decode

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/gohprof/internal/hprof/model"
	"github.com/mabhi256/gohprof/internal/hprof/tag"
)

func header(banner string, idSize uint32, tsMillis uint64) []byte {
	var buf bytes.Buffer
	buf.WriteString(banner)
	buf.WriteByte(0)
	binary.Write(&buf, binary.BigEndian, idSize)
	binary.Write(&buf, binary.BigEndian, tsMillis)
	return buf.Bytes()
}

func frame(t tag.Record, tsDelta uint32, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(t))
	binary.Write(&buf, binary.BigEndian, tsDelta)
	binary.Write(&buf, binary.BigEndian, uint32(len(body)))
	buf.Write(body)
	return buf.Bytes()
}

func id8(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Scenario 1 & 6: minimal stream with zero records.
func TestScenarioMinimalStream(t *testing.T) {
	data := header("JAVA PROFILE 1.0.2", 8, 0)

	var gotFormat string
	var gotIDSize uint32
	var gotTS uint64
	headerCalls := 0

	v := &Visitor{
		Header: func(format string, idSize uint32, ts uint64) error {
			headerCalls++
			gotFormat, gotIDSize, gotTS = format, idSize, ts
			return nil
		},
	}

	err := Read(bytes.NewReader(data), v, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, headerCalls)
	assert.Equal(t, "JAVA PROFILE 1.0.2", gotFormat)
	assert.EqualValues(t, 8, gotIDSize)
	assert.EqualValues(t, 0, gotTS)
}

// Scenario 2: UTF8 round-trip.
func TestScenarioUTF8RoundTrip(t *testing.T) {
	body := append(id8(1), []byte("java/lang/Object")...)
	data := append(header("JAVA PROFILE 1.0.2", 8, 0), frame(tag.UTF8, 0, body)...)

	type call struct {
		id model.ID
		s  string
	}
	var got []call

	v := &Visitor{
		UTF8: func(id model.ID, s string) error {
			got = append(got, call{id, s})
			return nil
		},
	}

	require.NoError(t, Read(bytes.NewReader(data), v, 0))
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0].id)
	assert.Equal(t, "java/lang/Object", got[0].s)
}

// Scenario 3: heap-dump byte accounting, both the draining case and the
// BufferUnderflow case from a mismatched declared length.
func TestScenarioHeapDumpAccounting(t *testing.T) {
	subRecord := append([]byte{byte(tag.GCRootStickyClass)}, id8(0x42)...) // 1 + 8 = 9 bytes

	t.Run("drains to zero", func(t *testing.T) {
		data := append(header("JAVA PROFILE 1.0.2", 8, 0), frame(tag.HeapDumpSegment, 0, subRecord)...)

		var roots []model.GCRootStickyClass
		v := &Visitor{
			GCRootStickyClass: func(r model.GCRootStickyClass) error {
				roots = append(roots, r)
				return nil
			},
		}
		require.NoError(t, Read(bytes.NewReader(data), v, 0))
		require.Len(t, roots, 1)
		assert.EqualValues(t, 0x42, roots[0].ObjectID)
	})

	t.Run("mismatched length raises BufferUnderflow", func(t *testing.T) {
		// Declare length 10 (one more than the real first sub-record's 9
		// bytes). The decoder trusts the declared length and keeps reading
		// sub-records from the following, perfectly valid bytes (a second
		// full GC_ROOT_STICKY_CLASS) until the running count overshoots 10.
		var buf bytes.Buffer
		buf.WriteByte(byte(tag.HeapDumpSegment))
		binary.Write(&buf, binary.BigEndian, uint32(0))
		binary.Write(&buf, binary.BigEndian, uint32(10)) // lie: only 9 real bytes belong to this record
		buf.Write(subRecord)
		buf.Write(subRecord) // spills past the lied-about boundary

		data := append(header("JAVA PROFILE 1.0.2", 8, 0), buf.Bytes()...)

		v := &Visitor{
			GCRootStickyClass: func(model.GCRootStickyClass) error { return nil },
		}
		err := Read(bytes.NewReader(data), v, 0)
		require.Error(t, err)
		var underflow *BufferUnderflowError
		assert.ErrorAs(t, err, &underflow)
	})
}

func TestNoCallbacksVisitorMatchesCursorTrajectoryOfFullVisitor(t *testing.T) {
	body := append(id8(1), []byte("x")...)
	data := append(header("JAVA PROFILE 1.0.2", 8, 0),
		append(frame(tag.UTF8, 0, body), frame(tag.EndThread, 0, u32Bytes(7))...)...)

	stats1 := newStats()
	require.NoError(t, Read(bytes.NewReader(data), &Visitor{}, 0, WithStats(stats1)))

	recordCount := 0
	stats2 := newStats()
	v := &Visitor{UTF8: func(model.ID, string) error { recordCount++; return nil }}
	require.NoError(t, Read(bytes.NewReader(data), v, 0, WithStats(stats2)))

	assert.Equal(t, 1, recordCount)
	assert.Equal(t, stats1.Records, stats2.Records)
	assert.Equal(t, stats1.SubRecords, stats2.SubRecords)
}

func u32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func TestUnsupportedIdSizeFailsFast(t *testing.T) {
	data := header("JAVA PROFILE 1.0.2", 3, 0)
	err := Read(bytes.NewReader(data), &Visitor{}, 0)
	var idErr *UnsupportedIdSizeError
	require.ErrorAs(t, err, &idErr)
	assert.EqualValues(t, 3, idErr.Size)
}

// Idempotence (spec §8): decoding the same bytes twice, concurrently,
// produces identical event sequences.
func TestIdempotentAcrossConcurrentDecodes(t *testing.T) {
	body := append(id8(7), []byte("java/lang/String")...)
	data := append(header("JAVA PROFILE 1.0.2", 8, 0), frame(tag.UTF8, 0, body)...)

	collect := func() ([]string, error) {
		var got []string
		v := &Visitor{UTF8: func(id model.ID, s string) error {
			got = append(got, s)
			return nil
		}}
		err := Read(bytes.NewReader(data), v, 0)
		return got, err
	}

	var g errgroup.Group
	results := make([][]string, 2)
	for i := range results {
		i := i
		g.Go(func() error {
			r, err := collect()
			results[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, results[0], results[1])
}
