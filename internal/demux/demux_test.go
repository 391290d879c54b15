package demux

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensorlink/internal/monitoring"
	tu "github.com/banshee-data/sensorlink/internal/testutil"
)

func init() {
	monitoring.Mute()
}

func feedAll(t *testing.T, f Format, chunks [][]byte) *Demultiplexer {
	t.Helper()
	d, err := New(f)
	require.NoError(t, err)
	for _, c := range chunks {
		d.Feed(c)
	}
	return d
}

func assertSameOutput(t *testing.T, want, got *Demultiplexer) {
	t.Helper()
	if diff := cmp.Diff(want.Audio(), got.Audio(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("audio mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.IMU(), got.IMU(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("imu mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want.Buffered(), got.Buffered(), "buffered bytes")
}

func TestFeed_TypedAudioRecord(t *testing.T) {
	f := TypedFormat(2)
	d := feedAll(t, f, [][]byte{{0x01, 0x00, 0x01, 0x00, 0x02}})

	assert.Equal(t, []int32{256, 512}, d.Audio())
	assert.Empty(t, d.IMU())
	assert.Zero(t, d.Buffered())
}

func TestFeed_MarkerIMURecord(t *testing.T) {
	d := feedAll(t, MarkerFormat(4), [][]byte{tu.MarkerIMU([6]float32{1, 0, -1, 0, 0, 0})})

	require.Len(t, d.IMU(), 1)
	assert.Equal(t, IMUSample{AccelX: 1, AccelY: 0, AccelZ: -1}, d.IMU()[0])
	assert.Empty(t, d.Audio())
	assert.Zero(t, d.Buffered())
}

func TestFeed_TypedIMUSplitAcrossChunks(t *testing.T) {
	record := tu.TypedIMU([6]float32{0.5, -0.25, 1, 10, 20, 30}, 123456)
	require.Len(t, record, 29)

	d, err := New(TypedFormat(DefaultSamplesPerRecord))
	require.NoError(t, err)

	d.Feed(record[:11])
	assert.Empty(t, d.Audio())
	assert.Empty(t, d.IMU())
	assert.Equal(t, 11, d.Buffered())

	d.Feed(record[11:])
	require.Len(t, d.IMU(), 1)
	assert.Zero(t, d.Buffered())
	assert.Equal(t, IMUSample{
		AccelX: 0.5, AccelY: -0.25, AccelZ: 1,
		GyroX: 10, GyroY: 20, GyroZ: 30,
		Timestamp: 123456, HasTimestamp: true,
	}, d.IMU()[0])
}

func typedStream() []byte {
	return tu.Concat(
		tu.TypedAudio(1, -2, 3, -4),
		tu.TypedIMU([6]float32{0.1, 0.2, 0.98, 1.5, -1.5, 0}, 1000),
		tu.TypedAudio(32767, -32768, 0, 42),
		tu.TypedAudio(5, 6, 7, 8),
		tu.TypedIMU([6]float32{0, 0, 1, 0, 0, 0}, 1010),
		tu.TypedIMU([6]float32{-0.1, 0.0, 1.02, 0, 0.5, 0}, 1020),
		tu.TypedAudio(9, 10, 11, 12),
	)
}

func markerStream32() []byte {
	return tu.Concat(
		tu.Int32s(100, 200, 300),
		tu.MarkerIMU([6]float32{0.1, 0.2, 0.98, 1, 2, 3}),
		tu.Int32s(400, 500),
		tu.MarkerIMU([6]float32{0, 0, 1, 0, 0, 0}),
		tu.MarkerIMU([6]float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}),
		tu.Int32s(600, 700, 800, 900),
	)
}

// Odd sample counts before each marker put the marker at positions that are
// not a multiple of four from the stream start.
func markerStream16() []byte {
	return tu.Concat(
		tu.Int16s(11, 22, 33),
		tu.MarkerIMU([6]float32{0.1, 0.2, 0.98, 1, 2, 3}),
		tu.Int16s(44),
		tu.MarkerIMU([6]float32{0, 0, 1, 0, 0, 0}),
		tu.Int16s(55, 66, 77, 88, 99),
	)
}

func TestFeed_ChunkBoundaryInvariance(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		stream []byte
		audio  int
		imu    int
	}{
		{"typed", TypedFormat(4), typedStream(), 16, 3},
		{"marker int32", MarkerFormat(4), markerStream32(), 9, 3},
		{"marker int16", MarkerFormat(2), markerStream16(), 9, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			whole := feedAll(t, tc.format, [][]byte{tc.stream})
			require.Len(t, whole.Audio(), tc.audio)
			require.Len(t, whole.IMU(), tc.imu)
			require.Zero(t, whole.Buffered())

			// Every single cut position, including inside markers and
			// payloads.
			for cut := 1; cut < len(tc.stream); cut++ {
				got := feedAll(t, tc.format, tu.SplitAt(tc.stream, cut))
				assertSameOutput(t, whole, got)
			}

			// Fixed-size chunking from one byte upwards.
			for n := 1; n <= 33; n++ {
				got := feedAll(t, tc.format, tu.EveryN(tc.stream, n))
				assertSameOutput(t, whole, got)
			}
		})
	}
}

func TestFeed_OrderPreserved(t *testing.T) {
	d := feedAll(t, TypedFormat(4), tu.EveryN(typedStream(), 3))

	assert.Equal(t, []int32{1, -2, 3, -4, 32767, -32768, 0, 42, 5, 6, 7, 8, 9, 10, 11, 12}, d.Audio())
	require.Len(t, d.IMU(), 3)
	assert.Equal(t, []uint32{1000, 1010, 1020},
		[]uint32{d.IMU()[0].Timestamp, d.IMU()[1].Timestamp, d.IMU()[2].Timestamp})
}

func TestFeed_NoDataLossForWellFormedStream(t *testing.T) {
	d := feedAll(t, TypedFormat(4), tu.EveryN(typedStream(), 7))
	st := d.Stats()

	// 4 audio records + 3 IMU records.
	assert.Equal(t, int64(4), st.AudioRecords)
	assert.Equal(t, int64(3), st.IMURecords)
	assert.Equal(t, int64(len(typedStream())), st.BytesFed)
	assert.Zero(t, st.ResyncBytes)
	assert.Zero(t, st.DecodeErrors)
}

func TestFeed_ResyncSkipsOneStrayByte(t *testing.T) {
	stream := tu.Concat([]byte{0x7F}, tu.TypedAudio(256, 512))
	d := feedAll(t, TypedFormat(2), [][]byte{stream})

	assert.Equal(t, []int32{256, 512}, d.Audio())
	assert.Equal(t, int64(1), d.Stats().ResyncBytes)
	assert.Zero(t, d.Buffered())
}

func TestFeed_ResyncAcrossGarbageRun(t *testing.T) {
	stream := tu.Concat(
		[]byte{0x00, 0xAA, 0x55, 0xFF},
		tu.TypedIMU([6]float32{1, 2, 3, 4, 5, 6}, 9),
		[]byte{0x03},
		tu.TypedAudio(7, 8),
	)
	d := feedAll(t, TypedFormat(2), tu.EveryN(stream, 5))

	assert.Equal(t, []int32{7, 8}, d.Audio())
	require.Len(t, d.IMU(), 1)
	assert.Equal(t, uint32(9), d.IMU()[0].Timestamp)
	assert.Equal(t, int64(5), d.Stats().ResyncBytes)
}

func TestFeed_MalformedIMUPayloadIsDiscarded(t *testing.T) {
	nan := tu.Float32s(float32(nanValue()))
	bad := tu.Concat([]byte{0x02}, nan, tu.Float32s(0, 0, 0, 0, 0), tu.Int32s(5))
	require.Len(t, bad, 29)

	stream := tu.Concat(bad, tu.TypedIMU([6]float32{1, 1, 1, 1, 1, 1}, 6))
	d := feedAll(t, TypedFormat(2), [][]byte{stream})

	require.Len(t, d.IMU(), 1)
	assert.Equal(t, uint32(6), d.IMU()[0].Timestamp)
	assert.Equal(t, int64(1), d.Stats().DecodeErrors)
	assert.Zero(t, d.Stats().ResyncBytes, "whole malformed record is consumed, not resynced")
	assert.Zero(t, d.Buffered())
}

func TestFeed_PartialTypedAudioWaits(t *testing.T) {
	record := tu.TypedAudio(1, 2, 3, 4)
	d, err := New(TypedFormat(4))
	require.NoError(t, err)

	d.Feed(record[:6])
	assert.Empty(t, d.Audio())
	assert.Equal(t, 6, d.Buffered())

	d.Feed(record[6:])
	assert.Equal(t, []int32{1, 2, 3, 4}, d.Audio())
	assert.Zero(t, d.Buffered())
}

func TestFeed_MarkerWaitsForPayload(t *testing.T) {
	stream := tu.Concat(tu.Int32s(1, 2), tu.MarkerIMU([6]float32{1, 2, 3, 4, 5, 6}))
	d, err := New(MarkerFormat(4))
	require.NoError(t, err)

	d.Feed(stream[:8+4+10])
	assert.Equal(t, []int32{1, 2}, d.Audio())
	assert.Empty(t, d.IMU())
	assert.Equal(t, 14, d.Buffered(), "marker and partial payload stay buffered")

	d.Feed(stream[22:])
	require.Len(t, d.IMU(), 1)
	assert.False(t, d.IMU()[0].HasTimestamp)
	assert.Zero(t, d.Buffered())
}

func TestFeed_MarkerDiscardsPartialStride(t *testing.T) {
	stream := tu.Concat(tu.Int32s(77), []byte{0x01, 0x02}, tu.MarkerIMU([6]float32{}))
	d := feedAll(t, MarkerFormat(4), [][]byte{stream})

	assert.Equal(t, []int32{77}, d.Audio())
	assert.Len(t, d.IMU(), 1)
	assert.Equal(t, int64(2), d.Stats().DiscardedBytes)
	assert.Zero(t, d.Buffered())
}

func TestFeed_MarkerHoldsBackMarkerPrefix(t *testing.T) {
	d, err := New(MarkerFormat(2))
	require.NoError(t, err)

	// One int16 sample followed by the first two marker bytes.
	d.Feed([]byte{0x05, 0x00, 0xFF, 0xFE})
	assert.Equal(t, []int32{5}, d.Audio())
	assert.Equal(t, 2, d.Buffered())

	// The rest of the marker and its payload.
	d.Feed(append([]byte{0xFD, 0xFC}, tu.Float32s(0, 0, 1, 0, 0, 0)...))
	assert.Equal(t, []int32{5}, d.Audio())
	require.Len(t, d.IMU(), 1)
	assert.Equal(t, 1.0, d.IMU()[0].AccelZ)
}

func TestFeed_MarkerPrefixThatIsNotAMarkerBecomesAudio(t *testing.T) {
	d, err := New(MarkerFormat(2))
	require.NoError(t, err)

	d.Feed([]byte{0xFF})
	assert.Empty(t, d.Audio())
	assert.Equal(t, 1, d.Buffered())

	d.Feed([]byte{0x00})
	assert.Equal(t, []int32{0x00FF}, d.Audio())
	assert.Zero(t, d.Buffered())
}

func TestFeed_BacklogStaysBounded(t *testing.T) {
	f := TypedFormat(64)
	recordSize := 1 + f.AudioPayloadSize()
	d, err := New(f)
	require.NoError(t, err)

	samples := make([]int16, 64)
	record := tu.TypedAudio(samples...)
	stream := tu.Concat(record, record, record, record, record, record, record, record)
	for _, c := range tu.EveryN(stream, 37) {
		d.Feed(c)
		assert.Less(t, d.Buffered(), recordSize)
	}
	assert.Len(t, d.Audio(), 8*64)
}

func TestFeed_EmptyChunkIsNoop(t *testing.T) {
	d, err := New(TypedFormat(2))
	require.NoError(t, err)

	d.Feed(nil)
	d.Feed([]byte{})
	assert.Zero(t, d.Stats().BytesFed)
	assert.Zero(t, d.Buffered())
}

func TestNew_RejectsInvalidFormat(t *testing.T) {
	_, err := New(Format{Framing: FramingTyped, AudioWidth: 3, SamplesPerRecord: 1, AudioID: 1, IMUID: 2})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestNew_CopiesMarker(t *testing.T) {
	f := MarkerFormat(4)
	d, err := New(f)
	require.NoError(t, err)

	f.Marker[0] = 0x00
	d.Feed(tu.MarkerIMU([6]float32{}))
	assert.Len(t, d.IMU(), 1)
}
