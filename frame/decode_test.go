package frame

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llhlol/IWR1443-data-collection/errors"
)

// tlvDef is a synthesized TLV for test frames.
type tlvDef struct {
	typ     uint32
	payload []byte
}

// buildFrame assembles a complete frame with a correct packetLength.
func buildFrame(frameNumber uint32, tlvs ...tlvDef) []byte {
	total := HeaderSize
	for _, tlv := range tlvs {
		total += tlvHeaderSize + len(tlv.payload)
	}

	b := make([]byte, 0, total)
	b = append(b, Magic[:]...)
	b = binary.LittleEndian.AppendUint32(b, 3)                  // version
	b = binary.LittleEndian.AppendUint32(b, uint32(total))      // packetLength
	b = binary.LittleEndian.AppendUint32(b, 0x16)               // platform
	b = binary.LittleEndian.AppendUint32(b, frameNumber)        // frameNumber
	b = binary.LittleEndian.AppendUint32(b, 1000)               // time
	b = binary.LittleEndian.AppendUint32(b, 0)                  // detectedObjectCount
	b = binary.LittleEndian.AppendUint32(b, uint32(len(tlvs)))  // tlvCount

	for _, tlv := range tlvs {
		b = binary.LittleEndian.AppendUint32(b, tlv.typ)
		b = binary.LittleEndian.AppendUint32(b, uint32(len(tlv.payload)))
		b = append(b, tlv.payload...)
	}
	return b
}

func u32Payload(values ...uint32) []byte {
	b := make([]byte, 0, len(values)*4)
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

func f32Payload(values ...float32) []byte {
	b := make([]byte, 0, len(values)*4)
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

// statisticsFrame is the single-Statistics-frame scenario: one TLV of
// type 6 carrying six counters 10..60.
func statisticsFrame() []byte {
	return buildFrame(1, tlvDef{typ: 6, payload: u32Payload(10, 20, 30, 40, 50, 60)})
}

func TestDecode_StatisticsFrame(t *testing.T) {
	out, err := Decode(statisticsFrame())
	require.NoError(t, err)

	s := string(out)
	assert.True(t, json.Valid(out), "decoder output must be a valid JSON document: %s", s)

	assert.Contains(t, s, `"version": 3`)
	assert.Contains(t, s, `"platform": 22`)
	assert.Contains(t, s, `"frameNumber": 1`)
	assert.Contains(t, s, `"time": 1000`)
	assert.Contains(t, s, `"detectedObjectCount": 0`)
	assert.Contains(t, s, `"tlvCount": 1`)

	assert.Contains(t, s, `"Type": "Statistics"`)
	assert.Contains(t, s, `"interFrameProcessingTime": 10`)
	assert.Contains(t, s, `"transmitOutputTime": 20`)
	assert.Contains(t, s, `"interFrameProcessingMargin": 30`)
	assert.Contains(t, s, `"interChirpProcessingMargin": 40`)
	assert.Contains(t, s, `"activeFrameCPULoad": 50`)
	assert.Contains(t, s, `"interFrameCPULoad": 60`)
}

func TestDecode_DetectedPoints(t *testing.T) {
	payload := f32Payload(
		1.0, 2.0, 3.0, 0.5,
		-1.0, -2.0, -3.0, -0.5,
	)
	out, err := Decode(buildFrame(2, tlvDef{typ: 1, payload: payload}))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `"Type": "DetectedPoints"`)
	assert.Contains(t, s, `{"x": 1, "y": 2, "z": 3, "doppler": 0.5}`)
	assert.Contains(t, s, `{"x": -1, "y": -2, "z": -3, "doppler": -0.5}`)
	assert.True(t, json.Valid(out))
}

func TestDecode_UnknownTLVTolerated(t *testing.T) {
	out, err := Decode(buildFrame(3, tlvDef{typ: 9999, payload: []byte{1, 2, 3, 4}}))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `"Type": "9999"`)
	assert.NotContains(t, s, `"Data"`, "unknown types carry no Data field")
	assert.True(t, json.Valid(out))
}

func TestDecode_NamedTypesWithoutLayout(t *testing.T) {
	out, err := Decode(buildFrame(4,
		tlvDef{typ: 3, payload: []byte{0xAA}},
		tlvDef{typ: 5, payload: []byte{0xBB, 0xCC}},
		tlvDef{typ: 1021, payload: u32Payload(1)},
	))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `{"Type": "NoiseFloorProfile"}`)
	assert.Contains(t, s, `{"Type": "RangeDopplerHeatmap"}`)
	assert.Contains(t, s, `{"Type": "PresenceDetection"}`)
}

func TestDecode_TLVCountRoundTrip(t *testing.T) {
	tlvs := []tlvDef{
		{typ: 6, payload: u32Payload(1, 2, 3, 4, 5, 6)},
		{typ: 1, payload: f32Payload(0, 0, 0, 0)},
		{typ: 7, payload: []byte{1, 0, 2, 0}},
		{typ: 1011, payload: []byte{9, 8, 7}},
		{typ: 4242, payload: nil},
	}
	out, err := Decode(buildFrame(5, tlvs...))
	require.NoError(t, err)

	assert.Equal(t, len(tlvs), strings.Count(string(out), `"Type"`),
		"decoder must emit exactly one record per TLV, in order")
	assert.True(t, json.Valid(out))
}

func TestDecode_Q9RealRendering(t *testing.T) {
	// bit 0 sign, bits 1-9 integer, bits 10-14 raw fraction
	neg := uint16(1 | 5<<1 | 3<<10)  // -5.3
	pos := uint16(2<<1 | 31<<10)     // 2.31
	zero := uint16(0)                // 0.0

	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:], neg)
	binary.LittleEndian.PutUint16(payload[2:], pos)
	binary.LittleEndian.PutUint16(payload[4:], zero)

	out, err := Decode(buildFrame(6, tlvDef{typ: 2, payload: payload}))
	require.NoError(t, err)

	assert.Contains(t, string(out), `"Data": [-5.3, 2.31, 0.0]`)
}

func TestDecode_SideInfo(t *testing.T) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint16(payload[0:], 120)
	binary.LittleEndian.PutUint16(payload[2:], 15)
	binary.LittleEndian.PutUint16(payload[4:], 98)
	binary.LittleEndian.PutUint16(payload[6:], 22)

	out, err := Decode(buildFrame(7, tlvDef{typ: 7, payload: payload}))
	require.NoError(t, err)

	assert.Contains(t, string(out),
		`"Data": [{"snr": 120, "noise": 15}, {"snr": 98, "noise": 22}]`)
}

func TestDecode_TemperatureStatistics(t *testing.T) {
	payload := make([]byte, temperatureStatsSize)
	binary.LittleEndian.PutUint32(payload[0:], 1)    // tempReportValid
	binary.LittleEndian.PutUint32(payload[4:], 5000) // time
	for i := 0; i < 10; i++ {
		binary.LittleEndian.PutUint16(payload[8+i*2:], uint16(30+i))
	}

	out, err := Decode(buildFrame(8, tlvDef{typ: 9, payload: payload}))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `"tempReportValid": 1`)
	assert.Contains(t, s, `"tmpRx0Sens": 30`)
	assert.Contains(t, s, `"tmpDig1Sens": 39`)
	assert.True(t, json.Valid(out))
}

func TestDecode_SphericalCoordinates(t *testing.T) {
	payload := f32Payload(4.5, 0.25, -0.125, 1.5)
	out, err := Decode(buildFrame(9, tlvDef{typ: 1000, payload: payload}))
	require.NoError(t, err)

	assert.Contains(t, string(out),
		`{"range": 4.5, "azimuth": 0.25, "elevation": -0.125, "doppler": 1.5}`)
}

func TestDecode_TargetList(t *testing.T) {
	values := make([]float32, 0, 28)
	values = append(values, 7)       // trackID
	values = append(values, 1, 2, 3) // position
	values = append(values, 4, 5, 6) // velocity
	values = append(values, 7, 8, 9) // acceleration
	for i := 0; i < 9; i++ {         // errorCovariance row-major
		values = append(values, float32(i))
	}
	values = append(values, 0, 0, 0, 0, 0, 0, 0) // bytes 76-103, not rendered
	values = append(values, 0.5, 0.75)           // gatingFunctionGain, confidenceLevel

	out, err := Decode(buildFrame(10, tlvDef{typ: 1010, payload: f32Payload(values...)}))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `"trackID": 7`)
	assert.Contains(t, s, `"position": {"x": 1, "y": 2, "z": 3}`)
	assert.Contains(t, s, `"velocity": {"x": 4, "y": 5, "z": 6}`)
	assert.Contains(t, s, `"acceleration": {"x": 7, "y": 8, "z": 9}`)
	assert.Contains(t, s, `"errorCovariance": [[0, 1, 2], [3, 4, 5], [6, 7, 8]]`)
	assert.Contains(t, s, `"gatingFunctionGain": 0.5`)
	assert.Contains(t, s, `"confidenceLevel": 0.75`)
	assert.True(t, json.Valid(out))
}

func TestDecode_TargetIndex(t *testing.T) {
	out, err := Decode(buildFrame(11, tlvDef{typ: 1011, payload: []byte{0, 1, 255}}))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Data": [0, 1, 255]`)
}

func TestDecode_CompressedPointCloud(t *testing.T) {
	payload := f32Payload(0.01, 0.01, 0.25, 0.05, 0.5) // unit scales
	point := make([]byte, compressedCloudPointSize)
	elevation := int8(-3)
	point[0] = byte(elevation) // elevation
	point[1] = byte(int8(12)) // azimuth
	doppler := int16(-40)
	binary.LittleEndian.PutUint16(point[2:], uint16(doppler)) // doppler
	binary.LittleEndian.PutUint16(point[4:], 321)                // range
	binary.LittleEndian.PutUint16(point[6:], 77)                 // snr
	payload = append(payload, point...)

	out, err := Decode(buildFrame(12, tlvDef{typ: 1020, payload: payload}))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `"Header": {"elevationUnit": 0.01`)
	assert.Contains(t, s, `"snrUnit": 0.5`)
	assert.Contains(t, s, `{"elevation": -3, "azimuth": 12, "doppler": -40, "range": 321, "snr": 77}`)
	assert.True(t, json.Valid(out))
}

func TestDecode_ShortHeader(t *testing.T) {
	_, err := Decode(Magic[:])
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFrameTruncated))
}

func TestDecode_BadMagic(t *testing.T) {
	data := statisticsFrame()
	data[0] = 0xFF
	_, err := Decode(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFrameResyncLost))
}

func TestDecode_TLVOverrunDropsFrame(t *testing.T) {
	// Declared payload length exceeds the bytes actually present.
	data := buildFrame(13, tlvDef{typ: 6, payload: u32Payload(1, 2, 3, 4, 5, 6)})
	binary.LittleEndian.PutUint32(data[HeaderSize+4:], 4096)

	_, err := Decode(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTLVOverrun))
}

func TestDecode_TruncatedTLVHeader(t *testing.T) {
	// tlvCount says one TLV but no bytes follow the header.
	data := buildFrame(14)
	binary.LittleEndian.PutUint32(data[32:], 1)

	_, err := Decode(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTLVOverrun))
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "DetectedPoints", Type(1).String())
	assert.Equal(t, "OccupancyStateMachineOutput", Type(1030).String())
	assert.Equal(t, "31337", Type(31337).String())
}
