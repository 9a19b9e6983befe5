// Package frame models the IWR1443 telemetry wire format: the magic-prefixed
// frame header, its TLV records, and the JSON rendering emitted once per
// decoded frame. All multi-byte fields are little-endian on the wire.
package frame

import (
	"encoding/binary"
	"strconv"
)

// Magic is the 8-byte frame prefix: the 16-bit values 0x0102, 0x0304,
// 0x0506, 0x0708 in little-endian order.
var Magic = [8]byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}

const (
	// MagicSize is the length of the frame magic prefix
	MagicSize = 8
	// HeaderSize is the full frame header including the magic
	HeaderSize = 36
	// tlvHeaderSize covers the type and length words of one TLV
	tlvHeaderSize = 8
)

// Header is the fixed frame header that follows the magic.
type Header struct {
	Version             uint32
	PacketLength        uint32
	Platform            uint32
	FrameNumber         uint32
	Time                uint32
	DetectedObjectCount uint32
	TLVCount            uint32
}

// parseHeader decodes the header from a frame slice of at least HeaderSize
// bytes.
func parseHeader(b []byte) Header {
	return Header{
		Version:             binary.LittleEndian.Uint32(b[8:]),
		PacketLength:        binary.LittleEndian.Uint32(b[12:]),
		Platform:            binary.LittleEndian.Uint32(b[16:]),
		FrameNumber:         binary.LittleEndian.Uint32(b[20:]),
		Time:                binary.LittleEndian.Uint32(b[24:]),
		DetectedObjectCount: binary.LittleEndian.Uint32(b[28:]),
		TLVCount:            binary.LittleEndian.Uint32(b[32:]),
	}
}

// Type identifies a TLV payload layout.
type Type uint32

// TLV type codes emitted by the IWR1443 firmware families.
const (
	TypeDetectedPoints                Type = 1
	TypeRangeProfile                  Type = 2
	TypeNoiseFloorProfile             Type = 3
	TypeAzimuthStaticHeatmap          Type = 4
	TypeRangeDopplerHeatmap           Type = 5
	TypeStatistics                    Type = 6
	TypeDetectedPointsSideInfo        Type = 7
	TypeAzimuthElevationStaticHeatmap Type = 8
	TypeTemperatureStatistics         Type = 9
	TypeSphericalCoordinates          Type = 1000
	TypeTargetList                    Type = 1010
	TypeTargetIndex                   Type = 1011
	TypeSphericalCompressedPointCloud Type = 1020
	TypePresenceDetection             Type = 1021
	TypeOccupancyStateMachineOutput   Type = 1030
)

// String returns the fixed type name; unrecognized codes render their
// numeric value so traversal output stays self-describing.
func (t Type) String() string {
	switch t {
	case TypeDetectedPoints:
		return "DetectedPoints"
	case TypeRangeProfile:
		return "RangeProfile"
	case TypeNoiseFloorProfile:
		return "NoiseFloorProfile"
	case TypeAzimuthStaticHeatmap:
		return "AzimuthStaticHeatmap"
	case TypeRangeDopplerHeatmap:
		return "RangeDopplerHeatmap"
	case TypeStatistics:
		return "Statistics"
	case TypeDetectedPointsSideInfo:
		return "DetectedPointsSideInfo"
	case TypeAzimuthElevationStaticHeatmap:
		return "AzimuthElevationStaticHeatmap"
	case TypeTemperatureStatistics:
		return "TemperatureStatistics"
	case TypeSphericalCoordinates:
		return "SphericalCoordinates"
	case TypeTargetList:
		return "TargetList"
	case TypeTargetIndex:
		return "TargetIndex"
	case TypeSphericalCompressedPointCloud:
		return "SphericalCompressedPointCloud"
	case TypePresenceDetection:
		return "PresenceDetection"
	case TypeOccupancyStateMachineOutput:
		return "OccupancyStateMachineOutput"
	default:
		return strconv.FormatUint(uint64(t), 10)
	}
}

// Per-element payload sizes, header-exclusive.
const (
	detectedPointSize        = 16  // 4 x f32
	q9RealSize               = 2   // packed 16-bit fixed point
	statisticsSize           = 24  // 6 x u32
	sideInfoSize             = 4   // snr u16 + noise u16
	temperatureStatsSize     = 28  // 2 x u32 + 10 x u16
	sphericalCoordinateSize  = 16  // 4 x f32
	trackedTargetSize        = 112 // 28 x f32
	compressedCloudHeadSize  = 20  // 5 x f32 unit scales
	compressedCloudPointSize = 8   // i8, i8, i16, u16, u16, tightly packed
)
