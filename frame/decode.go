package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/llhlol/IWR1443-data-collection/errors"
)

// Decode parses one complete frame and renders it as a single JSON object.
// data must begin with the magic and contain the whole frame; the slice is
// only read. Any structural violation (short header, bad magic, TLV
// overrunning the frame) returns an error and the frame is dropped by the
// caller.
//
// The record carries no trailing separator; sinks emit newline-delimited
// JSON, one object per frame.
func Decode(data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d bytes, header needs %d", errors.ErrFrameTruncated, len(data), HeaderSize),
			"Decoder", "Decode", "header bounds check")
	}
	if !bytes.HasPrefix(data, Magic[:]) {
		return nil, errors.WrapInvalid(errors.ErrFrameResyncLost,
			"Decoder", "Decode", "magic prefix check")
	}

	header := parseHeader(data)

	out := make([]byte, 0, 256+len(data)*4)
	out = append(out, `{"Header": `...)
	out = appendHeaderJSON(out, header)
	out = append(out, `, "TLVs": [`...)

	offset := HeaderSize
	for i := uint32(0); i < header.TLVCount; i++ {
		if len(data)-offset < tlvHeaderSize {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: tlv %d header at offset %d", errors.ErrTLVOverrun, i, offset),
				"Decoder", "Decode", "tlv header bounds check")
		}

		tlvType := Type(binary.LittleEndian.Uint32(data[offset:]))
		tlvLength := int(binary.LittleEndian.Uint32(data[offset+4:]))
		payload := data[offset+tlvHeaderSize:]
		if tlvLength < 0 || tlvLength > len(payload) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: tlv %d type %s declares %d of %d remaining bytes",
					errors.ErrTLVOverrun, i, tlvType, tlvLength, len(payload)),
				"Decoder", "Decode", "tlv payload bounds check")
		}

		if i != 0 {
			out = append(out, ", "...)
		}
		var err error
		out, err = appendTLVJSON(out, tlvType, payload[:tlvLength])
		if err != nil {
			return nil, err
		}

		offset += tlvHeaderSize + tlvLength
	}

	out = append(out, "]}"...)
	return out, nil
}

func appendHeaderJSON(b []byte, h Header) []byte {
	b = append(b, `{"version": `...)
	b = strconv.AppendUint(b, uint64(h.Version), 10)
	b = append(b, `, "packetLength": `...)
	b = strconv.AppendUint(b, uint64(h.PacketLength), 10)
	b = append(b, `, "platform": `...)
	b = strconv.AppendUint(b, uint64(h.Platform), 10)
	b = append(b, `, "frameNumber": `...)
	b = strconv.AppendUint(b, uint64(h.FrameNumber), 10)
	b = append(b, `, "time": `...)
	b = strconv.AppendUint(b, uint64(h.Time), 10)
	b = append(b, `, "detectedObjectCount": `...)
	b = strconv.AppendUint(b, uint64(h.DetectedObjectCount), 10)
	b = append(b, `, "tlvCount": `...)
	b = strconv.AppendUint(b, uint64(h.TLVCount), 10)
	return append(b, '}')
}

// appendTLVJSON renders one {"Type": ..., "Data": ...} record. Types with
// no decoded layout render the name alone; traversal continues regardless.
func appendTLVJSON(b []byte, t Type, payload []byte) ([]byte, error) {
	b = append(b, `{"Type": "`...)
	b = append(b, t.String()...)
	b = append(b, '"')

	switch t {
	case TypeDetectedPoints:
		b = append(b, `, "Data": `...)
		b = appendDetectedPoints(b, payload)
	case TypeRangeProfile:
		b = append(b, `, "Data": `...)
		b = appendRangeProfile(b, payload)
	case TypeStatistics:
		if len(payload) < statisticsSize {
			return nil, shortPayload(t, len(payload), statisticsSize)
		}
		b = append(b, `, "Data": `...)
		b = appendStatistics(b, payload)
	case TypeDetectedPointsSideInfo:
		b = append(b, `, "Data": `...)
		b = appendSideInfo(b, payload)
	case TypeTemperatureStatistics:
		if len(payload) < temperatureStatsSize {
			return nil, shortPayload(t, len(payload), temperatureStatsSize)
		}
		b = append(b, `, "Data": `...)
		b = appendTemperatureStats(b, payload)
	case TypeSphericalCoordinates:
		b = append(b, `, "Data": `...)
		b = appendSphericalCoordinates(b, payload)
	case TypeTargetList:
		b = append(b, `, "Data": `...)
		b = appendTargetList(b, payload)
	case TypeTargetIndex:
		b = append(b, `, "Data": `...)
		b = appendTargetIndex(b, payload)
	case TypeSphericalCompressedPointCloud:
		if len(payload) < compressedCloudHeadSize {
			return nil, shortPayload(t, len(payload), compressedCloudHeadSize)
		}
		b = append(b, `, "Data": `...)
		b = appendCompressedCloud(b, payload)
	}

	return append(b, '}'), nil
}

func shortPayload(t Type, got, want int) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s payload %d bytes, need %d", errors.ErrTLVOverrun, t, got, want),
		"Decoder", "Decode", "payload size check")
}

// appendFloat32 renders an f32 with the shortest representation that
// round-trips the value.
func appendFloat32(b []byte, bits uint32) []byte {
	return strconv.AppendFloat(b, float64(math.Float32frombits(bits)), 'g', -1, 32)
}

func f32At(p []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(p[off:])
}

func appendDetectedPoints(b, p []byte) []byte {
	count := len(p) / detectedPointSize
	b = append(b, '[')
	for i := 0; i < count; i++ {
		if i != 0 {
			b = append(b, ", "...)
		}
		e := p[i*detectedPointSize:]
		b = append(b, `{"x": `...)
		b = appendFloat32(b, f32At(e, 0))
		b = append(b, `, "y": `...)
		b = appendFloat32(b, f32At(e, 4))
		b = append(b, `, "z": `...)
		b = appendFloat32(b, f32At(e, 8))
		b = append(b, `, "doppler": `...)
		b = appendFloat32(b, f32At(e, 12))
		b = append(b, '}')
	}
	return append(b, ']')
}

// appendQ9Real renders the radar's packed 16-bit fixed point value:
// bit 0 sign, bits 1-9 integer magnitude, bits 10-14 fractional magnitude.
// The fraction is emitted as the raw 5-bit field, matching the device
// stream's historical rendering.
func appendQ9Real(b []byte, raw uint16) []byte {
	sign := raw & 0x1
	integer := (raw >> 1) & 0x1FF
	fraction := (raw >> 10) & 0x1F

	if sign != 0 {
		b = append(b, '-')
	}
	b = strconv.AppendUint(b, uint64(integer), 10)
	b = append(b, '.')
	return strconv.AppendUint(b, uint64(fraction), 10)
}

func appendRangeProfile(b, p []byte) []byte {
	count := len(p) / q9RealSize
	b = append(b, '[')
	for i := 0; i < count; i++ {
		if i != 0 {
			b = append(b, ", "...)
		}
		b = appendQ9Real(b, binary.LittleEndian.Uint16(p[i*q9RealSize:]))
	}
	return append(b, ']')
}

func appendStatistics(b, p []byte) []byte {
	names := [...]string{
		"interFrameProcessingTime",
		"transmitOutputTime",
		"interFrameProcessingMargin",
		"interChirpProcessingMargin",
		"activeFrameCPULoad",
		"interFrameCPULoad",
	}
	b = append(b, '{')
	for i, name := range names {
		if i != 0 {
			b = append(b, ", "...)
		}
		b = append(b, '"')
		b = append(b, name...)
		b = append(b, `": `...)
		b = strconv.AppendUint(b, uint64(binary.LittleEndian.Uint32(p[i*4:])), 10)
	}
	return append(b, '}')
}

func appendSideInfo(b, p []byte) []byte {
	count := len(p) / sideInfoSize
	b = append(b, '[')
	for i := 0; i < count; i++ {
		if i != 0 {
			b = append(b, ", "...)
		}
		e := p[i*sideInfoSize:]
		b = append(b, `{"snr": `...)
		b = strconv.AppendUint(b, uint64(binary.LittleEndian.Uint16(e)), 10)
		b = append(b, `, "noise": `...)
		b = strconv.AppendUint(b, uint64(binary.LittleEndian.Uint16(e[2:])), 10)
		b = append(b, '}')
	}
	return append(b, ']')
}

func appendTemperatureStats(b, p []byte) []byte {
	b = append(b, `{"tempReportValid": `...)
	b = strconv.AppendUint(b, uint64(binary.LittleEndian.Uint32(p)), 10)
	b = append(b, `, "time": `...)
	b = strconv.AppendUint(b, uint64(binary.LittleEndian.Uint32(p[4:])), 10)

	sensors := [...]string{
		"tmpRx0Sens", "tmpRx1Sens", "tmpRx2Sens", "tmpRx3Sens",
		"tmpTx0Sens", "tmpTx1Sens", "tmpTx2Sens", "tmpPmSens",
		"tmpDig0Sens", "tmpDig1Sens",
	}
	for i, name := range sensors {
		b = append(b, `, "`...)
		b = append(b, name...)
		b = append(b, `": `...)
		b = strconv.AppendUint(b, uint64(binary.LittleEndian.Uint16(p[8+i*2:])), 10)
	}
	return append(b, '}')
}

func appendSphericalCoordinates(b, p []byte) []byte {
	count := len(p) / sphericalCoordinateSize
	b = append(b, '[')
	for i := 0; i < count; i++ {
		if i != 0 {
			b = append(b, ", "...)
		}
		e := p[i*sphericalCoordinateSize:]
		b = append(b, `{"range": `...)
		b = appendFloat32(b, f32At(e, 0))
		b = append(b, `, "azimuth": `...)
		b = appendFloat32(b, f32At(e, 4))
		b = append(b, `, "elevation": `...)
		b = appendFloat32(b, f32At(e, 8))
		b = append(b, `, "doppler": `...)
		b = appendFloat32(b, f32At(e, 12))
		b = append(b, '}')
	}
	return append(b, ']')
}

func appendVec3(b, e []byte, name string) []byte {
	b = append(b, `"`...)
	b = append(b, name...)
	b = append(b, `": {"x": `...)
	b = appendFloat32(b, f32At(e, 0))
	b = append(b, `, "y": `...)
	b = appendFloat32(b, f32At(e, 4))
	b = append(b, `, "z": `...)
	b = appendFloat32(b, f32At(e, 8))
	return append(b, '}')
}

func appendTargetList(b, p []byte) []byte {
	count := len(p) / trackedTargetSize
	b = append(b, '[')
	for i := 0; i < count; i++ {
		if i != 0 {
			b = append(b, ", "...)
		}
		e := p[i*trackedTargetSize:]
		b = append(b, `{"trackID": `...)
		b = appendFloat32(b, f32At(e, 0))
		b = append(b, ", "...)
		b = appendVec3(b, e[4:], "position")
		b = append(b, ", "...)
		b = appendVec3(b, e[16:], "velocity")
		b = append(b, ", "...)
		b = appendVec3(b, e[28:], "acceleration")
		b = append(b, `, "errorCovariance": [`...)
		for row := 0; row < 3; row++ {
			if row != 0 {
				b = append(b, ", "...)
			}
			b = append(b, '[')
			for col := 0; col < 3; col++ {
				if col != 0 {
					b = append(b, ", "...)
				}
				b = appendFloat32(b, f32At(e, 40+(row*3+col)*4))
			}
			b = append(b, ']')
		}
		b = append(b, `], "gatingFunctionGain": `...)
		b = appendFloat32(b, f32At(e, 104))
		b = append(b, `, "confidenceLevel": `...)
		b = appendFloat32(b, f32At(e, 108))
		b = append(b, '}')
	}
	return append(b, ']')
}

func appendTargetIndex(b, p []byte) []byte {
	b = append(b, '[')
	for i, v := range p {
		if i != 0 {
			b = append(b, ", "...)
		}
		b = strconv.AppendUint(b, uint64(v), 10)
	}
	return append(b, ']')
}

func appendCompressedCloud(b, p []byte) []byte {
	b = append(b, `{"Header": {"elevationUnit": `...)
	b = appendFloat32(b, f32At(p, 0))
	b = append(b, `, "azimuthUnit": `...)
	b = appendFloat32(b, f32At(p, 4))
	b = append(b, `, "dopplerUnit": `...)
	b = appendFloat32(b, f32At(p, 8))
	b = append(b, `, "rangeUnit": `...)
	b = appendFloat32(b, f32At(p, 12))
	b = append(b, `, "snrUnit": `...)
	b = appendFloat32(b, f32At(p, 16))
	b = append(b, `}, "Points": [`...)

	points := p[compressedCloudHeadSize:]
	count := len(points) / compressedCloudPointSize
	for i := 0; i < count; i++ {
		if i != 0 {
			b = append(b, ", "...)
		}
		e := points[i*compressedCloudPointSize:]
		b = append(b, `{"elevation": `...)
		b = strconv.AppendInt(b, int64(int8(e[0])), 10)
		b = append(b, `, "azimuth": `...)
		b = strconv.AppendInt(b, int64(int8(e[1])), 10)
		b = append(b, `, "doppler": `...)
		b = strconv.AppendInt(b, int64(int16(binary.LittleEndian.Uint16(e[2:]))), 10)
		b = append(b, `, "range": `...)
		b = strconv.AppendUint(b, uint64(binary.LittleEndian.Uint16(e[4:])), 10)
		b = append(b, `, "snr": `...)
		b = strconv.AppendUint(b, uint64(binary.LittleEndian.Uint16(e[6:])), 10)
		b = append(b, '}')
	}
	return append(b, "]}"...)
}
