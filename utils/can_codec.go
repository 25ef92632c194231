package utils

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

// EncodeFrame packs physical values into a little-endian payload. Signals
// missing from values take their default; every value is clamped to the
// signal's [min, max] and to what the bit field can hold.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) ([]byte, uint32, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return nil, 0, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return nil, 0, fmt.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	var payload uint64
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok || math.IsNaN(v) {
			v = s.Default
		}
		v = clamp(v, s.Min, s.Max)

		raw := int64(math.Round((v - s.Offset) / s.Factor))
		raw = clampRaw(raw, s.BitLength, s.Signed)
		payload = setBits(payload, s.StartBit, s.BitLength, rawToUnsigned(raw, s.BitLength))
	}

	out := make([]byte, fd.DLC)
	for i := 0; i < fd.DLC; i++ {
		out[i] = byte(payload >> (8 * i))
	}
	return out, fd.ID, nil
}

// EncodeEinrideFrame produces a can.Frame ready to transmit.
func (m *CANMap) EncodeEinrideFrame(frameName string, values map[string]float64) (can.Frame, error) {
	payload, id, err := m.EncodeFrame(frameName, values)
	if err != nil {
		return can.Frame{}, err
	}

	var f can.Frame
	f.ID = id
	f.Length = uint8(len(payload))
	copy(f.Data[:], payload)
	return f, nil
}

// DecodeFrame unpacks every signal of a known frame into physical values.
func (m *CANMap) DecodeFrame(frameID uint32, data []byte) (map[string]float64, error) {
	fd, err := m.FrameByID(frameID)
	if err != nil {
		return nil, err
	}
	if len(data) < fd.DLC {
		return nil, fmt.Errorf("frame 0x%X expects DLC %d, got %d", frameID, fd.DLC, len(data))
	}

	var payload uint64
	for i := 0; i < fd.DLC && i < 8; i++ {
		payload |= uint64(data[i]) << (8 * i)
	}

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		u := getBits(payload, s.StartBit, s.BitLength)
		raw := unsignedToRawInt64(u, s.BitLength, s.Signed)
		out[s.Name] = float64(raw)*s.Factor + s.Offset
	}
	return out, nil
}

// DecodeEinrideFrame decodes a received can.Frame.
func (m *CANMap) DecodeEinrideFrame(f can.Frame) (map[string]float64, error) {
	return m.DecodeFrame(f.ID, f.Data[:f.Length])
}

func bitMask(bitLen int) uint64 {
	if bitLen >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << bitLen) - 1
}

func getBits(payload uint64, startBit, bitLen int) uint64 {
	if bitLen <= 0 || bitLen > 64 {
		return 0
	}
	return (payload >> startBit) & bitMask(bitLen)
}

func setBits(payload uint64, startBit, bitLen int, value uint64) uint64 {
	if bitLen <= 0 || bitLen > 64 {
		return payload
	}
	mask := bitMask(bitLen)
	payload &^= mask << startBit
	payload |= (value & mask) << startBit
	return payload
}

func unsignedToRawInt64(u uint64, bitLen int, signed bool) int64 {
	if !signed || bitLen >= 64 {
		return int64(u)
	}
	signBit := uint64(1) << (bitLen - 1)
	if u&signBit == 0 {
		return int64(u)
	}
	return int64(u | ^bitMask(bitLen)) // sign-extend
}

func rawToUnsigned(raw int64, bitLen int) uint64 {
	return uint64(raw) & bitMask(bitLen)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampRaw(raw int64, bitLen int, signed bool) int64 {
	if bitLen <= 0 || bitLen > 63 {
		return raw
	}
	if !signed {
		max := int64((uint64(1) << bitLen) - 1)
		if raw < 0 {
			return 0
		}
		if raw > max {
			return max
		}
		return raw
	}
	min := -(int64(1) << (bitLen - 1))
	max := (int64(1) << (bitLen - 1)) - 1
	if raw < min {
		return min
	}
	if raw > max {
		return max
	}
	return raw
}
