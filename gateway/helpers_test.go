package gateway

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// clientFrame builds a masked client-to-server frame the way a browser
// would, with the same length tiers as the codec.
func clientFrame(opcode byte, payload []byte) []byte {
	maskKey := [4]byte{0x12, 0x34, 0x56, 0x78}
	length := len(payload)

	var frame []byte
	switch {
	case length < 126:
		frame = []byte{finBit | opcode, maskBit | byte(length)}
	case length <= 0xFFFF:
		frame = []byte{finBit | opcode, maskBit | 126, 0, 0}
		binary.BigEndian.PutUint16(frame[2:], uint16(length))
	default:
		frame = append([]byte{finBit | opcode, maskBit | 127}, make([]byte, 8)...)
		binary.BigEndian.PutUint64(frame[2:], uint64(length))
	}
	frame = append(frame, maskKey[:]...)
	for i, b := range payload {
		frame = append(frame, b^maskKey[i%4])
	}
	return frame
}

// decodeServerFrame parses one unmasked server-to-client frame.
// Returns opcode, payload and bytes consumed, or consumed == 0 when the
// buffer does not hold a complete frame yet.
func decodeServerFrame(t *testing.T, buf []byte) (byte, []byte, int) {
	t.Helper()
	if len(buf) < 2 {
		return 0, nil, 0
	}
	require.Zero(t, buf[1]&maskBit, "server frames must not be masked")

	opcode := buf[0] & 0x0F
	length := int(buf[1] & 0x7F)
	offset := 2
	switch length {
	case 126:
		if len(buf) < 4 {
			return 0, nil, 0
		}
		length = int(binary.BigEndian.Uint16(buf[2:]))
		offset = 4
	case 127:
		if len(buf) < 10 {
			return 0, nil, 0
		}
		length = int(binary.BigEndian.Uint64(buf[2:]))
		offset = 10
	}
	if len(buf) < offset+length {
		return 0, nil, 0
	}
	return opcode, buf[offset : offset+length], offset + length
}
