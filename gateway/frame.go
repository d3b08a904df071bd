package gateway

import (
	"encoding/binary"
	"math"

	apperrors "market-chat/errors"
)

// WebSocket opcodes handled by the gateway. Continuation frames are not
// supported: every inbound message must fit in a single final frame.
const (
	OpcodeContinuation byte = 0x0
	OpcodeText         byte = 0x1
	OpcodeClose        byte = 0x8
	OpcodePing         byte = 0x9
	OpcodePong         byte = 0xA
)

const (
	finBit  byte = 0x80
	maskBit byte = 0x80
)

// Frame is one decoded unit of the wire protocol. The payload is already
// unmasked.
type Frame struct {
	Opcode  byte
	Payload []byte
}

// DecodeFrame attempts to extract exactly one frame from the accumulated
// buffer. It returns (nil, 0, nil) when more bytes are needed, or the frame
// and the number of bytes consumed.
//
// Frames arriving from a client must be masked; an unmasked or fragmented
// frame is a protocol error regardless of payload length.
func DecodeFrame(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}

	opcode := buf[0] & 0x0F
	if opcode == OpcodeContinuation {
		return nil, 0, apperrors.ErrFrameFragment
	}
	if buf[1]&maskBit == 0 {
		return nil, 0, apperrors.ErrFrameUnmasked
	}

	length := uint64(buf[1] & 0x7F)
	offset := 2
	switch length {
	case 126:
		if len(buf) < offset+2 {
			return nil, 0, nil
		}
		length = uint64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case 127:
		if len(buf) < offset+8 {
			return nil, 0, nil
		}
		length = binary.BigEndian.Uint64(buf[offset:])
		offset += 8
	}
	if length > math.MaxInt64 || uint64(int(length)) != length {
		return nil, 0, apperrors.ErrFrameTooLarge
	}

	if len(buf) < offset+4 {
		return nil, 0, nil
	}
	var maskKey [4]byte
	copy(maskKey[:], buf[offset:offset+4])
	offset += 4

	// A length just inside the signed range can still overflow int once the
	// header size is added; the bound check stays in uint64.
	total := uint64(offset) + length
	if total > uint64(math.MaxInt) {
		return nil, 0, apperrors.ErrFrameTooLarge
	}
	if uint64(len(buf)) < total {
		return nil, 0, nil
	}

	payload := make([]byte, length)
	for i := 0; i < int(length); i++ {
		payload[i] = buf[offset+i] ^ maskKey[i%4]
	}

	return &Frame{Opcode: opcode, Payload: payload}, int(total), nil
}

// EncodeFrame serializes a single final server-to-client frame. Outbound
// frames are never masked. The length field width follows the payload size:
// 7-bit inline, 16-bit for up to 65535 bytes, 64-bit beyond.
func EncodeFrame(opcode byte, payload []byte) []byte {
	length := len(payload)

	var header []byte
	switch {
	case length < 126:
		header = []byte{finBit | opcode, byte(length)}
	case length <= 0xFFFF:
		header = make([]byte, 4)
		header[0] = finBit | opcode
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:], uint16(length))
	default:
		header = make([]byte, 10)
		header[0] = finBit | opcode
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(length))
	}

	frame := make([]byte, 0, len(header)+length)
	frame = append(frame, header...)
	return append(frame, payload...)
}
