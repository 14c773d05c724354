package fingerprint

import (
	"encoding/binary"
	"fmt"
)

// Wire protocol constants for R307-family optical sensors.
//
// Every frame on the wire has the same shape:
//
//	Byte 0-1:  Header (0xEF01, big-endian)
//	Byte 2-5:  Module address (big-endian, 0xFFFFFFFF on stock sensors)
//	Byte 6:    Packet ID (command, data, ack, end-of-data)
//	Byte 7-8:  Length (big-endian, payload size + 2 checksum bytes)
//	Byte 9+:   Payload (command/confirmation byte + arguments)
//	Last 2:    Checksum (big-endian, sum of bytes from packet ID through
//	           payload, truncated to 16 bits)
const (
	headerWord     uint16 = 0xEF01
	defaultAddress uint32 = 0xFFFFFFFF

	// Packet IDs.
	packetCommand byte = 0x01
	packetData    byte = 0x02
	packetAck     byte = 0x07
	packetEndData byte = 0x08

	// Command codes.
	cmdGetImage       byte = 0x01
	cmdGenChar        byte = 0x02
	cmdSearch         byte = 0x04
	cmdRegModel       byte = 0x05
	cmdStore          byte = 0x06
	cmdDeleteChar     byte = 0x0C
	cmdVerifyPassword byte = 0x13

	// Confirmation codes.
	ackOK          byte = 0x00
	ackNoFinger    byte = 0x02
	ackNoMatch     byte = 0x09
	ackBadPassword byte = 0x13

	// preamble covers header(2) + address(4) + packet ID(1) + length(2).
	preambleSize = 9

	// checksumSize trails every payload.
	checksumSize = 2

	// maxPayloadSize bounds a frame's payload. Command and ack payloads
	// are tiny; anything larger means the stream is desynchronised.
	maxPayloadSize = 64
)

// Template library bounds and scoring.
const (
	// MinSlot and MaxSlot delimit the sensor's template library.
	MinSlot uint16 = 1
	MaxSlot uint16 = 162

	// searchStart and searchCount cover the whole library in one search.
	searchStart uint16 = 0
	searchCount uint16 = 163

	// fullScore is the score the sensor reports for a perfect match.
	// Confidence is the score scaled against this, capped at 1.0.
	fullScore = 200
)

// Packet is one decoded protocol frame.
type Packet struct {
	// Address is the module address the frame carries.
	Address uint32

	// ID is the packet ID (command, ack, data, end-of-data).
	ID byte

	// Payload is the command or confirmation byte plus arguments.
	Payload []byte
}

// Encode serialises the packet to wire format, computing length and
// checksum.
func (p Packet) Encode() []byte {
	length := len(p.Payload) + checksumSize
	buf := make([]byte, preambleSize+length)

	binary.BigEndian.PutUint16(buf[0:2], headerWord)
	binary.BigEndian.PutUint32(buf[2:6], p.Address)
	buf[6] = p.ID
	binary.BigEndian.PutUint16(buf[7:9], uint16(length)) //nolint:gosec // bounded by maxPayloadSize
	copy(buf[preambleSize:], p.Payload)

	sum := packetChecksum(p.ID, uint16(length), p.Payload) //nolint:gosec // bounded by maxPayloadSize
	binary.BigEndian.PutUint16(buf[len(buf)-checksumSize:], sum)

	return buf
}

// packetChecksum computes the 16-bit checksum over the packet ID, the
// length field, and the payload.
func packetChecksum(id byte, length uint16, payload []byte) uint16 {
	sum := uint32(id) + uint32(length>>8) + uint32(length&0xFF)
	for _, b := range payload {
		sum += uint32(b)
	}
	return uint16(sum & 0xFFFF) //nolint:gosec // masked to 16 bits
}

// ParsePacket decodes a complete frame. The input must contain exactly
// one frame: preamble, payload, and checksum.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < preambleSize+checksumSize {
		return Packet{}, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidPacket, len(data))
	}

	if binary.BigEndian.Uint16(data[0:2]) != headerWord {
		return Packet{}, fmt.Errorf("%w: bad header 0x%04X", ErrProtocolDesync, binary.BigEndian.Uint16(data[0:2]))
	}

	length := binary.BigEndian.Uint16(data[7:9])
	if int(length) != len(data)-preambleSize {
		return Packet{}, fmt.Errorf("%w: length mismatch (declared %d, have %d)",
			ErrInvalidPacket, length, len(data)-preambleSize)
	}
	if length < checksumSize {
		return Packet{}, fmt.Errorf("%w: length %d below checksum size", ErrInvalidPacket, length)
	}

	payload := make([]byte, int(length)-checksumSize)
	copy(payload, data[preambleSize:len(data)-checksumSize])

	declared := binary.BigEndian.Uint16(data[len(data)-checksumSize:])
	computed := packetChecksum(data[6], length, payload)
	if declared != computed {
		return Packet{}, fmt.Errorf("%w: checksum mismatch (declared 0x%04X, computed 0x%04X)",
			ErrInvalidPacket, declared, computed)
	}

	return Packet{
		Address: binary.BigEndian.Uint32(data[2:6]),
		ID:      data[6],
		Payload: payload,
	}, nil
}

// commandPacket builds a command frame for the given command and
// arguments.
func commandPacket(address uint32, cmd byte, args ...byte) Packet {
	payload := make([]byte, 1+len(args))
	payload[0] = cmd
	copy(payload[1:], args)
	return Packet{Address: address, ID: packetCommand, Payload: payload}
}

// be16 splits a 16-bit value into big-endian argument bytes.
func be16(v uint16) (hi, lo byte) {
	return byte(v >> 8), byte(v & 0xFF)
}

// be32 splits a 32-bit value into big-endian argument bytes.
func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
