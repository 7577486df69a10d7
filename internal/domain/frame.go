package domain

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// HeaderSize is the size of the frame length prefix.
const HeaderSize = 4

// Terminator is appended to every frame payload and counted in the length.
const Terminator byte = 0x00

// DefaultMaxMsgSize is the ceiling used when none is configured.
const DefaultMaxMsgSize = 65536 + 512

// Frame errors returned by EncodeFrame.
var (
	ErrEmptyPayload = errors.New("frame: empty payload")
	ErrTooLarge     = errors.New("frame: payload exceeds maximum message size")
)

// ByteOrder is the host order used for the length prefix. Both ends of the
// channel run on the same machine.
var ByteOrder = binary.NativeEndian

// EncodeFrame builds header and payload for msg. The returned length counts
// the trailing terminator. It rejects empty messages and messages whose framed
// length would exceed maxSize.
func EncodeFrame(msg string, maxSize int) ([]byte, error) {
	if len(msg) == 0 {
		return nil, ErrEmptyPayload
	}
	n := len(msg) + 1
	if n > maxSize {
		return nil, ErrTooLarge
	}
	buf := make([]byte, HeaderSize+n)
	ByteOrder.PutUint32(buf[:HeaderSize], uint32(n))
	copy(buf[HeaderSize:], msg)
	buf[len(buf)-1] = Terminator
	return buf, nil
}

// DecodeHeader returns the payload length declared by a header.
func DecodeHeader(h []byte) uint32 {
	return ByteOrder.Uint32(h[:HeaderSize])
}

// TrimPayload returns the payload up to its first terminator. A payload from a
// peer that omitted the terminator is returned whole.
func TrimPayload(p []byte) []byte {
	if i := bytes.IndexByte(p, Terminator); i >= 0 {
		return p[:i]
	}
	return p
}
