// Package wire implements the framing codec of §4.1: three frame kinds
// sharing a 5-byte header (type byte, 32-bit big-endian payload length), and
// the authenticated-packet frame built on top of them.
//
// Every decode function is a pure, stateless parse over a byte slice: it
// never blocks and never retains the input. When the buffered region is
// shorter than the frame it describes, decoders return agenterr.WouldBlock
// so the caller (the event loop's read callback) can leave its registration
// in place and retry once more bytes arrive, per §4.2's suspension model.
package wire

import (
	"encoding/binary"

	"synnergy-network/internal/agenterr"
)

// Frame type tags (§4.1).
const (
	TypeUint8  byte = 0x10
	TypeInt64  byte = 0x11
	TypeString byte = 0x12
	TypeRaw    byte = 0x20
	TypeAuthed byte = 0x30
)

// HeaderSize is the length of the type+size prefix shared by every frame
// kind.
const HeaderSize = 5

// MaxRawSize bounds a raw-data or typed-primitive frame's declared payload
// size; a declared size beyond this is rejected before any allocation.
const MaxRawSize = 1 << 30 // 1 GiB

// MaxAuthedSize bounds an authenticated packet's declared ciphertext size.
const MaxAuthedSize = 10 << 20 // 10 MiB

func putHeader(buf []byte, typ byte, size uint32) {
	buf[0] = typ
	binary.BigEndian.PutUint32(buf[1:5], size)
}

func parseHeader(buf []byte) (typ byte, size uint32) {
	return buf[0], binary.BigEndian.Uint32(buf[1:5])
}

// EncodeData encodes payload as a raw-data frame (type 0x20).
func EncodeData(payload []byte) ([]byte, error) {
	if len(payload) > MaxRawSize {
		return nil, agenterr.New(agenterr.OutOfMemory, "raw frame payload %d exceeds %d", len(payload), MaxRawSize)
	}
	out := make([]byte, HeaderSize+len(payload))
	putHeader(out, TypeRaw, uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out, nil
}

// DecodeData decodes a raw-data frame from the front of buf, returning the
// payload and the number of bytes consumed. It returns agenterr.WouldBlock
// if buf does not yet hold a complete frame.
func DecodeData(buf []byte) (payload []byte, consumed int, err error) {
	if len(buf) < HeaderSize {
		return nil, 0, agenterr.Sentinel(agenterr.WouldBlock)
	}
	typ, size := parseHeader(buf)
	if typ != TypeRaw {
		return nil, 0, agenterr.New(agenterr.UnexpectedDataType, "want raw frame, got type 0x%02x", typ)
	}
	if size > MaxRawSize {
		return nil, 0, agenterr.New(agenterr.PacketBadSize, "raw frame size %d exceeds %d", size, MaxRawSize)
	}
	total := HeaderSize + int(size)
	if len(buf) < total {
		return nil, 0, agenterr.Sentinel(agenterr.WouldBlock)
	}
	out := make([]byte, size)
	copy(out, buf[HeaderSize:total])
	return out, total, nil
}

// EncodeUint8 encodes v as a typed-primitive frame (type 0x10).
func EncodeUint8(v uint8) []byte {
	out := make([]byte, HeaderSize+1)
	putHeader(out, TypeUint8, 1)
	out[HeaderSize] = v
	return out
}

// DecodeUint8 decodes a uint8 typed-primitive frame.
func DecodeUint8(buf []byte) (v uint8, consumed int, err error) {
	if len(buf) < HeaderSize {
		return 0, 0, agenterr.Sentinel(agenterr.WouldBlock)
	}
	typ, size := parseHeader(buf)
	if typ != TypeUint8 {
		return 0, 0, agenterr.New(agenterr.UnexpectedDataType, "want uint8 frame, got type 0x%02x", typ)
	}
	if size != 1 {
		return 0, 0, agenterr.New(agenterr.PacketBadSize, "uint8 frame size %d != 1", size)
	}
	if len(buf) < HeaderSize+1 {
		return 0, 0, agenterr.Sentinel(agenterr.WouldBlock)
	}
	return buf[HeaderSize], HeaderSize + 1, nil
}

// EncodeInt64 encodes v as a typed-primitive frame (type 0x11), big-endian.
func EncodeInt64(v int64) []byte {
	out := make([]byte, HeaderSize+8)
	putHeader(out, TypeInt64, 8)
	binary.BigEndian.PutUint64(out[HeaderSize:], uint64(v))
	return out
}

// DecodeInt64 decodes an int64 typed-primitive frame.
func DecodeInt64(buf []byte) (v int64, consumed int, err error) {
	if len(buf) < HeaderSize {
		return 0, 0, agenterr.Sentinel(agenterr.WouldBlock)
	}
	typ, size := parseHeader(buf)
	if typ != TypeInt64 {
		return 0, 0, agenterr.New(agenterr.UnexpectedDataType, "want int64 frame, got type 0x%02x", typ)
	}
	if size != 8 {
		return 0, 0, agenterr.New(agenterr.PacketBadSize, "int64 frame size %d != 8", size)
	}
	if len(buf) < HeaderSize+8 {
		return 0, 0, agenterr.Sentinel(agenterr.WouldBlock)
	}
	return int64(binary.BigEndian.Uint64(buf[HeaderSize : HeaderSize+8])), HeaderSize + 8, nil
}

// EncodeString encodes s as a typed-primitive frame (type 0x12). The wire
// payload is the raw string bytes; no null terminator is written. Decoding
// a Go string this way sidesteps the original implementation's
// `val[size] = 0` bug (Design Note, §9): there is no fixed-size caller
// buffer to terminate, so the class of bug cannot recur.
func EncodeString(s string) []byte {
	out := make([]byte, HeaderSize+len(s))
	putHeader(out, TypeString, uint32(len(s)))
	copy(out[HeaderSize:], s)
	return out
}

// DecodeString decodes a string typed-primitive frame.
func DecodeString(buf []byte) (s string, consumed int, err error) {
	if len(buf) < HeaderSize {
		return "", 0, agenterr.Sentinel(agenterr.WouldBlock)
	}
	typ, size := parseHeader(buf)
	if typ != TypeString {
		return "", 0, agenterr.New(agenterr.UnexpectedDataType, "want string frame, got type 0x%02x", typ)
	}
	if size > MaxRawSize {
		return "", 0, agenterr.New(agenterr.PacketBadSize, "string frame size %d exceeds %d", size, MaxRawSize)
	}
	total := HeaderSize + int(size)
	if len(buf) < total {
		return "", 0, agenterr.Sentinel(agenterr.WouldBlock)
	}
	return string(buf[HeaderSize:total]), total, nil
}
