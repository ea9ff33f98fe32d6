// Package randomproto implements the random-service wire protocol of §6:
// request = method-id(4) | offset(4) | length(4); response = method-id(4) |
// offset(4) | status(4) | entropy bytes. The service has exactly one
// operation, so unlike internal/dataproto there is no method taxonomy to
// enumerate — MethodGenerate exists so the header shape still matches the
// rest of this system's wire protocols.
package randomproto

import (
	"encoding/binary"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/dataproto"
)

// Method identifies the (sole) random-service operation.
type Method uint32

// MethodGenerate requests length bytes of entropy.
const MethodGenerate Method = 1

// RequestSize is the fixed length of a generate request: method-id, offset,
// length, each a 32-bit big-endian word.
const RequestSize = 12

// ResponseHeaderSize is the fixed length of a response's header, before the
// entropy bytes that follow on success.
const ResponseHeaderSize = 12

// Status reuses dataproto's status vocabulary so both IPC protocols report
// failures the same way.
type Status = dataproto.Status

const StatusSuccess = dataproto.StatusSuccess

// EncodeRequest serializes a generate request for offset bytes of
// correlation id and length bytes of entropy requested.
func EncodeRequest(offset, length uint32) []byte {
	out := make([]byte, RequestSize)
	binary.BigEndian.PutUint32(out[0:4], uint32(MethodGenerate))
	binary.BigEndian.PutUint32(out[4:8], offset)
	binary.BigEndian.PutUint32(out[8:12], length)
	return out
}

// Request is a parsed generate request.
type Request struct {
	Offset uint32
	Length uint32
}

// DecodeRequest parses a generate request from buf.
func DecodeRequest(buf []byte) (Request, error) {
	if len(buf) < RequestSize {
		return Request{}, agenterr.New(agenterr.RequestPacketInvalidSize, "random request shorter than %d bytes", RequestSize)
	}
	method := Method(binary.BigEndian.Uint32(buf[0:4]))
	if method != MethodGenerate {
		return Request{}, agenterr.New(agenterr.MalformedRequest, "unknown random-service method %d", method)
	}
	return Request{
		Offset: binary.BigEndian.Uint32(buf[4:8]),
		Length: binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// EncodeResponse serializes a response carrying entropy (empty on failure).
func EncodeResponse(offset uint32, status dataproto.Status, entropy []byte) []byte {
	out := make([]byte, ResponseHeaderSize+len(entropy))
	binary.BigEndian.PutUint32(out[0:4], uint32(MethodGenerate))
	binary.BigEndian.PutUint32(out[4:8], offset)
	binary.BigEndian.PutUint32(out[8:12], uint32(status))
	copy(out[ResponseHeaderSize:], entropy)
	return out
}

// Response is a parsed generate response.
type Response struct {
	Offset  uint32
	Status  dataproto.Status
	Entropy []byte
}

// DecodeResponse parses a generate response from buf.
func DecodeResponse(buf []byte) (Response, error) {
	if len(buf) < ResponseHeaderSize {
		return Response{}, agenterr.New(agenterr.RequestPacketInvalidSize, "random response shorter than %d bytes", ResponseHeaderSize)
	}
	entropy := make([]byte, len(buf)-ResponseHeaderSize)
	copy(entropy, buf[ResponseHeaderSize:])
	return Response{
		Offset:  binary.BigEndian.Uint32(buf[4:8]),
		Status:  dataproto.Status(binary.BigEndian.Uint32(buf[8:12])),
		Entropy: entropy,
	}, nil
}
