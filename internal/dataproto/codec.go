package dataproto

import (
	"encoding/binary"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/ids"
)

// HeaderSize is the length of a non-root request's fixed header
// (method-id, child-index), both 32-bit big-endian words.
const HeaderSize = 8

// RootHeaderSize is the length of a root-context request's fixed header
// (method-id only; root operations omit the child index).
const RootHeaderSize = 4

// ResponseHeaderSize is the length of every response's fixed header
// (method-id, offset, status), three 32-bit big-endian words.
const ResponseHeaderSize = 12

// builder accumulates a message body in wire order.
type builder struct{ buf []byte }

func (b *builder) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *builder) u64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *builder) id(v ids.ID) { b.buf = append(b.buf, v.Bytes()...) }

// bytesWithLen appends a 32-bit length prefix followed by p, used for a
// field that is not the last one in the message (global_setting_set's key).
func (b *builder) bytesWithLen(p []byte) {
	b.u32(uint32(len(p)))
	b.buf = append(b.buf, p...)
}

// tail appends p with no length prefix; only valid as a message's final
// field, where the outer raw-data frame's own length already delimits it.
func (b *builder) tail(p []byte) { b.buf = append(b.buf, p...) }

// reader consumes a message body in wire order, returning
// agenterr.RequestPacketInvalidSize the first time a fixed field runs past
// the end of the buffer.
type reader struct {
	buf []byte
	off int
}

func (r *reader) need(n int) error {
	if len(r.buf)-r.off < n {
		return agenterr.New(agenterr.RequestPacketInvalidSize, "need %d more bytes, have %d", n, len(r.buf)-r.off)
	}
	return nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) id() (ids.ID, error) {
	if err := r.need(16); err != nil {
		return ids.Nil, err
	}
	id, ok := ids.FromBytes(r.buf[r.off : r.off+16])
	r.off += 16
	if !ok {
		return ids.Nil, agenterr.New(agenterr.RequestPacketInvalidSize, "malformed 16-byte id")
	}
	return id, nil
}

// bytesWithLen reads a 32-bit length prefix and that many following bytes.
func (r *reader) bytesWithLen() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return out, nil
}

// tail returns every remaining byte with no length prefix of its own.
func (r *reader) tail() []byte {
	out := make([]byte, len(r.buf)-r.off)
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

// EncodeRequest serializes a non-root request: method-id | child-index |
// body.
func EncodeRequest(method Method, childIndex uint32, body []byte) []byte {
	b := builder{buf: make([]byte, 0, HeaderSize+len(body))}
	b.u32(uint32(method))
	b.u32(childIndex)
	b.buf = append(b.buf, body...)
	return b.buf
}

// EncodeRootRequest serializes a root-context request: method-id | body,
// omitting the child-index field §4.3 reserves for non-root methods.
func EncodeRootRequest(method Method, body []byte) []byte {
	b := builder{buf: make([]byte, 0, RootHeaderSize+len(body))}
	b.u32(uint32(method))
	b.buf = append(b.buf, body...)
	return b.buf
}

// DecodedRequest is a parsed request header plus its undecoded body.
type DecodedRequest struct {
	Method      Method
	ChildIndex  uint32
	HasChildIdx bool
	Body        []byte
}

// DecodeRequestHeader parses the leading method-id (and, for non-root
// methods, child-index) from buf.
func DecodeRequestHeader(buf []byte) (DecodedRequest, error) {
	if len(buf) < 4 {
		return DecodedRequest{}, agenterr.New(agenterr.RequestPacketInvalidSize, "request shorter than method-id")
	}
	r := reader{buf: buf}
	methodWord, err := r.u32()
	if err != nil {
		return DecodedRequest{}, err
	}
	method := Method(methodWord)
	if method.IsRootMethod() {
		return DecodedRequest{Method: method, Body: buf[r.off:]}, nil
	}
	if len(buf) < HeaderSize {
		return DecodedRequest{}, agenterr.New(agenterr.RequestPacketInvalidSize, "request shorter than fixed header")
	}
	childIndex, err := r.u32()
	if err != nil {
		return DecodedRequest{}, err
	}
	return DecodedRequest{Method: method, ChildIndex: childIndex, HasChildIdx: true, Body: buf[r.off:]}, nil
}

// EncodeResponse serializes a response: method-id | offset | status | body.
// Per §4.3 "Response rules", a response is always emitted even on parse
// failure, with status set and body empty.
func EncodeResponse(method Method, offset uint32, status Status, body []byte) []byte {
	b := builder{buf: make([]byte, 0, ResponseHeaderSize+len(body))}
	b.u32(uint32(method))
	b.u32(offset)
	b.u32(uint32(status))
	b.buf = append(b.buf, body...)
	return b.buf
}

// DecodedResponse is a parsed response header plus its undecoded body.
type DecodedResponse struct {
	Method Method
	Offset uint32
	Status Status
	Body   []byte
}

// DecodeResponseHeader parses the leading method-id/offset/status from buf.
func DecodeResponseHeader(buf []byte) (DecodedResponse, error) {
	if len(buf) < ResponseHeaderSize {
		return DecodedResponse{}, agenterr.New(agenterr.RequestPacketInvalidSize, "response shorter than fixed header")
	}
	r := reader{buf: buf}
	methodWord, _ := r.u32()
	offset, _ := r.u32()
	statusWord, _ := r.u32()
	return DecodedResponse{
		Method: Method(methodWord),
		Offset: offset,
		Status: Status(statusWord),
		Body:   buf[r.off:],
	}, nil
}
