package dataproto

import "synnergy-network/internal/ids"

// Per-method request/response bodies (§6's wire table). Each type's Encode
// produces the bytes that follow the shared header EncodeRequest/
// EncodeResponse already wrote; each Decode consumes a body slice already
// split out by DecodeRequestHeader/DecodeResponseHeader.

// --- root_context_init ---

type RootContextInitRequest struct {
	DatabasePath string
}

func (m RootContextInitRequest) Encode() []byte { return []byte(m.DatabasePath) }

func DecodeRootContextInitRequest(body []byte) RootContextInitRequest {
	return RootContextInitRequest{DatabasePath: string(body)}
}

// --- root_context_reduce_caps ---

type RootContextReduceCapsRequest struct {
	Caps Capability
}

func (m RootContextReduceCapsRequest) Encode() []byte {
	b := builder{}
	b.u64(uint64(m.Caps))
	return b.buf
}

func DecodeRootContextReduceCapsRequest(body []byte) (RootContextReduceCapsRequest, error) {
	r := reader{buf: body}
	v, err := r.u64()
	return RootContextReduceCapsRequest{Caps: Capability(v)}, err
}

// --- child_context_create ---

type ChildContextCreateRequest struct {
	Caps Capability
}

func (m ChildContextCreateRequest) Encode() []byte {
	b := builder{}
	b.u64(uint64(m.Caps))
	return b.buf
}

func DecodeChildContextCreateRequest(body []byte) (ChildContextCreateRequest, error) {
	r := reader{buf: body}
	v, err := r.u64()
	return ChildContextCreateRequest{Caps: Capability(v)}, err
}

type ChildContextCreateResponse struct {
	ChildIndex uint32
}

func (m ChildContextCreateResponse) Encode() []byte {
	b := builder{}
	b.u32(m.ChildIndex)
	return b.buf
}

func DecodeChildContextCreateResponse(body []byte) (ChildContextCreateResponse, error) {
	r := reader{buf: body}
	v, err := r.u32()
	return ChildContextCreateResponse{ChildIndex: v}, err
}

// --- global_setting_set / global_setting_get ---

type GlobalSettingSetRequest struct {
	Key   string
	Value []byte
}

func (m GlobalSettingSetRequest) Encode() []byte {
	b := builder{}
	b.bytesWithLen([]byte(m.Key))
	b.tail(m.Value)
	return b.buf
}

func DecodeGlobalSettingSetRequest(body []byte) (GlobalSettingSetRequest, error) {
	r := reader{buf: body}
	key, err := r.bytesWithLen()
	if err != nil {
		return GlobalSettingSetRequest{}, err
	}
	return GlobalSettingSetRequest{Key: string(key), Value: r.tail()}, nil
}

type GlobalSettingGetRequest struct {
	Key string
}

func (m GlobalSettingGetRequest) Encode() []byte {
	return []byte(m.Key)
}

func DecodeGlobalSettingGetRequest(body []byte) GlobalSettingGetRequest {
	return GlobalSettingGetRequest{Key: string(body)}
}

type GlobalSettingGetResponse struct {
	Value []byte
}

func (m GlobalSettingGetResponse) Encode() []byte { return m.Value }

func DecodeGlobalSettingGetResponse(body []byte) GlobalSettingGetResponse {
	out := make([]byte, len(body))
	copy(out, body)
	return GlobalSettingGetResponse{Value: out}
}

// --- artifact_read ---

type ArtifactReadRequest struct {
	ArtifactID ids.ID
}

func (m ArtifactReadRequest) Encode() []byte {
	b := builder{}
	b.id(m.ArtifactID)
	return b.buf
}

func DecodeArtifactReadRequest(body []byte) (ArtifactReadRequest, error) {
	r := reader{buf: body}
	id, err := r.id()
	return ArtifactReadRequest{ArtifactID: id}, err
}

type ArtifactReadResponse struct {
	ArtifactID   ids.ID
	TxnFirst     ids.ID
	TxnLatest    ids.ID
	HeightFirst  uint64
	HeightLatest uint64
	StateLatest  uint32
}

func (m ArtifactReadResponse) Encode() []byte {
	b := builder{}
	b.id(m.ArtifactID)
	b.id(m.TxnFirst)
	b.id(m.TxnLatest)
	b.u64(m.HeightFirst)
	b.u64(m.HeightLatest)
	b.u32(m.StateLatest)
	return b.buf
}

func DecodeArtifactReadResponse(body []byte) (ArtifactReadResponse, error) {
	r := reader{buf: body}
	var out ArtifactReadResponse
	var err error
	if out.ArtifactID, err = r.id(); err != nil {
		return out, err
	}
	if out.TxnFirst, err = r.id(); err != nil {
		return out, err
	}
	if out.TxnLatest, err = r.id(); err != nil {
		return out, err
	}
	if out.HeightFirst, err = r.u64(); err != nil {
		return out, err
	}
	if out.HeightLatest, err = r.u64(); err != nil {
		return out, err
	}
	out.StateLatest, err = r.u32()
	return out, err
}

// --- transaction_submit ---

type TransactionSubmitRequest struct {
	TxnID      ids.ID
	ArtifactID ids.ID
	Cert       []byte
}

func (m TransactionSubmitRequest) Encode() []byte {
	b := builder{}
	b.id(m.TxnID)
	b.id(m.ArtifactID)
	b.tail(m.Cert)
	return b.buf
}

func DecodeTransactionSubmitRequest(body []byte) (TransactionSubmitRequest, error) {
	r := reader{buf: body}
	var out TransactionSubmitRequest
	var err error
	if out.TxnID, err = r.id(); err != nil {
		return out, err
	}
	if out.ArtifactID, err = r.id(); err != nil {
		return out, err
	}
	out.Cert = r.tail()
	return out, nil
}

// --- transaction_get / transaction_get_first / canonized_transaction_get ---

// Transaction node states, carried on every pending and canonized record.
// A transaction moves SUBMITTED -> ATTESTED -> CANONIZED; canonization's
// "Transaction draining" (§4.5) only ever collects ATTESTED entries.
const (
	TxnStateSubmitted uint32 = iota
	TxnStateAttested
	TxnStateCanonized
)

// PendingTransactionRecord is the common shape of a pending-queue entry
// returned by transaction_get_first and transaction_get.
type PendingTransactionRecord struct {
	Key        ids.ID
	Prev       ids.ID
	Next       ids.ID
	ArtifactID ids.ID
	State      uint32
	Cert       []byte
}

func (m PendingTransactionRecord) Encode() []byte {
	b := builder{}
	b.id(m.Key)
	b.id(m.Prev)
	b.id(m.Next)
	b.id(m.ArtifactID)
	b.u32(m.State)
	b.tail(m.Cert)
	return b.buf
}

func DecodePendingTransactionRecord(body []byte) (PendingTransactionRecord, error) {
	r := reader{buf: body}
	var out PendingTransactionRecord
	var err error
	if out.Key, err = r.id(); err != nil {
		return out, err
	}
	if out.Prev, err = r.id(); err != nil {
		return out, err
	}
	if out.Next, err = r.id(); err != nil {
		return out, err
	}
	if out.ArtifactID, err = r.id(); err != nil {
		return out, err
	}
	if out.State, err = r.u32(); err != nil {
		return out, err
	}
	out.Cert = r.tail()
	return out, nil
}

type TransactionGetRequest struct {
	TxnID ids.ID
}

func (m TransactionGetRequest) Encode() []byte {
	b := builder{}
	b.id(m.TxnID)
	return b.buf
}

func DecodeTransactionGetRequest(body []byte) (TransactionGetRequest, error) {
	r := reader{buf: body}
	id, err := r.id()
	return TransactionGetRequest{TxnID: id}, err
}

type TransactionDropRequest struct {
	TxnID ids.ID
}

func (m TransactionDropRequest) Encode() []byte {
	b := builder{}
	b.id(m.TxnID)
	return b.buf
}

func DecodeTransactionDropRequest(body []byte) (TransactionDropRequest, error) {
	r := reader{buf: body}
	id, err := r.id()
	return TransactionDropRequest{TxnID: id}, err
}

// CanonizedTransactionRecord is canonized_transaction_get's response:
// key, prev, next, artifact-id, block-id (16 each), net-txn-state (u32),
// cert bytes.
type CanonizedTransactionRecord struct {
	Key         ids.ID
	Prev        ids.ID
	Next        ids.ID
	ArtifactID  ids.ID
	BlockID     ids.ID
	NetTxnState uint32
	Cert        []byte
}

func (m CanonizedTransactionRecord) Encode() []byte {
	b := builder{}
	b.id(m.Key)
	b.id(m.Prev)
	b.id(m.Next)
	b.id(m.ArtifactID)
	b.id(m.BlockID)
	b.u32(m.NetTxnState)
	b.tail(m.Cert)
	return b.buf
}

func DecodeCanonizedTransactionRecord(body []byte) (CanonizedTransactionRecord, error) {
	r := reader{buf: body}
	var out CanonizedTransactionRecord
	var err error
	if out.Key, err = r.id(); err != nil {
		return out, err
	}
	if out.Prev, err = r.id(); err != nil {
		return out, err
	}
	if out.Next, err = r.id(); err != nil {
		return out, err
	}
	if out.ArtifactID, err = r.id(); err != nil {
		return out, err
	}
	if out.BlockID, err = r.id(); err != nil {
		return out, err
	}
	if out.NetTxnState, err = r.u32(); err != nil {
		return out, err
	}
	out.Cert = r.tail()
	return out, nil
}

type CanonizedTransactionGetRequest struct {
	TxnID ids.ID
}

func (m CanonizedTransactionGetRequest) Encode() []byte {
	b := builder{}
	b.id(m.TxnID)
	return b.buf
}

func DecodeCanonizedTransactionGetRequest(body []byte) (CanonizedTransactionGetRequest, error) {
	r := reader{buf: body}
	id, err := r.id()
	return CanonizedTransactionGetRequest{TxnID: id}, err
}

// --- block_make ---

type BlockMakeRequest struct {
	BlockID ids.ID
	Cert    []byte
}

func (m BlockMakeRequest) Encode() []byte {
	b := builder{}
	b.id(m.BlockID)
	b.tail(m.Cert)
	return b.buf
}

func DecodeBlockMakeRequest(body []byte) (BlockMakeRequest, error) {
	r := reader{buf: body}
	id, err := r.id()
	if err != nil {
		return BlockMakeRequest{}, err
	}
	return BlockMakeRequest{BlockID: id, Cert: r.tail()}, nil
}

// --- block_get / block_id_latest_get / block_id_by_height_get ---

type BlockReadRequest struct {
	BlockID ids.ID
}

func (m BlockReadRequest) Encode() []byte {
	b := builder{}
	b.id(m.BlockID)
	return b.buf
}

func DecodeBlockReadRequest(body []byte) (BlockReadRequest, error) {
	r := reader{buf: body}
	id, err := r.id()
	return BlockReadRequest{BlockID: id}, err
}

type BlockReadResponse struct {
	BlockID  ids.ID
	Prev     ids.ID
	Next     ids.ID
	FirstTxn ids.ID
	Height   uint64
	Cert     []byte
}

func (m BlockReadResponse) Encode() []byte {
	b := builder{}
	b.id(m.BlockID)
	b.id(m.Prev)
	b.id(m.Next)
	b.id(m.FirstTxn)
	b.u64(m.Height)
	b.tail(m.Cert)
	return b.buf
}

func DecodeBlockReadResponse(body []byte) (BlockReadResponse, error) {
	r := reader{buf: body}
	var out BlockReadResponse
	var err error
	if out.BlockID, err = r.id(); err != nil {
		return out, err
	}
	if out.Prev, err = r.id(); err != nil {
		return out, err
	}
	if out.Next, err = r.id(); err != nil {
		return out, err
	}
	if out.FirstTxn, err = r.id(); err != nil {
		return out, err
	}
	if out.Height, err = r.u64(); err != nil {
		return out, err
	}
	out.Cert = r.tail()
	return out, nil
}

type BlockIDResponse struct {
	BlockID ids.ID
}

func (m BlockIDResponse) Encode() []byte {
	b := builder{}
	b.id(m.BlockID)
	return b.buf
}

func DecodeBlockIDResponse(body []byte) (BlockIDResponse, error) {
	r := reader{buf: body}
	id, err := r.id()
	return BlockIDResponse{BlockID: id}, err
}

type BlockIDByHeightReadRequest struct {
	Height uint64
}

func (m BlockIDByHeightReadRequest) Encode() []byte {
	b := builder{}
	b.u64(m.Height)
	return b.buf
}

func DecodeBlockIDByHeightReadRequest(body []byte) (BlockIDByHeightReadRequest, error) {
	r := reader{buf: body}
	h, err := r.u64()
	return BlockIDByHeightReadRequest{Height: h}, err
}
