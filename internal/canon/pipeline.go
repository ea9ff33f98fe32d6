package canon

import (
	"time"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/ids"
	"synnergy-network/internal/randomproto"
)

// State names the canonization pipeline's position in one timer-driven
// cycle (§4.5), in the order a cycle visits them.
type State int

const (
	StateIdle State = iota
	StateWaitRandom
	StateWaitChildCreate
	StateWaitLatestBlockID
	StateWaitBlockGet
	StateWaitPQFirst
	StateWaitPQNext
	StateWaitBlockMake
	StateWaitChildClose
)

// DataCaller sends one framed dataproto request and returns its framed
// response. In production this is internal/ipcclient's blocking client on
// the data service's socket; tests can hand it datasvc.Service.Dispatch
// directly.
type DataCaller interface {
	Call(req []byte) []byte
}

// RandomCaller is DataCaller's counterpart for the random service.
type RandomCaller interface {
	Call(req []byte) []byte
}

// Pipeline drives one agent's canonization cycle: drain the pending
// transaction queue into a block, or go back to sleep if there is nothing
// ready to canonize.
type Pipeline struct {
	Data   DataCaller
	Random RandomCaller

	MaxTxnsPerBlock int
	BlockMaxMillis  time.Duration
	CertVersion     uint32
	SuiteID         uint16
	SignerID        ids.ID

	state      State
	childIndex uint32
	blockID    ids.ID
	height     uint64
	prevBlock  ids.ID
	prevCert   []byte
	entries    []TxnEntry
	hitMax     bool
}

// NewPipeline constructs an idle pipeline over the given transports.
func NewPipeline(data DataCaller, random RandomCaller, maxTxnsPerBlock int, blockMaxMillis time.Duration) *Pipeline {
	return &Pipeline{
		Data: data, Random: random,
		MaxTxnsPerBlock: maxTxnsPerBlock, BlockMaxMillis: blockMaxMillis,
		CertVersion: 1, state: StateIdle,
	}
}

// State reports the pipeline's current position, for tests and metrics.
func (p *Pipeline) State() State { return p.state }

// EntriesQueued reports how many transactions the most recent Fire
// collected into its in-progress or just-submitted block, for metrics.
func (p *Pipeline) EntriesQueued() int { return len(p.entries) }

// Fire runs exactly one timer-driven cycle to completion: it acquires a
// block id from the random service, acquires a child context, resolves the
// previous block, drains pending transactions up to MaxTxnsPerBlock or
// until the queue empties, builds and submits a block if it collected any,
// and closes its child context. It returns the duration to rearm the timer
// for (§4.5 "Reset": immediately if the last build hit the max, else
// BlockMaxMillis), or a non-nil error if any step failed — §4.5 says a
// failure here forces the whole service out of its event loop, so callers
// should treat a non-nil error as fatal, not retryable.
func (p *Pipeline) Fire() (rearm time.Duration, err error) {
	p.state = StateWaitRandom
	blockID, err := p.requestBlockID()
	if err != nil {
		return 0, err
	}
	p.blockID = blockID
	p.entries = nil
	p.hitMax = false

	p.state = StateWaitChildCreate
	childIndex, err := p.requestChild()
	if err != nil {
		return 0, err
	}
	p.childIndex = childIndex

	p.state = StateWaitLatestBlockID
	height, prevID, err := p.resolvePreviousBlock()
	if err != nil {
		p.closeChildBestEffort()
		return 0, err
	}
	p.height = height
	p.prevBlock = prevID

	if err := p.drainTransactions(); err != nil {
		p.closeChildBestEffort()
		return 0, err
	}

	if len(p.entries) > 0 {
		p.state = StateWaitBlockMake
		if err := p.buildAndSubmitBlock(); err != nil {
			p.closeChildBestEffort()
			return 0, err
		}
	}

	p.state = StateWaitChildClose
	if err := p.closeChild(); err != nil {
		return 0, err
	}

	p.state = StateIdle
	if p.hitMax {
		return 0, nil
	}
	return p.BlockMaxMillis, nil
}

func (p *Pipeline) requestBlockID() (ids.ID, error) {
	req := randomproto.EncodeRequest(0, 16)
	respWire := p.Random.Call(req)
	resp, err := randomproto.DecodeResponse(respWire)
	if err != nil {
		return ids.Nil, agenterr.Wrap(err, "decode random response")
	}
	if resp.Status != dataproto.StatusSuccess {
		return ids.Nil, dataproto.ErrorFromStatus(resp.Status)
	}
	id, ok := ids.FromBytes(resp.Entropy)
	if !ok {
		return ids.Nil, agenterr.New(agenterr.MalformedRequest, "random response carried %d bytes, want 16", len(resp.Entropy))
	}
	return id, nil
}

func (p *Pipeline) requestChild() (uint32, error) {
	body := dataproto.ChildContextCreateRequest{Caps: dataproto.CanonizationCaps}.Encode()
	// child_context_create's header carries the *caller's* child index;
	// the canonization pipeline always creates its working child fresh
	// from the root delegate it was constructed against, index 0 by
	// convention for this process (a canonsvcd has no other children).
	req := dataproto.EncodeRequest(dataproto.MethodChildContextCreate, 0, body)
	return p.decodeChildIndex(p.Data.Call(req))
}

func (p *Pipeline) decodeChildIndex(respWire []byte) (uint32, error) {
	resp, err := dataproto.DecodeResponseHeader(respWire)
	if err != nil {
		return 0, err
	}
	if resp.Status != dataproto.StatusSuccess {
		return 0, dataproto.ErrorFromStatus(resp.Status)
	}
	got, err := dataproto.DecodeChildContextCreateResponse(resp.Body)
	return got.ChildIndex, err
}

// resolvePreviousBlock implements §4.5's "Previous-block resolution".
func (p *Pipeline) resolvePreviousBlock() (height uint64, prevID ids.ID, err error) {
	req := dataproto.EncodeRequest(dataproto.MethodBlockIDLatestGet, p.childIndex, nil)
	resp, err := dataproto.DecodeResponseHeader(p.Data.Call(req))
	if err != nil {
		return 0, ids.Nil, err
	}
	if resp.Status != dataproto.StatusSuccess {
		return 0, ids.Nil, dataproto.ErrorFromStatus(resp.Status)
	}
	latest, err := dataproto.DecodeBlockIDResponse(resp.Body)
	if err != nil {
		return 0, ids.Nil, err
	}
	if latest.BlockID == ids.RootBlock {
		p.prevCert = nil
		return 1, latest.BlockID, nil
	}

	p.state = StateWaitBlockGet
	readReq := dataproto.EncodeRequest(dataproto.MethodBlockGet, p.childIndex,
		dataproto.BlockReadRequest{BlockID: latest.BlockID}.Encode())
	readResp, err := dataproto.DecodeResponseHeader(p.Data.Call(readReq))
	if err != nil {
		return 0, ids.Nil, err
	}
	if readResp.Status != dataproto.StatusSuccess {
		return 0, ids.Nil, dataproto.ErrorFromStatus(readResp.Status)
	}
	block, err := dataproto.DecodeBlockReadResponse(readResp.Body)
	if err != nil {
		return 0, ids.Nil, err
	}
	p.prevCert = block.Cert
	return block.Height + 1, latest.BlockID, nil
}

// drainTransactions implements §4.5's "Transaction draining": read the
// first pending transaction; if it is not ATTESTED, stop and close without
// building a block. Otherwise collect it and keep walking the queue's
// `next` links, applying the same gate to each transaction in turn, until
// the block hits MaxTxnsPerBlock or the queue runs out.
func (p *Pipeline) drainTransactions() error {
	p.state = StateWaitPQFirst
	req := dataproto.EncodeRequest(dataproto.MethodTransactionGetFirst, p.childIndex, nil)
	resp, err := dataproto.DecodeResponseHeader(p.Data.Call(req))
	if err != nil {
		return err
	}
	if resp.Status == dataproto.StatusNotFound {
		return nil
	}
	if resp.Status != dataproto.StatusSuccess {
		return dataproto.ErrorFromStatus(resp.Status)
	}
	rec, err := dataproto.DecodePendingTransactionRecord(resp.Body)
	if err != nil {
		return err
	}

	for {
		if rec.State != dataproto.TxnStateAttested {
			return nil
		}
		p.entries = append(p.entries, TxnEntry{TxnID: rec.Key, Cert: rec.Cert})

		if len(p.entries) >= p.MaxTxnsPerBlock {
			p.hitMax = true
			return nil
		}
		if rec.Next.IsQueueEnd() {
			return nil
		}

		p.state = StateWaitPQNext
		nextReq := dataproto.EncodeRequest(dataproto.MethodTransactionGet, p.childIndex,
			dataproto.TransactionGetRequest{TxnID: rec.Next}.Encode())
		nextResp, err := dataproto.DecodeResponseHeader(p.Data.Call(nextReq))
		if err != nil {
			return err
		}
		if nextResp.Status != dataproto.StatusSuccess {
			return dataproto.ErrorFromStatus(nextResp.Status)
		}
		rec, err = dataproto.DecodePendingTransactionRecord(nextResp.Body)
		if err != nil {
			return err
		}
	}
}

// buildAndSubmitBlock implements §4.5's "Block assembly".
func (p *Pipeline) buildAndSubmitBlock() error {
	cert, err := BuildCert(Header{
		Version:           p.CertVersion,
		SuiteID:           p.SuiteID,
		BlockID:           p.blockID,
		PreviousBlockID:   p.prevBlock,
		PreviousBlockHash: HashPreviousBlock(p.prevCert),
		Height:            p.height,
		SignerID:          p.SignerID,
	}, p.entries)
	if err != nil {
		return err
	}
	req := dataproto.EncodeRequest(dataproto.MethodBlockMake, p.childIndex,
		dataproto.BlockMakeRequest{BlockID: p.blockID, Cert: cert}.Encode())
	resp, err := dataproto.DecodeResponseHeader(p.Data.Call(req))
	if err != nil {
		return err
	}
	if resp.Status != dataproto.StatusSuccess {
		return dataproto.ErrorFromStatus(resp.Status)
	}
	return nil
}

func (p *Pipeline) closeChild() error {
	req := dataproto.EncodeRequest(dataproto.MethodChildContextClose, p.childIndex, nil)
	resp, err := dataproto.DecodeResponseHeader(p.Data.Call(req))
	if err != nil {
		return err
	}
	if resp.Status != dataproto.StatusSuccess {
		return dataproto.ErrorFromStatus(resp.Status)
	}
	return nil
}

func (p *Pipeline) closeChildBestEffort() {
	req := dataproto.EncodeRequest(dataproto.MethodChildContextClose, p.childIndex, nil)
	p.Data.Call(req)
}
