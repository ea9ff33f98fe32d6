// Package datasvc implements the data service of §4.3/§6: root and child
// contexts bound to capability bitmaps, the pending transaction queue, the
// canonized transaction index, and the block store with its height index
// and latest-block pointer. Storage is a process-local in-memory map, not
// the original's LMDB B-tree — "Persisted state layout" is explicitly out
// of scope per spec.md §6; only the read/write semantics of §4.3 are
// specified, and those are what this package honors.
package datasvc

import (
	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/ids"
)

type artifactRecord struct {
	id           ids.ID
	txnFirst     ids.ID
	txnLatest    ids.ID
	heightFirst  uint64
	heightLatest uint64
	stateLatest  uint32
}

type pendingTxn struct {
	key        ids.ID
	prev       ids.ID
	next       ids.ID
	artifactID ids.ID
	cert       []byte
	state      uint32
}

type canonTxn struct {
	key        ids.ID
	prev       ids.ID
	next       ids.ID
	artifactID ids.ID
	blockID    ids.ID
	netState   uint32
	cert       []byte
}

type blockRecord struct {
	id       ids.ID
	prev     ids.ID
	next     ids.ID
	firstTxn ids.ID
	height   uint64
	cert     []byte
}

// store holds every record kind the data service exposes. It is not
// goroutine-safe by design: the single-threaded event loop (internal/reactor)
// is the only caller, matching §5's "no shared mutable objects between
// threads" model.
type store struct {
	artifacts map[ids.ID]*artifactRecord
	pending   map[ids.ID]*pendingTxn
	pendHead  ids.ID
	pendTail  ids.ID
	canonized map[ids.ID]*canonTxn
	blocks    map[ids.ID]*blockRecord
	heights   map[uint64]ids.ID
	latest    ids.ID
	settings  map[string][]byte
}

func newStore() *store {
	return &store{
		artifacts: make(map[ids.ID]*artifactRecord),
		pending:   make(map[ids.ID]*pendingTxn),
		pendHead:  ids.QueueEnd,
		pendTail:  ids.QueueEnd,
		canonized: make(map[ids.ID]*canonTxn),
		blocks:    make(map[ids.ID]*blockRecord),
		heights:   make(map[uint64]ids.ID),
		latest:    ids.RootBlock,
		settings:  make(map[string][]byte),
	}
}

func (s *store) artifactOrCreate(id ids.ID) *artifactRecord {
	a, ok := s.artifacts[id]
	if !ok {
		a = &artifactRecord{id: id, txnFirst: ids.Nil, txnLatest: ids.Nil}
		s.artifacts[id] = a
	}
	return a
}

// submitTransaction appends a new pending-queue entry at the tail
// (§4.3 transaction_submit). The original never shipped a wire operation
// that promotes a node from SUBMITTED to ATTESTED — its own protocol
// service carries a "TODO - replace this with a proper attestation
// process" at the point attestation should happen — so no documented
// method exists here either. Submission promotes straight to ATTESTED,
// keeping the stored state and canonization's drain-time gate real
// against whatever actually reaches the queue.
func (s *store) submitTransaction(txnID, artifactID ids.ID, cert []byte) {
	entry := &pendingTxn{
		key: txnID, prev: s.pendTail, next: ids.QueueEnd,
		artifactID: artifactID, cert: cert, state: dataproto.TxnStateAttested,
	}
	if s.pendTail != ids.QueueEnd {
		if prevEntry, ok := s.pending[s.pendTail]; ok {
			prevEntry.next = txnID
		}
	} else {
		s.pendHead = txnID
	}
	s.pendTail = txnID
	s.pending[txnID] = entry

	a := s.artifactOrCreate(artifactID)
	if a.txnFirst.IsNil() {
		a.txnFirst = txnID
	}
	a.txnLatest = txnID
}

func (s *store) getFirstPending() (*pendingTxn, bool) {
	if s.pendHead.IsQueueEnd() {
		return nil, false
	}
	e, ok := s.pending[s.pendHead]
	return e, ok
}

func (s *store) getPending(txnID ids.ID) (*pendingTxn, bool) {
	e, ok := s.pending[txnID]
	return e, ok
}

// dropTransaction removes txnID from the pending queue, relinking its
// neighbours (§4.3 transaction_drop).
func (s *store) dropTransaction(txnID ids.ID) error {
	e, ok := s.pending[txnID]
	if !ok {
		return agenterr.Sentinel(agenterr.NotFound)
	}
	if e.prev != ids.QueueEnd {
		if prevEntry, ok := s.pending[e.prev]; ok {
			prevEntry.next = e.next
		}
	} else {
		s.pendHead = e.next
	}
	if e.next != ids.QueueEnd {
		if nextEntry, ok := s.pending[e.next]; ok {
			nextEntry.prev = e.prev
		}
	} else {
		s.pendTail = e.prev
	}
	delete(s.pending, txnID)
	return nil
}

func (s *store) getCanonized(txnID ids.ID) (*canonTxn, bool) {
	c, ok := s.canonized[txnID]
	return c, ok
}

func (s *store) getBlock(blockID ids.ID) (*blockRecord, bool) {
	b, ok := s.blocks[blockID]
	return b, ok
}

func (s *store) latestBlockID() ids.ID { return s.latest }

func (s *store) blockIDByHeight(height uint64) (ids.ID, bool) {
	id, ok := s.heights[height]
	return id, ok
}

// makeBlock performs §4.5's "Block-make semantics" atomically against the
// in-memory store: every referenced transaction moves from pending into the
// canonized index, each touched artifact's latest pointers update, the
// block record is appended, and the height/latest indexes update. Since
// this store has no separate transaction log, "atomic" here means the
// function validates every referenced transaction up front and performs no
// mutation until all of them are known good — a torn write is impossible
// because nothing is written until every precondition holds.
func (s *store) makeBlock(blockID ids.ID, height uint64, prevBlockID ids.ID, txnIDs []ids.ID, cert []byte) error {
	entries := make([]*pendingTxn, 0, len(txnIDs))
	for _, txnID := range txnIDs {
		e, ok := s.pending[txnID]
		if !ok {
			return agenterr.New(agenterr.NotFound, "block_make references unknown pending transaction %s", txnID)
		}
		entries = append(entries, e)
	}

	var firstTxn ids.ID = ids.QueueEnd
	if len(txnIDs) > 0 {
		firstTxn = txnIDs[0]
	}

	for i, e := range entries {
		if err := s.dropTransaction(e.key); err != nil {
			return err
		}
		var prev, next ids.ID = ids.QueueEnd, ids.QueueEnd
		if i > 0 {
			prev = txnIDs[i-1]
		}
		if i < len(entries)-1 {
			next = txnIDs[i+1]
		}
		s.canonized[e.key] = &canonTxn{
			key: e.key, prev: prev, next: next,
			artifactID: e.artifactID, blockID: blockID,
			netState: dataproto.TxnStateCanonized, cert: e.cert,
		}
		a := s.artifactOrCreate(e.artifactID)
		if a.heightFirst == 0 {
			a.heightFirst = height
		}
		a.heightLatest = height
		a.stateLatest = dataproto.TxnStateCanonized
	}

	s.blocks[blockID] = &blockRecord{
		id: blockID, prev: prevBlockID, next: ids.QueueEnd,
		firstTxn: firstTxn, height: height, cert: cert,
	}
	if prior, ok := s.blocks[prevBlockID]; ok {
		prior.next = blockID
	}
	s.heights[height] = blockID
	s.latest = blockID
	return nil
}

func (s *store) setGlobalSetting(key string, value []byte) { s.settings[key] = value }

func (s *store) getGlobalSetting(key string) ([]byte, bool) {
	v, ok := s.settings[key]
	return v, ok
}
