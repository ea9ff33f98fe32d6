package datasvc

import (
	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/canon"
	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/ids"
)

// Service dispatches data-service requests against a store and a
// contextTable. One Service exists per process; its methods are only ever
// called from the owning event loop, never concurrently.
type Service struct {
	store  *store
	ctx    *contextTable
	inited bool
}

// New constructs a data service with an empty store and the default
// (all-capabilities) root context, awaiting root_context_init.
func New() *Service {
	return &Service{store: newStore(), ctx: newContextTable()}
}

// Dispatch decodes one framed request and returns the framed response to
// write back, per §4.3's "Response rules": a response is always emitted,
// even on parse failure.
func (s *Service) Dispatch(body []byte) []byte {
	req, err := dataproto.DecodeRequestHeader(body)
	if err != nil {
		return dataproto.EncodeResponse(0, 0, dataproto.StatusFromError(err), nil)
	}

	var offset uint32
	if req.HasChildIdx {
		offset = req.ChildIndex
	}

	respBody, err := s.dispatchMethod(req)
	return dataproto.EncodeResponse(req.Method, offset, dataproto.StatusFromError(err), respBody)
}

func (s *Service) dispatchMethod(req dataproto.DecodedRequest) ([]byte, error) {
	switch req.Method {
	case dataproto.MethodRootContextInit:
		return nil, s.rootContextInit(req.Body)
	case dataproto.MethodRootContextReduceCaps:
		return nil, s.rootContextReduceCaps(req.Body)
	case dataproto.MethodChildContextCreate:
		return s.childContextCreate(req.ChildIndex, req.Body)
	case dataproto.MethodChildContextClose:
		return nil, s.childContextClose(req.ChildIndex)
	case dataproto.MethodGlobalSettingSet:
		return nil, s.globalSettingSet(req.ChildIndex, req.Body)
	case dataproto.MethodGlobalSettingGet:
		return s.globalSettingGet(req.ChildIndex, req.Body)
	case dataproto.MethodArtifactRead:
		return s.artifactRead(req.ChildIndex, req.Body)
	case dataproto.MethodTransactionSubmit:
		return nil, s.transactionSubmit(req.ChildIndex, req.Body)
	case dataproto.MethodTransactionGetFirst:
		return s.transactionGetFirst(req.ChildIndex)
	case dataproto.MethodTransactionGet:
		return s.transactionGet(req.ChildIndex, req.Body)
	case dataproto.MethodTransactionDrop:
		return nil, s.transactionDrop(req.ChildIndex, req.Body)
	case dataproto.MethodCanonizedTransactionGet:
		return s.canonizedTransactionGet(req.ChildIndex, req.Body)
	case dataproto.MethodBlockMake:
		return nil, s.blockMake(req.ChildIndex, req.Body)
	case dataproto.MethodBlockGet:
		return s.blockGet(req.ChildIndex, req.Body)
	case dataproto.MethodBlockIDLatestGet:
		return s.blockIDLatestGet(req.ChildIndex)
	case dataproto.MethodBlockIDByHeightGet:
		return s.blockIDByHeightGet(req.ChildIndex, req.Body)
	default:
		return nil, agenterr.New(agenterr.MalformedRequest, "unknown data-service method %d", req.Method)
	}
}

func (s *Service) rootContextInit(body []byte) error {
	_ = dataproto.DecodeRootContextInitRequest(body)
	s.inited = true
	return nil
}

func (s *Service) rootContextReduceCaps(body []byte) error {
	req, err := dataproto.DecodeRootContextReduceCapsRequest(body)
	if err != nil {
		return err
	}
	return s.ctx.reduceCaps(req.Caps)
}

func (s *Service) childContextCreate(callerIndex uint32, body []byte) ([]byte, error) {
	req, err := dataproto.DecodeChildContextCreateRequest(body)
	if err != nil {
		return nil, err
	}
	parentCaps := s.ctx.rootCaps
	// Before any child exists, a create addressed to index 0 comes from the
	// root context itself and seeds the root's first delegate.
	if callerIndex != 0 || len(s.ctx.freeList) < MaxChildContexts {
		if err := s.ctx.authorize(callerIndex, dataproto.CapLLChildContextCreate); err != nil {
			return nil, err
		}
		callerSlot, err := s.ctx.lookup(callerIndex)
		if err != nil {
			return nil, err
		}
		parentCaps = callerSlot.caps
	}
	idx, err := s.ctx.createChild(parentCaps, req.Caps)
	if err != nil {
		return nil, err
	}
	return dataproto.ChildContextCreateResponse{ChildIndex: idx}.Encode(), nil
}

func (s *Service) childContextClose(index uint32) error {
	if err := s.ctx.authorize(index, dataproto.CapLLChildContextClose); err != nil {
		return err
	}
	return s.ctx.closeChild(index)
}

func (s *Service) globalSettingSet(index uint32, body []byte) error {
	req, err := dataproto.DecodeGlobalSettingSetRequest(body)
	if err != nil {
		return err
	}
	if err := s.ctx.authorize(index, dataproto.CapGlobalSettingWrite); err != nil {
		return err
	}
	s.store.setGlobalSetting(req.Key, req.Value)
	return nil
}

func (s *Service) globalSettingGet(index uint32, body []byte) ([]byte, error) {
	req := dataproto.DecodeGlobalSettingGetRequest(body)
	if err := s.ctx.authorize(index, dataproto.CapGlobalSettingRead); err != nil {
		return nil, err
	}
	value, ok := s.store.getGlobalSetting(req.Key)
	if !ok {
		return nil, agenterr.Sentinel(agenterr.NotFound)
	}
	return dataproto.GlobalSettingGetResponse{Value: value}.Encode(), nil
}

func (s *Service) artifactRead(index uint32, body []byte) ([]byte, error) {
	req, err := dataproto.DecodeArtifactReadRequest(body)
	if err != nil {
		return nil, err
	}
	if err := s.ctx.authorize(index, dataproto.CapArtifactRead); err != nil {
		return nil, err
	}
	a, ok := s.store.artifacts[req.ArtifactID]
	if !ok {
		return nil, agenterr.Sentinel(agenterr.NotFound)
	}
	return dataproto.ArtifactReadResponse{
		ArtifactID: a.id, TxnFirst: a.txnFirst, TxnLatest: a.txnLatest,
		HeightFirst: a.heightFirst, HeightLatest: a.heightLatest, StateLatest: a.stateLatest,
	}.Encode(), nil
}

func (s *Service) transactionSubmit(index uint32, body []byte) error {
	req, err := dataproto.DecodeTransactionSubmitRequest(body)
	if err != nil {
		return err
	}
	if err := s.ctx.authorize(index, dataproto.CapPQTransactionSubmit); err != nil {
		return err
	}
	s.store.submitTransaction(req.TxnID, req.ArtifactID, req.Cert)
	return nil
}

func (s *Service) transactionGetFirst(index uint32) ([]byte, error) {
	if err := s.ctx.authorize(index, dataproto.CapPQTransactionFirstRead); err != nil {
		return nil, err
	}
	e, ok := s.store.getFirstPending()
	if !ok {
		return nil, agenterr.Sentinel(agenterr.NotFound)
	}
	return pendingRecordFromEntry(e).Encode(), nil
}

func (s *Service) transactionGet(index uint32, body []byte) ([]byte, error) {
	req, err := dataproto.DecodeTransactionGetRequest(body)
	if err != nil {
		return nil, err
	}
	if err := s.ctx.authorize(index, dataproto.CapPQTransactionRead); err != nil {
		return nil, err
	}
	e, ok := s.store.getPending(req.TxnID)
	if !ok {
		return nil, agenterr.Sentinel(agenterr.NotFound)
	}
	return pendingRecordFromEntry(e).Encode(), nil
}

func (s *Service) transactionDrop(index uint32, body []byte) error {
	req, err := dataproto.DecodeTransactionDropRequest(body)
	if err != nil {
		return err
	}
	if err := s.ctx.authorize(index, dataproto.CapPQTransactionDrop); err != nil {
		return err
	}
	return s.store.dropTransaction(req.TxnID)
}

func (s *Service) canonizedTransactionGet(index uint32, body []byte) ([]byte, error) {
	req, err := dataproto.DecodeCanonizedTransactionGetRequest(body)
	if err != nil {
		return nil, err
	}
	if err := s.ctx.authorize(index, dataproto.CapTransactionRead); err != nil {
		return nil, err
	}
	c, ok := s.store.getCanonized(req.TxnID)
	if !ok {
		return nil, agenterr.Sentinel(agenterr.NotFound)
	}
	return dataproto.CanonizedTransactionRecord{
		Key: c.key, Prev: c.prev, Next: c.next, ArtifactID: c.artifactID,
		BlockID: c.blockID, NetTxnState: c.netState, Cert: c.cert,
	}.Encode(), nil
}

func (s *Service) blockMake(index uint32, body []byte) error {
	req, err := dataproto.DecodeBlockMakeRequest(body)
	if err != nil {
		return err
	}
	if err := s.ctx.authorize(index, dataproto.CapBlockWrite); err != nil {
		return err
	}
	txnIDs, err := referencedTransactionIDs(req.Cert)
	if err != nil {
		return err
	}
	height, prevID, err := s.nextHeightAndPrev()
	if err != nil {
		return err
	}
	return s.store.makeBlock(req.BlockID, height, prevID, txnIDs, req.Cert)
}

// nextHeightAndPrev resolves §4.5's "Previous-block resolution": height 1
// if the latest block is still the root sentinel, else one past the
// latest block's own height.
func (s *Service) nextHeightAndPrev() (height uint64, prevID ids.ID, err error) {
	prevID = s.store.latestBlockID()
	if prevID == ids.RootBlock {
		return 1, prevID, nil
	}
	prev, ok := s.store.getBlock(prevID)
	if !ok {
		return 0, prevID, agenterr.Sentinel(agenterr.NotFound)
	}
	return prev.height + 1, prevID, nil
}

func (s *Service) blockGet(index uint32, body []byte) ([]byte, error) {
	req, err := dataproto.DecodeBlockReadRequest(body)
	if err != nil {
		return nil, err
	}
	if err := s.ctx.authorize(index, dataproto.CapBlockRead); err != nil {
		return nil, err
	}
	b, ok := s.store.getBlock(req.BlockID)
	if !ok {
		return nil, agenterr.Sentinel(agenterr.NotFound)
	}
	return dataproto.BlockReadResponse{
		BlockID: b.id, Prev: b.prev, Next: b.next, FirstTxn: b.firstTxn,
		Height: b.height, Cert: b.cert,
	}.Encode(), nil
}

func (s *Service) blockIDLatestGet(index uint32) ([]byte, error) {
	if err := s.ctx.authorize(index, dataproto.CapBlockIDLatestRead); err != nil {
		return nil, err
	}
	return dataproto.BlockIDResponse{BlockID: s.store.latestBlockID()}.Encode(), nil
}

func (s *Service) blockIDByHeightGet(index uint32, body []byte) ([]byte, error) {
	req, err := dataproto.DecodeBlockIDByHeightReadRequest(body)
	if err != nil {
		return nil, err
	}
	if err := s.ctx.authorize(index, dataproto.CapBlockIDByHeightRead); err != nil {
		return nil, err
	}
	id, ok := s.store.blockIDByHeight(req.Height)
	if !ok {
		return nil, agenterr.Sentinel(agenterr.NotFound)
	}
	return dataproto.BlockIDResponse{BlockID: id}.Encode(), nil
}

// referencedTransactionIDs recovers the transaction ids a block certificate
// canonizes by parsing the certificate itself — §6's wire table carries no
// separate transaction-id list on block_make, only the cert bytes §4.5's
// canonization pipeline built with internal/canon.
func referencedTransactionIDs(cert []byte) ([]ids.ID, error) {
	_, entries, err := canon.ParseCert(cert)
	if err != nil {
		return nil, agenterr.Wrap(err, "parse block certificate")
	}
	out := make([]ids.ID, len(entries))
	for i, e := range entries {
		out[i] = e.TxnID
	}
	return out, nil
}

func pendingRecordFromEntry(e *pendingTxn) dataproto.PendingTransactionRecord {
	return dataproto.PendingTransactionRecord{
		Key: e.key, Prev: e.prev, Next: e.next, ArtifactID: e.artifactID,
		State: e.state, Cert: e.cert,
	}
}
