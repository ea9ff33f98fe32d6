package canon_test

import (
	"testing"
	"time"

	"synnergy-network/internal/canon"
	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/datasvc"
	"synnergy-network/internal/ids"
	"synnergy-network/internal/randomsvc"
)

type callerFunc func([]byte) []byte

func (f callerFunc) Call(req []byte) []byte { return f(req) }

// newHarness builds a data service already initialized and holding one
// all-capabilities delegate child at index 0, the convention Pipeline's
// requestChild relies on, plus a random service.
func newHarness(t *testing.T) (*datasvc.Service, callerFunc, callerFunc) {
	t.Helper()
	data := datasvc.New()
	initReq := dataproto.EncodeRootRequest(dataproto.MethodRootContextInit,
		dataproto.RootContextInitRequest{DatabasePath: t.TempDir()}.Encode())
	if resp := mustDispatch(t, data, initReq); resp.Status != dataproto.StatusSuccess {
		t.Fatalf("root_context_init failed: %v", resp.Status)
	}

	allCaps := dataproto.Capability(1)<<dataproto.CapBitsMax - 1
	createReq := dataproto.EncodeRequest(dataproto.MethodChildContextCreate, 0,
		dataproto.ChildContextCreateRequest{Caps: allCaps}.Encode())
	resp := mustDispatch(t, data, createReq)
	if resp.Status != dataproto.StatusSuccess {
		t.Fatalf("seed delegate child failed: %v", resp.Status)
	}
	got, err := dataproto.DecodeChildContextCreateResponse(resp.Body)
	if err != nil {
		t.Fatalf("decode seed child response: %v", err)
	}
	if got.ChildIndex != 0 {
		t.Fatalf("expected the first created child to be index 0, got %d", got.ChildIndex)
	}

	rnd := randomsvc.New()
	return data, callerFunc(data.Dispatch), callerFunc(rnd.HandleRequest)
}

func mustDispatch(t *testing.T, data *datasvc.Service, req []byte) dataproto.DecodedResponse {
	t.Helper()
	resp, err := dataproto.DecodeResponseHeader(data.Dispatch(req))
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func submitTxn(t *testing.T, data *datasvc.Service, txnID, artifactID ids.ID, cert []byte) {
	t.Helper()
	req := dataproto.EncodeRequest(dataproto.MethodTransactionSubmit, 0,
		dataproto.TransactionSubmitRequest{TxnID: txnID, ArtifactID: artifactID, Cert: cert}.Encode())
	if resp := mustDispatch(t, data, req); resp.Status != dataproto.StatusSuccess {
		t.Fatalf("submit failed: %v", resp.Status)
	}
}

func TestFireWithEmptyQueueArmsNormalInterval(t *testing.T) {
	_, dataCaller, rndCaller := newHarness(t)
	p := canon.NewPipeline(dataCaller, rndCaller, 10, 500*time.Millisecond)

	rearm, err := p.Fire()
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if rearm != 500*time.Millisecond {
		t.Fatalf("rearm = %v, want 500ms", rearm)
	}
	if p.State() != canon.StateIdle {
		t.Fatalf("state = %v, want StateIdle", p.State())
	}
}

func TestFireCanonizesOneTransactionAndAdvancesHeight(t *testing.T) {
	data, dataCaller, rndCaller := newHarness(t)
	txnID := ids.New()
	submitTxn(t, data, txnID, ids.New(), []byte("solo-cert"))

	p := canon.NewPipeline(dataCaller, rndCaller, 10, 500*time.Millisecond)
	rearm, err := p.Fire()
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if rearm != 500*time.Millisecond {
		t.Fatalf("rearm = %v, want the normal interval (queue did not hit max)", rearm)
	}

	latestResp := mustDispatch(t, data, dataproto.EncodeRequest(dataproto.MethodBlockIDLatestGet, 0, nil))
	latest, err := dataproto.DecodeBlockIDResponse(latestResp.Body)
	if err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if latest.BlockID == ids.RootBlock {
		t.Fatalf("expected a new block to have been made")
	}

	canonResp := mustDispatch(t, data, dataproto.EncodeRequest(dataproto.MethodCanonizedTransactionGet, 0,
		dataproto.CanonizedTransactionGetRequest{TxnID: txnID}.Encode()))
	if canonResp.Status != dataproto.StatusSuccess {
		t.Fatalf("expected the submitted transaction to be canonized, got %v", canonResp.Status)
	}
}

func TestFireRearmsImmediatelyWhenQueueHitsMax(t *testing.T) {
	data, dataCaller, rndCaller := newHarness(t)
	for i := 0; i < 3; i++ {
		submitTxn(t, data, ids.New(), ids.New(), []byte("cert"))
	}

	p := canon.NewPipeline(dataCaller, rndCaller, 3, 500*time.Millisecond)
	rearm, err := p.Fire()
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if rearm != 0 {
		t.Fatalf("rearm = %v, want 0 (hit max, drain backlog immediately)", rearm)
	}
}

func TestFireCanonizesChainedTransactionsInOrder(t *testing.T) {
	data, dataCaller, rndCaller := newHarness(t)
	first, second := ids.New(), ids.New()
	submitTxn(t, data, first, ids.New(), []byte("first"))
	submitTxn(t, data, second, ids.New(), []byte("second"))

	p := canon.NewPipeline(dataCaller, rndCaller, 10, 500*time.Millisecond)
	if _, err := p.Fire(); err != nil {
		t.Fatalf("fire: %v", err)
	}

	for _, txnID := range []ids.ID{first, second} {
		resp := mustDispatch(t, data, dataproto.EncodeRequest(dataproto.MethodCanonizedTransactionGet, 0,
			dataproto.CanonizedTransactionGetRequest{TxnID: txnID}.Encode()))
		if resp.Status != dataproto.StatusSuccess {
			t.Fatalf("transaction %s was not canonized: %v", txnID, resp.Status)
		}
	}
}

// notAttestedDataCaller answers just enough of the data-service sequence
// Fire walks through to reach drainTransactions, then hands back a pending
// record stuck at SUBMITTED, never ATTESTED.
type notAttestedDataCaller struct{ txnID ids.ID }

func (d notAttestedDataCaller) Call(req []byte) []byte {
	decoded, err := dataproto.DecodeRequestHeader(req)
	if err != nil {
		panic(err)
	}
	switch decoded.Method {
	case dataproto.MethodChildContextCreate:
		return dataproto.EncodeResponse(decoded.Method, 0, dataproto.StatusSuccess,
			dataproto.ChildContextCreateResponse{ChildIndex: 0}.Encode())
	case dataproto.MethodBlockIDLatestGet:
		return dataproto.EncodeResponse(decoded.Method, 0, dataproto.StatusSuccess,
			dataproto.BlockIDResponse{BlockID: ids.RootBlock}.Encode())
	case dataproto.MethodTransactionGetFirst:
		return dataproto.EncodeResponse(decoded.Method, 0, dataproto.StatusSuccess,
			dataproto.PendingTransactionRecord{
				Key: d.txnID, Prev: ids.QueueEnd, Next: ids.QueueEnd,
				ArtifactID: ids.New(), State: dataproto.TxnStateSubmitted, Cert: []byte("cert"),
			}.Encode())
	case dataproto.MethodChildContextClose:
		return dataproto.EncodeResponse(decoded.Method, 0, dataproto.StatusSuccess, nil)
	default:
		panic("unexpected method in notAttestedDataCaller: " + decoded.Method.String())
	}
}

func TestDrainTransactionsStopsAndClosesOnUnattestedFirstRead(t *testing.T) {
	_, _, rndCaller := newHarness(t)
	p := canon.NewPipeline(notAttestedDataCaller{txnID: ids.New()}, rndCaller, 10, 500*time.Millisecond)

	rearm, err := p.Fire()
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if rearm != 500*time.Millisecond {
		t.Fatalf("rearm = %v, want the normal interval (no block built)", rearm)
	}
	if p.EntriesQueued() != 0 {
		t.Fatalf("entries queued = %d, want 0 (unattested transaction must not be collected)", p.EntriesQueued())
	}
}
