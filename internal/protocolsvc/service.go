package protocolsvc

import (
	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/ids"
	"synnergy-network/internal/randomproto"
	"synnergy-network/internal/reactor"
	"synnergy-network/internal/session"
)

// DataCaller sends one framed dataproto request and returns its framed
// response. As in internal/canon, production passes internal/ipcclient's
// blocking client on the separate data-service process's socket; tests
// hand it datasvc.Service.Dispatch directly.
type DataCaller interface {
	Call(req []byte) []byte
}

// RandomCaller is DataCaller's counterpart for the random service.
type RandomCaller interface {
	Call(req []byte) []byte
}

// Service owns the listening side of §4.4: it accepts handed-off client
// sockets, drives each through Connection's handshake/command state
// machine, and holds the child-index→connection map §4.4's "Correlation"
// describes.
type Service struct {
	Loop      *reactor.Loop
	Data      DataCaller
	Random    RandomCaller
	Identity  session.KeyPair
	EntityID  ids.ID
	Directory Directory
	Suite     CryptoSuite

	bySocket map[int]*Connection
	byChild  map[uint32]*Connection
}

// New constructs a protocol service over loop, ready to Accept connections.
func New(loop *reactor.Loop, data DataCaller, random RandomCaller, identity session.KeyPair, entityID ids.ID, dir Directory) *Service {
	return &Service{
		Loop: loop, Data: data, Random: random,
		Identity: identity, EntityID: entityID, Directory: dir, Suite: DefaultSuite,
		bySocket: make(map[int]*Connection),
		byChild:  make(map[uint32]*Connection),
	}
}

// Accept registers fd (already nonblocking, handed off by the listener per
// §6) as a new connection awaiting handshake message 1.
func (s *Service) Accept(fd int) *Connection {
	sc := s.Loop.Add(fd)
	conn := newConnection(s, sc)
	s.bySocket[fd] = conn
	s.Loop.SetReadCallback(sc, conn.onReadable)
	s.Loop.SetCloseCallback(sc, func(l *reactor.Loop, sc *reactor.SocketContext) {
		conn.closeNow()
	})
	return conn
}

// ConnectionCount reports the number of connections currently tracked, for
// metrics.
func (s *Service) ConnectionCount() int { return len(s.bySocket) }

func (s *Service) forget(fd int) { delete(s.bySocket, fd) }

func (s *Service) bindChild(idx uint32, c *Connection) { s.byChild[idx] = c }
func (s *Service) unbindChild(idx uint32)              { delete(s.byChild, idx) }

// ConnectionByChild looks up the connection a data-service response's
// offset (a child index) correlates to (§4.4 "Correlation"). Exposed for an
// asynchronous transport's response-routing path; this implementation's
// synchronous DataCaller never needs it internally, since Call already
// blocks until the matching response is in hand.
func (s *Service) ConnectionByChild(idx uint32) (*Connection, bool) {
	c, ok := s.byChild[idx]
	return c, ok
}

// requestEntropy asks the random service for n bytes (§4.4 "Entropy").
func (s *Service) requestEntropy(n int) ([]byte, error) {
	req := randomproto.EncodeRequest(0, uint32(n))
	resp, err := randomproto.DecodeResponse(s.Random.Call(req))
	if err != nil {
		return nil, err
	}
	if resp.Status != dataproto.StatusSuccess {
		return nil, dataproto.ErrorFromStatus(resp.Status)
	}
	if len(resp.Entropy) != n {
		return nil, agenterr.New(agenterr.MalformedRequest, "random service returned %d bytes, want %d", len(resp.Entropy), n)
	}
	return resp.Entropy, nil
}

// createChild requests a data-service child context with caps, for the
// DATASERVICE_CHILD_WAIT state (§4.4). The caller index 0 convention
// matches internal/canon's: this service's own bootstrap child, seeded by
// the deployment before any client connects, is always index 0.
func (s *Service) createChild(caps dataproto.Capability) (uint32, error) {
	body := dataproto.ChildContextCreateRequest{Caps: caps}.Encode()
	req := dataproto.EncodeRequest(dataproto.MethodChildContextCreate, 0, body)
	resp, err := dataproto.DecodeResponseHeader(s.Data.Call(req))
	if err != nil {
		return 0, err
	}
	if resp.Status != dataproto.StatusSuccess {
		return 0, dataproto.ErrorFromStatus(resp.Status)
	}
	got, err := dataproto.DecodeChildContextCreateResponse(resp.Body)
	return got.ChildIndex, err
}
