package protocolsvc

import (
	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/reactor"
	"synnergy-network/internal/session"
	"synnergy-network/internal/wire"
)

// State names a connection's position in §4.4's per-connection state
// machine. A successful handshake visits them in the listed order except
// that StateChildWait comes before StateWriteHSAck: the client's child
// context is created before the handshake-ack response is queued.
type State int

const (
	StateReadHSReq State = iota
	StateGatherEntropy
	StateWriteHSResp
	StateReadHSAck
	StateWriteHSAck
	StateChildWait
	StateReadCmd
	StateWriteCmdResp
	StateUnauthorized
)

// MaxCommandBodySize bounds one authed command frame's body (§4.4 "Failure
// surfaces": "command over ≈ 32 KiB transaction certificate").
const MaxCommandBodySize = 32 * 1024

// DefaultClientCaps is the capability bitmap an ordinary client connection
// is granted once authenticated: read/write access to the public surface
// plus the close bit closeNow needs to release the connection's own child,
// withholding the child-create and reduce-caps bits.
const DefaultClientCaps = dataproto.CapLLChildContextClose | dataproto.CapArtifactRead |
	dataproto.CapBlockIDByHeightRead | dataproto.CapBlockIDLatestRead | dataproto.CapBlockRead |
	dataproto.CapGlobalSettingRead | dataproto.CapGlobalSettingWrite |
	dataproto.CapPQTransactionRead | dataproto.CapPQTransactionSubmit | dataproto.CapTransactionRead

// Connection is one client socket's state (§3 "Connection"): its session,
// its data-service child-context handle once granted, and its position in
// the handshake/command state machine.
type Connection struct {
	svc   *Service
	sc    *reactor.SocketContext
	state State

	sess *session.Session

	hasChild   bool
	childIndex uint32

	clientPubKey    [32]byte
	clientChallenge []byte
}

func newConnection(svc *Service, sc *reactor.SocketContext) *Connection {
	return &Connection{svc: svc, sc: sc, state: StateReadHSReq, sess: session.New()}
}

// State reports the connection's current position, for tests and metrics.
func (c *Connection) State() State { return c.state }

func (c *Connection) onReadable(l *reactor.Loop, sc *reactor.SocketContext) {
	if l.ForceExit() {
		return
	}
	switch c.state {
	case StateReadHSReq:
		c.tryHandshakeInit()
	case StateReadHSAck:
		c.tryHandshakeAck()
	case StateReadCmd:
		c.tryCommands()
	}
}

func (c *Connection) tryHandshakeInit() {
	payload, consumed, err := wire.DecodeData(c.sc.ReadBuf.Bytes())
	if err != nil {
		if agenterr.CodeOf(err) == agenterr.WouldBlock {
			return
		}
		c.teardownUnauthed(dataproto.StatusMalformedRequest)
		return
	}
	c.sc.ReadBuf.Drain(consumed)

	hello, err := DecodeHelloRequest(payload, c.svc.Suite)
	if err != nil {
		c.teardownUnauthed(dataproto.StatusFromError(err))
		return
	}
	if err := hello.Validate(c.svc.Suite); err != nil {
		c.teardownUnauthed(dataproto.StatusFromError(err))
		return
	}
	pub, ok := c.svc.Directory.Lookup(hello.ClientEntity)
	if !ok {
		c.teardownUnauthed(dataproto.StatusUnauthorized)
		return
	}
	c.clientPubKey = pub
	c.clientChallenge = hello.ClientChallenge

	c.state = StateGatherEntropy
	entropy, err := c.svc.requestEntropy(2 * c.svc.Suite.NonceSize)
	if err != nil {
		c.teardownUnauthed(dataproto.StatusFromError(err))
		return
	}
	serverKeyNonce := entropy[:c.svc.Suite.NonceSize]
	serverChallenge := entropy[c.svc.Suite.NonceSize:]

	secret, err := session.DeriveSecret(c.svc.Identity.Private, c.clientPubKey, serverKeyNonce, hello.ClientKeyNonce)
	if err != nil {
		c.teardownUnauthed(dataproto.StatusCryptoFailure)
		return
	}
	c.sess.Secret = secret
	if err := c.sess.Advance(session.StateHandshaking); err != nil {
		c.teardownUnauthed(dataproto.StatusMalformedRequest)
		return
	}

	resp := HelloResponse{
		RequestID:       HandshakeInitiate,
		Status:          dataproto.StatusSuccess,
		ProtocolVersion: ProtocolVersion,
		SuiteID:         c.svc.Suite.ID,
		ServerEntity:    c.svc.EntityID,
		ServerPublicKey: c.svc.Identity.Public,
		ServerKeyNonce:  serverKeyNonce,
		ServerChallenge: serverChallenge,
	}
	mac, err := session.HandshakeMAC(secret, resp.RecordBytes(), hello.ClientChallenge)
	if err != nil {
		c.teardownUnauthed(dataproto.StatusCryptoFailure)
		return
	}
	resp.MAC = mac

	c.state = StateWriteHSResp
	frame, err := wire.EncodeData(resp.Encode())
	if err != nil {
		c.teardownUnauthed(dataproto.StatusMalformedRequest)
		return
	}
	c.svc.Loop.QueueWrite(c.sc, frame, func(l *reactor.Loop, sc *reactor.SocketContext) {
		c.state = StateReadHSAck
		l.SetReadCallback(sc, c.onReadable)
	})
}

func (c *Connection) tryHandshakeAck() {
	plaintext, consumed, err := c.sess.DecryptClient(c.sc.ReadBuf.Bytes())
	if err != nil {
		if agenterr.CodeOf(err) == agenterr.WouldBlock {
			return
		}
		c.teardownUnauthed(dataproto.StatusFromError(err))
		return
	}
	c.sc.ReadBuf.Drain(consumed)

	if err := DecodeAck(plaintext); err != nil {
		c.teardownUnauthed(dataproto.StatusFromError(err))
		return
	}

	c.state = StateChildWait
	idx, err := c.svc.createChild(DefaultClientCaps)
	if err != nil {
		c.teardownAuthed(0, 0, dataproto.StatusFromError(err))
		return
	}
	c.hasChild = true
	c.childIndex = idx
	c.svc.bindChild(idx, c)

	ackResp := dataproto.EncodeResponse(dataproto.Method(HandshakeAck), 0, dataproto.StatusSuccess, nil)
	frame, err := c.sess.EncryptServer(ackResp)
	if err != nil {
		c.teardownAuthed(0, 0, dataproto.StatusCryptoFailure)
		return
	}
	if err := c.sess.Advance(session.StateAuthenticated); err != nil {
		c.teardownAuthed(0, 0, dataproto.StatusMalformedRequest)
		return
	}

	c.state = StateWriteHSAck
	c.svc.Loop.QueueWrite(c.sc, frame, func(l *reactor.Loop, sc *reactor.SocketContext) {
		c.state = StateReadCmd
		l.SetReadCallback(sc, c.onReadable)
	})
}

func (c *Connection) tryCommands() {
	for {
		plaintext, consumed, err := c.sess.DecryptClient(c.sc.ReadBuf.Bytes())
		if err != nil {
			if agenterr.CodeOf(err) == agenterr.WouldBlock {
				return
			}
			c.teardownAuthed(0, 0, dataproto.StatusFromError(err))
			return
		}
		c.sc.ReadBuf.Drain(consumed)

		if len(plaintext) > MaxCommandBodySize {
			c.teardownAuthed(0, 0, dataproto.StatusMalformedRequest)
			return
		}

		req, err := dataproto.DecodeRequestHeader(plaintext)
		if err != nil {
			c.teardownAuthed(0, 0, dataproto.StatusFromError(err))
			return
		}
		// A command frame reuses the non-root request header layout, but
		// the second word is the client's own request-offset, not a
		// child index: the protocol service always substitutes its own
		// recorded child index before forwarding (§4.4 "Correlation").
		clientOffset := req.ChildIndex

		dsReq := dataproto.EncodeRequest(req.Method, c.childIndex, req.Body)
		dsResp, err := dataproto.DecodeResponseHeader(c.svc.Data.Call(dsReq))
		if err != nil {
			c.teardownAuthed(uint32(req.Method), clientOffset, dataproto.StatusFromError(err))
			return
		}

		resp := dataproto.EncodeResponse(req.Method, clientOffset, dsResp.Status, dsResp.Body)
		frame, err := c.sess.EncryptServer(resp)
		if err != nil {
			c.teardownAuthed(uint32(req.Method), clientOffset, dataproto.StatusCryptoFailure)
			return
		}
		c.state = StateWriteCmdResp
		c.svc.Loop.QueueWrite(c.sc, frame, func(l *reactor.Loop, sc *reactor.SocketContext) {
			c.state = StateReadCmd
		})
	}
}

// teardownUnauthed sends an unencrypted handshake-shaped error response
// (§4.4 scenario 2: unknown entity) then closes once the write drains.
func (c *Connection) teardownUnauthed(status Status) {
	c.state = StateUnauthorized
	resp := HelloResponse{
		RequestID:       HandshakeInitiate,
		Status:          status,
		ServerKeyNonce:  make([]byte, c.svc.Suite.NonceSize),
		ServerChallenge: make([]byte, c.svc.Suite.NonceSize),
	}
	frame, err := wire.EncodeData(resp.Encode())
	if err != nil {
		c.closeNow()
		return
	}
	c.svc.Loop.SetReadCallback(c.sc, nil)
	c.svc.Loop.QueueWrite(c.sc, frame, func(l *reactor.Loop, sc *reactor.SocketContext) {
		c.closeNow()
	})
}

// teardownAuthed sends an authed error response once the session secret is
// established, then closes once the write drains (§4.4 "Failure surfaces").
func (c *Connection) teardownAuthed(method uint32, offset uint32, status Status) {
	c.state = StateUnauthorized
	c.svc.Loop.SetReadCallback(c.sc, nil)
	body := dataproto.EncodeResponse(dataproto.Method(method), offset, status, nil)
	frame, err := c.sess.EncryptServer(body)
	if err != nil {
		c.closeNow()
		return
	}
	c.svc.Loop.QueueWrite(c.sc, frame, func(l *reactor.Loop, sc *reactor.SocketContext) {
		c.closeNow()
	})
}

// closeNow releases the connection's child context with a best-effort
// request (Design Note "Best-effort cleanup under force_exit") and removes
// it from the loop.
func (c *Connection) closeNow() {
	if c.hasChild {
		req := dataproto.EncodeRequest(dataproto.MethodChildContextClose, c.childIndex, nil)
		c.svc.Data.Call(req)
		c.svc.unbindChild(c.childIndex)
	}
	c.svc.Loop.Remove(c.sc)
	c.svc.forget(c.sc.FD)
}
