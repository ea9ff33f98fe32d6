// Package protocolsvc implements the protocol service's per-connection
// state machine of §4.4: the unauthenticated handshake, shared-secret
// derivation, and the authed command loop that proxies client requests to
// the data service and draws handshake entropy from the random service.
package protocolsvc

import "synnergy-network/internal/session"

// CryptoSuite is Design Note 4's "explicit CryptoSuite value" threaded
// through the handshake in place of the source's global suite handle. This
// implementation advertises exactly one concrete suite.
type CryptoSuite struct {
	ID        uint32
	NonceSize int
}

// DefaultSuite is the one crypto suite this implementation advertises.
var DefaultSuite = CryptoSuite{ID: 1, NonceSize: session.NonceSize}
