package protocolsvc

import "synnergy-network/internal/ids"

// Directory is the authorized-entity directory handshake message 1 consults
// to recover a claimed entity's long-term public key (§4.4: "The server
// looks the entity id up against a directory of authorized entities").
// Loading it from a file is out of scope (spec.md §6's config non-goal);
// this is just the in-memory lookup structure the handshake depends on.
type Directory map[ids.ID][32]byte

// Lookup returns entity's public key and whether it is known.
func (d Directory) Lookup(entity ids.ID) ([32]byte, bool) {
	pub, ok := d[entity]
	return pub, ok
}
