package datasvc

import (
	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/dataproto"
)

// childSlot is one entry in the fixed-capacity child-context arena (§3
// "Child context"). A slot is either free (on the free list) or bound to a
// live capability bitmap.
type childSlot struct {
	allocated bool
	caps      dataproto.Capability
}

// contextTable is the root context's view of its children: a fixed-size
// array of slots plus a free list of indices, matching §5's "free list of
// child indices is a process-local mutable pool guarded implicitly by the
// single-threaded loop" — there is exactly one goroutine ever touching
// this, the event loop driving the data service.
type contextTable struct {
	rootCaps dataproto.Capability
	slots    []childSlot
	freeList []uint32
}

// MaxChildContexts bounds the child-index space (DATASERVICE_API_CAP_BITS_MAX
// governs capability bits, not context count; this is this implementation's
// own fixed arena size, chosen generously for a single-host agent process).
const MaxChildContexts = 4096

func newContextTable() *contextTable {
	t := &contextTable{
		// The root context starts with every capability bit granted; a
		// deployment narrows this via root_context_reduce_caps.
		rootCaps: dataproto.Capability(1)<<dataproto.CapBitsMax - 1,
		slots:    make([]childSlot, MaxChildContexts),
	}
	for i := MaxChildContexts - 1; i >= 0; i-- {
		t.freeList = append(t.freeList, uint32(i))
	}
	return t
}

// reduceCaps replaces the root context's own capability bitmap with its
// intersection against requested, but only if the root context's *current*
// bitmap already grants the reduce-capability bit itself — restored from
// original_source/ per SPEC_FULL.md's "Reduce-caps self-check".
func (t *contextTable) reduceCaps(requested dataproto.Capability) error {
	if !t.rootCaps.Has(dataproto.CapLLRootContextReduceCaps) {
		return agenterr.Sentinel(agenterr.Unauthorized)
	}
	t.rootCaps = t.rootCaps.Intersect(requested)
	return nil
}

// createChild allocates a free slot bound to the intersection of parentCaps
// and requested (§3: "the set of caps a child may use is the intersection
// of the parent's caps and the requested bitmap").
func (t *contextTable) createChild(parentCaps, requested dataproto.Capability) (uint32, error) {
	if len(t.freeList) == 0 {
		return 0, agenterr.New(agenterr.OutOfMemory, "child-context arena exhausted at %d", MaxChildContexts)
	}
	idx := t.freeList[len(t.freeList)-1]
	t.freeList = t.freeList[:len(t.freeList)-1]
	t.slots[idx] = childSlot{allocated: true, caps: parentCaps.Intersect(requested)}
	return idx, nil
}

// closeChild releases index back to the free list.
func (t *contextTable) closeChild(index uint32) error {
	if _, err := t.lookup(index); err != nil {
		return err
	}
	t.slots[index] = childSlot{}
	t.freeList = append(t.freeList, index)
	return nil
}

// lookup validates index and returns its slot, distinguishing an
// out-of-range index (ChildContextBadIndex) from one in range but never
// allocated or already freed (ChildContextInvalid) — the distinction
// SUPPLEMENTED FEATURES restores from original_source/.
func (t *contextTable) lookup(index uint32) (*childSlot, error) {
	if int(index) >= len(t.slots) {
		return nil, agenterr.Sentinel(agenterr.ChildContextBadIndex)
	}
	slot := &t.slots[index]
	if !slot.allocated {
		return nil, agenterr.Sentinel(agenterr.ChildContextInvalid)
	}
	return slot, nil
}

// authorize validates index and checks it grants every bit in want,
// failing with Unauthorized (no side effects) if not (§4.3 "Authorization").
func (t *contextTable) authorize(index uint32, want dataproto.Capability) error {
	slot, err := t.lookup(index)
	if err != nil {
		return err
	}
	if !slot.caps.Has(want) {
		return agenterr.Sentinel(agenterr.Unauthorized)
	}
	return nil
}
