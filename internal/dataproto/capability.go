package dataproto

// Capability is the bitmap a data-service child context is bound to (§3
// "Child context"). Bit positions and names follow the enumeration recovered
// from original_source/'s DATASERVICE_API_CAP_* constants rather than
// spec.md's abstract "bitmap drawn from a fixed enumeration".
type Capability uint64

const (
	CapArtifactRead Capability = 1 << iota
	CapBlockIDByHeightRead
	CapBlockIDLatestRead
	CapBlockRead
	CapBlockWrite
	CapGlobalSettingRead
	CapGlobalSettingWrite
	CapPQTransactionDrop
	CapPQTransactionFirstRead
	CapPQTransactionRead
	CapPQTransactionSubmit
	CapTransactionRead
	// CapLLChildContextClose and CapLLChildContextCreate are "low-level"
	// bits: a child may create or close further child contexts under its
	// own caps only if it holds these, distinct from the data-carrying
	// capabilities above.
	CapLLChildContextClose
	CapLLChildContextCreate
	// CapLLRootContextReduceCaps must be self-granted by the caller of
	// root_context_reduce_caps, not merely present in the target bitmap
	// (the original's enforcement detail restored in SPEC_FULL.md).
	CapLLRootContextReduceCaps

	// capBitsMax marks one past the highest assigned bit (DATASERVICE_API_CAP_BITS_MAX).
	capBitsMax = iota
)

// CapBitsMax is the number of capability bits currently defined.
const CapBitsMax = capBitsMax

// Has reports whether c grants every bit set in want.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Intersect returns the bits common to c and other, used by both
// child_context_create ("intersection of the parent's caps and the
// requested bitmap") and root_context_reduce_caps ("intersected with
// current caps").
func (c Capability) Intersect(other Capability) Capability {
	return c & other
}

var capNames = []struct {
	bit  Capability
	name string
}{
	{CapArtifactRead, "artifact_read"},
	{CapBlockIDByHeightRead, "block_id_by_height_read"},
	{CapBlockIDLatestRead, "block_id_latest_read"},
	{CapBlockRead, "block_read"},
	{CapBlockWrite, "block_write"},
	{CapGlobalSettingRead, "global_setting_read"},
	{CapGlobalSettingWrite, "global_setting_write"},
	{CapPQTransactionDrop, "pq_transaction_drop"},
	{CapPQTransactionFirstRead, "pq_transaction_first_read"},
	{CapPQTransactionRead, "pq_transaction_read"},
	{CapPQTransactionSubmit, "pq_transaction_submit"},
	{CapTransactionRead, "transaction_read"},
	{CapLLChildContextClose, "ll_child_context_close"},
	{CapLLChildContextCreate, "ll_child_context_create"},
	{CapLLRootContextReduceCaps, "ll_root_context_reduce_caps"},
}

// String renders the set bits of c as a "|"-joined list of names, for log
// fields and test failure messages.
func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	out := ""
	for _, n := range capNames {
		if c.Has(n.bit) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "unknown"
	}
	return out
}

// CanonizationCaps is the fixed capability set the canonization pipeline
// requests for its child context (§4.5 "Child acquisition").
const CanonizationCaps = CapPQTransactionFirstRead | CapPQTransactionRead |
	CapBlockIDLatestRead | CapBlockRead | CapBlockWrite | CapLLChildContextClose
