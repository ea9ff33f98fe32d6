// Package dataproto implements the data-service wire protocol of §4.3/§6: a
// fixed method-id enumeration, the capability bitmap child contexts are
// granted against, and request/response codecs for each method. Every
// message on this wire travels inside a raw-data frame (internal/wire's
// type 0x20) — this is trusted local IPC between cooperating processes, not
// the client-facing authenticated channel internal/session guards.
package dataproto

import "synnergy-network/internal/agenterr"

// Method is the 32-bit big-endian method id leading every request and
// response on this wire.
type Method uint32

const (
	MethodRootContextInit Method = 1 + iota
	MethodRootContextReduceCaps
	MethodChildContextCreate
	MethodChildContextClose
	MethodGlobalSettingSet
	MethodGlobalSettingGet
	MethodArtifactRead
	MethodTransactionSubmit
	MethodTransactionGetFirst
	MethodTransactionGet
	MethodTransactionDrop
	MethodCanonizedTransactionGet
	MethodBlockMake
	MethodBlockGet
	MethodBlockIDLatestGet
	MethodBlockIDByHeightGet
)

var methodNames = map[Method]string{
	MethodRootContextInit:         "root_context_init",
	MethodRootContextReduceCaps:   "root_context_reduce_caps",
	MethodChildContextCreate:      "child_context_create",
	MethodChildContextClose:       "child_context_close",
	MethodGlobalSettingSet:        "global_setting_set",
	MethodGlobalSettingGet:        "global_setting_get",
	MethodArtifactRead:            "artifact_read",
	MethodTransactionSubmit:       "transaction_submit",
	MethodTransactionGetFirst:     "transaction_get_first",
	MethodTransactionGet:          "transaction_get",
	MethodTransactionDrop:         "transaction_drop",
	MethodCanonizedTransactionGet: "canonized_transaction_get",
	MethodBlockMake:               "block_make",
	MethodBlockGet:                "block_get",
	MethodBlockIDLatestGet:        "block_id_latest_get",
	MethodBlockIDByHeightGet:      "block_id_by_height_get",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "method(unknown)"
}

// IsRootMethod reports whether m is one of the two root-context operations,
// which omit the child-index field §4.3 gives every other request.
func (m Method) IsRootMethod() bool {
	return m == MethodRootContextInit || m == MethodRootContextReduceCaps
}

// Status is the 32-bit status word in a data-service response; zero is
// success, every other value names an agenterr.Code (via statusToCode) on
// the subset of failures this protocol surfaces to a caller.
type Status uint32

const (
	StatusSuccess Status = iota
	StatusRequestPacketInvalidSize
	StatusChildContextBadIndex
	StatusChildContextInvalid
	StatusUnauthorized
	StatusNotFound
	StatusMalformedRequest
	StatusCryptoFailure
	StatusAuthFailure
)

var statusToCode = map[Status]agenterr.Code{
	StatusRequestPacketInvalidSize: agenterr.RequestPacketInvalidSize,
	StatusChildContextBadIndex:     agenterr.ChildContextBadIndex,
	StatusChildContextInvalid:      agenterr.ChildContextInvalid,
	StatusUnauthorized:             agenterr.Unauthorized,
	StatusNotFound:                 agenterr.NotFound,
	StatusMalformedRequest:         agenterr.MalformedRequest,
	StatusCryptoFailure:            agenterr.CryptoFailure,
	StatusAuthFailure:              agenterr.AuthFailure,
}

var codeToStatus = func() map[agenterr.Code]Status {
	m := make(map[agenterr.Code]Status, len(statusToCode))
	for s, c := range statusToCode {
		m[c] = s
	}
	return m
}()

// StatusFromError maps err to the wire status reported back to the caller.
// A nil error maps to StatusSuccess; an error whose code has no dedicated
// status maps to StatusMalformedRequest.
func StatusFromError(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if s, ok := codeToStatus[agenterr.CodeOf(err)]; ok {
		return s
	}
	return StatusMalformedRequest
}

// ErrorFromStatus is the inverse of StatusFromError: nil for StatusSuccess,
// else an *agenterr.Error carrying the matching code.
func ErrorFromStatus(s Status) error {
	if s == StatusSuccess {
		return nil
	}
	if c, ok := statusToCode[s]; ok {
		return agenterr.Sentinel(c)
	}
	return agenterr.New(agenterr.MalformedRequest, "unrecognized data-service status %d", s)
}
