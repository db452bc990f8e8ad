// Package bacerr holds the BACnet error taxonomy shared across every layer
// of the stack: protocol errors (Error-PDU), Reject-PDU, Abort-PDU, local
// timeouts, and parse/encoding failures.
package bacerr

import "fmt"

// Kind discriminates the five error shapes observable at the application
// boundary.
type Kind int

const (
	KindProtocol Kind = iota
	KindReject
	KindAbort
	KindTimeout
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindReject:
		return "reject"
	case KindAbort:
		return "abort"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// ErrorClass is the BACnet Error-Class enumeration (ASHRAE 135 clause 21).
type ErrorClass uint32

const (
	ClassDevice ErrorClass = iota
	ClassObject
	ClassProperty
	ClassResources
	ClassSecurity
	ClassServices
	ClassVT
	ClassCommunication
)

// ErrorCode is the BACnet Error-Code enumeration. Only the subset exercised
// by the object/service layers is enumerated; the numeric values match
// ASHRAE 135 clause 21 so wire round-trips are exact.
type ErrorCode uint32

const (
	CodeOther                      ErrorCode = 0
	CodeUnknownObject              ErrorCode = 31
	CodeUnknownProperty            ErrorCode = 32
	CodeWriteAccessDenied          ErrorCode = 40
	CodeInvalidArrayIndex          ErrorCode = 42
	CodePropertyIsNotAnArray       ErrorCode = 50
	CodeValueOutOfRange            ErrorCode = 37
	CodeValueNotInitialized        ErrorCode = 38
	CodeParameterOutOfRange        ErrorCode = 93
	CodeObjectIdentifierAlreadyExists ErrorCode = 75
	CodeObjectDeletionNotPermitted ErrorCode = 23
	CodeUnsupportedObjectType      ErrorCode = 24
	CodeInconsistentParameters     ErrorCode = 7
	CodeFileAccessDenied           ErrorCode = 5
	CodeInvalidFileStartPosition   ErrorCode = 63
	CodeServiceRequestDenied       ErrorCode = 29
	CodePasswordFailure            ErrorCode = 26
	CodeNoSpaceForObject           ErrorCode = 21
	CodeDynamicCreationNotSupported ErrorCode = 9
)

// RejectReason is the BACnet RejectReason enumeration (ASHRAE 135 clause 21).
type RejectReason uint32

const (
	RejectOther                   RejectReason = 0
	RejectBufferOverflow          RejectReason = 1
	RejectInconsistentParameters  RejectReason = 2
	RejectInvalidParameterDataType RejectReason = 3
	RejectInvalidTag              RejectReason = 4
	RejectMissingRequiredParameter RejectReason = 5
	RejectParameterOutOfRange     RejectReason = 6
	RejectTooManyArguments        RejectReason = 7
	RejectUndefinedEnumeration    RejectReason = 8
	RejectUnrecognizedService     RejectReason = 9
)

// AbortReason is the BACnet AbortReason enumeration (ASHRAE 135 clause 21).
type AbortReason uint32

const (
	AbortOther                            AbortReason = 0
	AbortBufferOverflow                   AbortReason = 1
	AbortInvalidAPDUInThisState           AbortReason = 2
	AbortPreemptedByHigherPriorityTask    AbortReason = 3
	AbortSegmentationNotSupported         AbortReason = 4
	AbortSecurityError                    AbortReason = 5
	AbortInsufficientSecurity             AbortReason = 6
	AbortWindowSizeOutOfRange             AbortReason = 7
	AbortApplicationExceededReplyTime     AbortReason = 8
	AbortOutOfResources                   AbortReason = 9
	AbortTSMTimeout                       AbortReason = 10
	AbortAPDUTooLong                      AbortReason = 11
)

// Error is the single typed error returned from every client-facing
// operation in the stack. Only the fields relevant to Kind are populated.
type Error struct {
	Kind    Kind
	Class   ErrorClass
	Code    ErrorCode
	Reject  RejectReason
	Abort   AbortReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindProtocol:
		return fmt.Sprintf("bacnet: %s error: class=%d code=%d", e.Kind, e.Class, e.Code)
	case KindReject:
		return fmt.Sprintf("bacnet: rejected: reason=%d", e.Reject)
	case KindAbort:
		return fmt.Sprintf("bacnet: aborted: reason=%d", e.Abort)
	case KindTimeout:
		return "bacnet: request timed out"
	case KindParse:
		if e.Cause != nil {
			return fmt.Sprintf("bacnet: parse error: %s: %v", e.Message, e.Cause)
		}
		return fmt.Sprintf("bacnet: parse error: %s", e.Message)
	default:
		return "bacnet: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Protocol builds a kind-1 (Error-PDU) error.
func Protocol(class ErrorClass, code ErrorCode) *Error {
	return &Error{Kind: KindProtocol, Class: class, Code: code}
}

// Reject builds a kind-2 (Reject-PDU) error.
func Reject(reason RejectReason) *Error {
	return &Error{Kind: KindReject, Reject: reason}
}

// Abort builds a kind-3 (Abort-PDU) error.
func Abort(reason AbortReason) *Error {
	return &Error{Kind: KindAbort, Abort: reason}
}

// Timeout builds a kind-4 error.
func Timeout() *Error {
	return &Error{Kind: KindTimeout}
}

// Parse builds a kind-5 error wrapping the underlying decode failure.
func Parse(message string, cause error) *Error {
	return &Error{Kind: KindParse, Message: message, Cause: cause}
}

// IsProtocol reports whether err is a protocol error carrying the given
// class/code pair — used by tests and by handlers that need to special-case
// a specific failure (e.g. unknown-object).
func IsProtocol(err error, class ErrorClass, code ErrorCode) bool {
	e, ok := err.(*Error)
	if !ok || e.Kind != KindProtocol {
		return false
	}
	return e.Class == class && e.Code == code
}
