package bacerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "protocol", KindProtocol.String())
	assert.Equal(t, "reject", KindReject.String())
	assert.Equal(t, "abort", KindAbort.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "parse", KindParse.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestProtocolError(t *testing.T) {
	err := Protocol(ClassObject, CodeUnknownObject)
	assert.Equal(t, KindProtocol, err.Kind)
	assert.Contains(t, err.Error(), "protocol error")
	assert.True(t, IsProtocol(err, ClassObject, CodeUnknownObject))
	assert.False(t, IsProtocol(err, ClassObject, CodeUnknownProperty))
	assert.False(t, IsProtocol(errors.New("other"), ClassObject, CodeUnknownObject))
}

func TestRejectError(t *testing.T) {
	err := Reject(RejectUnrecognizedService)
	assert.Equal(t, KindReject, err.Kind)
	assert.Contains(t, err.Error(), "rejected")
}

func TestAbortError(t *testing.T) {
	err := Abort(AbortTSMTimeout)
	assert.Equal(t, KindAbort, err.Kind)
	assert.Contains(t, err.Error(), "aborted")
}

func TestTimeoutError(t *testing.T) {
	err := Timeout()
	assert.Equal(t, KindTimeout, err.Kind)
	assert.Equal(t, "bacnet: request timed out", err.Error())
}

func TestParseErrorUnwrap(t *testing.T) {
	cause := errors.New("short buffer")
	err := Parse("decoding tag", cause)
	assert.Equal(t, KindParse, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "decoding tag")
	assert.Contains(t, err.Error(), "short buffer")
}

func TestParseErrorWithoutCause(t *testing.T) {
	err := Parse("decoding tag", nil)
	assert.Equal(t, "bacnet: parse error: decoding tag", err.Error())
}
