package push

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGateway implements Gateway for testing.
type mockGateway struct {
	sendCalls  int
	lastMsg    Message
	lastDryRun bool
	sendErr    error
}

func (m *mockGateway) Send(_ context.Context, msg Message, dryRun bool) (string, error) {
	m.sendCalls++
	m.lastMsg = msg
	m.lastDryRun = dryRun
	if m.sendErr != nil {
		return "", m.sendErr
	}
	return "msg-1", nil
}

func TestValidatorAcceptsDeliverableToken(t *testing.T) {
	gw := &mockGateway{}
	v := NewValidator(gw, zerolog.Nop())

	require.True(t, v.IsTokenValid(context.Background(), "token-abc"))
	assert.Equal(t, 1, gw.sendCalls)
	assert.True(t, gw.lastDryRun, "validation probe must be a dry run")
	assert.Equal(t, "token-abc", gw.lastMsg.Token)
}

func TestValidatorRejectsBlankTokenWithoutProbe(t *testing.T) {
	gw := &mockGateway{}
	v := NewValidator(gw, zerolog.Nop())

	assert.False(t, v.IsTokenValid(context.Background(), ""))
	assert.False(t, v.IsTokenValid(context.Background(), "   "))
	assert.Equal(t, 0, gw.sendCalls, "blank tokens must never reach the gateway")
}

func TestValidatorClassifiesInvalidTokenCodes(t *testing.T) {
	codes := []string{
		CodeTokenNotRegistered,
		CodeInvalidRegistration,
		CodeInvalidArgument,
		CodeMismatchedCredential,
		CodeSenderIDMismatch,
		CodeConfigurationNotFound,
		CodeThirdPartyAuthError,
	}

	for _, code := range codes {
		gw := &mockGateway{sendErr: &RejectionError{Code: code}}
		v := NewValidator(gw, zerolog.Nop())
		assert.False(t, v.IsTokenValid(context.Background(), "stale-token"), "code %s must classify invalid", code)
	}
}

func TestValidatorFailsOpenOnUnknownErrors(t *testing.T) {
	cases := []error{
		errors.New("dial tcp: connection refused"),
		context.DeadlineExceeded,
		&RejectionError{Code: CodeUnavailable},
		&RejectionError{Code: CodeInternal},
	}

	for _, sendErr := range cases {
		gw := &mockGateway{sendErr: sendErr}
		v := NewValidator(gw, zerolog.Nop())
		assert.True(t, v.IsTokenValid(context.Background(), "maybe-fine"), "error %v must fail open", sendErr)
	}
}
