// Package push talks to the FCM gateway: sending notification payloads,
// classifying gateway rejections, and probing device tokens for validity.
package push

import (
	"context"
	"errors"
	"fmt"
)

// Message is the platform-agnostic payload handed to the gateway.
type Message struct {
	Token string
	Title string
	Body  string
	// Data rides alongside the visible notification and is opaque to the
	// gateway.
	Data map[string]string
	// HighPriority requests immediate delivery on both platforms.
	HighPriority bool
	Sound        string
	Badge        int
}

// Gateway abstracts the send operation of the push service. dryRun validates
// the message and token without delivering anything user-visible.
type Gateway interface {
	Send(ctx context.Context, msg Message, dryRun bool) (messageID string, err error)
}

// Rejection codes in the gateway contract. The invalid-token subset marks
// tokens that will never deliver again and are safe to purge.
const (
	CodeTokenNotRegistered      = "messaging/registration-token-not-registered"
	CodeInvalidRegistration     = "messaging/invalid-registration-token"
	CodeInvalidArgument         = "messaging/invalid-argument"
	CodeMismatchedCredential    = "messaging/mismatched-credential"
	CodeSenderIDMismatch        = "messaging/sender-id-mismatch"
	CodeConfigurationNotFound   = "messaging/configuration-not-found"
	CodeThirdPartyAuthError     = "messaging/third-party-auth-error"
	CodeInternal                = "messaging/internal-error"
	CodeUnavailable             = "messaging/server-unavailable"
)

var invalidTokenCodes = map[string]struct{}{
	CodeTokenNotRegistered:    {},
	CodeInvalidRegistration:   {},
	CodeInvalidArgument:       {},
	CodeMismatchedCredential:  {},
	CodeSenderIDMismatch:      {},
	CodeConfigurationNotFound: {},
	CodeThirdPartyAuthError:   {},
}

// RejectionError is a typed rejection returned by the gateway.
type RejectionError struct {
	Code   string
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// IsInvalidTokenError reports whether err is a gateway rejection whose code
// marks the device token as permanently dead.
func IsInvalidTokenError(err error) bool {
	var rej *RejectionError
	if !errors.As(err, &rej) {
		return false
	}
	_, ok := invalidTokenCodes[rej.Code]
	return ok
}
