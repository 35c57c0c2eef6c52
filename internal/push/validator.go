package push

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Validator classifies device tokens by issuing a dry-run send against the
// gateway. Classification is deliberately fail-open: only a rejection whose
// code is in the invalid-token set marks a token dead. Anything ambiguous
// (network error, timeout, open breaker, unknown code) counts as valid, so a
// transient gateway outage can never trigger a mass token purge.
type Validator struct {
	gateway Gateway
	logger  zerolog.Logger
}

func NewValidator(gateway Gateway, logger zerolog.Logger) *Validator {
	return &Validator{
		gateway: gateway,
		logger:  logger.With().Str("component", "token_validator").Logger(),
	}
}

// IsTokenValid never returns an error. Blank input is invalid without a
// gateway call.
func (v *Validator) IsTokenValid(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		v.logger.Warn().Msg("blank token submitted for validation")
		return false
	}

	msg := Message{
		Token:        token,
		Title:        "Token validation",
		Body:         "Validating device token",
		HighPriority: true,
	}

	_, err := v.gateway.Send(ctx, msg, true)
	if err == nil {
		return true
	}

	if IsInvalidTokenError(err) {
		v.logger.Warn().Err(err).Str("token_prefix", tokenPrefix(token)).Msg("token classified invalid")
		return false
	}

	v.logger.Error().Err(err).Str("token_prefix", tokenPrefix(token)).Msg("token probe failed, assuming valid")
	return true
}

// tokenPrefix truncates a token for logging. Full tokens never reach the logs.
func tokenPrefix(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10] + "..."
}
