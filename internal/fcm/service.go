// Package fcm owns the device-token lifecycle: registration, removal, and the
// batched cleanup job that purges tokens the gateway no longer accepts.
package fcm

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/presencaplus/attendance-api/internal/config"
	"github.com/presencaplus/attendance-api/internal/models"
	"github.com/presencaplus/attendance-api/internal/repository"
)

// ErrTokenRequired is returned before any I/O when a blank token is submitted.
var ErrTokenRequired = errors.New("fcm token is required")

// TokenValidator classifies one device token. Implementations must be
// fail-open and never return an error.
type TokenValidator interface {
	IsTokenValid(ctx context.Context, token string) bool
}

type CleanupResult struct {
	Total   int `json:"total"`
	Removed int `json:"removed"`
}

type Service struct {
	users     repository.UserRepository
	validator TokenValidator
	guard     *RunGuard
	cfg       config.CleanupConfig
	logger    zerolog.Logger
}

// NewService wires the token service. The guard is injected rather than owned
// so several service values can share one single-flight policy.
func NewService(users repository.UserRepository, validator TokenValidator, guard *RunGuard, cfg config.CleanupConfig, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		validator: validator,
		guard:     guard,
		cfg:       cfg,
		logger:    logger.With().Str("component", "fcm_service").Logger(),
	}
}

// UpdateToken registers the user's current device token, replacing any
// previous one. Last write wins.
func (s *Service) UpdateToken(ctx context.Context, userID, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrTokenRequired
	}
	return s.users.UpdateFcmToken(ctx, userID, token)
}

// RemoveToken unsets the user's device token, typically on logout. Removing
// an already-absent token is a no-op.
func (s *Service) RemoveToken(ctx context.Context, userID string) error {
	return s.users.RemoveFcmToken(ctx, userID)
}

// CleanupInvalidTokens scans every user holding a token in fixed batches,
// probes each token concurrently, and unsets the ones the gateway rejects as
// permanently dead. At most one run exists per process, with a cooldown
// between runs; callers receive ErrCleanupInProgress or *CooldownError when
// the guard refuses them.
//
// Cancellation is honored only at batch boundaries: a batch's probes and its
// bulk unset are one unit of work.
func (s *Service) CleanupInvalidTokens(ctx context.Context) (CleanupResult, error) {
	if err := s.guard.TryAcquire(); err != nil {
		return CleanupResult{}, err
	}

	completed := false
	defer func() {
		s.guard.Release(completed)
	}()

	s.logger.Info().Msg("starting invalid token cleanup")

	var (
		result  CleanupResult
		afterID string
		pause   = time.Duration(s.cfg.BatchPauseMs) * time.Millisecond
	)

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.users.ListWithFcmToken(ctx, afterID, s.cfg.BatchSize)
		if err != nil {
			return result, pkgerrors.Wrap(err, "list users with fcm token")
		}
		if len(batch) == 0 {
			break
		}

		invalidIDs := s.probeBatch(ctx, batch)

		if len(invalidIDs) > 0 {
			removed, err := s.users.RemoveFcmTokens(ctx, invalidIDs)
			if err != nil {
				return result, pkgerrors.Wrap(err, "remove invalid fcm tokens")
			}
			result.Removed += int(removed)
		}

		result.Total += len(batch)
		afterID = batch[len(batch)-1].ID

		if len(batch) < s.cfg.BatchSize {
			break
		}

		// Pause between batches to bound the probe rate against the gateway.
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(pause):
		}
	}

	completed = true
	s.logger.Info().
		Int("total", result.Total).
		Int("removed", result.Removed).
		Msg("token cleanup finished")

	return result, nil
}

// probeBatch validates all tokens of one batch with bounded fan-out and
// returns the user ids whose tokens came back invalid. A failing probe keeps
// its token (the validator is fail-open), so one bad probe never sinks the
// batch.
func (s *Service) probeBatch(ctx context.Context, batch []models.UserToken) []string {
	invalid := make([]bool, len(batch))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, ut := range batch {
		i, ut := i, ut
		g.Go(func() error {
			invalid[i] = !s.validator.IsTokenValid(ctx, ut.FcmToken)
			return nil
		})
	}
	// Probe goroutines never return errors.
	_ = g.Wait()

	var invalidIDs []string
	for i, ut := range batch {
		if invalid[i] {
			invalidIDs = append(invalidIDs, ut.ID)
		}
	}
	return invalidIDs
}
