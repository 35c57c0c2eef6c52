package fcm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presencaplus/attendance-api/internal/config"
	"github.com/presencaplus/attendance-api/internal/models"
	"github.com/presencaplus/attendance-api/internal/repository"
)

// mockUserRepo implements repository.UserRepository for testing. Only the
// token-related methods carry behavior.
type mockUserRepo struct {
	mu      sync.Mutex
	tokens  []models.UserToken
	removed [][]string

	updateUserID string
	updateToken  string
	updateErr    error
	removeUserID string
	removeErr    error
}

func (m *mockUserRepo) CreateUser(context.Context, string, string, string, models.UserRole) (models.User, error) {
	panic("not used")
}

func (m *mockUserRepo) AuthenticateUser(context.Context, string, string) (models.User, error) {
	panic("not used")
}

func (m *mockUserRepo) GetUserByID(context.Context, string) (models.User, error) {
	panic("not used")
}

func (m *mockUserRepo) UpdateFcmToken(_ context.Context, userID, token string) error {
	m.updateUserID = userID
	m.updateToken = token
	return m.updateErr
}

func (m *mockUserRepo) RemoveFcmToken(_ context.Context, userID string) error {
	m.removeUserID = userID
	return m.removeErr
}

func (m *mockUserRepo) RemoveFcmTokens(_ context.Context, userIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, userIDs)

	kept := m.tokens[:0]
	removedCount := int64(0)
	for _, ut := range m.tokens {
		dead := false
		for _, id := range userIDs {
			if ut.ID == id {
				dead = true
				break
			}
		}
		if dead {
			removedCount++
			continue
		}
		kept = append(kept, ut)
	}
	m.tokens = kept
	return removedCount, nil
}

func (m *mockUserRepo) ListWithFcmToken(_ context.Context, afterID string, limit int) ([]models.UserToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var page []models.UserToken
	for _, ut := range m.tokens {
		if ut.ID > afterID {
			page = append(page, ut)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

// validatorFunc adapts a function to the TokenValidator interface.
type validatorFunc func(ctx context.Context, token string) bool

func (f validatorFunc) IsTokenValid(ctx context.Context, token string) bool {
	return f(ctx, token)
}

func testCleanupConfig() config.CleanupConfig {
	return config.CleanupConfig{
		BatchSize:       100,
		MaxConcurrency:  8,
		CooldownMinutes: 15,
		BatchPauseMs:    1,
	}
}

func newTestService(repo *mockUserRepo, validator TokenValidator, cfg config.CleanupConfig) (*Service, *RunGuard) {
	guard := NewRunGuard(time.Duration(cfg.CooldownMinutes) * time.Minute)
	return NewService(repo, validator, guard, cfg, zerolog.Nop()), guard
}

func TestUpdateTokenRequiresToken(t *testing.T) {
	repo := &mockUserRepo{}
	svc, _ := newTestService(repo, validatorFunc(func(context.Context, string) bool { return true }), testCleanupConfig())

	assert.ErrorIs(t, svc.UpdateToken(context.Background(), "u1", "  "), ErrTokenRequired)
	assert.Empty(t, repo.updateUserID, "blank token must be rejected before any store call")

	require.NoError(t, svc.UpdateToken(context.Background(), "u1", "tok-1"))
	assert.Equal(t, "u1", repo.updateUserID)
	assert.Equal(t, "tok-1", repo.updateToken)
}

func TestUpdateTokenUnknownUser(t *testing.T) {
	repo := &mockUserRepo{updateErr: repository.ErrNotFound}
	svc, _ := newTestService(repo, validatorFunc(func(context.Context, string) bool { return true }), testCleanupConfig())

	assert.ErrorIs(t, svc.UpdateToken(context.Background(), "ghost", "tok"), repository.ErrNotFound)
}

func TestRemoveToken(t *testing.T) {
	repo := &mockUserRepo{}
	svc, _ := newTestService(repo, validatorFunc(func(context.Context, string) bool { return true }), testCleanupConfig())

	require.NoError(t, svc.RemoveToken(context.Background(), "u2"))
	assert.Equal(t, "u2", repo.removeUserID)
}

func TestCleanupNoUsersWithTokens(t *testing.T) {
	repo := &mockUserRepo{}
	svc, _ := newTestService(repo, validatorFunc(func(context.Context, string) bool { return true }), testCleanupConfig())

	result, err := svc.CleanupInvalidTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Total: 0, Removed: 0}, result)
}

func TestCleanupRemovesInvalidToken(t *testing.T) {
	repo := &mockUserRepo{tokens: []models.UserToken{{ID: "u1", FcmToken: "T1"}}}
	svc, _ := newTestService(repo, validatorFunc(func(_ context.Context, token string) bool {
		return token != "T1"
	}), testCleanupConfig())

	result, err := svc.CleanupInvalidTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Total: 1, Removed: 1}, result)
	require.Len(t, repo.removed, 1)
	assert.Equal(t, []string{"u1"}, repo.removed[0])
	assert.Empty(t, repo.tokens, "user token must be absent after cleanup")
}

func TestCleanupKeepsValidTokens(t *testing.T) {
	repo := &mockUserRepo{tokens: []models.UserToken{
		{ID: "u1", FcmToken: "good-1"},
		{ID: "u2", FcmToken: "dead"},
		{ID: "u3", FcmToken: "good-2"},
	}}
	svc, _ := newTestService(repo, validatorFunc(func(_ context.Context, token string) bool {
		return token != "dead"
	}), testCleanupConfig())

	result, err := svc.CleanupInvalidTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Total: 3, Removed: 1}, result)
	assert.Len(t, repo.tokens, 2)
}

func TestCleanupPaginatesInBatches(t *testing.T) {
	repo := &mockUserRepo{tokens: []models.UserToken{
		{ID: "u1", FcmToken: "t1"},
		{ID: "u2", FcmToken: "t2"},
		{ID: "u3", FcmToken: "t3"},
		{ID: "u4", FcmToken: "t4"},
		{ID: "u5", FcmToken: "t5"},
	}}
	cfg := testCleanupConfig()
	cfg.BatchSize = 2
	svc, _ := newTestService(repo, validatorFunc(func(context.Context, string) bool { return true }), cfg)

	result, err := svc.CleanupInvalidTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Total: 5, Removed: 0}, result)
}

func TestCleanupSecondCallDuringRunFailsAlreadyRunning(t *testing.T) {
	repo := &mockUserRepo{tokens: []models.UserToken{{ID: "u1", FcmToken: "t1"}}}

	started := make(chan struct{})
	release := make(chan struct{})
	svc, _ := newTestService(repo, validatorFunc(func(context.Context, string) bool {
		close(started)
		<-release
		return true
	}), testCleanupConfig())

	done := make(chan error, 1)
	go func() {
		_, err := svc.CleanupInvalidTokens(context.Background())
		done <- err
	}()

	<-started
	_, err := svc.CleanupInvalidTokens(context.Background())
	assert.ErrorIs(t, err, ErrCleanupInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestCleanupCooldownBetweenRuns(t *testing.T) {
	repo := &mockUserRepo{}
	svc, _ := newTestService(repo, validatorFunc(func(context.Context, string) bool { return true }), testCleanupConfig())

	_, err := svc.CleanupInvalidTokens(context.Background())
	require.NoError(t, err)

	_, err = svc.CleanupInvalidTokens(context.Background())
	var cooldown *CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, 15, cooldown.MinutesRemaining)
}

func TestCleanupReleasesGuardOnContextCancel(t *testing.T) {
	repo := &mockUserRepo{tokens: []models.UserToken{{ID: "u1", FcmToken: "t1"}}}
	svc, guard := newTestService(repo, validatorFunc(func(context.Context, string) bool { return true }), testCleanupConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CleanupInvalidTokens(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Guard is free again and the cooldown clock never started.
	require.NoError(t, guard.TryAcquire())
	guard.Release(false)
}
