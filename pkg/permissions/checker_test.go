package permissions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	levels map[int64]map[ResourceType]AccessLevel
	calls  int
	err    error
}

func (s *stubStore) GetTeamAccessLevel(_ context.Context, teamID int64, resource ResourceType) (AccessLevel, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if byResource, ok := s.levels[teamID]; ok {
		if level, ok := byResource[resource]; ok {
			return level, nil
		}
	}
	return AccessNone, nil
}

func (s *stubStore) ListTeamPermissions(context.Context, int64) ([]*Permission, error) {
	return nil, nil
}

func (s *stubStore) SetTeamPermission(context.Context, int64, *SetPermissionRequest) error {
	return nil
}

func (s *stubStore) DeleteTeamPermission(context.Context, int64, ResourceType) error { return nil }

func TestCheck(t *testing.T) {
	store := &stubStore{levels: map[int64]map[ResourceType]AccessLevel{
		7: {ResourceReports: AccessRead},
	}}
	checker := NewChecker(store, DefaultCacheSize, DefaultCacheTTL)

	err := checker.Check(context.Background(), 7, ResourceReports, AccessRead)
	assert.NoError(t, err)

	err = checker.Check(context.Background(), 7, ResourceReports, AccessReadWrite)
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	err = checker.Check(context.Background(), 7, ResourceBilling, AccessRead)
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))
}

func TestCheck_CachesLookups(t *testing.T) {
	store := &stubStore{levels: map[int64]map[ResourceType]AccessLevel{
		7: {ResourceReports: AccessReadWrite},
	}}
	checker := NewChecker(store, DefaultCacheSize, DefaultCacheTTL)

	for i := 0; i < 5; i++ {
		require.NoError(t, checker.Check(context.Background(), 7, ResourceReports, AccessRead))
	}
	assert.Equal(t, 1, store.calls)
}

func TestCheck_InvalidateTeam(t *testing.T) {
	store := &stubStore{levels: map[int64]map[ResourceType]AccessLevel{
		7: {ResourceReports: AccessReadWrite},
	}}
	checker := NewChecker(store, DefaultCacheSize, DefaultCacheTTL)

	require.NoError(t, checker.Check(context.Background(), 7, ResourceReports, AccessRead))
	checker.InvalidateTeam(7)
	require.NoError(t, checker.Check(context.Background(), 7, ResourceReports, AccessRead))
	assert.Equal(t, 2, store.calls)
}

func TestCheck_CacheDisabled(t *testing.T) {
	store := &stubStore{levels: map[int64]map[ResourceType]AccessLevel{
		7: {ResourceReports: AccessRead},
	}}
	checker := NewChecker(store, 0, 0)

	require.NoError(t, checker.Check(context.Background(), 7, ResourceReports, AccessRead))
	require.NoError(t, checker.Check(context.Background(), 7, ResourceReports, AccessRead))
	assert.Equal(t, 2, store.calls)
}

func TestCheck_StoreError(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	checker := NewChecker(store, DefaultCacheSize, time.Second)

	err := checker.Check(context.Background(), 7, ResourceReports, AccessRead)
	require.Error(t, err)
	assert.False(t, IsPermissionDenied(err))
}
