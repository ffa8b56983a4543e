package repository

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretsManagement/internal/metrics"
	"secretsManagement/models"
)

func TestAuditLog_WrittenForMutations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustAddUser(t, s, "alice", models.RoleUser)
	id := mustAddSecret(t, s, alice, "v", "t")
	_, err := s.UpdateSecret(WithActor(ctx, alice), id, models.SecretPatch{SecretValue: "v2"})
	require.NoError(t, err)
	_, err = s.DeleteSecret(WithActor(ctx, alice), id)
	require.NoError(t, err)

	logs, err := s.GetAuditLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 4)

	want := []struct {
		action, objectType string
		objectID           int64
	}{
		{models.ActionCreatedUser, models.ObjectTypeUser, alice},
		{models.ActionCreatedSecret, models.ObjectTypeSecret, id},
		{models.ActionUpdatedSecret, models.ObjectTypeSecret, id},
		{models.ActionDeletedSecret, models.ObjectTypeSecret, id},
	}
	for i, w := range want {
		assert.Equal(t, alice, logs[i].UserID)
		assert.Equal(t, w.action, logs[i].Action)
		assert.Equal(t, w.objectType, logs[i].ObjectType)
		assert.Equal(t, w.objectID, logs[i].ObjectID)
		if i > 0 {
			assert.False(t, logs[i].CreatedAt.Before(logs[i-1].CreatedAt))
		}
	}
}

func TestAuditLog_AddAndFilterByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustAddUser(t, s, "alice", models.RoleUser)

	require.NoError(t, s.AddAuditLog(ctx, models.SystemActor, "rotated keys", models.ObjectTypeSecret, 0))
	require.NoError(t, s.AddAuditLog(ctx, alice, "viewed secret", models.ObjectTypeSecret, 3))

	all, err := s.GetAuditLogs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.SystemActor, all[1].UserID)

	mine, err := s.GetAuditLogsByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "viewed secret", mine[1].Action)
}

func TestStatistics_Example(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustAddUser(t, s, "alice", models.RoleUser)
	admin := mustAddUser(t, s, "admin1", models.RoleAdmin)
	mustAddSecret(t, s, alice, "s1", "password")
	mustAddSecret(t, s, admin, "s2", "token")

	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalActions)
	assert.Equal(t, int64(2), stats.UniqueUsers)
	assert.Equal(t, "alice", stats.FirstActiveUser)
	assert.Equal(t, "admin1", stats.LastActiveUser)
}

func TestStatistics_EmptyAndSystemOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Statistics{}, *stats)

	require.NoError(t, s.AddAuditLog(ctx, models.SystemActor, "bootstrap", models.ObjectTypeUser, 0))
	stats, err = s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalActions)
	assert.Zero(t, stats.UniqueUsers)
	assert.Empty(t, stats.FirstActiveUser)
	assert.Empty(t, stats.LastActiveUser)
}

func TestAuditFailureDoesNotFailWrite(t *testing.T) {
	d := newTestStore(t).db
	m := metrics.New()
	s := NewStore(d.DB, WithMetrics(m), WithClock(fixedClock()))
	ctx := context.Background()
	alice := mustAddUser(t, s, "alice", models.RoleUser)

	_, err := d.ExecContext(ctx, `DROP TABLE audit_logs`)
	require.NoError(t, err)

	id, err := s.AddSecret(ctx, &models.Secret{OwnerID: alice, SecretValue: "still stored"})
	require.NoError(t, err)
	got, err := s.GetSecretByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "still stored", got.SecretValue)

	deleted, err := s.DeleteSecret(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, float64(2), promtest.ToFloat64(m.AuditWriteFailuresTotal))
}
