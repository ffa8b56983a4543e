package grpcserver

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"secretsManagement/internal/access"
	"secretsManagement/internal/auth"
	"secretsManagement/internal/testutil"
	"secretsManagement/models"
	"secretsManagement/repository"
)

func newTestAccess(t *testing.T) *access.Service {
	t.Helper()
	store := repository.NewStore(testutil.OpenInMemoryDB(t))
	return access.NewService(store, access.WithBcryptCost(bcrypt.MinCost))
}

// credCtx returns a context as the auth interceptor would produce it.
func credCtx(username, password string) context.Context {
	return auth.WithCredentials(context.Background(), auth.Credentials{Username: username, Password: password})
}

func TestServer_DirectCalls(t *testing.T) {
	s := &Server{Access: newTestAccess(t)}
	ctx := context.Background()

	_, err := s.RegisterUser(ctx, &RegisterUserRequest{Username: "admin1", Password: "pw", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = s.RegisterUser(ctx, &RegisterUserRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	_, err = s.RegisterUser(ctx, &RegisterUserRequest{Username: "alice", Password: "pw"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	login, err := s.Login(ctx, &LoginRequest{Username: "admin1", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, login.Role)
	_, err = s.Login(ctx, &LoginRequest{Username: "admin1", Password: "bad"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	created, err := s.CreateSecret(credCtx("alice", "pw"), &CreateSecretRequest{SecretValue: "s1", SecretType: "password"})
	require.NoError(t, err)
	_, err = s.CreateSecret(credCtx("admin1", "pw"), &CreateSecretRequest{SecretValue: "s2", SecretType: "token"})
	require.NoError(t, err)

	mine, err := s.ListSecrets(credCtx("alice", "pw"), &ListSecretsRequest{})
	require.NoError(t, err)
	require.Len(t, mine.Secrets, 1)
	assert.Equal(t, created.Secret.ID, mine.Secrets[0].ID)

	all, err := s.ListSecrets(credCtx("admin1", "pw"), &ListSecretsRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Secrets, 2)

	_, err = s.GetSecret(credCtx("alice", "pw"), &GetSecretRequest{ID: all.Secrets[0].ID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err), "alice cannot read admin's newest secret")

	upd, err := s.UpdateSecret(credCtx("alice", "pw"), &UpdateSecretRequest{ID: created.Secret.ID, SecretValue: "s1b", SecretType: "password"})
	require.NoError(t, err)
	assert.Equal(t, "s1b", upd.Secret.SecretValue)

	found, err := s.SearchSecrets(credCtx("alice", "pw"), &SearchSecretsRequest{Query: "S1"})
	require.NoError(t, err)
	assert.Len(t, found.Secrets, 1)
	_, err = s.SearchSecrets(credCtx("alice", "pw"), &SearchSecretsRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	stats, err := s.GetStatistics(credCtx("admin1", "pw"), &GetStatisticsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Statistics.TotalActions)
	_, err = s.GetStatistics(credCtx("alice", "pw"), &GetStatisticsRequest{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	logs, err := s.ListAuditLogs(credCtx("alice", "pw"), &ListAuditLogsRequest{})
	require.NoError(t, err)
	assert.Len(t, logs.AuditLogs, 3)

	users, err := s.ListUsers(credCtx("alice", "pw"), &ListUsersRequest{})
	require.NoError(t, err)
	assert.Len(t, users.Users, 1)

	del, err := s.DeleteSecret(credCtx("alice", "pw"), &DeleteSecretRequest{ID: created.Secret.ID})
	require.NoError(t, err)
	assert.True(t, del.Deleted)
	del, err = s.DeleteSecret(credCtx("alice", "pw"), &DeleteSecretRequest{ID: created.Secret.ID})
	require.NoError(t, err)
	assert.False(t, del.Deleted)

	_, err = s.GetSecret(credCtx("alice", "pw"), &GetSecretRequest{ID: created.Secret.ID})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = s.GetSecret(credCtx("alice", "pw"), &GetSecretRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = s.ListSecrets(context.Background(), &ListSecretsRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_OverBufconn(t *testing.T) {
	srv, _ := NewServer(newTestAccess(t), nil)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ctx := context.Background()
	jsonCall := grpc.CallContentSubtype(codecName)

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.Status)

	var user UserResponse
	require.NoError(t, conn.Invoke(ctx, MethodRegisterUser, &RegisterUserRequest{Username: "alice", Password: "pw"}, &user, jsonCall))
	assert.Equal(t, "alice", user.User.Username)
	assert.Equal(t, models.RoleUser, user.User.Role)

	var secrets ListSecretsResponse
	err = conn.Invoke(ctx, MethodListSecrets, &ListSecretsRequest{}, &secrets, jsonCall)
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "no credentials")

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", testutil.BasicAuth("alice", "pw"))
	var created SecretResponse
	require.NoError(t, conn.Invoke(authed, MethodCreateSecret, &CreateSecretRequest{SecretValue: "v", SecretType: "token"}, &created, jsonCall))
	assert.NotZero(t, created.Secret.ID)
	assert.NotNil(t, created.Secret.ExpiresAt)

	require.NoError(t, conn.Invoke(authed, MethodListSecrets, &ListSecretsRequest{}, &secrets, jsonCall))
	require.Len(t, secrets.Secrets, 1)

	wrong := metadata.AppendToOutgoingContext(ctx, "authorization", testutil.BasicAuth("alice", "nope"))
	err = conn.Invoke(wrong, MethodListSecrets, &ListSecretsRequest{}, &secrets, jsonCall)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
