package testutil

import (
	"context"
	"database/sql"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"

	"secretsManagement/internal/db"
)

// OpenInMemoryDB opens a fresh in-memory SQLite database and applies migrations.
// Each call gets its own database; it is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	// Shared cache so every pooled connection sees the same database.
	d, err := db.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// OpenFileDB opens a migrated SQLite file in a per-test temp directory.
// Use it when the test writes from several goroutines.
func OpenFileDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "secrets.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// BasicAuth returns the value of an Authorization header for Basic credentials.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// CtxWithBasic returns a context carrying incoming gRPC metadata with Basic credentials.
func CtxWithBasic(ctx context.Context, username, password string) context.Context {
	md := metadata.Pairs("authorization", BasicAuth(username, password))
	return metadata.NewIncomingContext(ctx, md)
}
