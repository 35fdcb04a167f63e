package testutil

import (
	"context"
	"database/sql"
	"encoding/base64"
	"path/filepath"
	"testing"

	"google.golang.org/grpc/metadata"

	"deliveryService/internal/db"
)

// OpenTestDB opens a migrated SQLite database file in the test's temp dir.
func OpenTestDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), name+".db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// BasicAuth returns the value of an Authorization header for username/password.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// CtxWithBasicAuth returns an incoming gRPC context carrying basic-auth credentials.
func CtxWithBasicAuth(ctx context.Context, username, password string) context.Context {
	md := metadata.Pairs("authorization", BasicAuth(username, password))
	return metadata.NewIncomingContext(ctx, md)
}
