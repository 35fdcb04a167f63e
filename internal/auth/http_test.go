package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"deliveryService/internal/testutil"
)

func TestMiddleware(t *testing.T) {
	v, _ := seedUsers(t)
	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			t.Fatalf("principal missing")
		}
		_, _ = w.Write([]byte(p.Username + "/" + string(p.Role)))
	}))

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{name: "valid", header: testutil.BasicAuth("bob", "bob-pass"), code: http.StatusOK, body: "bob/rider"},
		{name: "missing", code: http.StatusUnauthorized, body: `{"error":""}`},
		{name: "wrong password", header: testutil.BasicAuth("bob", "alice-pass"), code: http.StatusUnauthorized, body: `{"error":""}`},
		{name: "unknown user", header: testutil.BasicAuth("zed", "x"), code: http.StatusUnauthorized, body: `{"error":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.code || rec.Body.String() != tt.body {
				t.Fatalf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tt.code, tt.body)
			}
			if tt.code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("missing WWW-Authenticate challenge")
			}
		})
	}
}
