package webhdfs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openpai/paifs/pkg/vfs"
)

func noToken(_ context.Context, _ string) (string, error) { return "", nil }

func TestMapHTTPError_RemoteExceptions(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "file not found",
			status: 404,
			body:   `{"RemoteException":{"exception":"FileNotFoundException","message":"File does not exist: /a"}}`,
			want:   vfs.ErrNotFound,
		},
		{
			name:   "already exists",
			status: 403,
			body:   `{"RemoteException":{"exception":"FileAlreadyExistsException","message":"/a for client already exists"}}`,
			want:   vfs.ErrDestinationExists,
		},
		{
			name:   "not empty",
			status: 403,
			body:   `{"RemoteException":{"exception":"PathIsNotEmptyDirectoryException","message":"Directory is not empty"}}`,
			want:   vfs.ErrNotEmpty,
		},
		{
			name:   "access control",
			status: 403,
			body:   `{"RemoteException":{"exception":"AccessControlException","message":"Permission denied"}}`,
			want:   vfs.ErrAccessDenied,
		},
		{
			name:   "unauthorized without body",
			status: 401,
			body:   ``,
			want:   vfs.ErrAccessDenied,
		},
		{
			name:   "forbidden without body",
			status: 403,
			body:   ``,
			want:   vfs.ErrAccessDenied,
		},
		{
			name:   "plain 404",
			status: 404,
			body:   `not json`,
			want:   vfs.ErrNotFound,
		},
		{
			name:   "unknown remote exception",
			status: 500,
			body:   `{"RemoteException":{"exception":"RuntimeException","message":"boom"}}`,
			want:   vfs.ErrProtocol,
		},
		{
			name:   "unexpected status",
			status: 502,
			body:   `<html>bad gateway</html>`,
			want:   vfs.ErrProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapHTTPError(tt.status, []byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("mapHTTPError(%d) = %v, want %v", tt.status, err, tt.want)
			}
		})
	}
}

func TestNegotiate_MissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Redirect status without a Location header.
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{Tokens: noToken})
	if err != nil {
		t.Fatal(err)
	}

	err = c.WriteTwoPhase(context.Background(), http.MethodPut, srv.URL, "c1", []byte("x"))
	if !errors.Is(err, vfs.ErrProtocol) {
		t.Fatalf("WriteTwoPhase() error = %v, want ErrProtocol", err)
	}
}

func TestNegotiate_UnexpectedSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{Tokens: noToken})
	if err != nil {
		t.Fatal(err)
	}

	err = c.WriteTwoPhase(context.Background(), http.MethodPut, srv.URL, "c1", nil)
	if !errors.Is(err, vfs.ErrProtocol) {
		t.Fatalf("WriteTwoPhase() error = %v, want ErrProtocol", err)
	}
}

func TestClient_NetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	c, err := NewClient(ClientConfig{Tokens: noToken})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Open(context.Background(), url, "c1"); !errors.Is(err, vfs.ErrTransport) {
		t.Errorf("Open() error = %v, want ErrTransport", err)
	}
	if _, err := c.ListStatus(context.Background(), url, "c1"); !errors.Is(err, vfs.ErrTransport) {
		t.Errorf("ListStatus() error = %v, want ErrTransport", err)
	}
	if err := c.WriteTwoPhase(context.Background(), http.MethodPut, url, "c1", nil); !errors.Is(err, vfs.ErrTransport) {
		t.Errorf("WriteTwoPhase() error = %v, want ErrTransport", err)
	}
}

func TestBooleanOp_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{Tokens: noToken})
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.BooleanOp(context.Background(), http.MethodPut, srv.URL, "c1")
	if !errors.Is(err, vfs.ErrProtocol) {
		t.Fatalf("BooleanOp() error = %v, want ErrProtocol", err)
	}
}

func TestListStatus_MissingEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{Tokens: noToken})
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.ListStatus(context.Background(), srv.URL, "c1")
	if !errors.Is(err, vfs.ErrProtocol) {
		t.Fatalf("ListStatus() error = %v, want ErrProtocol", err)
	}
}

func TestClient_BearerTokenAttached(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"boolean":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{
		Tokens: func(_ context.Context, authority string) (string, error) {
			if authority != "c1" {
				t.Errorf("token provider invoked for %q", authority)
			}
			return "tok-123", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.BooleanOp(context.Background(), http.MethodPut, srv.URL, "c1"); err != nil {
		t.Fatalf("BooleanOp() error = %v", err)
	}
	if got != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-123")
	}
}

func TestNewClient_RequiresTokenProvider(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("NewClient() accepted nil token provider")
	}
}

func TestOpen_TokenReattachedAcrossDataNodeRedirect(t *testing.T) {
	// One listener playing both roles, but the redirect names the data
	// node as "localhost" while the name node is addressed as 127.0.0.1:
	// a cross-host hop as far as http.Client's header rules are
	// concerned, which is what a real name node -> data node redirect is.
	var datanodeAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/open":
			w.Header().Set("Location", "http://"+strings.Replace(r.Host, "127.0.0.1", "localhost", 1)+"/data")
			w.WriteHeader(http.StatusTemporaryRedirect)
		case "/data":
			datanodeAuth = r.Header.Get("Authorization")
			w.Write([]byte("file payload"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{
		Tokens: func(_ context.Context, _ string) (string, error) { return "tok-open", nil },
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := c.Open(context.Background(), srv.URL+"/open", "c1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(data) != "file payload" {
		t.Errorf("Open() = %q, want %q", data, "file payload")
	}
	if datanodeAuth != "Bearer tok-open" {
		t.Errorf("data node saw Authorization %q, want %q", datanodeAuth, "Bearer tok-open")
	}
}

func TestOpen_DirectBodyWithoutRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("inline"))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{Tokens: noToken})
	if err != nil {
		t.Fatal(err)
	}

	data, err := c.Open(context.Background(), srv.URL, "c1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(data) != "inline" {
		t.Errorf("Open() = %q, want %q", data, "inline")
	}
}

func TestOpen_RedirectMissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{Tokens: noToken})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Open(context.Background(), srv.URL, "c1"); !errors.Is(err, vfs.ErrProtocol) {
		t.Fatalf("Open() error = %v, want ErrProtocol", err)
	}
}
