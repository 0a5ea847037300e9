package webhdfs

import (
	"errors"
	"strings"
	"testing"

	"github.com/openpai/paifs/pkg/cluster"
	"github.com/openpai/paifs/pkg/vfs"
)

func testResolver() *Resolver {
	return NewResolver(cluster.NewStaticRegistry(map[string]cluster.Credential{
		"pai": {BaseURI: "http://namenode:50070", Username: "alice"},
	}))
}

func TestResolver_UnknownCluster(t *testing.T) {
	r := testResolver()

	_, _, err := r.Resolve(vfs.MustLocator("other", "/data"))
	if !errors.Is(err, vfs.ErrUnknownCluster) {
		t.Fatalf("Resolve() error = %v, want ErrUnknownCluster", err)
	}
}

func TestEndpoints_OperationURLs(t *testing.T) {
	r := testResolver()
	eps, cred, err := r.Resolve(vfs.MustLocator("pai", "/user/alice/code"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.Username != "alice" {
		t.Errorf("credential = %+v", cred)
	}

	base := "http://namenode:50070/webhdfs/v1/user/alice/code?"
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"list", eps.List(), base + "op=LISTSTATUS&user.name=alice"},
		{"status", eps.Status(), base + "op=GETFILESTATUS&user.name=alice"},
		{"open", eps.Open(0), base + "op=OPEN&user.name=alice"},
		{"open with offset", eps.Open(4096), base + "offset=4096&op=OPEN&user.name=alice"},
		{"create", eps.Create(true), base + "op=CREATE&overwrite=true&user.name=alice"},
		{"create exclusive", eps.Create(false), base + "op=CREATE&overwrite=false&user.name=alice"},
		{"append", eps.Append(), base + "op=APPEND&user.name=alice"},
		{"rename", eps.Rename("/user/alice/code2"), base + "destination=%2Fuser%2Falice%2Fcode2&op=RENAME&user.name=alice"},
		{"delete", eps.Delete(true), base + "op=DELETE&recursive=true&user.name=alice"},
		{"mkdirs", eps.Mkdirs(), base + "op=MKDIRS&user.name=alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got  %s\nwant %s", tt.got, tt.want)
			}
		})
	}
}

func TestEndpoints_PathEncoding(t *testing.T) {
	r := testResolver()
	eps, _, err := r.Resolve(vfs.MustLocator("pai", "/data/my project/file name.txt"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	got := eps.List()
	if !strings.Contains(got, "/webhdfs/v1/data/my%20project/file%20name.txt?") {
		t.Errorf("path not encoded at transport boundary: %s", got)
	}
}

func TestResolver_NoUsernameOmitsParam(t *testing.T) {
	r := NewResolver(cluster.NewStaticRegistry(map[string]cluster.Credential{
		"pai": {BaseURI: "http://namenode:50070"},
	}))
	eps, _, err := r.Resolve(vfs.MustLocator("pai", "/data"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if strings.Contains(eps.List(), "user.name") {
		t.Errorf("user.name present without username: %s", eps.List())
	}
}

func TestResolver_MalformedBaseURI(t *testing.T) {
	r := NewResolver(cluster.NewStaticRegistry(map[string]cluster.Credential{
		"bad": {BaseURI: "http://bad host:\x7f"},
	}))
	if _, _, err := r.Resolve(vfs.MustLocator("bad", "/data")); err == nil {
		t.Fatal("Resolve() succeeded with malformed base URI")
	}
}
