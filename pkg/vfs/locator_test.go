package vfs

import "testing"

func TestNewLocator_Normalization(t *testing.T) {
	tests := []struct {
		name      string
		authority string
		path      string
		want      string
		wantErr   bool
	}{
		{
			name:      "already normalized",
			authority: "pai-cluster",
			path:      "/data/code",
			want:      "/data/code",
		},
		{
			name:      "empty path becomes root",
			authority: "pai-cluster",
			path:      "",
			want:      "/",
		},
		{
			name:      "relative path gains leading slash",
			authority: "pai-cluster",
			path:      "data/code",
			want:      "/data/code",
		},
		{
			name:      "duplicate separators collapse",
			authority: "pai-cluster",
			path:      "//data///code",
			want:      "/data/code",
		},
		{
			name:      "dot segments resolve",
			authority: "pai-cluster",
			path:      "/data/./tmp/../code",
			want:      "/data/code",
		},
		{
			name:      "parent escapes clamp at root",
			authority: "pai-cluster",
			path:      "/../../etc",
			want:      "/etc",
		},
		{
			name:      "trailing slash stripped",
			authority: "pai-cluster",
			path:      "/data/",
			want:      "/data",
		},
		{
			name:      "missing authority",
			authority: "",
			path:      "/data",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewLocator(tt.authority, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLocator() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if loc.Path != tt.want {
				t.Errorf("NewLocator() path = %q, want %q", loc.Path, tt.want)
			}
			if loc.Authority != tt.authority {
				t.Errorf("NewLocator() authority = %q, want %q", loc.Authority, tt.authority)
			}
		})
	}
}

func TestLocator_Relationships(t *testing.T) {
	loc := MustLocator("c1", "/a/b/f.txt")

	if got := loc.Parent().Path; got != "/a/b" {
		t.Errorf("Parent() = %q, want %q", got, "/a/b")
	}
	if got := loc.Base(); got != "f.txt" {
		t.Errorf("Base() = %q, want %q", got, "f.txt")
	}
	if got := loc.Parent().Child("f.txt"); got != loc {
		t.Errorf("Parent().Child() = %v, want %v", got, loc)
	}

	root := MustLocator("c1", "/")
	if !root.IsRoot() {
		t.Error("IsRoot() = false for /")
	}
	if got := root.Parent(); got != root {
		t.Errorf("Parent() of root = %v, want root", got)
	}
}

func TestEmitProgress_NeverBlocks(t *testing.T) {
	// Nil channel: must not panic.
	EmitProgress(nil, TransferEvent{Operation: "read"})

	// Full buffer: event is dropped, call returns.
	ch := make(chan TransferEvent, 1)
	EmitProgress(ch, TransferEvent{Operation: "read", BytesDone: 1})
	EmitProgress(ch, TransferEvent{Operation: "read", BytesDone: 2})

	ev := <-ch
	if ev.BytesDone != 1 {
		t.Errorf("expected first event retained, got BytesDone=%d", ev.BytesDone)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected second event %+v", ev)
	default:
	}
}
