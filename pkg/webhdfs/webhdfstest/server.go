// Package webhdfstest provides an in-memory WebHDFS server for tests. It
// implements the name-node REST surface the adapter uses, including the
// two-phase redirect-then-upload write protocol: negotiate requests against
// /webhdfs/v1 are answered with a redirect to /datanode/v1 on the same
// server, which accepts the payload.
package webhdfstest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"time"
)

const (
	namenodePrefix = "/webhdfs/v1"
	datanodePrefix = "/datanode/v1"
)

// node is one file or directory in the fake filesystem tree.
type node struct {
	dir      bool
	data     []byte
	children map[string]*node
	order    []string // insertion order, what LISTSTATUS returns
	modified time.Time
}

func newDir() *node {
	return &node{dir: true, children: map[string]*node{}, modified: time.Now()}
}

// Server is a fake WebHDFS endpoint backed by an in-memory tree.
type Server struct {
	mu   sync.Mutex
	root *node
	srv  *httptest.Server

	// Token, when non-empty, is the only accepted bearer token; requests
	// without it are rejected with AccessControlException.
	Token string

	// ListCalls counts LISTSTATUS requests, for cache-coherence tests.
	ListCalls int
}

// New starts a fake server. Callers must Close it.
func New() *Server {
	s := &Server{root: newDir()}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the server's base URL, suitable as a cluster BaseURI.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// ----------------------------------------------------------------------------
// Tree helpers (callers hold s.mu)
// ----------------------------------------------------------------------------

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (s *Server) lookup(p string) *node {
	n := s.root
	for _, seg := range splitPath(p) {
		if !n.dir {
			return nil
		}
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

func (s *Server) mkdirAll(p string) *node {
	n := s.root
	for _, seg := range splitPath(p) {
		child, ok := n.children[seg]
		if !ok {
			child = newDir()
			n.attach(seg, child)
		}
		n = child
	}
	return n
}

func (n *node) attach(name string, child *node) {
	if _, exists := n.children[name]; !exists {
		n.order = append(n.order, name)
	}
	n.children[name] = child
	n.modified = time.Now()
}

func (n *node) detach(name string) {
	delete(n.children, name)
	for i, existing := range n.order {
		if existing == name {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	n.modified = time.Now()
}

// SeedFile plants a file (creating parents) directly in the tree.
func (s *Server) SeedFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.mkdirAll(path.Dir(p))
	parent.attach(path.Base(p), &node{data: append([]byte(nil), data...), modified: time.Now()})
}

// FileContent returns the current bytes of a file, or nil if absent.
func (s *Server) FileContent(p string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.lookup(p)
	if n == nil || n.dir {
		return nil
	}
	return append([]byte(nil), n.data...)
}

// ----------------------------------------------------------------------------
// HTTP surface
// ----------------------------------------------------------------------------

func writeException(w http.ResponseWriter, status int, exception, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]map[string]string{
		"RemoteException": {
			"exception":     exception,
			"javaClassName": "org.apache.hadoop." + exception,
			"message":       message,
		},
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBoolean(w http.ResponseWriter, v bool) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"boolean":%t}`, v)
}

func statusJSON(name string, n *node) map[string]any {
	typ := "FILE"
	var length int
	if n.dir {
		typ = "DIRECTORY"
	} else {
		length = len(n.data)
	}
	return map[string]any{
		"pathSuffix":       name,
		"type":             typ,
		"length":           length,
		"modificationTime": n.modified.UnixMilli(),
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeException(w, http.StatusUnauthorized, "AccessControlException", "invalid token")
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, namenodePrefix):
		s.handleNamenode(w, r, strings.TrimPrefix(r.URL.Path, namenodePrefix))
	case strings.HasPrefix(r.URL.Path, datanodePrefix):
		s.handleDatanode(w, r, strings.TrimPrefix(r.URL.Path, datanodePrefix))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) redirectToDatanode(w http.ResponseWriter, r *http.Request, fsPath string) {
	location := "http://" + r.Host + datanodePrefix + fsPath + "?" + r.URL.RawQuery
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusTemporaryRedirect)
}

func (s *Server) handleNamenode(w http.ResponseWriter, r *http.Request, fsPath string) {
	if fsPath == "" {
		fsPath = "/"
	}
	op := strings.ToUpper(r.URL.Query().Get("op"))

	s.mu.Lock()
	defer s.mu.Unlock()

	switch op {
	case "LISTSTATUS":
		s.ListCalls++
		n := s.lookup(fsPath)
		if n == nil {
			writeException(w, http.StatusNotFound, "FileNotFoundException", "File does not exist: "+fsPath)
			return
		}
		statuses := []map[string]any{}
		if n.dir {
			for _, name := range n.order {
				statuses = append(statuses, statusJSON(name, n.children[name]))
			}
		} else {
			statuses = append(statuses, statusJSON("", n))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"FileStatuses": map[string]any{"FileStatus": statuses},
		})

	case "GETFILESTATUS":
		n := s.lookup(fsPath)
		if n == nil {
			writeException(w, http.StatusNotFound, "FileNotFoundException", "File does not exist: "+fsPath)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"FileStatus": statusJSON("", n)})

	case "OPEN":
		n := s.lookup(fsPath)
		if n == nil {
			writeException(w, http.StatusNotFound, "FileNotFoundException", "File does not exist: "+fsPath)
			return
		}
		if n.dir {
			writeException(w, http.StatusBadRequest, "FileNotFoundException", "Path is not a file: "+fsPath)
			return
		}
		s.redirectToDatanode(w, r, fsPath)

	case "CREATE":
		overwrite := r.URL.Query().Get("overwrite") == "true"
		if existing := s.lookup(fsPath); existing != nil && !overwrite {
			writeException(w, http.StatusForbidden, "FileAlreadyExistsException",
				fmt.Sprintf("%s for client already exists", fsPath))
			return
		}
		s.redirectToDatanode(w, r, fsPath)

	case "APPEND":
		n := s.lookup(fsPath)
		if n == nil || n.dir {
			writeException(w, http.StatusNotFound, "FileNotFoundException", "File does not exist: "+fsPath)
			return
		}
		s.redirectToDatanode(w, r, fsPath)

	case "MKDIRS":
		if existing := s.lookup(fsPath); existing != nil && !existing.dir {
			writeException(w, http.StatusForbidden, "FileAlreadyExistsException",
				"Path is a file: "+fsPath)
			return
		}
		s.mkdirAll(fsPath)
		writeBoolean(w, true)

	case "DELETE":
		n := s.lookup(fsPath)
		if n == nil {
			writeBoolean(w, false)
			return
		}
		recursive := r.URL.Query().Get("recursive") == "true"
		if n.dir && len(n.children) > 0 && !recursive {
			writeException(w, http.StatusForbidden, "PathIsNotEmptyDirectoryException",
				fmt.Sprintf("`%s is non empty': Directory is not empty", fsPath))
			return
		}
		parent := s.lookup(path.Dir(fsPath))
		parent.detach(path.Base(fsPath))
		writeBoolean(w, true)

	case "RENAME":
		dest := r.URL.Query().Get("destination")
		src := s.lookup(fsPath)
		if src == nil {
			writeException(w, http.StatusNotFound, "FileNotFoundException", "File does not exist: "+fsPath)
			return
		}
		if s.lookup(dest) != nil {
			writeBoolean(w, false)
			return
		}
		srcParent := s.lookup(path.Dir(fsPath))
		srcParent.detach(path.Base(fsPath))
		destParent := s.mkdirAll(path.Dir(dest))
		destParent.attach(path.Base(dest), src)
		writeBoolean(w, true)

	default:
		writeException(w, http.StatusBadRequest, "IllegalArgumentException", "Invalid op: "+op)
	}
}

func (s *Server) handleDatanode(w http.ResponseWriter, r *http.Request, fsPath string) {
	op := strings.ToUpper(r.URL.Query().Get("op"))

	s.mu.Lock()
	defer s.mu.Unlock()

	switch op {
	case "OPEN":
		n := s.lookup(fsPath)
		if n == nil || n.dir {
			writeException(w, http.StatusNotFound, "FileNotFoundException", "File does not exist: "+fsPath)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(n.data)

	case "CREATE":
		body := readAll(r)
		overwrite := r.URL.Query().Get("overwrite") == "true"
		if existing := s.lookup(fsPath); existing != nil && !overwrite {
			writeException(w, http.StatusForbidden, "FileAlreadyExistsException",
				fmt.Sprintf("%s for client already exists", fsPath))
			return
		}
		parent := s.mkdirAll(path.Dir(fsPath))
		parent.attach(path.Base(fsPath), &node{data: body, modified: time.Now()})
		w.WriteHeader(http.StatusCreated)

	case "APPEND":
		body := readAll(r)
		n := s.lookup(fsPath)
		if n == nil || n.dir {
			writeException(w, http.StatusNotFound, "FileNotFoundException", "File does not exist: "+fsPath)
			return
		}
		n.data = append(n.data, body...)
		n.modified = time.Now()
		w.WriteHeader(http.StatusOK)

	default:
		writeException(w, http.StatusBadRequest, "IllegalArgumentException", "Invalid op: "+op)
	}
}

func readAll(r *http.Request) []byte {
	defer r.Body.Close()
	body, _ := io.ReadAll(r.Body)
	return body
}
