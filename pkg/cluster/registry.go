// Package cluster holds the registry of OpenPAI clusters the client can talk
// to. Credentials are supplied by an external configuration store; nothing in
// this package acquires, persists, or refreshes tokens.
package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/openpai/paifs/pkg/vfs"
)

// Credential identifies how to reach one cluster's storage endpoint.
type Credential struct {
	// BaseURI is the WebHDFS endpoint root, e.g. "http://10.0.0.1:50070".
	BaseURI string

	// Username is sent as the user.name query parameter, mirroring the
	// WebHDFS convention.
	Username string

	// Token is the bearer token passed through on every request. May be
	// empty for clusters that authenticate by user.name alone.
	Token string
}

// TokenProvider returns the bearer token for a cluster, invoked lazily before
// each request. Token acquisition and refresh are an external collaborator's
// responsibility; the adapter only passes the result through.
type TokenProvider func(ctx context.Context, authority string) (string, error)

// Registry resolves a cluster authority to its credential.
//
// Implementations are read-only from the adapter's perspective: the adapter
// never mutates the registry, it only looks authorities up per operation.
type Registry interface {
	// Credential returns the credential for the given authority, or an
	// error wrapping vfs.ErrUnknownCluster if the authority has no
	// registered credential.
	Credential(authority string) (Credential, error)
}

// StaticRegistry is a Registry backed by a fixed authority→credential map,
// built from configuration at startup. It replaces the global singleton
// registries of earlier designs with an explicitly injected dependency, so
// tests can substitute doubles.
type StaticRegistry struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewStaticRegistry builds a registry from the given map. The map is copied;
// later mutations of the argument do not affect the registry.
func NewStaticRegistry(creds map[string]Credential) *StaticRegistry {
	copied := make(map[string]Credential, len(creds))
	for k, v := range creds {
		copied[k] = v
	}
	return &StaticRegistry{creds: copied}
}

// Credential implements Registry.
func (r *StaticRegistry) Credential(authority string) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.creds[authority]
	if !ok {
		return Credential{}, fmt.Errorf("cluster %q: %w", authority, vfs.ErrUnknownCluster)
	}
	return cred, nil
}

// Register adds or replaces a credential. Intended for interactive sessions
// where clusters are added after startup.
func (r *StaticRegistry) Register(authority string, cred Credential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[authority] = cred
}

// StaticToken returns a TokenProvider that always yields the registry
// credential's token for the authority.
func (r *StaticRegistry) StaticToken() TokenProvider {
	return func(_ context.Context, authority string) (string, error) {
		cred, err := r.Credential(authority)
		if err != nil {
			return "", err
		}
		return cred.Token, nil
	}
}
