package webhdfs

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/openpai/paifs/pkg/cluster"
	"github.com/openpai/paifs/pkg/vfs"
)

// restPrefix is the WebHDFS REST namespace root on the name node.
const restPrefix = "/webhdfs/v1"

// Resolver maps a locator (cluster authority + normalized path) to fully
// qualified WebHDFS REST endpoints. It is a pure function of its inputs plus
// the credential registry, which it only reads.
type Resolver struct {
	registry cluster.Registry
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry cluster.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve looks up the locator's cluster and returns the endpoint set for its
// path. Fails with vfs.ErrUnknownCluster (wrapped) when the authority has no
// registered credential. The locator path must already be normalized; the
// resolver encodes it for the wire but does not normalize it.
func (r *Resolver) Resolve(loc vfs.Locator) (*Endpoints, cluster.Credential, error) {
	cred, err := r.registry.Credential(loc.Authority)
	if err != nil {
		return nil, cluster.Credential{}, err
	}

	base, err := url.Parse(cred.BaseURI)
	if err != nil {
		return nil, cluster.Credential{}, fmt.Errorf("cluster %q has malformed base URI %q: %w",
			loc.Authority, cred.BaseURI, err)
	}

	return &Endpoints{
		base:     base,
		path:     loc.Path,
		username: cred.Username,
	}, cred, nil
}

// Endpoints builds the per-operation REST URLs for one resolved path.
//
// Every URL carries the WebHDFS op query parameter plus user.name. The path
// is URL-encoded here, at the transport boundary, and nowhere else.
type Endpoints struct {
	base     *url.URL
	path     string
	username string
}

func (e *Endpoints) opURL(op string, params url.Values) string {
	u := *e.base
	u.Path = restPrefix + e.path

	q := url.Values{}
	q.Set("op", op)
	if e.username != "" {
		q.Set("user.name", e.username)
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// List returns the LISTSTATUS URL.
func (e *Endpoints) List() string {
	return e.opURL("LISTSTATUS", nil)
}

// Status returns the GETFILESTATUS URL.
func (e *Endpoints) Status() string {
	return e.opURL("GETFILESTATUS", nil)
}

// Open returns the OPEN URL. A positive offset requests a byte-offset read;
// offset support is reserved for internal resumed transfers.
func (e *Endpoints) Open(offset int64) string {
	if offset <= 0 {
		return e.opURL("OPEN", nil)
	}
	return e.opURL("OPEN", url.Values{"offset": {strconv.FormatInt(offset, 10)}})
}

// Create returns the CREATE URL for the negotiate phase of a two-phase write.
func (e *Endpoints) Create(overwrite bool) string {
	return e.opURL("CREATE", url.Values{"overwrite": {strconv.FormatBool(overwrite)}})
}

// Append returns the APPEND URL for the negotiate phase of a two-phase write.
func (e *Endpoints) Append() string {
	return e.opURL("APPEND", nil)
}

// Rename returns the RENAME URL targeting dest, a normalized absolute path on
// the same cluster.
func (e *Endpoints) Rename(dest string) string {
	return e.opURL("RENAME", url.Values{"destination": {dest}})
}

// Delete returns the DELETE URL.
func (e *Endpoints) Delete(recursive bool) string {
	return e.opURL("DELETE", url.Values{"recursive": {strconv.FormatBool(recursive)}})
}

// Mkdirs returns the MKDIRS URL.
func (e *Endpoints) Mkdirs() string {
	return e.opURL("MKDIRS", nil)
}
