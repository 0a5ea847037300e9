package webhdfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openpai/paifs/internal/logger"
	"github.com/openpai/paifs/internal/ratelimiter"
	"github.com/openpai/paifs/pkg/cluster"
	"github.com/openpai/paifs/pkg/vfs"
)

// ============================================================================
// HTTP Client
// ============================================================================

// Client performs the raw WebHDFS HTTP exchanges: metadata calls with JSON
// bodies, single-phase redirected reads, and two-phase negotiate/transfer
// writes. It translates HTTP status codes and RemoteException bodies into the
// vfs error taxonomy; no raw transport error escapes unwrapped.
//
// The client never retries. Write operations are not safely idempotent at
// this boundary: a failed transfer after a successful negotiate may leave an
// empty or partial remote file, so retry policy belongs to the caller.
type Client struct {
	tokens  cluster.TokenProvider
	limiter *ratelimiter.RateLimiter

	// follow is used for reads, where the OPEN redirect to a data node is
	// followed transparently.
	follow *http.Client

	// noFollow is used for the negotiate phase of writes, where the
	// redirect target must be captured, not followed.
	noFollow *http.Client
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Tokens supplies the bearer token per request. Required; use a
	// provider returning "" for clusters without token auth.
	Tokens cluster.TokenProvider

	// Timeout bounds each HTTP round trip. Zero means no timeout beyond
	// the caller's context.
	Timeout time.Duration

	// Transport overrides the HTTP transport. Nil uses
	// http.DefaultTransport.
	Transport http.RoundTripper

	// RequestsPerSecond throttles requests toward the name node. Zero
	// disables throttling.
	RequestsPerSecond uint

	// Burst is the throttle's burst capacity. Only meaningful when
	// RequestsPerSecond is set.
	Burst uint
}

// NewClient creates a WebHDFS HTTP client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		tokens:  cfg.Tokens,
		limiter: ratelimiter.New(cfg.RequestsPerSecond, cfg.Burst),
		follow: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		noFollow: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// newRequest builds a request with the per-call bearer token attached. The
// token provider is invoked lazily on every request; this client never caches
// or refreshes tokens itself.
func (c *Client) newRequest(ctx context.Context, method, rawURL, authority string, body io.Reader) (*http.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", vfs.ErrProtocol, err)
	}

	token, err := c.tokens(ctx, authority)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// ----------------------------------------------------------------------------
// Metadata operations (single request, JSON response)
// ----------------------------------------------------------------------------

// fileStatus is the WebHDFS FileStatus JSON shape.
type fileStatus struct {
	PathSuffix       string `json:"pathSuffix"`
	Type             string `json:"type"` // "FILE" or "DIRECTORY"
	Length           uint64 `json:"length"`
	ModificationTime int64  `json:"modificationTime"` // epoch millis
}

func (fs fileStatus) toEntry(fallbackName string) vfs.DirectoryEntry {
	name := fs.PathSuffix
	if name == "" {
		name = fallbackName
	}
	kind := vfs.KindFile
	if fs.Type == "DIRECTORY" {
		kind = vfs.KindDirectory
	}
	return vfs.DirectoryEntry{
		Name:         name,
		Kind:         kind,
		Size:         fs.Length,
		ModifiedTime: time.UnixMilli(fs.ModificationTime),
	}
}

// ListStatus fetches a directory listing. An existing empty directory yields
// an empty slice.
func (c *Client) ListStatus(ctx context.Context, rawURL, authority string) ([]vfs.DirectoryEntry, error) {
	var payload struct {
		FileStatuses *struct {
			FileStatus []fileStatus `json:"FileStatus"`
		} `json:"FileStatuses"`
	}
	if err := c.getJSON(ctx, rawURL, authority, &payload); err != nil {
		return nil, err
	}
	if payload.FileStatuses == nil {
		return nil, fmt.Errorf("%w: LISTSTATUS response missing FileStatuses", vfs.ErrProtocol)
	}

	entries := make([]vfs.DirectoryEntry, 0, len(payload.FileStatuses.FileStatus))
	for _, fs := range payload.FileStatuses.FileStatus {
		entries = append(entries, fs.toEntry(""))
	}
	return entries, nil
}

// GetFileStatus fetches the status of a single path. fallbackName fills the
// entry name because GETFILESTATUS returns an empty pathSuffix.
func (c *Client) GetFileStatus(ctx context.Context, rawURL, authority, fallbackName string) (*vfs.DirectoryEntry, error) {
	var payload struct {
		FileStatus *fileStatus `json:"FileStatus"`
	}
	if err := c.getJSON(ctx, rawURL, authority, &payload); err != nil {
		return nil, err
	}
	if payload.FileStatus == nil {
		return nil, fmt.Errorf("%w: GETFILESTATUS response missing FileStatus", vfs.ErrProtocol)
	}

	entry := payload.FileStatus.toEntry(fallbackName)
	return &entry, nil
}

// BooleanOp issues a metadata mutation (MKDIRS, DELETE, RENAME) and returns
// the remote's {"boolean": ...} verdict.
func (c *Client) BooleanOp(ctx context.Context, method, rawURL, authority string) (bool, error) {
	req, err := c.newRequest(ctx, method, rawURL, authority, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.follow.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", vfs.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: reading response: %v", vfs.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, mapHTTPError(resp.StatusCode, body)
	}

	var payload struct {
		Boolean *bool `json:"boolean"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Boolean == nil {
		return false, fmt.Errorf("%w: expected boolean response, got %q", vfs.ErrProtocol, truncate(body))
	}
	return *payload.Boolean, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL, authority string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, authority, nil)
	if err != nil {
		return err
	}

	resp, err := c.follow.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", vfs.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", vfs.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapHTTPError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: non-JSON body where JSON expected: %v", vfs.ErrProtocol, err)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Read (redirect captured, then fetched from the data node)
// ----------------------------------------------------------------------------

// Open reads the whole file at the OPEN URL. The name node answers with a
// redirect to a data node; the redirect is captured rather than followed, and
// the data-node request is built through newRequest so the bearer token is
// re-attached. The data node lives on a different host, and http.Client
// strips Authorization across hosts, so transparent following would send the
// second request unauthenticated.
func (c *Client) Open(ctx context.Context, rawURL, authority string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, authority, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.noFollow.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vfs.ErrTransport, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", vfs.ErrTransport, err)
	}

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode <= 399:
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, fmt.Errorf("%w: OPEN redirect missing Location header", vfs.ErrProtocol)
		}
		logger.Debug("webhdfs: open %s -> %s", rawURL, location)
		return c.fetch(ctx, location, authority)
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		// Some gateways serve small files from the name node directly.
		return body, nil
	default:
		return nil, mapHTTPError(resp.StatusCode, body)
	}
}

// fetch reads a file body from the data node named by the OPEN redirect.
func (c *Client) fetch(ctx context.Context, rawURL, authority string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, authority, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.follow.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vfs.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", vfs.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mapHTTPError(resp.StatusCode, body)
	}
	return body, nil
}

// ----------------------------------------------------------------------------
// Two-phase writes (negotiate, then transfer)
// ----------------------------------------------------------------------------

// WriteTwoPhase executes the WebHDFS redirect-then-upload protocol:
//
//  1. Negotiate: issue the operation request without a body; the response
//     must be a redirect whose Location header names the data node that will
//     receive the bytes. No payload is sent in this phase.
//  2. Transfer: send the payload to the redirect target.
//
// Both phases must complete for the write to be considered successful.
// Failure of either phase leaves the operation failed; it is never retried
// here, because a partial HDFS write is not safely resumable without
// re-negotiating.
func (c *Client) WriteTwoPhase(ctx context.Context, method, rawURL, authority string, data []byte) error {
	location, err := c.negotiate(ctx, method, rawURL, authority)
	if err != nil {
		return err
	}
	return c.transfer(ctx, method, location, authority, data)
}

func (c *Client) negotiate(ctx context.Context, method, rawURL, authority string) (string, error) {
	req, err := c.newRequest(ctx, method, rawURL, authority, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.noFollow.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: negotiate: %v", vfs.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: negotiate: reading response: %v", vfs.ErrTransport, err)
	}

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode <= 399:
		location := resp.Header.Get("Location")
		if location == "" {
			return "", fmt.Errorf("%w: negotiate redirect missing Location header", vfs.ErrProtocol)
		}
		logger.Debug("webhdfs: negotiate %s %s -> %s", method, rawURL, location)
		return location, nil
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		// Some gateways answer 200 with a Location field in the body; the
		// stock name node never does, and callers cannot transfer without
		// a target, so treat it as a protocol violation.
		return "", fmt.Errorf("%w: negotiate expected redirect, got %d", vfs.ErrProtocol, resp.StatusCode)
	default:
		return "", mapHTTPError(resp.StatusCode, body)
	}
}

func (c *Client) transfer(ctx context.Context, method, location, authority string, data []byte) error {
	req, err := c.newRequest(ctx, method, location, authority, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(data))

	resp, err := c.follow.Do(req)
	if err != nil {
		return fmt.Errorf("%w: transfer: %v", vfs.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: transfer: reading response: %v", vfs.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapHTTPError(resp.StatusCode, body)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Error mapping
// ----------------------------------------------------------------------------

// remoteException is the WebHDFS error body shape.
type remoteException struct {
	RemoteException struct {
		Exception     string `json:"exception"`
		JavaClassName string `json:"javaClassName"`
		Message       string `json:"message"`
	} `json:"RemoteException"`
}

// mapHTTPError normalizes an HTTP error status and body into the vfs error
// taxonomy. The RemoteException name takes precedence over the status code;
// 401/403 map to access denied even without a parseable body.
func mapHTTPError(status int, body []byte) error {
	var re remoteException
	if err := json.Unmarshal(body, &re); err == nil && re.RemoteException.Exception != "" {
		exc := re.RemoteException.Exception
		msg := re.RemoteException.Message

		switch exc {
		case "FileNotFoundException":
			return fmt.Errorf("%w: %s", vfs.ErrNotFound, msg)
		case "FileAlreadyExistsException":
			return fmt.Errorf("%w: %s", vfs.ErrDestinationExists, msg)
		case "PathIsNotEmptyDirectoryException":
			return fmt.Errorf("%w: %s", vfs.ErrNotEmpty, msg)
		case "AccessControlException", "SecurityException", "AuthorizationException":
			return fmt.Errorf("%w: %s", vfs.ErrAccessDenied, msg)
		default:
			return fmt.Errorf("%w: remote %s (HTTP %d): %s", vfs.ErrProtocol, exc, status, msg)
		}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", vfs.ErrAccessDenied, status)
	case http.StatusNotFound:
		return fmt.Errorf("%w: HTTP 404", vfs.ErrNotFound)
	default:
		return fmt.Errorf("%w: unexpected HTTP %d: %s", vfs.ErrProtocol, status, truncate(body))
	}
}

// truncate keeps error messages readable when the remote returns a large or
// binary body.
func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
