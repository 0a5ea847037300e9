// Package s3 implements the vfs.Provider contract over an S3-compatible
// bucket, for clusters that expose team storage as object storage rather
// than HDFS. Directories are emulated the usual way: a trailing-slash
// delimiter on listings and zero-byte marker objects for empty directories.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/openpai/paifs/internal/logger"
	"github.com/openpai/paifs/pkg/cache"
	"github.com/openpai/paifs/pkg/vfs"
)

// Provider adapts one bucket to the virtual-filesystem contract. The same
// listing cache and invalidation discipline as the WebHDFS provider applies:
// mutations invalidate the affected path and its parent after the remote
// confirms.
type Provider struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	authority string
	cache     cache.ListingCache
}

// interface guard
var _ vfs.Provider = (*Provider)(nil)

// Config configures an S3 provider.
type Config struct {
	// Client is the configured S3 client. Required.
	Client *s3.Client

	// Bucket is the bucket name. Required; must already exist.
	Bucket string

	// KeyPrefix is an optional prefix under which all paths live,
	// e.g. "paifs/" maps /a/f.txt to the key "paifs/a/f.txt".
	KeyPrefix string

	// Authority is the cluster authority this provider serves.
	Authority string
}

// New creates an S3-backed provider.
func New(cfg Config, listings cache.ListingCache) (*Provider, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Authority == "" {
		return nil, fmt.Errorf("authority is required")
	}
	return &Provider{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		authority: cfg.Authority,
		cache:     listings,
	}, nil
}

// objectKey maps a normalized absolute path to its object key.
func (p *Provider) objectKey(path string) string {
	return p.keyPrefix + strings.TrimPrefix(path, "/")
}

// dirPrefix maps a normalized absolute path to the listing prefix for its
// children. The root maps to the bare key prefix.
func (p *Provider) dirPrefix(path string) string {
	if path == "/" {
		return p.keyPrefix
	}
	return p.objectKey(path) + "/"
}

func (p *Provider) checkAuthority(loc vfs.Locator) error {
	if loc.Authority != p.authority {
		return fmt.Errorf("cluster %q: %w", loc.Authority, vfs.ErrUnknownCluster)
	}
	return nil
}

func mapS3Error(err error, path string) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", path, vfs.ErrNotFound)
	}
	return fmt.Errorf("%w: %v", vfs.ErrTransport, err)
}

// Stat implements vfs.Provider. A path is a directory if a marker object or
// any child key exists under its prefix.
func (p *Provider) Stat(ctx context.Context, loc vfs.Locator) (*vfs.DirectoryEntry, error) {
	if err := p.checkAuthority(loc); err != nil {
		return nil, err
	}
	if loc.IsRoot() {
		return &vfs.DirectoryEntry{Name: "/", Kind: vfs.KindDirectory}, nil
	}

	head, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey(loc.Path)),
	})
	if err == nil {
		entry := &vfs.DirectoryEntry{Name: loc.Base(), Kind: vfs.KindFile}
		if head.ContentLength != nil {
			entry.Size = uint64(*head.ContentLength)
		}
		if head.LastModified != nil {
			entry.ModifiedTime = *head.LastModified
		}
		return entry, nil
	}

	mapped := mapS3Error(err, loc.Path)
	if !errors.Is(mapped, vfs.ErrNotFound) {
		return nil, mapped
	}

	// No object at the key; the path may still be a directory.
	isDir, err := p.hasChildren(ctx, loc.Path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fmt.Errorf("%s: %w", loc.Path, vfs.ErrNotFound)
	}
	return &vfs.DirectoryEntry{Name: loc.Base(), Kind: vfs.KindDirectory}, nil
}

func (p *Provider) hasChildren(ctx context.Context, path string) (bool, error) {
	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(p.dirPrefix(path)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", vfs.ErrTransport, err)
	}
	return out.KeyCount != nil && *out.KeyCount > 0, nil
}

// ListDirectory implements vfs.Provider using delimiter listings, with the
// cache in front.
func (p *Provider) ListDirectory(ctx context.Context, loc vfs.Locator) ([]vfs.DirectoryEntry, error) {
	if err := p.checkAuthority(loc); err != nil {
		return nil, err
	}

	if entry, err := p.cache.Get(ctx, loc.Authority, loc.Path); err != nil {
		logger.Warn("s3: listing cache read failed for %s: %v", loc, err)
	} else if entry != nil {
		return entry.Entries, nil
	}

	prefix := p.dirPrefix(loc.Path)
	var entries []vfs.DirectoryEntry

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vfs.ErrTransport, err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
			entries = append(entries, vfs.DirectoryEntry{Name: name, Kind: vfs.KindDirectory})
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || *obj.Key == prefix {
				// Skip the directory marker itself.
				continue
			}
			name := strings.TrimPrefix(*obj.Key, prefix)
			entry := vfs.DirectoryEntry{Name: name, Kind: vfs.KindFile}
			if obj.Size != nil {
				entry.Size = uint64(*obj.Size)
			}
			if obj.LastModified != nil {
				entry.ModifiedTime = *obj.LastModified
			}
			entries = append(entries, entry)
		}
	}

	if entries == nil {
		entries = []vfs.DirectoryEntry{}
	}
	if err := p.cache.Put(ctx, loc.Authority, loc.Path, entries); err != nil {
		logger.Warn("s3: listing cache write failed for %s: %v", loc, err)
	}
	return entries, nil
}

// ReadFile implements vfs.Provider.
func (p *Provider) ReadFile(ctx context.Context, loc vfs.Locator) ([]byte, error) {
	if err := p.checkAuthority(loc); err != nil {
		return nil, err
	}

	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey(loc.Path)),
	})
	if err != nil {
		return nil, mapS3Error(err, loc.Path)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading object body: %v", vfs.ErrTransport, err)
	}
	return data, nil
}

// CreateFile implements vfs.Provider. Exclusive creation is a head-then-put;
// S3 offers no native compare-and-swap here, so a concurrent external writer
// can still win the race. Acceptable for this client's single-user workload.
func (p *Provider) CreateFile(ctx context.Context, loc vfs.Locator, data []byte, opts vfs.CreateOptions) error {
	if err := p.checkAuthority(loc); err != nil {
		return err
	}

	key := p.objectKey(loc.Path)
	if !opts.Overwrite {
		_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return fmt.Errorf("%s: %w", loc.Path, vfs.ErrDestinationExists)
		}
		if mapped := mapS3Error(err, loc.Path); !errors.Is(mapped, vfs.ErrNotFound) {
			return mapped
		}
	}

	transferID := uuid.NewString()
	vfs.EmitProgress(opts.Progress, vfs.TransferEvent{
		TransferID: transferID,
		Operation:  "create",
		Path:       loc.Path,
		BytesTotal: uint64(len(data)),
	})

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", vfs.ErrTransport, err)
	}

	vfs.EmitProgress(opts.Progress, vfs.TransferEvent{
		TransferID: transferID,
		Operation:  "create",
		Path:       loc.Path,
		BytesDone:  uint64(len(data)),
		BytesTotal: uint64(len(data)),
	})

	p.invalidate(ctx, loc)
	return nil
}

// AppendFile implements vfs.Provider with a read-modify-write: S3 objects
// are immutable, so append downloads the existing object, concatenates, and
// re-uploads. Inefficient for large objects, fine for logs and manifests.
func (p *Provider) AppendFile(ctx context.Context, loc vfs.Locator, data []byte) error {
	if err := p.checkAuthority(loc); err != nil {
		return err
	}

	existing, err := p.ReadFile(ctx, loc)
	if err != nil {
		return err
	}

	combined := make([]byte, 0, len(existing)+len(data))
	combined = append(combined, existing...)
	combined = append(combined, data...)

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey(loc.Path)),
		Body:   bytes.NewReader(combined),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", vfs.ErrTransport, err)
	}

	p.invalidate(ctx, loc)
	return nil
}

// CreateDirectory implements vfs.Provider by writing a zero-byte marker
// object. Re-creating an existing directory is a silent success.
func (p *Provider) CreateDirectory(ctx context.Context, loc vfs.Locator) error {
	if err := p.checkAuthority(loc); err != nil {
		return err
	}
	if loc.IsRoot() {
		return nil
	}

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.dirPrefix(loc.Path)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", vfs.ErrTransport, err)
	}

	p.invalidate(ctx, loc)
	return nil
}

// Delete implements vfs.Provider. Recursive deletion batch-deletes every key
// under the prefix; S3 allows at most 1000 keys per DeleteObjects call.
func (p *Provider) Delete(ctx context.Context, loc vfs.Locator, opts vfs.DeleteOptions) error {
	if err := p.checkAuthority(loc); err != nil {
		return err
	}

	keys, err := p.affectedKeys(ctx, loc.Path)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%s: %w", loc.Path, vfs.ErrNotFound)
	}

	marker := p.dirPrefix(loc.Path)
	if !opts.Recursive {
		for _, k := range keys {
			if k != p.objectKey(loc.Path) && k != marker {
				return fmt.Errorf("%s: %w", loc.Path, vfs.ErrNotEmpty)
			}
		}
	}

	const maxBatch = 1000
	for i := 0; i < len(keys); i += maxBatch {
		end := i + maxBatch
		if end > len(keys) {
			end = len(keys)
		}
		objects := make([]types.ObjectIdentifier, 0, end-i)
		for _, k := range keys[i:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(p.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", vfs.ErrTransport, err)
		}
	}

	p.invalidate(ctx, loc)
	return nil
}

// affectedKeys returns every object key belonging to the path: the exact
// object, the directory marker, and all children.
func (p *Provider) affectedKeys(ctx context.Context, path string) ([]string, error) {
	var keys []string

	exact := p.objectKey(path)
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(exact),
	})
	if err == nil {
		keys = append(keys, exact)
	} else if mapped := mapS3Error(err, path); !errors.Is(mapped, vfs.ErrNotFound) {
		return nil, mapped
	}

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.dirPrefix(path)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vfs.ErrTransport, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// Rename implements vfs.Provider as server-side copy plus delete, applied to
// every key under the source. Not atomic: a failure mid-way can leave both
// trees partially populated.
func (p *Provider) Rename(ctx context.Context, src, dst vfs.Locator) error {
	if err := p.checkAuthority(src); err != nil {
		return err
	}
	if err := p.checkAuthority(dst); err != nil {
		return err
	}

	if _, err := p.Stat(ctx, dst); err == nil {
		return fmt.Errorf("%s: %w", dst.Path, vfs.ErrDestinationExists)
	} else if !errors.Is(err, vfs.ErrNotFound) {
		return err
	}

	keys, err := p.affectedKeys(ctx, src.Path)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%s: %w", src.Path, vfs.ErrNotFound)
	}

	srcRoot := p.objectKey(src.Path)
	dstRoot := p.objectKey(dst.Path)
	for _, key := range keys {
		newKey := dstRoot + strings.TrimPrefix(key, srcRoot)
		_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(p.bucket),
			CopySource: aws.String(p.bucket + "/" + key),
			Key:        aws.String(newKey),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", vfs.ErrTransport, err)
		}
	}

	if err := p.Delete(ctx, src, vfs.DeleteOptions{Recursive: true}); err != nil {
		return err
	}

	p.invalidate(ctx, dst)
	return nil
}

// Copy implements vfs.Provider for single files via server-side CopyObject,
// so the payload never transits the client.
func (p *Provider) Copy(ctx context.Context, src, dst vfs.Locator, opts vfs.CopyOptions) error {
	if err := p.checkAuthority(src); err != nil {
		return err
	}
	if err := p.checkAuthority(dst); err != nil {
		return err
	}

	if !opts.Overwrite {
		if _, err := p.Stat(ctx, dst); err == nil {
			return fmt.Errorf("%s: %w", dst.Path, vfs.ErrDestinationExists)
		} else if !errors.Is(err, vfs.ErrNotFound) {
			return err
		}
	}

	transferID := uuid.NewString()
	vfs.EmitProgress(opts.Progress, vfs.TransferEvent{
		TransferID: transferID,
		Operation:  "copy",
		Path:       dst.Path,
	})

	_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(p.bucket),
		CopySource: aws.String(p.bucket + "/" + p.objectKey(src.Path)),
		Key:        aws.String(p.objectKey(dst.Path)),
	})
	if err != nil {
		return mapS3Error(err, src.Path)
	}

	vfs.EmitProgress(opts.Progress, vfs.TransferEvent{
		TransferID: transferID,
		Operation:  "copy",
		Path:       dst.Path,
	})

	p.invalidate(ctx, dst)
	return nil
}

func (p *Provider) invalidate(ctx context.Context, loc vfs.Locator) {
	if err := p.cache.Invalidate(ctx, loc.Authority, loc.Path); err != nil {
		logger.Warn("s3: cache invalidation failed for %s: %v", loc, err)
	}
}
