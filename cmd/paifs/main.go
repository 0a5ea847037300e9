// Command paifs is a command-line client for PAI cluster storage. It resolves
// pai://<cluster>/<path> locators against the configured clusters and speaks
// WebHDFS or S3 depending on the cluster's storage flavor.
//
// Usage:
//
//	paifs [-config path] <command> [flags] <args>
//
// Commands:
//
//	ls      pai://cluster/path          list a directory
//	stat    pai://cluster/path          show file or directory status
//	cat     pai://cluster/path          print file contents to stdout
//	put     local pai://cluster/path    upload a local file (use - for stdin)
//	append  local pai://cluster/path    append a local file to a remote file
//	mkdir   pai://cluster/path          create a directory (and parents)
//	rm      pai://cluster/path          delete a file or directory
//	mv      src dst                     rename within one cluster
//	cp      src dst                     copy a file
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/openpai/paifs/internal/logger"
	"github.com/openpai/paifs/pkg/cache"
	"github.com/openpai/paifs/pkg/cache/badgercache"
	cachememory "github.com/openpai/paifs/pkg/cache/memory"
	"github.com/openpai/paifs/pkg/cluster"
	"github.com/openpai/paifs/pkg/config"
	"github.com/openpai/paifs/pkg/metrics"
	s3storage "github.com/openpai/paifs/pkg/storage/s3"
	"github.com/openpai/paifs/pkg/vfs"
	"github.com/openpai/paifs/pkg/webhdfs"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "paifs: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(*logLevel)
	}
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "paifs: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "paifs: %v\n", err)
		os.Exit(1)
	}
	runErr := app.run(ctx, flag.Arg(0), flag.Args()[1:])
	// os.Exit skips deferred calls, so the cache is closed explicitly.
	app.close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "paifs: %v\n", runErr)
		os.Exit(exitCode(runErr))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: paifs [-config path] <command> [flags] <args>

Commands:
  ls      pai://cluster/path          list a directory
  stat    pai://cluster/path          show file or directory status
  cat     pai://cluster/path          print file contents to stdout
  put     local pai://cluster/path    upload a local file (use - for stdin)
  append  local pai://cluster/path    append a local file to a remote file
  mkdir   pai://cluster/path          create a directory (and parents)
  rm      pai://cluster/path          delete a file or directory
  mv      src dst                     rename within one cluster
  cp      src dst                     copy a file
`)
}

// exitCode maps the error taxonomy onto conventional exit statuses.
func exitCode(err error) int {
	switch {
	case errors.Is(err, vfs.ErrNotFound):
		return 2
	case errors.Is(err, vfs.ErrAccessDenied):
		return 3
	default:
		return 1
	}
}

// app holds the wired providers and owns the cache backend's lifecycle.
type app struct {
	providers map[string]vfs.Provider
	listings  cache.ListingCache
	closeFn   func() error
}

func (a *app) close() {
	if a.closeFn != nil {
		if err := a.closeFn(); err != nil {
			logger.Warn("closing cache: %v", err)
		}
	}
}

// buildApp wires the configured clusters into per-authority providers sharing
// one listing cache.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{providers: map[string]vfs.Provider{}}

	// Must precede NewAdapterMetrics: the constructor returns the no-op
	// implementation while the registry is uninitialized.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	switch cfg.Cache.Type {
	case "badger":
		bc, err := badgercache.Open(cfg.Cache.Badger.Path)
		if err != nil {
			return nil, fmt.Errorf("opening listing cache: %w", err)
		}
		a.listings = bc
		a.closeFn = bc.Close
	default:
		a.listings = cachememory.New()
	}

	// All WebHDFS clusters share one registry, one HTTP client, one provider.
	webhdfsCreds := map[string]cluster.Credential{}
	for _, cc := range cfg.Clusters {
		if cc.Storage != "webhdfs" {
			continue
		}
		webhdfsCreds[cc.Name] = cluster.Credential{
			BaseURI:  cc.APIURI,
			Username: cc.Username,
			Token:    cc.Token,
		}
	}
	if len(webhdfsCreds) > 0 {
		registry := cluster.NewStaticRegistry(webhdfsCreds)
		client, err := webhdfs.NewClient(webhdfs.ClientConfig{
			Tokens:            registry.StaticToken(),
			Timeout:           cfg.Transport.Timeout,
			RequestsPerSecond: cfg.Transport.RequestsPerSecond,
			Burst:             cfg.Transport.Burst,
		})
		if err != nil {
			return nil, err
		}
		provider := webhdfs.New(registry, client, a.listings, metrics.NewAdapterMetrics())
		for name := range webhdfsCreds {
			a.providers[name] = provider
		}
	}

	for _, cc := range cfg.Clusters {
		if cc.Storage != "s3" {
			continue
		}
		provider, err := buildS3Provider(ctx, cc, a.listings)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", cc.Name, err)
		}
		a.providers[cc.Name] = provider
	}

	return a, nil
}

func buildS3Provider(ctx context.Context, cc config.ClusterConfig, listings cache.ListingCache) (vfs.Provider, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cc.S3.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cc.S3.Region))
	}
	if cc.S3.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cc.S3.AccessKeyID, cc.S3.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cc.S3.Endpoint != "" {
			o.BaseEndpoint = &cc.S3.Endpoint
			// Custom endpoints are typically MinIO-style and need path addressing
			o.UsePathStyle = true
		}
	})

	return s3storage.New(s3storage.Config{
		Client:    client,
		Bucket:    cc.S3.Bucket,
		KeyPrefix: cc.S3.KeyPrefix,
		Authority: cc.Name,
	}, listings)
}

// provider returns the provider serving a locator's authority.
func (a *app) provider(loc vfs.Locator) (vfs.Provider, error) {
	p, ok := a.providers[loc.Authority]
	if !ok {
		return nil, fmt.Errorf("cluster %q: %w", loc.Authority, vfs.ErrUnknownCluster)
	}
	return p, nil
}

// parseLocator parses a pai://cluster/path argument.
func parseLocator(arg string) (vfs.Locator, error) {
	u, err := url.Parse(arg)
	if err != nil {
		return vfs.Locator{}, fmt.Errorf("invalid locator %q: %w", arg, err)
	}
	if u.Scheme != "pai" || u.Host == "" {
		return vfs.Locator{}, fmt.Errorf("invalid locator %q: expected pai://cluster/path", arg)
	}
	return vfs.NewLocator(u.Host, u.Path)
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "ls":
		return a.cmdLs(ctx, args)
	case "stat":
		return a.cmdStat(ctx, args)
	case "cat":
		return a.cmdCat(ctx, args)
	case "put":
		return a.cmdPut(ctx, args)
	case "append":
		return a.cmdAppend(ctx, args)
	case "mkdir":
		return a.cmdMkdir(ctx, args)
	case "rm":
		return a.cmdRm(ctx, args)
	case "mv":
		return a.cmdMv(ctx, args)
	case "cp":
		return a.cmdCp(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func singleLocator(args []string, command string) (vfs.Locator, error) {
	if len(args) != 1 {
		return vfs.Locator{}, fmt.Errorf("%s: expected exactly one pai:// locator", command)
	}
	return parseLocator(args[0])
}

func (a *app) cmdLs(ctx context.Context, args []string) error {
	loc, err := singleLocator(args, "ls")
	if err != nil {
		return err
	}
	p, err := a.provider(loc)
	if err != nil {
		return err
	}

	entries, err := p.ListDirectory(ctx, loc)
	if err != nil {
		return err
	}
	for _, e := range entries {
		printEntry(e)
	}
	return nil
}

func printEntry(e vfs.DirectoryEntry) {
	kind := "-"
	if e.Kind == vfs.KindDirectory {
		kind = "d"
	}
	modified := ""
	if !e.ModifiedTime.IsZero() {
		modified = e.ModifiedTime.Format("2006-01-02 15:04")
	}
	fmt.Printf("%s %12d  %-16s  %s\n", kind, e.Size, modified, e.Name)
}

func (a *app) cmdStat(ctx context.Context, args []string) error {
	loc, err := singleLocator(args, "stat")
	if err != nil {
		return err
	}
	p, err := a.provider(loc)
	if err != nil {
		return err
	}

	entry, err := p.Stat(ctx, loc)
	if err != nil {
		return err
	}
	fmt.Printf("Path:     %s\n", loc)
	fmt.Printf("Kind:     %s\n", entry.Kind)
	fmt.Printf("Size:     %d\n", entry.Size)
	if !entry.ModifiedTime.IsZero() {
		fmt.Printf("Modified: %s\n", entry.ModifiedTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (a *app) cmdCat(ctx context.Context, args []string) error {
	loc, err := singleLocator(args, "cat")
	if err != nil {
		return err
	}
	p, err := a.provider(loc)
	if err != nil {
		return err
	}

	data, err := p.ReadFile(ctx, loc)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// readLocal reads an upload source, with "-" meaning stdin.
func readLocal(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

// watchProgress prints transfer events to w until the channel closes. The
// trailing newline terminates the \r-rewritten progress line, so it is only
// written when at least one progress line was.
func watchProgress(w io.Writer, events <-chan vfs.TransferEvent, done chan<- struct{}) {
	printed := false
	for ev := range events {
		logger.Debug("transfer %s %s: %d/%d bytes", ev.TransferID, ev.Path, ev.BytesDone, ev.BytesTotal)
		if ev.BytesTotal > 0 {
			fmt.Fprintf(w, "\r%s: %d/%d bytes", ev.Path, ev.BytesDone, ev.BytesTotal)
			printed = true
		}
	}
	if printed {
		fmt.Fprintln(w)
	}
	close(done)
}

func (a *app) cmdPut(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	overwrite := fs.Bool("overwrite", false, "Overwrite the destination if it exists")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("put: expected <local> <pai://cluster/path>")
	}

	data, err := readLocal(fs.Arg(0))
	if err != nil {
		return err
	}
	loc, err := parseLocator(fs.Arg(1))
	if err != nil {
		return err
	}
	p, err := a.provider(loc)
	if err != nil {
		return err
	}

	events := make(chan vfs.TransferEvent, 16)
	done := make(chan struct{})
	go watchProgress(os.Stderr, events, done)

	err = p.CreateFile(ctx, loc, data, vfs.CreateOptions{
		Overwrite: *overwrite,
		Progress:  events,
	})
	close(events)
	<-done
	return err
}

func (a *app) cmdAppend(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("append: expected <local> <pai://cluster/path>")
	}
	data, err := readLocal(args[0])
	if err != nil {
		return err
	}
	loc, err := parseLocator(args[1])
	if err != nil {
		return err
	}
	p, err := a.provider(loc)
	if err != nil {
		return err
	}
	return p.AppendFile(ctx, loc, data)
}

func (a *app) cmdMkdir(ctx context.Context, args []string) error {
	loc, err := singleLocator(args, "mkdir")
	if err != nil {
		return err
	}
	p, err := a.provider(loc)
	if err != nil {
		return err
	}
	return p.CreateDirectory(ctx, loc)
}

func (a *app) cmdRm(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	recursive := fs.Bool("r", false, "Delete directories recursively")
	if err := fs.Parse(args); err != nil {
		return err
	}
	loc, err := singleLocator(fs.Args(), "rm")
	if err != nil {
		return err
	}
	p, err := a.provider(loc)
	if err != nil {
		return err
	}
	return p.Delete(ctx, loc, vfs.DeleteOptions{Recursive: *recursive})
}

func (a *app) cmdMv(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("mv: expected <src> <dst>")
	}
	src, err := parseLocator(args[0])
	if err != nil {
		return err
	}
	dst, err := parseLocator(args[1])
	if err != nil {
		return err
	}
	p, err := a.provider(src)
	if err != nil {
		return err
	}
	return p.Rename(ctx, src, dst)
}

func (a *app) cmdCp(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cp", flag.ContinueOnError)
	overwrite := fs.Bool("overwrite", false, "Overwrite the destination if it exists")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("cp: expected <src> <dst>")
	}
	src, err := parseLocator(fs.Arg(0))
	if err != nil {
		return err
	}
	dst, err := parseLocator(fs.Arg(1))
	if err != nil {
		return err
	}
	p, err := a.provider(src)
	if err != nil {
		return err
	}

	events := make(chan vfs.TransferEvent, 16)
	done := make(chan struct{})
	go watchProgress(os.Stderr, events, done)

	err = p.Copy(ctx, src, dst, vfs.CopyOptions{
		Overwrite: *overwrite,
		Progress:  events,
	})
	close(events)
	<-done
	return err
}
