// Package main is the rmeta CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/rmeta/internal/cli"
	"github.com/hyperjump/rmeta/internal/config"
	"github.com/hyperjump/rmeta/internal/decode"
	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/metrics"
	"github.com/hyperjump/rmeta/internal/server"
	"github.com/hyperjump/rmeta/internal/storage"
	"github.com/hyperjump/rmeta/internal/watcher"
	"github.com/hyperjump/rmeta/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/rmeta/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); when neither exists the
// built-in defaults are used. Returns the config and the path that was actually
// loaded, empty for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "extract":
		runExtract()
	case "watch":
		runWatch()
	case "cache":
		runCache()
	case "version", "--version", "-v":
		fmt.Printf("rmeta version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func newAggregator(logger *zap.Logger) *extract.Aggregator {
	registry := decode.NewRegistry(decode.WithLogger(logger))
	return extract.NewAggregator(registry, extract.WithLogger(logger))
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (units visited, failures, limits)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []server.Option{server.WithMetrics(metrics.New(reg))}
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			logger.Fatal("Failed to open result cache", zap.Error(err))
		}
		defer store.Close()
		opts = append(opts, server.WithCache(store))
		logger.Info("result cache enabled", zap.String("database_path", cfg.Storage.DatabasePath))
	}

	srv := server.NewServer(newAggregator(logger), cfg, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForSignal()
	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// extractOptions are the parsed flags of the extract command.
type extractOptions struct {
	configPath string
	format     cli.OutputFormat
	output     string
	input      string
	cfg        extract.Config
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// parseInterleaved parses fs over args and returns the positional arguments.
// Go's flag package stops at the first non-flag argument, so
// "rmeta extract a.pdf -format text" would otherwise leave -format unparsed;
// parsing resumes after each positional instead.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// parseExtractArgs parses extract flags over the config defaults.
func parseExtractArgs(args []string, defaults extract.Config, output io.Writer) (*extractOptions, error) {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(output)
	opts := &extractOptions{}
	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	handler := fs.String("handler", string(defaults.Handler), "content handler: xml, text or ignore")
	fs.IntVar(&opts.cfg.MaxEmbedded, "max-embedded", defaults.MaxEmbedded, "maximum embedded resources to visit (-1 for no limit)")
	fs.IntVar(&opts.cfg.WriteLimit, "write-limit", defaults.WriteLimit, "maximum characters of content across the document (-1 for no limit)")
	fs.BoolVar(&opts.cfg.StopOnWriteLimit, "stop-on-write-limit", defaults.StopOnWriteLimit, "stop visiting units once the write limit is hit")
	fs.StringVar(&opts.cfg.Password, "password", defaults.Password, "password for encrypted documents")
	fs.StringVar(&opts.cfg.Digest, "digest", defaults.Digest, "per-unit digest: md5 or sha256")
	format := fs.String("format", string(cli.OutputJSON), "output format: json or text")
	fs.StringVar(&opts.output, "o", "", "write output to file instead of stdout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: rmeta extract [flags] <file|->\n\n")
		fs.PrintDefaults()
	}
	files, err := parseInterleaved(fs, args)
	if err != nil {
		return nil, err
	}
	if len(files) != 1 {
		fs.Usage()
		return nil, errors.New("extract takes exactly one file argument")
	}
	opts.input = files[0]
	opts.cfg.Handler = extract.ParseHandlerMode(*handler)
	if opts.format, err = cli.ParseOutputFormat(*format); err != nil {
		return nil, err
	}
	if err := opts.cfg.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func runExtract() {
	args := os.Args[2:]
	cfg, _, err := loadConfig(configPathFromArgs(args, defaultConfigPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	opts, err := parseExtractArgs(args, cfg.ExtractDefaults(), os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := extractFile(newAggregator(logger), opts, os.Stdin, os.Stdout); err != nil {
		logger.Error("extract failed", zap.String("input", opts.input), zap.Error(err))
		os.Exit(1)
	}
}

// extractFile runs one extraction as described by opts. Input "-" reads stdin.
func extractFile(agg *extract.Aggregator, opts *extractOptions, stdin io.Reader, stdout io.Writer) error {
	in := stdin
	name := ""
	if opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
		name = filepath.Base(opts.input)
	}
	res, err := agg.ExtractNamed(in, name, opts.cfg)
	if err != nil {
		return err
	}
	out := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return cli.WriteResult(out, res, opts.format)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, file events, etc.)")
	outputDir := fs.String("output-dir", "", "directory for .json output (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: rmeta watch [flags] [directory...]\n\n")
		fs.PrintDefaults()
	}
	dirs, err := parseInterleaved(fs, os.Args[2:])
	if err != nil {
		os.Exit(2)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	roots := cfg.Watch.Directories
	if len(dirs) > 0 {
		roots = nil
		for _, d := range dirs {
			abs, err := filepath.Abs(d)
			if err != nil {
				fmt.Printf("Invalid directory %s: %v\n", d, err)
				os.Exit(1)
			}
			roots = append(roots, abs)
		}
	}
	if len(roots) == 0 {
		fs.Usage()
		os.Exit(1)
	}
	out := cfg.Watch.OutputDir
	if *outputDir != "" {
		out, _ = filepath.Abs(*outputDir)
	}

	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	exporter := watcher.NewExporter(newAggregator(logger), cfg.ExtractDefaults(), roots, out, logger)
	w := watcher.NewWatcher(roots, exporter,
		watcher.WithExtensions(cfg.Watch.Extensions),
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
		watcher.WithExclude(out),
		watcher.WithLogger(logger),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	logger.Info("watching", zap.Strings("directories", roots), zap.String("output_dir", out))
	w.SyncExistingFiles()

	waitForSignal()
	logger.Info("Shutting down...")
	w.Stop()
}

func runCache() {
	args := os.Args[2:]
	if len(args) < 1 {
		fmt.Println("Usage: rmeta cache <list|delete|prune> [flags]")
		fmt.Println("  rmeta cache list [-offset n] [-limit n]   List cached results, newest first")
		fmt.Println("  rmeta cache delete <key>                  Remove one cached result")
		fmt.Println("  rmeta cache prune [-older-than d]         Remove results older than d")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(configPathFromArgs(args, defaultConfigPath))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.DatabasePath == "" {
		fmt.Println("Result cache is disabled (storage.database_path is empty)")
		os.Exit(1)
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Printf("Failed to open result cache: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := cacheCommand(context.Background(), store, args, os.Stdout, time.Now()); err != nil {
		fmt.Printf("%v\n", err)
		store.Close()
		os.Exit(1)
	}
}

// cacheCommand runs one cache maintenance subcommand against store.
func cacheCommand(ctx context.Context, store storage.ResultStore, args []string, out io.Writer, now time.Time) error {
	sub := args[0]
	fs := flag.NewFlagSet("cache "+sub, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.String("config", defaultConfigPath, "config file path")
	offset := fs.Int("offset", 0, "entries to skip")
	limit := fs.Int("limit", 50, "maximum entries to list")
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "prune results created before now minus this duration")
	rest, err := parseInterleaved(fs, args[1:])
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		entries, err := store.List(ctx, *offset, *limit)
		if err != nil {
			return fmt.Errorf("list cached results: %w", err)
		}
		cli.WriteEntries(out, entries, now)
	case "delete":
		if len(rest) != 1 {
			return errors.New("usage: rmeta cache delete <key>")
		}
		if err := store.Delete(ctx, rest[0]); err != nil {
			return fmt.Errorf("delete %s: %w", rest[0], err)
		}
		fmt.Fprintf(out, "Deleted: %s\n", rest[0])
	case "prune":
		n, err := store.Prune(ctx, now.Add(-*olderThan))
		if err != nil {
			return fmt.Errorf("prune cached results: %w", err)
		}
		fmt.Fprintf(out, "Pruned %d cached results\n", n)
	default:
		return fmt.Errorf("unknown cache subcommand: %s", sub)
	}
	return nil
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

func printUsage() {
	fmt.Println(`rmeta - Recursive metadata and content extraction

Usage:
  rmeta server [flags]             Start the HTTP server
  rmeta extract [flags] <file|->   Extract a document and its embedded resources
  rmeta watch [flags] [dir...]     Extract files as they change into .json output
  rmeta cache <list|delete|prune>  Inspect or trim the result cache
  rmeta version                    Show version
  rmeta help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/rmeta/config.yaml)
  --debug            Enable debug logging

Extract Flags:
  --config string         Config file path (limits default to its extract section)
  --handler string        Content handler: xml, text or ignore (default: xml)
  --max-embedded int      Maximum embedded resources to visit, -1 for no limit
  --write-limit int       Maximum characters of content, -1 for no limit
  --stop-on-write-limit   Stop visiting units once the write limit is hit (default: true)
  --password string       Password for encrypted documents
  --digest string         Per-unit digest: md5 or sha256
  --format string         Output format: json or text (default: json)
  -o string               Write output to file instead of stdout

Cache Flags:
  --config string         Config file path (storage.database_path selects the cache)
  --offset, --limit int   Page through "cache list" (default limit: 50)
  --older-than duration   Age cutoff for "cache prune" (default: 720h)

Watch Flags:
  --config string        Config file path
  --output-dir string    Directory for .json output (default from config)
  --debug                Enable debug logging

HTTP API:
  PUT  /rmeta[/{handler}]         Body is the document
  POST /rmeta/form[/{handler}]    Multipart upload, first file part
  GET  /health, /status, /metrics

Examples:
  rmeta server
  rmeta extract report.docx
  rmeta extract --handler text --write-limit 1000 bundle.zip
  cat scan.pdf | rmeta extract --format text -
  rmeta watch ~/Documents --output-dir ~/rmeta-out`)
}
