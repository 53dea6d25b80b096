package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ironsheep/scan-splitter/internal/batch"
	"github.com/ironsheep/scan-splitter/internal/config"
	"github.com/ironsheep/scan-splitter/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errFailures signals a run that completed with failed scans.
var errFailures = errors.New("some scans failed")

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "version":
			fmt.Printf("scan-splitter %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol in serve mode)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, args := "run", os.Args[1:]
	if len(args) > 0 && (args[0] == "run" || args[0] == "watch" || args[0] == "serve") {
		mode, args = args[0], args[1:]
	}

	if err := run(ctx, mode, args); err != nil {
		if !errors.Is(err, errFailures) {
			log.Printf("Error: %v", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, mode string, args []string) error {
	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	var (
		configPath   = fs.String("config", "", "YAML configuration file")
		separator    = fs.String("separator", "", "separator color as #RRGGBB, or \"auto\"")
		patterns     = fs.String("patterns", "", "comma-separated file patterns, e.g. \"*.png,*.jpg\"")
		outDir       = fs.String("out", "", "name of the output directory created beside the scans")
		workers      = fs.Int("workers", 0, "scans processed in parallel")
		connectivity = fs.Int("connectivity", 0, "pixel neighborhood: 8 or 4")
		noDeskew     = fs.Bool("no-deskew", false, "save regions without straightening them")
		onFailure    = fs.String("on-failure", "", "when skew cannot be measured: keep or fail")
		autoOrient   = fs.Bool("auto-orient", false, "apply JPEG EXIF orientation")
		reportPath   = fs.String("report", "", "write a YAML report of the run to this file")
		debounce     = fs.Duration("debounce", 0, "watch mode: quiet period before a new file is processed")
		verbose      = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	// Flags override the file and the environment, but only when given.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "separator":
			cfg.Separator = *separator
		case "patterns":
			cfg.Patterns = splitList(*patterns)
		case "out":
			cfg.OutputDirName = *outDir
		case "workers":
			cfg.Workers = *workers
		case "connectivity":
			cfg.Connectivity = *connectivity
		case "no-deskew":
			cfg.Deskew.Enabled = !*noDeskew
		case "on-failure":
			cfg.Deskew.OnFailure = *onFailure
		case "auto-orient":
			cfg.AutoOrient = *autoOrient
		case "report":
			cfg.Report = *reportPath
		case "debounce":
			cfg.Watch.Debounce = *debounce
		case "v":
			cfg.Verbose = *verbose
		}
	})
	if fs.NArg() > 0 {
		cfg.InputDir = fs.Arg(0)
	}
	if cfg.InputDir == "" {
		cfg.InputDir = "."
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Verbose {
		log.Printf("scan-splitter v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	switch mode {
	case "serve":
		server.Version = Version
		return server.New(cfg, log.Default()).Run(ctx)
	case "watch":
		return watch(ctx, cfg)
	default:
		return splitDir(ctx, cfg)
	}
}

func splitDir(ctx context.Context, cfg *config.Config) error {
	p := batch.New(cfg, log.Default())
	report, err := p.ProcessDir(ctx, cfg.InputDir)
	if err != nil {
		return err
	}
	log.Print(report.Summary())

	if cfg.Report != "" {
		if err := batch.WriteReport(report, cfg.Report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if report.Failed > 0 {
		return errFailures
	}
	return nil
}

func watch(ctx context.Context, cfg *config.Config) error {
	p := batch.New(cfg, log.Default())
	start := time.Now()
	report := &batch.Report{InputDir: cfg.InputDir, Started: start}
	results := make(chan batch.Result)

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range results {
			report.Add(res)
			if res.Err == nil {
				log.Printf("%s: %d sub-images", res.Source, len(res.Outputs))
			}
		}
	}()

	err := p.Watch(ctx, cfg.InputDir, func(res batch.Result) { results <- res })
	close(results)
	<-collected
	report.Duration = time.Since(start)
	log.Print(report.Summary())

	if cfg.Report != "" {
		if werr := batch.WriteReport(report, cfg.Report); werr != nil && err == nil {
			err = fmt.Errorf("failed to write report: %w", werr)
		}
	}
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printUsage() {
	fmt.Println("scan-splitter - split composite scans into individual photos")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  scan-splitter [run] [flags] [dir]   Split every scan in dir (default: current directory)")
	fmt.Println("  scan-splitter watch [flags] [dir]   Split scans as they appear in dir")
	fmt.Println("  scan-splitter serve [flags]         Run as an MCP server over stdin/stdout")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config file       YAML configuration file")
	fmt.Println("  -separator color   Separator color as #RRGGBB, or \"auto\" (default #B5E61D)")
	fmt.Println("  -patterns list     Comma-separated file patterns (default *.png)")
	fmt.Println("  -out name          Output directory name (default Sauvegarde)")
	fmt.Println("  -workers n         Scans processed in parallel (default 4)")
	fmt.Println("  -connectivity n    Pixel neighborhood, 8 or 4 (default 8)")
	fmt.Println("  -no-deskew         Save regions without straightening them")
	fmt.Println("  -on-failure mode   When skew cannot be measured: keep or fail (default keep)")
	fmt.Println("  -auto-orient       Apply JPEG EXIF orientation")
	fmt.Println("  -report file       Write a YAML report of the run")
	fmt.Println("  -debounce d        Watch mode quiet period (default 2s)")
	fmt.Println("  -v                 Debug logging")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version          Print version information")
	fmt.Println("  --help, -h         Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  SCAN_SPLITTER_LOG_LEVEL=debug    Enable debug logging")
	fmt.Println("  SCAN_SPLITTER_SEPARATOR=#RRGGBB  Separator color")
	fmt.Println("  SCAN_SPLITTER_WORKERS=n          Scans processed in parallel")
	fmt.Println()
	fmt.Println("The exit status is 1 when the run fails or any scan could not be split.")
}
