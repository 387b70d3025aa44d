// Command ddgorescue drives a resumable rescue session against a failing
// source device, copying readable sectors into a destination image while
// persisting progress to a map file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/behrlich/ddgorescue"
	"github.com/behrlich/ddgorescue/internal/logging"
	"github.com/behrlich/ddgorescue/internal/status"
	"github.com/behrlich/ddgorescue/mapfile"
)

func main() {
	var (
		input        = flag.String("i", "", "source device or file to rescue (required)")
		output       = flag.String("o", "", "destination image path (required)")
		mapPath      = flag.String("m", "", "map file path (required)")
		syncInterval = flag.Duration("sync-interval", ddgorescue.DefaultSyncInterval, "maximum time between persistent syncs")
		batchSize    = flag.Int("batch-size", ddgorescue.DefaultBatchSize, "reads queued per work-queue refill")
		verbosity    = flag.String("verbosity", "info", "log level: debug, info, warn, error")
	)
	flag.StringVar(input, "input", "", "alias for -i")
	flag.StringVar(output, "output", "", "alias for -o")
	flag.StringVar(mapPath, "map", "", "alias for -m")
	flag.Parse()

	if *input == "" || *output == "" || *mapPath == "" {
		fmt.Fprintln(os.Stderr, "ddgorescue: -i/--input, -o/--output and -m/--map are all required")
		flag.Usage()
		os.Exit(1)
	}
	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "ddgorescue: unexpected positional argument(s): %v\n", flag.Args())
		flag.Usage()
		os.Exit(1)
	}

	level, err := logging.ParseLevel(*verbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddgorescue: %v\n", err)
		os.Exit(1)
	}
	logConfig := logging.DefaultConfig()
	logConfig.Level = level
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	session, err := ddgorescue.NewSession(ddgorescue.Config{
		Source:       *input,
		Dest:         *output,
		MapPath:      *mapPath,
		SyncInterval: *syncInterval,
		BatchSize:    *batchSize,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("error closing session", "error", err)
		}
	}()

	logger.Info("rescue starting", "source", *input, "dest", *output, "map", *mapPath,
		"phase", session.MapFile().Phase().String(), "pos", session.MapFile().Pos())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		session.Stop()
	}()

	// SIGUSR1 dumps goroutine stacks, useful when a rescue run against a
	// truly dying drive hangs in a syscall for a long time.
	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	statusDone := make(chan struct{})
	go runStatusLoop(ctx, session, statusDone)

	runErr := session.Run(ctx)
	cancel()
	<-statusDone

	if runErr != nil {
		logger.Error("rescue failed", "error", runErr)
		os.Exit(1)
	}

	hist := session.MapFile().Histogram()
	fmt.Printf("rescue finished: phase=%s rescued=%s bad=%s\n",
		session.MapFile().Phase().String(),
		status.FormatBytes(hist[mapfile.Rescued]),
		status.FormatBytes(hist[mapfile.Bad]))
}

// runStatusLoop redraws the status line at most once every
// StatusRefreshInterval until ctx is done.
func runStatusLoop(ctx context.Context, session *ddgorescue.Session, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(ddgorescue.StatusRefreshInterval)
	defer ticker.Stop()

	first := true
	for {
		select {
		case <-ticker.C:
			snap := snapshot(session)
			status.Render(os.Stdout, snap, !first)
			first = false
		case <-ctx.Done():
			return
		}
	}
}

func snapshot(session *ddgorescue.Session) status.Snapshot {
	mf := session.MapFile()
	return status.Snapshot{
		Phase:       mf.Phase(),
		Pass:        mf.Pass(),
		Pos:         mf.Pos(),
		SizeBytes:   mf.SizeBytes(),
		Histogram:   mf.Histogram(),
		ReadOps:     session.Metrics().ReadOps.Load(),
		ReadBytes:   session.Metrics().ReadBytes.Load(),
		ReadErrors:  session.Metrics().ReadErrors.Load(),
		Elapsed:     session.Elapsed(),
		LastSuccess: session.LastSuccess(),
		Now:         time.Now(),
	}
}
