package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgrachev/treesnap/internal/history"
	"github.com/mgrachev/treesnap/internal/ignore"
	"github.com/mgrachev/treesnap/internal/loader"
	"github.com/mgrachev/treesnap/internal/log"
	"github.com/mgrachev/treesnap/internal/poller"
	"github.com/mgrachev/treesnap/internal/profile"
	"github.com/mgrachev/treesnap/internal/progress"
	"github.com/mgrachev/treesnap/internal/snapshot"
	"github.com/mgrachev/treesnap/internal/types"
	"github.com/mgrachev/treesnap/internal/watchdog"
)

// snapshotOptions holds CLI flags for the snapshot command.
type snapshotOptions struct {
	profileName    string
	configDir      string
	output         string
	excludes       []string
	maxFileSizeStr string
	budget         time.Duration
	accessTimeout  time.Duration
	watch          time.Duration
	noTimeouts     bool
	noProgress     bool
	noHistory      bool
	contents       bool
	entireTree     bool
	verbose        bool
	quiet          bool
}

// newSnapshotCmd creates the snapshot subcommand.
func newSnapshotCmd() *cobra.Command {
	opts := &snapshotOptions{
		maxFileSizeStr: "1MiB",
	}

	cmd := &cobra.Command{
		Use:   "snapshot [paths...]",
		Short: "Scan the active profile's folders and render a snapshot",
		Long: `Scans the profile's root folders and writes a snapshot document:
the folder structure followed by the contents of checked files.

Paths given as arguments are added to the profile's root folders and
persisted. Scans of remote or otherwise slow folders run under a time
budget; press Ctrl-C once to skip the current scan (a fallback profile
is tried), twice to cancel entirely.`,
		RunE: func(_ *cobra.Command, args []string) error {
			return runSnapshot(args, opts)
		},
	}

	// Bind flags to options
	cmd.Flags().StringVarP(&opts.profileName, "profile", "p", "", "Profile to load (default: last used)")
	cmd.Flags().StringVar(&opts.configDir, "config-dir", "", "Configuration directory (default: OS config dir)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the snapshot to a file instead of stdout")
	cmd.Flags().StringSliceVarP(&opts.excludes, "exclude", "e", nil, "Extra ignore patterns, added to the profile")
	cmd.Flags().StringVar(&opts.maxFileSizeStr, "max-file-size", opts.maxFileSizeStr, "Skip embedding files larger than this (e.g. 512K, 1MiB)")
	cmd.Flags().DurationVar(&opts.budget, "timeout", 0, "Whole-scan time budget (default 60s)")
	cmd.Flags().DurationVar(&opts.accessTimeout, "access-timeout", 0, "Per-folder accessibility timeout (default 10s)")
	cmd.Flags().DurationVar(&opts.watch, "watch", 0, "Keep polling for new entries for this long before rendering")
	cmd.Flags().BoolVar(&opts.noTimeouts, "no-timeouts", false, "Disable scan timeouts entirely")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this scan in the history journal")
	cmd.Flags().BoolVarP(&opts.contents, "contents", "c", false, "Include the contents of checked files")
	cmd.Flags().BoolVar(&opts.entireTree, "entire-tree", false, "Include every file's contents regardless of checked state")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show per-folder details")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress informational output")

	return cmd
}

// drainErrors consumes non-fatal scan diagnostics and writes them to
// stderr. Clears the progress bar line before printing to avoid visual
// collision.
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kwarning: %v\n", err)
	}
}

// runSnapshot executes the pipeline: load profile → scan under the
// watchdog → optionally poll → render.
func runSnapshot(paths []string, opts *snapshotOptions) error {
	maxFileSize, err := parseSize(opts.maxFileSizeStr)
	if err != nil {
		return fmt.Errorf("invalid --max-file-size: %w", err)
	}

	logger := log.New(opts.quiet, opts.verbose)

	configDir, err := resolveConfigDir(opts.configDir)
	if err != nil {
		return err
	}
	store, err := profile.NewStore(filepath.Join(configDir, "profiles"))
	if err != nil {
		return err
	}

	name := opts.profileName
	if name == "" {
		name = store.Last()
	}

	if len(paths) > 0 || len(opts.excludes) > 0 {
		if err := amendProfile(store, name, paths, opts.excludes); err != nil {
			return err
		}
	}

	journal := openJournal(configDir, opts.noHistory, logger)
	defer func() { _ = journal.Close() }()

	showProgress := !opts.noProgress && !opts.quiet
	reporter := progress.New(showProgress)

	// Shared channel for non-fatal diagnostics (unreadable folders,
	// per-folder timeouts). Never closed: an abandoned scan worker may
	// outlive this function and still report; the drain goroutine exits
	// with the process.
	errCh := make(chan error, 100)
	go drainErrors(errCh)

	token := watchdog.NewToken()
	restoreSignals := installInterrupts(token, logger)
	defer restoreSignals()

	ld := loader.New(loader.Config{
		Store:           store,
		Journal:         journal,
		Logger:          logger,
		Report:          reporter.Report,
		OnTick:          reporter.Tick,
		ErrCh:           errCh,
		Budget:          opts.budget,
		AccessTimeout:   opts.accessTimeout,
		DisableTimeouts: opts.noTimeouts,
	})

	reporter.Operation("Loading profile %s", name)
	res := ld.Load(name, token)
	reporter.Finish(res.Session.Summary())

	if res.Outcome != types.OutcomeCompleted {
		return fmt.Errorf("scan %s", res.Outcome)
	}

	if !res.UsedFallback {
		// Persist the pruned checked state and remember the active
		// profile for the next run.
		if err := store.Save(res.Profile); err != nil {
			logger.Warnf("%v", err)
		}
		if err := store.SetLast(res.Profile.Name); err != nil {
			logger.Warnf("%v", err)
		}
	}

	if opts.watch > 0 {
		watchForAdditions(res, opts.watch, logger)
	}

	return writeSnapshot(res, opts, maxFileSize)
}

// installInterrupts maps Ctrl-C onto the cancellation token: the first
// interrupt skips the current scan, the second cancels outright.
func installInterrupts(token *watchdog.Token, logger *log.Logger) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)

	go func() {
		for range sigCh {
			if token.IsCancelled() == watchdog.SignalNone {
				logger.Warnf("interrupt: skipping current scan (press again to cancel)")
				token.RequestSkip()
				continue
			}
			logger.Warnf("interrupt: cancelling")
			token.RequestCancel()
		}
	}()

	return func() { signal.Stop(sigCh) }
}

// amendProfile adds roots and ignore patterns from the command line to
// the named profile before scanning.
func amendProfile(store *profile.Store, name string, paths, excludes []string) error {
	prof, err := store.Load(name)
	if err != nil {
		return err
	}
	roots, err := absPaths(paths)
	if err != nil {
		return err
	}
	prof.RootFolders = mergeUnique(prof.RootFolders, roots)
	prof.IgnorePatterns = mergeUnique(prof.IgnorePatterns, excludes)
	return store.Save(prof)
}

func openJournal(configDir string, disabled bool, logger *log.Logger) *history.Journal {
	path := filepath.Join(configDir, "history.db")
	if disabled {
		path = ""
	}
	journal, err := history.Open(path)
	if err != nil {
		logger.Warnf("history disabled: %v", err)
		journal, _ = history.Open("")
	}
	return journal
}

// watchForAdditions runs the incremental poller over the committed
// session for a bounded period, so entries created moments after the
// scan still land in the snapshot.
func watchForAdditions(res *loader.Result, period time.Duration, logger *log.Logger) {
	matcher := ignore.New(res.Profile.IgnorePatterns, res.Profile.FilterSystemFolders)
	onAdd := func(node *types.TreeNode) {
		logger.Verbosef("picked up %s", node.Path)
	}

	logger.Infof("watching for new entries for %s", period)
	ctx, cancel := context.WithTimeout(context.Background(), period)
	defer cancel()
	poller.New(res.Profile.RootFolders, matcher, res.Session, 0, onAdd).Run(ctx)
}

func writeSnapshot(res *loader.Result, opts *snapshotOptions, maxFileSize int64) error {
	out := os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	roots, err := absPaths(res.Profile.RootFolders)
	if err != nil {
		return err
	}
	return snapshot.Write(out, res.Session.Nodes, roots, snapshot.Options{
		IncludeContents: opts.contents || opts.entireTree,
		EntireTree:      opts.entireTree,
		MaxFileSize:     maxFileSize,
	})
}
