package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgrachev/treesnap/internal/history"
	"github.com/mgrachev/treesnap/internal/profile"
)

// profilesOptions holds CLI flags shared by the profiles subcommands.
type profilesOptions struct {
	configDir   string
	historyRows int
	uncheck     bool
}

// newProfilesCmd creates the profiles subcommand group.
func newProfilesCmd() *cobra.Command {
	opts := &profilesOptions{}

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage named scan profiles",
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Configuration directory (default: OS config dir)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List available profiles",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runProfilesList(opts)
		},
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a profile's configuration and recent scan history",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runProfilesShow(args[0], opts)
		},
	}
	show.Flags().IntVar(&opts.historyRows, "history", 5, "How many recent scans to show")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runProfilesDelete(args[0], opts)
		},
	}

	check := &cobra.Command{
		Use:   "check <name> <paths...>",
		Short: "Mark files as checked so their contents are embedded in snapshots",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runProfilesCheck(args[0], args[1:], opts)
		},
	}
	check.Flags().BoolVar(&opts.uncheck, "remove", false, "Unmark instead of marking")

	cmd.AddCommand(list, show, del, check)
	return cmd
}

func openStore(opts *profilesOptions) (*profile.Store, string, error) {
	configDir, err := resolveConfigDir(opts.configDir)
	if err != nil {
		return nil, "", err
	}
	store, err := profile.NewStore(filepath.Join(configDir, "profiles"))
	if err != nil {
		return nil, "", err
	}
	return store, configDir, nil
}

func runProfilesList(opts *profilesOptions) error {
	store, _, err := openStore(opts)
	if err != nil {
		return err
	}

	last := store.Last()
	for _, name := range store.List() {
		marker := " "
		if name == last {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, name)
	}
	return nil
}

func runProfilesShow(name string, opts *profilesOptions) error {
	store, configDir, err := openStore(opts)
	if err != nil {
		return err
	}
	if name != profile.DefaultName && !store.Exists(name) {
		return fmt.Errorf("no such profile: %s", name)
	}

	prof, err := store.Load(name)
	if err != nil {
		return err
	}

	fmt.Printf("profile: %s\n", prof.Name)
	fmt.Printf("filter_system_folders: %t\n", prof.FilterSystemFolders)
	fmt.Printf("enable_timeouts: %t\n", prof.EnableTimeouts)
	fmt.Printf("root_folders (%d):\n", len(prof.RootFolders))
	for _, root := range prof.RootFolders {
		fmt.Printf("  %s\n", root)
	}
	fmt.Printf("ignore_patterns (%d):\n", len(prof.IgnorePatterns))
	for _, pattern := range prof.IgnorePatterns {
		fmt.Printf("  %s\n", pattern)
	}
	checked := 0
	for _, on := range prof.FolderChecks {
		if on {
			checked++
		}
	}
	fmt.Printf("checked paths: %d\n", checked)

	return showHistory(configDir, name, opts.historyRows)
}

func showHistory(configDir, name string, rows int) error {
	journal, err := history.Open(filepath.Join(configDir, "history.db"))
	if err != nil {
		return nil // no journal yet, nothing to show
	}
	defer func() { _ = journal.Close() }()

	entries, err := journal.Recent(name, rows)
	if err != nil || len(entries) == 0 {
		return nil
	}

	fmt.Printf("recent scans:\n")
	for _, e := range entries {
		fmt.Printf("  %s  %-9s  %d nodes in %s\n",
			e.When.Format("2006-01-02 15:04:05"), e.Outcome, e.NodeCount, e.Duration.Round(time.Millisecond))
	}
	return nil
}

func runProfilesDelete(name string, opts *profilesOptions) error {
	store, _, err := openStore(opts)
	if err != nil {
		return err
	}
	return store.Delete(name)
}

func runProfilesCheck(name string, paths []string, opts *profilesOptions) error {
	store, _, err := openStore(opts)
	if err != nil {
		return err
	}
	prof, err := store.Load(name)
	if err != nil {
		return err
	}

	abs, err := absPaths(paths)
	if err != nil {
		return err
	}
	for _, path := range abs {
		if opts.uncheck {
			delete(prof.FolderChecks, path)
			continue
		}
		prof.FolderChecks[path] = true
	}
	if err := store.Save(prof); err != nil {
		return err
	}

	verb := "checked"
	if opts.uncheck {
		verb = "unchecked"
	}
	fmt.Printf("%s %d path(s) in profile %s\n", verb, len(abs), name)
	return nil
}
