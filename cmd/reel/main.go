package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reel-go/internal/app"
	"reel-go/internal/config"
	"reel-go/internal/encryption"
	"reel-go/internal/reel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a ReelApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. app.OpScan, app.OpCommit).
func newApp(operation string) (*app.ReelApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewReelApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// closeApp closes a and reports a close failure unless err is already set.
func closeApp(a *app.ReelApp, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

var rootCmd = &cobra.Command{
	Use:          "reel",
	Short:        "Organize a media library with staged, undoable changes",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		if _, err := os.Stat(defaults["config_path"]); err == nil {
			return fmt.Errorf("config file already exists at %s", defaults["config_path"])
		}

		collectionID := uuid.New().String()
		cfg := config.NewConfig(collectionID, defaults["base_dir"])

		if encrypt {
			cfg.Encryption.Type = "age"
			passphrase, err := readNewPassphrase()
			if err != nil {
				return err
			}
			if err := encryption.NewAgeEncryptor(cfg.Encryption).Setup(passphrase); err != nil {
				return fmt.Errorf("generating snapshot keys: %w", err)
			}
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Collection ID: %s\n", collectionID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		if encrypt {
			fmt.Printf("Public key: %s\n", cfg.Encryption.PublicKeyPath)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Collection ID: %s\n", cfg.CollectionID)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Database:      %s\n", cfg.Database.Type)
		fmt.Printf("Encryption:    %s\n", cfg.Encryption.Type)
		fmt.Printf("Source order:  %s\n", strings.Join(append([]string{reel.UserSource}, cfg.Library.Order...), ", "))
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:         %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

var configVaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vault",
}

var configVaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the vault is reachable and writable",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpList)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if err := a.ValidateVault(); err != nil {
			return fmt.Errorf("vault check failed: %w", err)
		}
		fmt.Println("Vault OK.")
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan [PATH]",
	Short: "Add media files to the collection",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		recursive, _ := cmd.Flags().GetBool("recursive")

		target := "."
		if len(args) > 0 {
			target = args[0]
		}

		a, err := newApp(app.OpScan)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		res, err := a.Scan(cmd.Context(), target, recursive)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		fmt.Printf("Found %d file(s): %d added, %d updated, %d skipped\n",
			res.Found, res.Added, res.Updated, res.Skipped)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list [FILTER...]",
	Short: "List records matching every filter (e.g. year>1990 genre=Drama)",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpList)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		records, err := a.Records(args)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, r := range records {
			title, _ := r.ResolveString("title")
			year, _ := r.ResolveString("year")
			rows = append(rows, []string{
				r.Fingerprint().Short(),
				title,
				year,
				humanize.Bytes(uint64(r.Size())),
				r.Path(),
			})
		}
		fmt.Println(renderTable(
			[]string{"ID", "Title", "Year", "Size", "Path"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show FILTER...",
	Short: "Show every metadata block of the matching records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpList)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		records, err := a.Records(args)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%s  %s\n", r.Fingerprint(), r.Path())
			fmt.Printf("  size %s, captured %s\n", humanize.Bytes(uint64(r.Size())), humanize.Time(r.CapturedAt()))
			for _, name := range append([]string{reel.UserSource}, r.SourceNames()...) {
				block, ok := r.SourceData(name)
				if !ok || block.Len() == 0 {
					continue
				}
				rows := make([][]string, 0, block.Len())
				for _, k := range block.Keys() {
					v, _ := block.Get(k)
					rows = append(rows, []string{k, reel.FormatValue(v)})
				}
				fmt.Printf("  [%s]\n", name)
				fmt.Println(renderTable([]string{"Key", "Value"}, rows, nil))
			}
		}
		return nil
	},
}

// stage command
var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Queue changes for the next commit",
}

var stageMoveCmd = &cobra.Command{
	Use:   "move [FILTER...]",
	Short: "Stage moves of matching records to their templated destination",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		template, _ := cmd.Flags().GetString("template")
		root, _ := cmd.Flags().GetString("root")

		a, err := newApp(app.OpStage)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.StageMoves(args, template, root)
		if err != nil {
			return fmt.Errorf("staging moves: %w", err)
		}
		fmt.Printf("Staged %d move(s)\n", n)
		return nil
	},
}

var stageUpdateCmd = &cobra.Command{
	Use:   "update SOURCE [FILTER...]",
	Short: "Stage a metadata fetch from SOURCE for matching records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpStage)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.StageUpdates(args[0], args[1:])
		if err != nil {
			return fmt.Errorf("staging updates: %w", err)
		}
		fmt.Printf("Staged %d update(s) from %s\n", n, args[0])
		return nil
	},
}

var stageSetCmd = &cobra.Command{
	Use:   "set KEY=VALUE...",
	Short: "Stage user overrides for records matching --where",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		where, _ := cmd.Flags().GetStringArray("where")

		values, err := parseAssignments(args)
		if err != nil {
			return err
		}

		a, err := newApp(app.OpStage)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.StageUserData(where, values)
		if err != nil {
			return fmt.Errorf("staging overrides: %w", err)
		}
		fmt.Printf("Staged overrides for %d record(s)\n", n)
		return nil
	},
}

var stageMkdirCmd = &cobra.Command{
	Use:   "mkdir PATH",
	Short: "Stage creation of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpStage)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		path, err := a.StageDirectory(args[0])
		if err != nil {
			return fmt.Errorf("staging directory: %w", err)
		}
		fmt.Printf("Staged mkdir %s\n", path)
		return nil
	},
}

// parseAssignments turns KEY=VALUE arguments into override values. Integer
// values are stored as numbers.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected KEY=VALUE", arg)
		}
		if n, err := strconv.Atoi(value); err == nil {
			values[key] = n
		} else {
			values[key] = value
		}
	}
	return values, nil
}

// preview command
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show pending changes and any problems",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpPreview)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		entries, err := a.Preview()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing staged.")
			return nil
		}

		problems := 0
		for i, e := range entries {
			fmt.Printf("%3d  %s\n", i+1, e.Description)
			for _, v := range e.Violations {
				fmt.Printf("     ! %v\n", v)
				problems++
			}
		}
		if problems > 0 {
			fmt.Printf("\n%d problem(s) found; commit will stop at the first failing command.\n", problems)
		}
		return nil
	},
}

// commit command
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Execute all pending changes as one undoable batch",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpCommit)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		res, err := a.Commit(cmd.Context())
		if res != nil && res.Batch != nil {
			fmt.Printf("Executed %d command(s) as batch %s\n", res.Executed, res.Batch.ID)
		}
		if err != nil {
			var aerr *reel.ArchiveError
			if errors.As(err, &aerr) {
				fmt.Fprintf(os.Stderr, "Batch %s ran but was not recorded and cannot be undone:\n", aerr.Batch.ID)
				for _, spec := range aerr.Batch.Commands {
					fmt.Fprintf(os.Stderr, "  %s\n", describeSpec(spec))
				}
			}
			if res != nil && res.Remaining > 0 {
				fmt.Printf("%d command(s) still pending\n", res.Remaining)
			}
			return err
		}
		if res.Batch == nil {
			fmt.Println("Nothing to commit.")
		}
		return nil
	},
}

func describeSpec(spec reel.CommandSpec) string {
	switch spec.Kind {
	case reel.KindMoveFile:
		return fmt.Sprintf("moved %s -> %s", spec.Source, spec.Destination)
	case reel.KindCreateDirectory:
		return "created " + spec.Path
	case reel.KindUpdateMetadata:
		return fmt.Sprintf("updated %s from %s", spec.Fingerprint.Short(), spec.SourceName)
	}
	return string(spec.Kind)
}

// undo command
var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Revert the most recent batch",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpUndo)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		res, err := a.Undo(cmd.Context())
		if reel.IsNothingToDo(err) {
			fmt.Println("Nothing to undo.")
			return nil
		}
		if err != nil {
			if res != nil && res.Left > 0 {
				fmt.Printf("Undid %d command(s); %d left in batch %s\n", res.Undone, res.Left, res.BatchID)
			}
			return err
		}
		fmt.Printf("Undid %d command(s) from batch %s\n", res.Undone, res.BatchID)
		return nil
	},
}

// clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard all pending changes",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpClear)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.ClearPending()
		if err != nil {
			return err
		}
		fmt.Printf("Discarded %d pending command(s)\n", n)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View committed batches",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")
		showOps, _ := cmd.Flags().GetBool("operations")

		a, err := newApp(app.OpHistory)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if showOps {
			return printOperations(a, limit)
		}

		batches, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Println("No batches recorded.")
			return nil
		}

		rows := make([][]string, 0, len(batches))
		for _, b := range batches {
			rows = append(rows, []string{
				b.ID,
				b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				strconv.Itoa(len(b.Commands)),
				summarizeKinds(b.Commands),
			})
		}
		fmt.Println(renderTable(
			[]string{"Batch", "Committed", "Commands", "Kinds"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
		return nil
	},
}

func summarizeKinds(specs []reel.CommandSpec) string {
	counts := make(map[reel.CommandKind]int)
	var order []reel.CommandKind
	for _, s := range specs {
		if counts[s.Kind] == 0 {
			order = append(order, s.Kind)
		}
		counts[s.Kind]++
	}
	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, fmt.Sprintf("%s x%d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

func printOperations(a *app.ReelApp, limit int) error {
	ops, err := a.Operations(limit)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		fmt.Println("No operations recorded.")
		return nil
	}

	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		duration := ""
		if op.FinishedAt != nil {
			duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d", op.ID),
			op.Operation,
			op.StartedAt.Local().Format("2006-01-02 15:04:05"),
			op.Status,
			duration,
			op.Parameters,
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "Operation", "Started", "Status", "Duration", "Parameters"},
		rows,
		[]columnAlignment{alignRight},
	))
	return nil
}

// prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop records whose files no longer exist",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpPrune)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		removed, err := a.Prune()
		if err != nil {
			return err
		}
		for _, r := range removed {
			fmt.Printf("pruned %s  %s\n", r.Fingerprint().Short(), r.Path())
		}
		fmt.Printf("Pruned %d record(s)\n", len(removed))
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write the collection as JSON (stdout when FILE is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpExport)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if len(args) == 0 {
			return a.Export(os.Stdout)
		}

		path := args[0]
		tmp, err := os.CreateTemp(filepath.Dir(path), ".reel-export-*")
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer os.Remove(tmp.Name())

		if err := a.Export(tmp); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("closing export file: %w", err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return fmt.Errorf("writing export file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported collection to %s\n", path)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Merge records from an exported collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening import file: %w", err)
		}
		defer f.Close()

		a, err := newApp(app.OpImport)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.Import(f, args[0])
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %d record(s)\n", n)
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Synchronize the collection with the vault",
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the collection to the vault",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpSnapshotPush)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		version, err := a.PushSnapshot()
		if err != nil {
			return err
		}
		fmt.Printf("Pushed snapshot version %d\n", version)
		return nil
	},
}

var snapshotPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace local records with the newest vault snapshot",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpSnapshotPull)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		var passphrase string
		if a.NeedsPassphrase() {
			if passphrase, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		n, version, err := a.PullSnapshot(passphrase)
		if errors.Is(err, reel.ErrNotFound) {
			fmt.Println("No snapshot in the vault yet.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Pulled snapshot version %d (%d record(s))\n", version, n)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Generate an age key pair and encrypt snapshots")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configVaultCmd)
	configVaultCmd.AddCommand(configVaultCheckCmd)

	// stage subcommands
	stageCmd.AddCommand(stageMoveCmd)
	stageMoveCmd.Flags().StringP("template", "t", "", "Destination template (default from config)")
	stageMoveCmd.Flags().String("root", "", "Root for relative destinations (default from config)")
	stageCmd.AddCommand(stageUpdateCmd)
	stageCmd.AddCommand(stageSetCmd)
	stageSetCmd.Flags().StringArrayP("where", "w", nil, "Filter selecting the records (repeatable)")
	stageCmd.AddCommand(stageMkdirCmd)

	// snapshot subcommands
	snapshotCmd.AddCommand(snapshotPushCmd)
	snapshotCmd.AddCommand(snapshotPullCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	historyCmd.Flags().Bool("operations", false, "Show the operation log instead of batches")
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(snapshotCmd)
}
