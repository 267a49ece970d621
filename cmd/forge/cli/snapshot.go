package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yrrrrrf/crud-forge/internal/config"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and manage schema snapshots",
		Long: `Snapshots record the reflected schema model of a service so later runs can
report how the database changed. They are kept in a SQLite file in the
configured data directory.`,
	}

	cmd.AddCommand(newSnapshotSaveCmd())
	cmd.AddCommand(newSnapshotListCmd())
	cmd.AddCommand(newSnapshotShowCmd())
	cmd.AddCommand(newSnapshotDeleteCmd())

	return cmd
}

// ---------- snapshot save ----------

func newSnapshotSaveCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "save [service]",
		Short: "Reflect a service and store its schema model",
		Example: `  forge snapshot save mydb
  forge snapshot save mydb --label before-migration`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(args, label)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Label stored with the snapshot")
	return cmd
}

func runSnapshotSave(args []string, label string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name, err := resolveServiceArg(cfg, args)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.Logging)
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()

	registry := newRegistry()
	defer registry.CloseAll()
	ctx := context.Background()

	svc, err := loadService(ctx, cfg, registry, name, logger)
	if err != nil {
		return err
	}

	rec, err := store.SaveSnapshot(ctx, svc.snapshot.Document(), label)
	if err != nil {
		return err
	}
	fmt.Printf("Saved snapshot %s of %q (%d relations, %d routines)\n",
		rec.ID, name, rec.RelationCount, rec.RoutineCount)

	if cfg.Store.Keep > 0 {
		n, err := store.PruneSnapshots(ctx, name, cfg.Store.Keep)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("pruned old snapshots", "service", name, "deleted", n, "keep", cfg.Store.Keep)
		}
	}
	return nil
}

// ---------- snapshot list ----------

func newSnapshotListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list [service]",
		Short: "List stored snapshots of a service, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotList(args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runSnapshotList(args []string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name, err := resolveServiceArg(cfg, args)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()

	records, err := store.ListSnapshots(context.Background(), name)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Printf("No snapshots of %q. Run 'forge snapshot save %s' first.\n", name, name)
		return nil
	}

	t := newTable(os.Stdout, "ID", "LOADED", "RELATIONS", "ROUTINES", "LABEL")
	for _, r := range records {
		t.addRow(r.ID, r.LoadedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprint(r.RelationCount), fmt.Sprint(r.RoutineCount), r.Label)
	}
	t.render()
	return nil
}

// ---------- snapshot show ----------

func newSnapshotShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored snapshot's schema model as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open snapshot store: %w", err)
			}
			defer store.Close()

			rec, err := store.GetSnapshot(context.Background(), args[0])
			if errors.Is(err, config.ErrNotFound) {
				return fmt.Errorf("snapshot %q not found", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec.Document)
		},
	}
}

// ---------- snapshot delete ----------

func newSnapshotDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open snapshot store: %w", err)
			}
			defer store.Close()

			if err := store.DeleteSnapshot(context.Background(), args[0]); err != nil {
				if errors.Is(err, config.ErrNotFound) {
					return fmt.Errorf("snapshot %q not found", args[0])
				}
				return err
			}
			fmt.Printf("Deleted snapshot %s\n", args[0])
			return nil
		},
	}
}
