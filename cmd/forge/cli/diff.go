package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
	"github.com/Yrrrrrf/crud-forge/internal/config"
	"github.com/Yrrrrrf/crud-forge/internal/contract"
)

// errBreakingDrift is returned with --fail-on-breaking so scripts can gate
// deployments on the exit status.
var errBreakingDrift = errors.New("breaking schema drift detected")

func newDiffCmd() *cobra.Command {
	var (
		snapshotID     string
		jsonOutput     bool
		failOnBreaking bool
	)

	cmd := &cobra.Command{
		Use:   "diff [service]",
		Short: "Show schema drift between a stored snapshot and the live database",
		Long: `Compare a stored snapshot (the latest one by default) against the live
database schema. Reports additive changes (safe) and breaking changes (would
affect API consumers).`,
		Example: `  forge diff mydb
  forge diff mydb --snapshot 0192f1c4-...
  forge diff mydb --json --fail-on-breaking`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(args, snapshotID, jsonOutput, failOnBreaking)
		},
	}

	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "Compare against this snapshot instead of the latest")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&failOnBreaking, "fail-on-breaking", false, "Exit with an error when breaking drift is found")
	return cmd
}

func runDiff(args []string, snapshotID string, jsonOutput, failOnBreaking bool) error {
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
	ctx := context.Background()

	var rec *config.SnapshotRecord
	if snapshotID != "" {
		rec, err = store.GetSnapshot(ctx, snapshotID)
	} else {
		rec, err = store.LatestSnapshot(ctx, name)
	}
	if errors.Is(err, config.ErrNotFound) {
		fmt.Printf("No snapshot found for %q. Run 'forge snapshot save %s' first.\n", name, name)
		return nil
	}
	if err != nil {
		return err
	}

	registry := newRegistry()
	defer registry.CloseAll()

	svc, err := loadService(ctx, cfg, registry, name, logger)
	if err != nil {
		return err
	}

	stored := catalog.FromDocument(rec.Document, newResolver(svc.config))
	report := catalog.Diff(stored, svc.snapshot)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printDriftReport(name, rec, report)
	}

	if failOnBreaking && report.HasBreaking {
		return errBreakingDrift
	}
	return nil
}

func printDriftReport(service string, rec *config.SnapshotRecord, r contract.Report) {
	fmt.Printf("Schema drift: %s since snapshot %s (%s)\n", service, rec.ID,
		rec.LoadedAt.Local().Format("2006-01-02 15:04:05"))

	if !r.HasDrift {
		color.New(color.FgGreen).Println("  no drift")
		return
	}
	fmt.Printf("  %d additive, %d breaking\n\n", r.AdditiveCount, r.BreakingCount)

	additive := color.New(color.FgGreen)
	breaking := color.New(color.FgRed, color.Bold)
	for _, item := range r.Items {
		if item.Type == contract.DriftBreaking {
			breaking.Print("  ! ")
		} else {
			additive.Print("  + ")
		}
		fmt.Println(item.Description)
	}
}
