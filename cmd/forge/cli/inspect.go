package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yrrrrrf/crud-forge/internal/model"
)

func newInspectCmd() *cobra.Command {
	var (
		schema     string
		relName    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [service]",
		Short: "Reflect a service and show its tables and views",
		Long: `Connect to a service, reflect its schema and print the resolved model of
every table and view. JSON columns show the structure sampled from their data.`,
		Example: `  forge inspect mydb
  forge inspect mydb --schema public
  forge inspect mydb --relation public.users
  forge inspect mydb --json > model.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args, schema, relName, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "", "Only show relations of this schema")
	cmd.Flags().StringVar(&relName, "relation", "", "Show the columns of one relation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full schema model as JSON")

	return cmd
}

func runInspect(args []string, schema, relName string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name, err := resolveServiceArg(cfg, args)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.Logging)
	registry := newRegistry()
	defer registry.CloseAll()

	svc, err := loadService(context.Background(), cfg, registry, name, logger)
	if err != nil {
		return err
	}
	snap := svc.snapshot

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Document())
	}

	if relName != "" {
		rel, err := snap.Relation(relName)
		if err != nil {
			return err
		}
		printColumns(rel)
		return nil
	}

	rels, err := snap.ListRelations(schema)
	if err != nil {
		return fmt.Errorf("%w (schemas: %v)", err, snap.Schemas())
	}

	printStats(os.Stdout, name, snap.Stats())
	fmt.Println()

	t := newTable(os.Stdout, "RELATION", "KIND", "COLUMNS")
	for _, rel := range rels {
		cols := make([]string, len(rel.Columns))
		for i, c := range rel.Columns {
			cols[i] = c.Name + " " + c.Type.String()
		}
		t.addRow(model.QualifiedName(rel.Schema, rel.Name), string(rel.Kind), strings.Join(cols, ", "))
	}
	t.render()
	return nil
}

func printColumns(rel model.Relation) {
	fmt.Printf("%s (%s)\n\n", model.QualifiedName(rel.Schema, rel.Name), rel.Kind)

	t := newTable(os.Stdout, "#", "COLUMN", "DB TYPE", "TYPE", "DEFAULT")
	for _, c := range rel.Columns {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		t.addRow(fmt.Sprint(c.Position), c.Name, c.RawType, c.Type.String(), def)
	}
	t.render()
}
