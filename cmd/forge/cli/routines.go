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

func newRoutinesCmd() *cobra.Command {
	var (
		schema     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "routines [service]",
		Short: "List the functions and procedures of a service",
		Long: `Reflect a service and list its functions, procedures and trigger functions
with their kind, result class, parameters and return type.`,
		Example: `  forge routines mydb
  forge routines mydb --schema api --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutines(args, schema, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "", "Only list routines of this schema")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRoutines(args []string, schema string, jsonOutput bool) error {
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

	routines, err := svc.snapshot.ListRoutines(schema)
	if err != nil {
		return fmt.Errorf("%w (schemas: %v)", err, svc.snapshot.Schemas())
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(routines)
	}

	if len(routines) == 0 {
		fmt.Printf("No routines found in %q.\n", name)
		return nil
	}

	t := newTable(os.Stdout, "ROUTINE", "KIND", "CLASS", "VOLATILITY", "SIGNATURE")
	for _, r := range routines {
		t.addRow(model.QualifiedName(r.Schema, r.Name), string(r.Kind), string(r.Class),
			string(r.Volatility), signature(r))
	}
	t.render()
	return nil
}

// signature renders a routine's parameters and return type, e.g.
// "(term text, max integer = 10) -> TABLE(id integer)".
func signature(r model.Routine) string {
	params := make([]string, 0, len(r.Parameters))
	for _, p := range r.Parameters {
		s := p.Name + " " + p.RawType
		if p.Mode != model.ModeIn && p.Mode != "" {
			s = string(p.Mode) + " " + s
		}
		if p.Default != nil {
			s += " = " + *p.Default
		}
		params = append(params, strings.TrimSpace(s))
	}
	sig := "(" + strings.Join(params, ", ") + ")"
	if r.ReturnType != "" {
		sig += " -> " + r.ReturnType
	}
	return sig
}
