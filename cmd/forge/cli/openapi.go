package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
	"github.com/Yrrrrrf/crud-forge/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		all        bool
		outputFile string
		format     string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "openapi [service]",
		Short: "Generate OpenAPI specification",
		Long: `Generate an OpenAPI 3.1 specification for one or all database services.
Tables get list, create, update and delete operations, views are read-only,
and every function and procedure becomes a POST operation whose request and
response bodies follow its input and output shapes.`,
		Example: `  forge openapi mydb                # spec for a single service
  forge openapi --all               # combined spec for all services
  forge openapi mydb -o spec.yaml --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(args, all, outputFile, format, baseURL)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Generate combined spec for all services")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "", "Output format: json or yaml (default from config)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL in the spec (default from config)")

	return cmd
}

func runOpenAPI(args []string, all bool, outputFile, format, baseURL string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if format == "" {
		format = cfg.OpenAPI.Format
	}
	if baseURL == "" {
		baseURL = cfg.OpenAPI.BaseURL
	}

	logger := newLogger(os.Stderr, cfg.Logging)
	registry := newRegistry()
	defer registry.CloseAll()
	ctx := context.Background()

	var doc *openapi3.T
	if all {
		if len(cfg.Services) == 0 {
			return fmt.Errorf("no services configured")
		}
		snaps := make([]*catalog.Snapshot, 0, len(cfg.Services))
		for _, name := range serviceNames(cfg) {
			svc, err := loadService(ctx, cfg, registry, name, logger)
			if err != nil {
				logger.Error("skipping service", "service", name, "error", err)
				continue
			}
			snaps = append(snaps, svc.snapshot)
		}
		if len(snaps) == 0 {
			return fmt.Errorf("no service could be loaded")
		}
		doc = openapi.GenerateCombined(baseURL, snaps)
	} else {
		name, err := resolveServiceArg(cfg, args)
		if err != nil {
			return err
		}
		svc, err := loadService(ctx, cfg, registry, name, logger)
		if err != nil {
			return err
		}
		doc = openapi.Generate(name, baseURL, svc.snapshot)
	}

	out, err := encodeSpec(doc, format)
	if err != nil {
		return err
	}
	if outputFile == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(outputFile, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outputFile, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%d paths)\n", outputFile, doc.Paths.Len())
	return nil
}

// encodeSpec renders doc as indented JSON or as block-style YAML. The YAML
// is produced from the JSON form so it keeps the same key order.
func encodeSpec(doc *openapi3.T, format string) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal spec: %w", err)
	}
	switch format {
	case "", "json":
		return append(data, '\n'), nil
	case "yaml", "yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("convert spec to yaml: %w", err)
		}
		blockStyle(&node)
		return yaml.Marshal(&node)
	default:
		return nil, fmt.Errorf("unsupported format %q; use 'json' or 'yaml'", format)
	}
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}
