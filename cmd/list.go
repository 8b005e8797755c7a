package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/courseview/internal/config"
	"github.com/conneroisu/courseview/internal/registry"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the course modules",
	Long: `List every module of the course in navigation order, grouped into the
main sequence and the complementary material.

Examples:
  courseview list              # Table
  courseview list -o json      # JSON array
  courseview list -o yaml      # YAML, usable as a course manifest`,
	RunE: runList,
}

var listFormat = newChoiceValue("table", "table", "json", "yaml")

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().VarP(listFormat, "output", "o", "Output format (table|json|yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to build module registry: %w", err)
	}

	return writeModules(cmd.OutOrStdout(), reg, cfg, listFormat.String())
}

func writeModules(w io.Writer, reg *registry.Registry, cfg *config.Config, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reg.All())
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(registry.Manifest{
			Title:   cfg.Course.Title,
			Default: cfg.Content.DefaultModule,
			Modules: reg.All(),
		})
	case "table":
		return writeModuleTable(w, reg, cfg.Content.DefaultModule)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeModuleTable(w io.Writer, reg *registry.Registry, defaultID string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	groups := []struct {
		title    string
		category registry.Category
	}{
		{"Módulos", registry.CategoryPrimary},
		{"Material Complementar", registry.CategorySupplementary},
	}
	for i, group := range groups {
		modules := reg.ByCategory(group.category)
		if len(modules) == 0 {
			continue
		}
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s\n", group.title)
		fmt.Fprintf(tw, "ID\tNAME\t\n")
		for _, m := range modules {
			marker := ""
			if m.ID == defaultID {
				marker = "(default)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Name, marker)
		}
	}

	return tw.Flush()
}
