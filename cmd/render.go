package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/courseview/internal/dom"
	"github.com/conneroisu/courseview/internal/errors"
	"github.com/conneroisu/courseview/internal/theme"
)

var renderCmd = &cobra.Command{
	Use:     "render <module>",
	Aliases: []string{"r"},
	Short:   "Render one module to stdout",
	Long: `Render one module the way the viewer shows it.

The html format prints the content area: the module wrapper, highlighted code
and a checkbox per lesson reflecting the stored progress. The ansi format
renders the markdown for the terminal in the saved light or dark theme.

Examples:
  courseview render modulo1
  courseview render modulo3 --format ansi --width 100`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderFormat = newChoiceValue("html", "html", "ansi")
	renderWidth  int
)

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().VarP(renderFormat, "format", "f", "Output format (html|ansi)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 80, "Word wrap width for ansi output")
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), viper.GetViper(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	return renderModule(cmd.Context(), cmd.OutOrStdout(), a, args[0], renderFormat.String(), renderWidth)
}

func renderModule(ctx context.Context, w io.Writer, a *app, moduleID, format string, width int) error {
	if _, ok := a.registry.Lookup(moduleID); !ok {
		return errors.ModuleNotFound(moduleID)
	}

	switch format {
	case "ansi":
		fetcher, err := a.cfg.Fetcher()
		if err != nil {
			return err
		}
		path := a.cfg.Layout().Path(moduleID)
		source, err := fetcher.Fetch(ctx, path)
		if errors.IsNotFound(err) {
			return fmt.Errorf("%s has no content at %s: %w", moduleID, path, err)
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", moduleID, err)
		}
		out, err := renderTerminal(source, theme.Saved(a.store), width)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err

	case "html":
		loadErr := a.viewer.LoadModule(ctx, moduleID)
		var cf *errors.ContentLoadFailure
		if loadErr != nil && !stderrors.As(loadErr, &cf) {
			return loadErr
		}
		markup, err := a.viewer.Surface().InnerHTML(dom.ContentAreaID)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, markup); err != nil {
			return err
		}
		// The error paragraph was printed; the exit status still reports it.
		return loadErr

	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// renderTerminal renders markdown with the glamour style matching t.
func renderTerminal(source string, t theme.Theme, width int) (string, error) {
	style := "light"
	if t == theme.Dark {
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return r.Render(source)
}
