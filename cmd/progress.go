package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/courseview/internal/errors"
)

var progressCmd = &cobra.Command{
	Use:     "progress <module>",
	Aliases: []string{"p"},
	Short:   "Show or change lesson completion for a module",
	Long: `Render a module and list each lesson with its stored completion state.

Examples:
  courseview progress modulo1                     # List lessons
  courseview progress modulo1 --set 0=true        # Mark the first lesson done
  courseview progress modulo1 --set 0=true --set 1=false
  courseview progress modulo1 --set modulo1_lesson_2=true`,
	Args: cobra.ExactArgs(1),
	RunE: runProgress,
}

var progressSet []string

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.Flags().StringArrayVar(&progressSet, "set", nil, "Set completion, as <index|key>=<true|false> (repeatable)")
}

func runProgress(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), viper.GetViper(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	return moduleProgress(cmd.Context(), cmd.OutOrStdout(), a, args[0], progressSet)
}

func moduleProgress(ctx context.Context, w io.Writer, a *app, moduleID string, assignments []string) error {
	if _, ok := a.registry.Lookup(moduleID); !ok {
		return errors.ModuleNotFound(moduleID)
	}

	type change struct {
		index     int
		completed bool
	}
	changes := make([]change, 0, len(assignments))
	for _, s := range assignments {
		index, completed, err := parseAssignment(moduleID, s)
		if err != nil {
			return err
		}
		changes = append(changes, change{index, completed})
	}

	if err := a.viewer.LoadModule(ctx, moduleID); err != nil {
		return fmt.Errorf("failed to load %s: %w", moduleID, err)
	}

	for _, c := range changes {
		if _, err := a.viewer.SetProgress(ctx, moduleID, c.index, c.completed); err != nil {
			return fmt.Errorf("failed to set lesson %d: %w", c.index, err)
		}
	}

	controls := a.viewer.Controls()
	if len(controls) == 0 {
		fmt.Fprintf(w, "%s has no lessons.\n", moduleID)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tKEY\tDONE\tLESSON\n")
	done := 0
	for _, ctrl := range controls {
		mark := " "
		if ctrl.Checked() {
			mark = "x"
			done++
		}
		title := ctrl.Title
		if !ctrl.Attached() {
			title += " (no header)"
		}
		fmt.Fprintf(tw, "%d\t%s\t[%s]\t%s\n", ctrl.Index, ctrl.Key(), mark, title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d/%d lessons completed\n", done, len(controls))
	return nil
}
