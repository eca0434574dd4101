package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilianp07/harvestplan/core/timeline"
)

var decodeActions string

var decodeCmd = &cobra.Command{
	Use:   "decode <campaign>",
	Short: "Plan or replay a campaign and export its timelines",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeActions, "actions", "a", "", "action list to replay instead of planning")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	c, actions, err := loadRun(args[0], decodeActions)
	if err != nil {
		return err
	}
	svc, _, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	out, runErr := svc.Run(ctx, c, actions)
	w := cmd.OutOrStdout()
	if out.Result != nil {
		files, err := svc.Export(c.Name, out)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		printSummary(w, out.Result, timeline.Summarize(out.Result))
		if files.States != "" {
			fmt.Fprintf(w, "\n%s %s, %s, %s, %s\n", dim("wrote"), files.States, files.Actions, files.Routes, files.Chart)
		}
	}
	if runErr != nil {
		fmt.Fprintf(w, "%s %v\n", color.RedString("✗"), runErr)
		return runErr
	}
	return nil
}
