package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilianp07/harvestplan/core/metrics"
	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/pkg/export"
)

var planOut string

var planCmd = &cobra.Command{
	Use:   "plan <campaign-glob>...",
	Short: "Generate dispatch plans for campaign files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOut, "out", "o", "", "output directory (defaults to export.dir)")
	rootCmd.AddCommand(planCmd)
}

// expandGlobs resolves every pattern, keeping literal paths that match nothing
// so that the loader reports them.
func expandGlobs(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		if len(matches) == 0 {
			matches = []string{p}
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	files, err := expandGlobs(args)
	if err != nil {
		return err
	}
	svc, cfg, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)
	if planOut == "" {
		planOut = cfg.Export.Dir
	}
	if err := os.MkdirAll(planOut, 0o755); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	failed := 0
	for _, path := range files {
		c, err := model.LoadCampaign(path)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", color.RedString("✗"), path, err)
			continue
		}
		plan, perr := svc.Plan(c)
		name := c.Name
		out := filepath.Join(planOut, name+".actions.json")
		n := 0
		if plan != nil {
			n = len(plan.Actions)
			if err := writeActions(out, plan.Actions); err != nil {
				return err
			}
		}
		if perr != nil {
			failed++
			_, reason := metrics.Outcome(perr)
			fmt.Fprintf(w, "%s %s: %d actions, stopped: %s\n", color.RedString("✗"), name, n, color.YellowString(reason))
			continue
		}
		fmt.Fprintf(w, "%s %s: %d actions -> %s\n", color.GreenString("✓"), name, n, out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d campaigns failed", failed, len(files))
	}
	return nil
}

func writeActions(path string, actions []model.Action) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteActions(f, actions); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
