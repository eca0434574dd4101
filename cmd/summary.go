package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/kilianp07/harvestplan/core/timeline"
)

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	dim     = color.New(color.FgHiBlack).SprintFunc()
	good    = color.New(color.FgGreen).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
)

// printSummary renders the run summary. Machines waiting for more than a
// quarter of the makespan are highlighted.
func printSummary(w io.Writer, res *timeline.Result, s timeline.Summary) {
	fmt.Fprintf(w, "%s %s %s\n", heading("Run"), s.RunID, dim("("+res.Source+")"))
	fmt.Fprintf(w, "  makespan   %s s\n", good(fmt.Sprintf("%.1f", s.Makespan)))
	fmt.Fprintf(w, "  harvested  %.1f kg in %d overloads\n", s.Harvested, s.Overloads)
	fmt.Fprintf(w, "  unloaded   %.1f kg in %d unloads\n", s.Unloaded, s.Unloads)
	fmt.Fprintf(w, "  waiting    mean %.1f s, stddev %.1f s\n\n", s.MeanWaiting, s.StdDevWaiting)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  MACHINE\tKIND\tTRANSIT\tWAITING\tOVERLOADING\tUNLOADING\tUTILISATION")
	for _, m := range s.Machines {
		waiting := fmt.Sprintf("%.1f", m.Waiting)
		if s.Makespan > 0 && m.Waiting > s.Makespan/4 {
			waiting = warn(waiting)
		}
		kind := "?"
		if res.Campaign != nil {
			if mach, ok := res.Campaign.Machine(m.Machine); ok {
				kind = mach.Kind.String()
			}
		}
		fmt.Fprintf(tw, "  %d\t%s\t%.1f\t%s\t%.1f\t%.1f\t%.0f%%\n",
			m.Machine, kind, m.Transit, waiting, m.Overloading, m.Unloading, 100*m.Utilisation)
	}
	_ = tw.Flush()
}
