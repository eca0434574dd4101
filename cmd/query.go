package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/query"
)

var (
	queryActions string
	queryAt      float64
	queryMachine int
	queryField   int
	querySilo    int
)

var queryCmd = &cobra.Command{
	Use:   "query <campaign>",
	Short: "Print the state of one machine, field or silo at a timestamp",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.StringVarP(&queryActions, "actions", "a", "", "action list to replay instead of planning")
	f.Float64VarP(&queryAt, "at", "t", 0, "timestamp in seconds")
	f.IntVar(&queryMachine, "machine", 0, "machine id")
	f.IntVar(&queryField, "field", 0, "field id")
	f.IntVar(&querySilo, "silo", 0, "silo id")
	queryCmd.MarkFlagsMutuallyExclusive("machine", "field", "silo")
	queryCmd.MarkFlagsOneRequired("machine", "field", "silo")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	c, actions, err := loadRun(args[0], queryActions)
	if err != nil {
		return err
	}
	svc, _, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	out, err := svc.Run(ctx, c, actions)
	if out.Result == nil {
		return err
	}
	engine, qerr := query.New(out.Result)
	if qerr != nil {
		return qerr
	}
	var snap any
	switch {
	case queryMachine != 0:
		snap, _, qerr = engine.Machine(model.MachineID(queryMachine), queryAt, query.Cursor{})
	case queryField != 0:
		snap, _, qerr = engine.Field(model.FieldID(queryField), queryAt, query.Cursor{})
	default:
		snap, _, qerr = engine.Silo(model.SiloID(querySilo), queryAt, query.Cursor{})
	}
	if qerr != nil {
		return qerr
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return err
	}
	if err != nil {
		return fmt.Errorf("partial run: %w", err)
	}
	return nil
}
