package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/harvestplan/infra/logger"
)

var serveActions string

var serveCmd = &cobra.Command{
	Use:   "serve <campaign>",
	Short: "Decode a campaign and serve the query API and /metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveActions, "actions", "a", "", "action list to replay instead of planning")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	c, actions, err := loadRun(args[0], serveActions)
	if err != nil {
		return err
	}
	svc, _, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	log := logger.New("serve")
	out, err := svc.Run(ctx, c, actions)
	if out.Result == nil {
		return err
	}
	if err != nil {
		log.Warnf("serving partial run: %v", err)
	}
	log.Infof("serving run %s of %s", out.Result.RunID, c.Name)
	return svc.Serve(ctx, out.Result)
}
