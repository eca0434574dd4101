package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/harvestplan/app"
	"github.com/kilianp07/harvestplan/config"
	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/infra/logger"
	"github.com/kilianp07/harvestplan/pkg/export"

	// sink registrations
	_ "github.com/kilianp07/harvestplan/infra/metrics"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "harvestplan",
	Short:         "Harvest campaign scheduler and timeline decoder",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration file. A missing default file yields the
// default configuration; a missing explicit file is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newService(cmd *cobra.Command) (*app.Service, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadRun loads the campaign and, when actionsPath is set, the action list
// to replay instead of planning.
func loadRun(campaignPath, actionsPath string) (*model.Campaign, []model.Action, error) {
	c, err := model.LoadCampaign(campaignPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load campaign: %w", err)
	}
	if actionsPath == "" {
		return c, nil, nil
	}
	actions, err := export.LoadActions(actionsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load actions: %w", err)
	}
	return c, actions, nil
}
