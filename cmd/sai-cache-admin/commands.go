package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/saiset-co/sai-cache-admin/client"
	"github.com/saiset-co/sai-cache-admin/config"
	"github.com/saiset-co/sai-cache-admin/logger"
	"github.com/saiset-co/sai-cache-admin/types"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type globalOptions struct {
	configPath string
	baseURL    string
	user       string
	output     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "sai-cache-admin",
		Short: "Flush and monitor the remote execution Action Cache and CAS",
		Long: `sai-cache-admin serves the cache flush admin API and drives it
from the command line: one-shot flushes, a metrics summary and a live
dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yml (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "", "admin API base URL, overrides admin_client.base_url")
	rootCmd.PersistentFlags().StringVar(&opts.user, "user", "", "operator identity sent as X-User-ID")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log client activity to stderr")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newFlushCmd(opts),
		newMetricsCmd(opts),
		newDashboardCmd(opts),
	)

	return rootCmd
}

// loadConfig reads --config, or falls back to the built-in defaults.
func (o *globalOptions) loadConfig(ctx context.Context) (*config.ConfigurationManager, error) {
	if o.configPath != "" {
		return config.NewConfigurationManager(ctx, o.configPath)
	}
	return config.NewFromConfig(ctx, config.NewLoader().Defaults())
}

// adminClient builds the API client and the logger it reports through.
func (o *globalOptions) adminClient(ctx context.Context) (*client.AdminClient, *types.ServiceConfig, types.Logger, error) {
	configManager, err := o.loadConfig(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	serviceConfig := configManager.GetConfig()

	log, err := o.clientLogger()
	if err != nil {
		return nil, nil, nil, err
	}

	clientConfig := &types.AdminClientConfig{}
	if serviceConfig.AdminClient != nil {
		*clientConfig = *serviceConfig.AdminClient
	}
	if o.baseURL != "" {
		clientConfig.BaseURL = o.baseURL
	}
	if o.user != "" {
		headers := make(map[string]string, len(clientConfig.Headers)+1)
		for k, v := range clientConfig.Headers {
			headers[k] = v
		}
		headers["X-User-ID"] = o.user
		clientConfig.Headers = headers
	}

	admin, err := client.NewAdminClient(log, clientConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	return admin, serviceConfig, log, nil
}

// clientLogger keeps stdout for command output. Only warnings reach stderr
// unless --verbose is set.
func (o *globalOptions) clientLogger() (types.Logger, error) {
	level := "warn"
	if o.verbose {
		level = "debug"
	}

	return logger.NewDefaultLogger(&types.LoggerConfig{
		Level: level,
		Config: map[string]interface{}{
			"format": "console",
			"output": "stderr",
		},
	})
}

func (o *globalOptions) validateOutput() error {
	switch o.output {
	case outputText, outputJSON:
		return nil
	default:
		return types.Errorf(types.ErrInvalidParameter, "unknown output format %q", o.output)
	}
}
