package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/saiset-co/sai-cache-admin/config"
	"github.com/saiset-co/sai-cache-admin/service"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cache flush admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var (
				svc *service.Service
				err error
			)
			if opts.configPath != "" {
				svc, err = service.NewService(ctx, opts.configPath)
			} else {
				svc, err = service.NewServiceFromConfig(ctx, config.NewLoader().Defaults())
			}
			if err != nil {
				return err
			}

			return svc.Start()
		},
	}
}
