package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saiset-co/sai-cache-admin/poller"
	"github.com/saiset-co/sai-cache-admin/types"
)

func newMetricsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show cumulative cache flush counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validateOutput(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			admin, serviceConfig, log, err := opts.adminClient(ctx)
			if err != nil {
				return err
			}

			p := poller.NewPoller(ctx, log, admin, serviceConfig.Poller, nil)
			state := p.Refresh()

			out := cmd.OutOrStdout()
			if opts.output == outputJSON {
				if state.ErrorVisible {
					if err := writeJSON(out, types.ErrorResponse{
						ErrorCode: types.ErrorCodeInternal,
						Message:   state.ErrorMessage,
					}); err != nil {
						return err
					}
				} else if err := writeJSON(out, state.Snapshot); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, formatDisplay(state))
			}

			if state.ErrorVisible {
				return fmt.Errorf("%w: %s", errReported, state.ErrorMessage)
			}
			return nil
		},
	}
}
