package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saiset-co/sai-cache-admin/orchestrator"
	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
)

type scopeFlags struct {
	scope    string
	instance string
	prefix   string
}

func (f *scopeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scope, "scope", string(types.ScopeAll), "ALL, INSTANCE or DIGEST_PREFIX")
	cmd.Flags().StringVar(&f.instance, "instance", "", "instance name, required for --scope INSTANCE")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "hex digest prefix, required for --scope DIGEST_PREFIX")
}

func newFlushCmd(opts *globalOptions) *cobra.Command {
	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Flush entries from the Action Cache or the CAS",
	}

	flushCmd.AddCommand(newFlushActionCmd(opts), newFlushCASCmd(opts))
	return flushCmd
}

func newFlushActionCmd(opts *globalOptions) *cobra.Command {
	var (
		scope    scopeFlags
		redis    bool
		inMemory bool
	)

	cmd := &cobra.Command{
		Use:     "action",
		Aliases: []string{"ac"},
		Short:   "Flush Action Cache entries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := resolver.FromActionCacheBody(types.ActionCacheFlushBody{
				Scope:         scope.scope,
				InstanceName:  scope.instance,
				DigestPrefix:  scope.prefix,
				FlushRedis:    redis,
				FlushInMemory: inMemory,
			})
			if err != nil {
				return err
			}
			return runFlush(cmd, opts, req)
		},
	}

	scope.bind(cmd)
	cmd.Flags().BoolVar(&redis, "redis", false, "flush the redis action cache")
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "flush the in-memory action cache")

	return cmd
}

func newFlushCASCmd(opts *globalOptions) *cobra.Command {
	var (
		scope          scopeFlags
		filesystem     bool
		inMemoryLRU    bool
		redisWorkerMap bool
	)

	cmd := &cobra.Command{
		Use:   "cas",
		Short: "Flush Content Addressable Storage entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := resolver.FromCASBody(types.CASFlushBody{
				Scope:               scope.scope,
				InstanceName:        scope.instance,
				DigestPrefix:        scope.prefix,
				FlushFilesystem:     filesystem,
				FlushInMemoryLRU:    inMemoryLRU,
				FlushRedisWorkerMap: redisWorkerMap,
			})
			if err != nil {
				return err
			}
			return runFlush(cmd, opts, req)
		},
	}

	scope.bind(cmd)
	cmd.Flags().BoolVar(&filesystem, "filesystem", false, "delete CAS files from worker disks")
	cmd.Flags().BoolVar(&inMemoryLRU, "in-memory-lru", false, "flush the in-memory CAS LRU")
	cmd.Flags().BoolVar(&redisWorkerMap, "redis-worker-map", false, "flush the redis CAS worker map")

	return cmd
}

// runFlush submits req through a form and prints the rendered outcome. A
// failed flush exits non-zero after its banner is printed.
func runFlush(cmd *cobra.Command, opts *globalOptions, req *resolver.FlushRequest) error {
	if err := opts.validateOutput(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	admin, _, log, err := opts.adminClient(ctx)
	if err != nil {
		return err
	}

	form := orchestrator.NewForm(req.Family(), admin, log)
	result, submitErr := form.Submit(ctx, req)
	view := form.View()

	out := cmd.OutOrStdout()
	if opts.output == outputJSON {
		if result != nil {
			if err := writeJSON(out, result); err != nil {
				return err
			}
		} else if view.Result != nil {
			if err := writeJSON(out, types.ErrorResponse{
				ErrorCode: types.ErrorCodeInternal,
				Message:   view.Result.Banner.Text,
			}); err != nil {
				return err
			}
		}
	} else if view.Result != nil {
		fmt.Fprintln(out, formatResult(view.Result))
	}

	if submitErr != nil {
		if view.Result != nil {
			return fmt.Errorf("%w: %v", errReported, submitErr)
		}
		return submitErr
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", errReported, result.Message)
	}

	return nil
}
