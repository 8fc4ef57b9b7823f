package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saiset-co/sai-cache-admin/orchestrator"
	"github.com/saiset-co/sai-cache-admin/poller"
	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
)

const clearScreen = "\033[H\033[2J"

// dashboard redraws the metrics panel and the two flush forms whenever any
// of them changes. Flushes are typed on stdin, one per line.
type dashboard struct {
	out     io.Writer
	clear   bool
	mu      sync.Mutex
	metrics poller.DisplayState
	forms   map[types.CacheFamily]orchestrator.View
	notice  string
}

func newDashboard(out io.Writer, clear bool) *dashboard {
	return &dashboard{
		out:   out,
		clear: clear,
		forms: make(map[types.CacheFamily]orchestrator.View),
	}
}

func (d *dashboard) onMetrics(state poller.DisplayState) {
	d.mu.Lock()
	d.metrics = state
	d.mu.Unlock()
	d.draw()
}

func (d *dashboard) onForm(family types.CacheFamily) orchestrator.Observer {
	return func(view orchestrator.View) {
		d.mu.Lock()
		d.forms[family] = view
		d.mu.Unlock()
		d.draw()
	}
}

func (d *dashboard) setNotice(notice string) {
	d.mu.Lock()
	d.notice = notice
	d.mu.Unlock()
	d.draw()
}

func (d *dashboard) draw() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.clear {
		fmt.Fprint(d.out, clearScreen)
	}

	fmt.Fprintln(d.out, styles.Title.Render("Cache Flush Metrics"))
	fmt.Fprintln(d.out, formatDisplay(d.metrics))

	for _, family := range []types.CacheFamily{types.FamilyActionCache, types.FamilyCAS} {
		view, ok := d.forms[family]
		if !ok {
			continue
		}
		fmt.Fprintln(d.out, styles.Muted.Render(fmt.Sprintf("[%s] %s", view.State, view.ControlLabel)))
		if view.Result != nil {
			fmt.Fprintln(d.out, formatResult(view.Result))
		}
	}

	if d.notice != "" {
		fmt.Fprintln(d.out, styles.Error.Render(d.notice))
	}
	fmt.Fprintln(d.out, styles.Muted.Render(promptUsage))
}

// submit runs req on its family's form and refreshes the counters once the
// flush has settled. Rejections while a flush is in flight only set a notice.
func (d *dashboard) submit(ctx context.Context, forms map[types.CacheFamily]*orchestrator.Form, p *poller.Poller, req *resolver.FlushRequest) {
	_, err := forms[req.Family()].Submit(ctx, req)
	if errors.Is(err, types.ErrSubmissionInFlight) {
		d.setNotice(req.Family().DisplayName() + " flush already in progress")
		return
	}
	d.setNotice("")
	p.Refresh()
}

// readPrompts feeds stdin command lines to submit until input or ctx ends.
func (d *dashboard) readPrompts(ctx context.Context, in io.Reader, forms map[types.CacheFamily]*orchestrator.Form, p *poller.Poller) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		req, err := parsePrompt(line)
		if err != nil {
			d.setNotice(err.Error())
			continue
		}

		go d.submit(ctx, forms, p, req)
	}
}

func newDashboardCmd(opts *globalOptions) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Watch flush metrics and submit flushes typed on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			admin, serviceConfig, log, err := opts.adminClient(ctx)
			if err != nil {
				return err
			}

			pollerConfig := &types.PollerConfig{Enabled: true}
			if serviceConfig.Poller != nil {
				*pollerConfig = *serviceConfig.Poller
			}
			if interval > 0 {
				pollerConfig.Interval = interval
			}

			board := newDashboard(cmd.OutOrStdout(), !once)
			p := poller.NewPoller(ctx, log, admin, pollerConfig, board.onMetrics)

			forms := make(map[types.CacheFamily]*orchestrator.Form, 2)
			for _, family := range []types.CacheFamily{types.FamilyActionCache, types.FamilyCAS} {
				forms[family] = orchestrator.NewForm(family, admin, log,
					orchestrator.WithObserver(board.onForm(family)))
			}

			if once {
				state := p.Refresh()
				if state.ErrorVisible {
					return fmt.Errorf("%w: %s", errReported, state.ErrorMessage)
				}
				return nil
			}

			if err := p.Start(); err != nil {
				return err
			}
			go board.readPrompts(ctx, cmd.InOrStdin(), forms, p)

			<-ctx.Done()
			return p.Stop()
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval, overrides poller.interval")
	cmd.Flags().BoolVar(&once, "once", false, "draw a single frame and exit")

	return cmd
}
