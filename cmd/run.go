package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/terminal"
	"github.com/easyterm/easyterm/sim/trace"
	"github.com/easyterm/easyterm/sim/traffic"
)

// runOptions is everything a run needs once flags and files have been resolved.
type runOptions struct {
	Defaults Config
	Job      terminal.Job
	Addr     string
	Embedded bool
	Virtual  bool
	Horizon  float64
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a terminal job against the traffic dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := loadDefaultsConfig(viper.GetString("defaults"))
			if err != nil {
				return err
			}
			applyRunOverrides(&defaults)

			jobPath := viper.GetString("job")
			if jobPath == "" {
				return errors.New("--job is required")
			}
			jf, err := loadJobFile(jobPath)
			if err != nil {
				return err
			}
			job, err := jf.Job()
			if err != nil {
				return fmt.Errorf("job %s: %w", jobPath, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res, legs, err := runJob(ctx, runOptions{
				Defaults: defaults,
				Job:      job,
				Addr:     viper.GetString("addr"),
				Embedded: viper.GetBool("embedded"),
				Virtual:  viper.GetBool("virtual"),
				Horizon:  viper.GetFloat64("horizon"),
			})
			if res != nil {
				writeReport(cmd.OutOrStdout(), res)
			}
			if legs != nil {
				writeTraceSummary(cmd.OutOrStdout(), legs)
			}
			return err
		},
	}

	cmd.Flags().String("job", "", "Path to the job descriptor YAML")
	cmd.Flags().Float64("factor", 1, "Wall-clock seconds per simulated time unit (0 runs unpaced)")
	cmd.Flags().Bool("strict", true, "Abort when the simulation falls behind the wall clock")
	cmd.Flags().Int64("seed", 42, "Seed for the service-time draw and vehicle jitter")
	cmd.Flags().Float64("jitter", 0, "Relative travel-time jitter of virtual AGVs")
	cmd.Flags().Float64("horizon", 0, "Stop at this simulated time (0 runs to completion)")
	cmd.Flags().Bool("embedded", true, "Serve the dispatcher in-process instead of connecting to --addr")
	cmd.Flags().Bool("virtual", true, "Drive the AGVs with headless virtual vehicles")
	for _, name := range []string{"job", "factor", "strict", "seed", "jitter", "horizon", "embedded", "virtual"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

// applyRunOverrides lets flags and EASYTERM_ variables override the run section of
// defaults.yaml. Unset keys keep the file's values.
func applyRunOverrides(cfg *Config) {
	if viper.IsSet("factor") {
		cfg.Run.Factor = viper.GetFloat64("factor")
	}
	if viper.IsSet("strict") {
		cfg.Run.Strict = viper.GetBool("strict")
	}
	if viper.IsSet("seed") {
		cfg.Run.Seed = viper.GetInt64("seed")
	}
	if viper.IsSet("jitter") {
		cfg.Run.Jitter = viper.GetFloat64("jitter")
	}
}

// runJob serves the dispatcher and the virtual fleet alongside the kernel and returns
// the run result. The fleet and the embedded server stop when the kernel drains.
// The leg summary is only returned by an embedded dispatcher with tracing enabled.
func runJob(ctx context.Context, opts runOptions) (res *terminal.Result, legs *trace.TraceSummary, err error) {
	tcfg := opts.Defaults.trafficConfig(opts.Addr)
	addr := tcfg.Addr
	if opts.Embedded {
		srv, err := traffic.NewServer(tcfg)
		if err != nil {
			return nil, nil, err
		}
		if err := srv.Start(); err != nil {
			return nil, nil, err
		}
		defer func() {
			if dt := srv.Dispatcher().Trace(); dt.Enabled() {
				legs = trace.Summarize(dt)
			}
			_ = srv.Stop()
		}()
		addr = srv.Addr()
	}
	client := traffic.NewClient(addr)

	term, err := terminal.New(terminal.Config{
		Factor:     opts.Defaults.Run.Factor,
		Strict:     opts.Defaults.Run.Strict,
		Horizon:    opts.Horizon,
		NumQC:      len(opts.Job.QC),
		NumARMG:    len(opts.Job.ARMG),
		NumAGV:     len(opts.Job.AGV),
		Seed:       opts.Defaults.Run.Seed,
		Service:    opts.Defaults.Service,
		Dispatcher: client,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := term.Apply(opts.Job); err != nil {
		return nil, nil, err
	}
	logrus.Infof("running %d task(s) with %d AGV(s) against %s", len(opts.Job.Tasks), len(opts.Job.AGV), addr)

	g, gctx := errgroup.WithContext(ctx)
	fleetCtx, stopFleet := context.WithCancel(gctx)
	defer stopFleet()
	if opts.Virtual {
		streams := sim.NewStreams(opts.Defaults.Run.Seed)
		fleet := traffic.NewFleet(client, term.AGVNames(), opts.Defaults.Run.Jitter, streams)
		g.Go(func() error {
			if err := fleet.Run(fleetCtx); err != nil && fleetCtx.Err() == nil {
				return fmt.Errorf("virtual fleet: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stopFleet()
		var err error
		res, err = term.Run(gctx)
		return err
	})
	err = g.Wait()
	return res, legs, err
}
