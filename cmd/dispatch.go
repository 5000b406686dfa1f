package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/easyterm/easyterm/sim/trace"
	"github.com/easyterm/easyterm/sim/traffic"
)

func newDispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Serve the traffic dispatcher until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := loadDefaultsConfig(viper.GetString("defaults"))
			if err != nil {
				return err
			}
			tcfg := defaults.trafficConfig(viper.GetString("addr"))
			if viper.IsSet("gate-timeout") {
				tcfg.GateTimeout = viper.GetDuration("gate-timeout")
			}
			if viper.IsSet("confirm-timeout") {
				tcfg.ConfirmTimeout = viper.GetDuration("confirm-timeout")
			}
			if viper.IsSet("trace") {
				tcfg.Trace = trace.TraceLevel(viper.GetString("trace"))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveDispatcher(ctx, tcfg, viper.GetString("status-addr"))
		},
	}
	cmd.Flags().String("status-addr", "", "Serve the read-only HTTP status view on this address")
	cmd.Flags().Duration("gate-timeout", 0, "Bound on waiting for a destination gate")
	cmd.Flags().Duration("confirm-timeout", 0, "Bound on waiting for vehicle login and arrival confirmation")
	cmd.Flags().String("trace", "", "Decision trace level (none, decisions)")
	for _, name := range []string{"status-addr", "gate-timeout", "confirm-timeout", "trace"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

// serveDispatcher runs the dispatcher, and the status view when statusAddr is set,
// until ctx ends.
func serveDispatcher(ctx context.Context, cfg traffic.Config, statusAddr string) error {
	srv, err := traffic.NewServer(cfg)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		if dt := srv.Dispatcher().Trace(); dt.Enabled() {
			s := trace.Summarize(dt)
			logrus.Infof("trace: %d leg(s), %d rejected, %d crossing(s), mean cost %.2f, %d gate update(s)",
				s.TotalLegs, s.RejectedCount, s.Crossings, s.MeanCost, s.GateUpdates)
		}
		return srv.Stop()
	})
	if statusAddr != "" {
		hs := &http.Server{
			Addr:              statusAddr,
			Handler:           traffic.StatusHandler(srv.Dispatcher()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logrus.Infof("status view listening on %s", statusAddr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
