package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nathoo/ifkit/cli"
	"github.com/nathoo/ifkit/engine"
	"github.com/nathoo/ifkit/engine/events"
	"github.com/nathoo/ifkit/metrics"
	"github.com/nathoo/ifkit/tui"
)

type playOptions struct {
	plain       bool
	script      string
	trace       bool
	random      int
	seed        int64
	metricsAddr string
}

func newPlayCmd(a *app) *cobra.Command {
	var o playOptions
	cmd := &cobra.Command{
		Use:   "play DIR",
		Short: "Play a world interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args[0]); err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				o.seed = a.cfg.Play.Seed
			}
			if !cmd.Flags().Changed("metrics-addr") {
				o.metricsAddr = a.cfg.Metrics.Addr
			}
			return a.play(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.plain, "plain", false, "use the line-based REPL instead of the TUI")
	f.StringVar(&o.script, "script", "", "read commands from FILE (implies --plain)")
	f.BoolVar(&o.trace, "trace", false, "print rule traces after each command")
	f.IntVar(&o.random, "random", 0, "play N random admissible commands and exit")
	f.Int64Var(&o.seed, "seed", 1, "seed for the random agent")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on ADDR")
	return cmd
}

func (a *app) play(cmd *cobra.Command, dir string, o playOptions) error {
	p, err := a.load(dir)
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithLogger(a.logger), engine.WithSeed(o.seed)}
	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, engine.WithMetrics(metrics.New(reg)))
		stop := a.serveMetrics(o.metricsAddr, reg)
		defer stop()
	}
	var bus events.Bus
	bus.Subscribe(func(ev events.Event) {
		a.logger.Debug("session event",
			zap.Stringer("kind", ev.Kind),
			zap.String("rule", ev.Rule),
			zap.Strings("violations", ev.Violations))
	})
	opts = append(opts, engine.WithEvents(&bus))

	s := engine.New(p.Model, opts...)
	if err := s.Seed(p.Scenario); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case o.random > 0:
		c := a.newCLI(s, cmd, o)
		c.RunRandom(o.random)
	case o.script != "":
		f, err := os.Open(o.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c := a.newCLI(s, cmd, o)
		c.In = f
		c.EchoInput = true
		c.Run()
	case o.plain || !isTerminal(out):
		a.newCLI(s, cmd, o).Run()
	default:
		return tui.Run(s, a.cfg.Play.SaveDir)
	}
	return nil
}

func (a *app) newCLI(s *engine.Session, cmd *cobra.Command, o playOptions) *cli.CLI {
	c := cli.New(s)
	c.In = cmd.InOrStdin()
	c.Out = cmd.OutOrStdout()
	c.SaveDir = a.cfg.Play.SaveDir
	c.Trace = o.trace
	return c
}

// serveMetrics exposes reg on addr until the returned func is called.
func (a *app) serveMetrics(addr string, reg *prometheus.Registry) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// isTerminal reports whether w is a character device.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
